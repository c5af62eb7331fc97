package tombstone

func ptr[T any](v T) *T {
	return &v
}

func sampleRecord() *CrashRecord {
	return &CrashRecord{
		UID:           10123,
		PID:           500,
		TID:           502,
		SelinuxLabel:  "u:r:untrusted_app:s0:c123,c256,c512,c768",
		CommandLine:   []string{"com.example", "--flag"},
		ProcessUptime: 42,
		AbortMessage:  "",
		Signal: &Signal{
			Number:       SIGSEGV,
			Name:         "SIGSEGV",
			Code:         SEGV_MTESERR,
			CodeName:     "SEGV_MTESERR",
			FaultAddress: ptr(uint64(0xb400007a3c2e1010)),
		},
		Causes: []Cause{
			{HumanReadable: "[MTE]: Buffer Overflow, 0 bytes right of a 16-byte allocation at 0x7a3c2e1000"},
		},
		Threads: map[int]Thread{
			500: {ID: 500, Name: "main"},
			502: {
				ID:             502,
				Name:           "RenderThread",
				TaggedAddrCtrl: TaggedAddrCtrlSync | 1,
				Backtrace: []Frame{
					{FileName: "/apex/com.android.runtime/lib64/bionic/libc.so", FunctionName: "abort", FunctionOffset: 164, RelPC: 0x5a0b4},
					{FileName: "/data/app/~~x/com.example/lib/arm64/libnative.so", RelPC: 0x1f3c},
				},
			},
		},
	}
}
