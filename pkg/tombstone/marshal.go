package tombstone

import (
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

// Marshal encodes a record in the tombstone wire format for testing, the agent
// itself only decodes tombstones. Threads are written in ascending thread id
// order so the output is stable.
func Marshal(rec *CrashRecord) []byte {
	var b []byte
	b = appendVarint(b, fieldPID, uint64(uint32(rec.PID)))
	b = appendVarint(b, fieldTID, uint64(uint32(rec.TID)))
	b = appendVarint(b, fieldUID, uint64(uint32(rec.UID)))
	b = appendString(b, fieldSelinuxLabel, rec.SelinuxLabel)
	for _, arg := range rec.CommandLine {
		b = protowire.AppendTag(b, fieldCommandLine, protowire.BytesType)
		b = protowire.AppendString(b, arg)
	}
	if rec.Signal != nil {
		b = protowire.AppendTag(b, fieldSignalInfo, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalSignal(rec.Signal))
	}
	b = appendString(b, fieldAbortMessage, rec.AbortMessage)
	for _, cause := range rec.Causes {
		b = protowire.AppendTag(b, fieldCauses, protowire.BytesType)
		b = protowire.AppendBytes(b, appendString(nil, fieldCauseHumanReadable, cause.HumanReadable))
	}
	tids := make([]int, 0, len(rec.Threads))
	for tid := range rec.Threads {
		tids = append(tids, tid)
	}
	sort.Ints(tids)
	for _, tid := range tids {
		entry := protowire.AppendTag(nil, fieldMapKey, protowire.VarintType)
		entry = protowire.AppendVarint(entry, uint64(uint32(tid)))
		entry = protowire.AppendTag(entry, fieldMapValue, protowire.BytesType)
		entry = protowire.AppendBytes(entry, marshalThread(rec.Threads[tid]))
		b = protowire.AppendTag(b, fieldThreads, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}
	b = appendVarint(b, fieldProcessUptime, uint64(uint32(rec.ProcessUptime)))
	return b
}

// WrapEnvelope builds a historical log entry around a serialized tombstone for
// testing.
func WrapEnvelope(tombstone []byte) []byte {
	b := protowire.AppendTag(nil, fieldEnvelopeTombstone, protowire.BytesType)
	return protowire.AppendBytes(b, tombstone)
}

func marshalSignal(s *Signal) []byte {
	var b []byte
	b = appendVarint(b, fieldSignalNumber, uint64(int64(s.Number)))
	b = appendString(b, fieldSignalName, s.Name)
	b = appendVarint(b, fieldSignalCode, uint64(int64(s.Code)))
	b = appendString(b, fieldSignalCodeName, s.CodeName)
	if s.SenderUID != nil {
		b = appendVarint(b, fieldSignalHasSender, 1)
		b = appendVarint(b, fieldSignalSenderUID, uint64(int64(*s.SenderUID)))
	}
	if s.FaultAddress != nil {
		b = appendVarint(b, fieldSignalHasFaultAddress, 1)
		b = appendVarint(b, fieldSignalFaultAddress, *s.FaultAddress)
	}
	return b
}

func marshalThread(t Thread) []byte {
	var b []byte
	b = appendVarint(b, fieldThreadID, uint64(int64(t.ID)))
	b = appendString(b, fieldThreadName, t.Name)
	for _, frame := range t.Backtrace {
		var fb []byte
		fb = appendVarint(fb, fieldFrameRelPC, frame.RelPC)
		fb = appendString(fb, fieldFrameFunctionName, frame.FunctionName)
		fb = appendVarint(fb, fieldFrameFunctionOffset, frame.FunctionOffset)
		fb = appendString(fb, fieldFrameFileName, frame.FileName)
		b = protowire.AppendTag(b, fieldThreadBacktrace, protowire.BytesType)
		b = protowire.AppendBytes(b, fb)
	}
	b = appendVarint(b, fieldThreadTaggedAddrCtrl, uint64(t.TaggedAddrCtrl))
	return b
}

// appendVarint and appendString skip zero values like proto3 does.
func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}
