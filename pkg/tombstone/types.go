package tombstone

// Signal numbers and codes the notification policy keys on.
const (
	SIGSEGV = 11

	// asynchronous / synchronous memory tagging faults
	SEGV_MTEAERR = 8
	SEGV_MTESERR = 9
)

// tagged_addr_ctrl tag check fault mode bits (PR_MTE_TCF_*)
const (
	TaggedAddrCtrlSync  int64 = 1 << 1
	TaggedAddrCtrlAsync int64 = 1 << 2
)

// CrashRecord is a decoded tombstone. It is immutable once returned by Parse.
type CrashRecord struct {
	UID           int
	PID           int
	TID           int
	SelinuxLabel  string
	CommandLine   []string
	ProcessUptime int
	AbortMessage  string
	Signal        *Signal
	Causes        []Cause
	// Threads is keyed by thread id. It may not contain TID.
	Threads map[int]Thread
}

type Signal struct {
	Number   int
	Name     string
	Code     int
	CodeName string
	// SenderUID is set only when the signal carries a sender.
	SenderUID *int
	// FaultAddress is set only when the signal carries a fault address.
	FaultAddress *uint64
}

type Cause struct {
	HumanReadable string
}

type Thread struct {
	ID             int
	Name           string
	TaggedAddrCtrl int64
	// Backtrace is outermost-first.
	Backtrace []Frame
}

type Frame struct {
	FileName       string
	FunctionName   string
	FunctionOffset uint64
	RelPC          uint64
}

// CrashingThread returns the thread that received the signal, if the record has it.
func (r *CrashRecord) CrashingThread() (Thread, bool) {
	thread, ok := r.Threads[r.TID]
	return thread, ok
}

// ProgramName is the basename of argv[0].
func (r *CrashRecord) ProgramName() string {
	if len(r.CommandLine) == 0 {
		return NoProgramName
	}
	path := r.CommandLine[0]
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

// NoProgramName is used when the record has an empty command line.
const NoProgramName = "//no progName//"

// IsMemoryTaggingFault reports whether the signal is a tag check fault.
func (s *Signal) IsMemoryTaggingFault() bool {
	return s != nil && s.Number == SIGSEGV && (s.Code == SEGV_MTEAERR || s.Code == SEGV_MTESERR)
}
