package tombstone

import (
	"strconv"
	"strings"
)

const (
	MemoryTaggingEnabledSync = "enabled; sync"
	MemoryTaggingEnabled     = "enabled"
	MemoryTaggingNotEnabled  = "not enabled"

	NoThreadInfo = "no thread info"
)

// Render formats the diagnostic text attached to crash notifications. The
// layout is consumed by error report viewers and must stay stable.
func Render(rec *CrashRecord, memoryTaggingSupported bool) string {
	var sb strings.Builder

	sb.WriteString("uid: ")
	sb.WriteString(strconv.Itoa(rec.UID))
	sb.WriteString(" (")
	sb.WriteString(rec.SelinuxLabel)
	sb.WriteString(")\ncmdline:")
	for _, arg := range rec.CommandLine {
		sb.WriteByte(' ')
		sb.WriteString(arg)
	}
	sb.WriteString("\nprocessUptime: ")
	sb.WriteString(strconv.Itoa(rec.ProcessUptime))
	sb.WriteByte('s')

	if rec.AbortMessage != "" {
		sb.WriteString("\n\nabortMessage: ")
		sb.WriteString(rec.AbortMessage)
	}

	if s := rec.Signal; s != nil {
		sb.WriteString("\n\nsignal: ")
		sb.WriteString(strconv.Itoa(s.Number))
		sb.WriteString(" (")
		sb.WriteString(s.Name)
		sb.WriteString("), code ")
		sb.WriteString(strconv.Itoa(s.Code))
		sb.WriteString(" (")
		sb.WriteString(s.CodeName)
		sb.WriteByte(')')
		if s.SenderUID != nil {
			sb.WriteString(", senderUid ")
			sb.WriteString(strconv.Itoa(*s.SenderUID))
		}
		if s.FaultAddress != nil {
			sb.WriteString(", faultAddr ")
			sb.WriteString(strconv.FormatUint(*s.FaultAddress, 16))
		}
	}

	for _, cause := range rec.Causes {
		sb.WriteString("\ncause: ")
		sb.WriteString(cause.HumanReadable)
	}

	thread, ok := rec.CrashingThread()
	if !ok {
		sb.WriteString("\n\n")
		sb.WriteString(NoThreadInfo)
		return sb.String()
	}

	sb.WriteString("\nthreadName: ")
	sb.WriteString(thread.Name)
	if memoryTaggingSupported {
		sb.WriteString("\nMTE: ")
		sb.WriteString(MemoryTaggingState(thread.TaggedAddrCtrl))
	}

	sb.WriteString("\n\nbacktrace:")
	for _, frame := range thread.Backtrace {
		sb.WriteString("\n    ")
		sb.WriteString(frame.FileName)
		sb.WriteString(" (")
		if frame.FunctionName != "" {
			sb.WriteString(frame.FunctionName)
			sb.WriteByte('+')
			sb.WriteString(strconv.FormatUint(frame.FunctionOffset, 10))
			sb.WriteString(", ")
		}
		sb.WriteString("pc ")
		sb.WriteString(strconv.FormatUint(frame.RelPC, 16))
		sb.WriteByte(')')
	}

	return sb.String()
}

// MemoryTaggingState describes the tag check fault mode of a thread. Async
// takes precedence when both mode bits are set.
func MemoryTaggingState(taggedAddrCtrl int64) string {
	switch {
	case taggedAddrCtrl&TaggedAddrCtrlAsync != 0:
		return MemoryTaggingEnabled
	case taggedAddrCtrl&TaggedAddrCtrlSync != 0:
		return MemoryTaggingEnabledSync
	default:
		return MemoryTaggingNotEnabled
	}
}
