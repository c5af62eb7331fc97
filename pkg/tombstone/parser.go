package tombstone

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformedRecord is returned for any structurally invalid tombstone.
var ErrMalformedRecord = errors.New("malformed tombstone record")

// Tombstone message field numbers.
const (
	fieldPID           protowire.Number = 5
	fieldTID           protowire.Number = 6
	fieldUID           protowire.Number = 7
	fieldSelinuxLabel  protowire.Number = 8
	fieldCommandLine   protowire.Number = 9
	fieldSignalInfo    protowire.Number = 10
	fieldAbortMessage  protowire.Number = 14
	fieldCauses        protowire.Number = 15
	fieldThreads       protowire.Number = 16
	fieldProcessUptime protowire.Number = 20
)

const (
	fieldSignalNumber          protowire.Number = 1
	fieldSignalName            protowire.Number = 2
	fieldSignalCode            protowire.Number = 3
	fieldSignalCodeName        protowire.Number = 4
	fieldSignalHasSender       protowire.Number = 5
	fieldSignalSenderUID       protowire.Number = 6
	fieldSignalHasFaultAddress protowire.Number = 8
	fieldSignalFaultAddress    protowire.Number = 9

	fieldCauseHumanReadable protowire.Number = 1

	fieldMapKey   protowire.Number = 1
	fieldMapValue protowire.Number = 2

	fieldThreadID             protowire.Number = 1
	fieldThreadName           protowire.Number = 2
	fieldThreadBacktrace      protowire.Number = 4
	fieldThreadTaggedAddrCtrl protowire.Number = 6

	fieldFrameRelPC          protowire.Number = 1
	fieldFrameFunctionName   protowire.Number = 4
	fieldFrameFunctionOffset protowire.Number = 5
	fieldFrameFileName       protowire.Number = 6
)

// Parse decodes a serialized tombstone. It never panics on malformed input and
// never returns a partially decoded record.
func Parse(b []byte) (*CrashRecord, error) {
	rec := &CrashRecord{}
	var signal *Signal
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldPID:
			v, n, err := consumeVarint(typ, b)
			rec.PID = int(uint32(v))
			return n, err
		case fieldTID:
			v, n, err := consumeVarint(typ, b)
			rec.TID = int(uint32(v))
			return n, err
		case fieldUID:
			v, n, err := consumeVarint(typ, b)
			rec.UID = int(uint32(v))
			return n, err
		case fieldSelinuxLabel:
			v, n, err := consumeString(typ, b)
			rec.SelinuxLabel = v
			return n, err
		case fieldCommandLine:
			v, n, err := consumeString(typ, b)
			if err == nil {
				rec.CommandLine = append(rec.CommandLine, v)
			}
			return n, err
		case fieldSignalInfo:
			v, n, err := consumeBytes(typ, b)
			if err != nil {
				return n, err
			}
			if signal == nil {
				signal = &Signal{}
			}
			// repeated occurrences of a singular message merge
			return n, parseSignal(v, signal)
		case fieldAbortMessage:
			v, n, err := consumeString(typ, b)
			rec.AbortMessage = v
			return n, err
		case fieldCauses:
			v, n, err := consumeBytes(typ, b)
			if err != nil {
				return n, err
			}
			cause, err := parseCause(v)
			if err == nil {
				rec.Causes = append(rec.Causes, cause)
			}
			return n, err
		case fieldThreads:
			v, n, err := consumeBytes(typ, b)
			if err != nil {
				return n, err
			}
			tid, thread, err := parseThreadEntry(v)
			if err != nil {
				return n, err
			}
			if rec.Threads == nil {
				rec.Threads = make(map[int]Thread)
			}
			rec.Threads[tid] = thread
			return n, nil
		case fieldProcessUptime:
			v, n, err := consumeVarint(typ, b)
			rec.ProcessUptime = int(uint32(v))
			return n, err
		}
		return skipField, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	rec.Signal = signal
	return rec, nil
}

func parseSignal(b []byte, s *Signal) error {
	var hasSender, hasFaultAddress bool
	var senderUID int
	var faultAddress uint64
	if s.SenderUID != nil {
		hasSender, senderUID = true, *s.SenderUID
	}
	if s.FaultAddress != nil {
		hasFaultAddress, faultAddress = true, *s.FaultAddress
	}
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldSignalNumber:
			v, n, err := consumeVarint(typ, b)
			s.Number = int(int32(v))
			return n, err
		case fieldSignalName:
			v, n, err := consumeString(typ, b)
			s.Name = v
			return n, err
		case fieldSignalCode:
			v, n, err := consumeVarint(typ, b)
			s.Code = int(int32(v))
			return n, err
		case fieldSignalCodeName:
			v, n, err := consumeString(typ, b)
			s.CodeName = v
			return n, err
		case fieldSignalHasSender:
			v, n, err := consumeVarint(typ, b)
			hasSender = v != 0
			return n, err
		case fieldSignalSenderUID:
			v, n, err := consumeVarint(typ, b)
			senderUID = int(int32(v))
			return n, err
		case fieldSignalHasFaultAddress:
			v, n, err := consumeVarint(typ, b)
			hasFaultAddress = v != 0
			return n, err
		case fieldSignalFaultAddress:
			v, n, err := consumeVarint(typ, b)
			faultAddress = v
			return n, err
		}
		return skipField, nil
	})
	if err != nil {
		return fmt.Errorf("signal_info: %w", err)
	}
	s.SenderUID, s.FaultAddress = nil, nil
	if hasSender {
		s.SenderUID = &senderUID
	}
	if hasFaultAddress {
		s.FaultAddress = &faultAddress
	}
	return nil
}

func parseCause(b []byte) (Cause, error) {
	var cause Cause
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == fieldCauseHumanReadable {
			v, n, err := consumeString(typ, b)
			cause.HumanReadable = v
			return n, err
		}
		return skipField, nil
	})
	if err != nil {
		return Cause{}, fmt.Errorf("causes: %w", err)
	}
	return cause, nil
}

// parseThreadEntry decodes one map<uint32, Thread> entry.
func parseThreadEntry(b []byte) (int, Thread, error) {
	var tid int
	var thread Thread
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldMapKey:
			v, n, err := consumeVarint(typ, b)
			tid = int(uint32(v))
			return n, err
		case fieldMapValue:
			v, n, err := consumeBytes(typ, b)
			if err != nil {
				return n, err
			}
			thread, err = parseThread(v)
			return n, err
		}
		return skipField, nil
	})
	if err != nil {
		return 0, Thread{}, fmt.Errorf("threads: %w", err)
	}
	return tid, thread, nil
}

func parseThread(b []byte) (Thread, error) {
	var thread Thread
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldThreadID:
			v, n, err := consumeVarint(typ, b)
			thread.ID = int(int32(v))
			return n, err
		case fieldThreadName:
			v, n, err := consumeString(typ, b)
			thread.Name = v
			return n, err
		case fieldThreadBacktrace:
			v, n, err := consumeBytes(typ, b)
			if err != nil {
				return n, err
			}
			frame, err := parseFrame(v)
			if err == nil {
				thread.Backtrace = append(thread.Backtrace, frame)
			}
			return n, err
		case fieldThreadTaggedAddrCtrl:
			v, n, err := consumeVarint(typ, b)
			thread.TaggedAddrCtrl = int64(v)
			return n, err
		}
		return skipField, nil
	})
	return thread, err
}

func parseFrame(b []byte) (Frame, error) {
	var frame Frame
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldFrameRelPC:
			v, n, err := consumeVarint(typ, b)
			frame.RelPC = v
			return n, err
		case fieldFrameFunctionName:
			v, n, err := consumeString(typ, b)
			frame.FunctionName = v
			return n, err
		case fieldFrameFunctionOffset:
			v, n, err := consumeVarint(typ, b)
			frame.FunctionOffset = v
			return n, err
		case fieldFrameFileName:
			v, n, err := consumeString(typ, b)
			frame.FileName = v
			return n, err
		}
		return skipField, nil
	})
	if err != nil {
		return Frame{}, fmt.Errorf("backtrace frame: %w", err)
	}
	return frame, nil
}

// skipField tells consumeFields that the visitor did not consume the value.
const skipField = -1

// consumeFields walks the top level fields of a message. visit returns the
// number of value bytes it consumed, or skipField for fields it ignores.
func consumeFields(b []byte, visit func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		m, err := visit(num, typ, b)
		if err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
		if m == skipField {
			m = protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return fmt.Errorf("field %d: %w", num, protowire.ParseError(m))
			}
		}
		b = b[m:]
	}
	return nil
}

func consumeVarint(typ protowire.Type, b []byte) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, fmt.Errorf("unexpected wire type %d for varint field", typ)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func consumeBytes(typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, fmt.Errorf("unexpected wire type %d for length-delimited field", typ)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func consumeString(typ protowire.Type, b []byte) (string, int, error) {
	v, n, err := consumeBytes(typ, b)
	if err != nil {
		return "", 0, err
	}
	return strings.ToValidUTF8(string(v), "�"), n, nil
}
