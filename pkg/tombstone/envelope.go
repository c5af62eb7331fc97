package tombstone

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMissingEnvelopeField is returned when a historical log entry has no tombstone payload.
var ErrMissingEnvelopeField = errors.New("log entry has no tombstone field")

// TombstoneWithHeaders.tombstone
const fieldEnvelopeTombstone protowire.Number = 1

// UnwrapEnvelope returns the serialized tombstone held by a historical log
// entry. The first tombstone field wins.
func UnwrapEnvelope(b []byte) ([]byte, error) {
	var payload []byte
	found := false
	for len(b) > 0 && !found {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, protowire.ParseError(n))
		}
		b = b[n:]
		if num == fieldEnvelopeTombstone && typ == protowire.BytesType {
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, protowire.ParseError(m))
			}
			payload, found = v, true
			continue
		}
		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, protowire.ParseError(m))
		}
		b = b[m:]
	}
	if !found {
		return nil, ErrMissingEnvelopeField
	}
	return payload, nil
}
