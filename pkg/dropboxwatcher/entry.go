package dropboxwatcher

import (
	"strconv"
	"strings"
	"time"
)

// Entry flags carried by the file name suffix.
const (
	flagLost       = "lost"
	flagText       = "txt"
	flagData       = "dat"
	compressSuffix = ".gz"
)

// entry is one file of the rotating log directory, named
// "<tag>@<epochMillis>.<flags>".
type entry struct {
	name       string
	tag        string
	timestamp  time.Time
	flags      string
	compressed bool
}

func (e entry) lost() bool {
	return e.flags == flagLost
}

// after orders entries by timestamp, then by name for entries written in the
// same millisecond.
func (e entry) after(other entry) bool {
	if !e.timestamp.Equal(other.timestamp) {
		return e.timestamp.After(other.timestamp)
	}
	return e.name > other.name
}

func parseEntryName(name string) (entry, bool) {
	at := strings.LastIndexByte(name, '@')
	if at <= 0 {
		return entry{}, false
	}
	rest := name[at+1:]
	dot := strings.IndexByte(rest, '.')
	if dot <= 0 {
		return entry{}, false
	}
	millis, err := strconv.ParseInt(rest[:dot], 10, 64)
	if err != nil || millis < 0 {
		return entry{}, false
	}

	flags := rest[dot+1:]
	compressed := strings.HasSuffix(flags, compressSuffix)
	flags = strings.TrimSuffix(flags, compressSuffix)
	switch flags {
	case flagLost, flagText, flagData:
	default:
		return entry{}, false
	}

	return entry{
		name:       name,
		tag:        name[:at],
		timestamp:  time.UnixMilli(millis).UTC(),
		flags:      flags,
		compressed: compressed,
	}, true
}
