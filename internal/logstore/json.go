package logstore

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// wireEntry is the JSON shape of one serialized entry.
type wireEntry struct {
	T   int64  `json:"t"`
	L   Level  `json:"l"`
	M   string `json:"m"`
	Msg string `json:"msg"`
	Seq uint64 `json:"seq"`
}

// MarshalBounded serializes the store as
//
//	{"log_count":N,"total":T,"dropped":D,"entries":[...]}
//
// limited to the most recent maxEntries entries, oldest first among
// those. log_count is the retained count at snapshot time, which can
// exceed the number of entries in the payload. If maxBytes is
// positive, whole entries are dropped from the tail until the output
// fits; the envelope is always closed and well-formed, even when no
// entry fits. maxEntries below one yields an empty entries array.
func (s *Store) MarshalBounded(maxEntries, maxBytes int) []byte {
	s.mu.Lock()

	toShow := s.count
	if maxEntries < toShow {
		toShow = maxEntries
	}
	if toShow < 0 {
		toShow = 0
	}
	skip := s.count - toShow

	window := make([]wireEntry, 0, toShow)
	i := 0
	s.scan(func(e *Entry) bool {
		if i >= skip {
			window = append(window, wireEntry{
				T:   e.Timestamp.Milliseconds(),
				L:   e.Level,
				M:   e.Module,
				Msg: e.Message,
				Seq: e.Seq,
			})
		}
		i++
		return true
	})

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `{"log_count":%d,"total":%d,"dropped":%d,"entries":[`,
		s.count, s.total, s.dropped)

	s.mu.Unlock()

	written := 0
	for _, w := range window {
		// Marshal of plain ints and strings cannot fail.
		enc, _ := json.Marshal(w)
		need := len(enc)
		if written > 0 {
			need++ // separating comma
		}
		if maxBytes > 0 && buf.Len()+need+2 > maxBytes {
			break
		}
		if written > 0 {
			buf.WriteByte(',')
		}
		buf.Write(enc)
		written++
	}

	buf.WriteString("]}")
	return buf.Bytes()
}
