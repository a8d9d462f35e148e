// Package logstore implements the bounded in-memory diagnostic log.
//
// Entries live in a fixed-capacity ring: when the ring is full the
// oldest entry is overwritten. The store is a diagnostic artifact the
// device exposes over its console and HTTP surfaces; it is not the
// daemon's operational logger (that is zap).
package logstore

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	// DefaultCapacity is the ring size used when none is configured.
	DefaultCapacity = 64

	// MaxModuleLen is the byte budget for an entry's module tag.
	MaxModuleLen = 16

	// MaxMessageLen is the byte budget for an entry's message text.
	MaxMessageLen = 80
)

// ErrBadCapacity is returned by New for a capacity below one.
var ErrBadCapacity = errors.New("logstore: capacity must be at least 1")

// Entry is a single retained log record. Timestamp is elapsed time
// since the store was created.
type Entry struct {
	Seq       uint64
	Timestamp time.Duration
	Level     Level
	Module    string
	Message   string
}

// Stats is a point-in-time snapshot of the store's counters.
type Stats struct {
	Capacity  int                `json:"capacity"`
	Count     int                `json:"count"`
	Total     uint64             `json:"total"`
	Dropped   uint64             `json:"dropped"`
	Queries   uint64             `json:"queries"`
	PerLevel  [levelCount]uint64 `json:"per_level"`
	MinLevel  Level              `json:"min_level"`
	FillRatio float64            `json:"fill_ratio"`
}

// Store is a fixed-capacity diagnostic log ring. All methods are safe
// for concurrent use; the lock is never held across caller code.
type Store struct {
	mu       sync.Mutex
	ring     []Entry
	head     int // next write slot
	count    int // retained entries
	nextSeq  uint64
	minLevel Level

	total    uint64
	dropped  uint64
	queries  uint64
	perLevel [levelCount]uint64

	start time.Time
	now   func() time.Time
}

// New creates a Store retaining at most capacity entries.
func New(capacity int) (*Store, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("logstore: capacity %d: %w", capacity, ErrBadCapacity)
	}
	s := &Store{
		ring: make([]Entry, capacity),
		now:  time.Now,
	}
	s.start = s.now()
	return s, nil
}

// MustNew is New for known-good capacities; it panics on error.
func MustNew(capacity int) *Store {
	s, err := New(capacity)
	if err != nil {
		panic(err)
	}
	return s
}

// Append records a new entry. Entries below the minimum level (and
// entries with an out-of-range level) are discarded with no side
// effects at all. Module and message are truncated to their byte
// budgets without splitting a multi-byte rune. When the ring is full
// the oldest entry is overwritten and the dropped counter advances.
func (s *Store) Append(level Level, module, message string) {
	if !level.valid() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if level < s.minLevel {
		return
	}

	e := &s.ring[s.head]
	e.Seq = s.nextSeq
	e.Timestamp = s.now().Sub(s.start)
	e.Level = level
	e.Module = clampBytes(module, MaxModuleLen)
	e.Message = clampBytes(message, MaxMessageLen)
	s.nextSeq++

	s.head = (s.head + 1) % len(s.ring)
	if s.count < len(s.ring) {
		s.count++
	} else {
		s.dropped++
	}

	s.total++
	s.perLevel[level]++
}

// Appendf is Append with printf formatting of the message.
func (s *Store) Appendf(level Level, module, format string, args ...any) {
	s.Append(level, module, fmt.Sprintf(format, args...))
}

// SetMinLevel sets the minimum severity retained by Append.
// Out-of-range values are ignored.
func (s *Store) SetMinLevel(l Level) {
	if !l.valid() {
		return
	}
	s.mu.Lock()
	s.minLevel = l
	s.mu.Unlock()
}

// MinLevel returns the current severity filter.
func (s *Store) MinLevel() Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minLevel
}

// Clear discards all retained entries. Statistics, the severity
// filter, and the sequence counter are preserved.
func (s *Store) Clear() {
	s.mu.Lock()
	s.head = 0
	s.count = 0
	s.mu.Unlock()
}

// Dump returns copies of the retained entries at or above min,
// oldest first. Counts as one query.
func (s *Store) Dump(min Level) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queries++

	out := make([]Entry, 0, s.count)
	s.scan(func(e *Entry) bool {
		if e.Level >= min {
			out = append(out, *e)
		}
		return true
	})
	return out
}

// DumpLast returns the n most recent retained entries, oldest first
// among themselves. n above the retained count returns everything;
// n below one returns nothing. Counts as one query.
func (s *Store) DumpLast(n int) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queries++

	if n > s.count {
		n = s.count
	}
	if n < 0 {
		n = 0
	}
	skip := s.count - n

	out := make([]Entry, 0, n)
	i := 0
	s.scan(func(e *Entry) bool {
		if i >= skip {
			out = append(out, *e)
		}
		i++
		return true
	})
	return out
}

// Search returns retained entries whose message or module contains
// keyword (case-sensitive), oldest first, stopping after max matches.
// max below one means no limit. An empty keyword matches nothing.
// Counts as one query.
func (s *Store) Search(keyword string, max int) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queries++

	if keyword == "" {
		return nil
	}

	var out []Entry
	s.scan(func(e *Entry) bool {
		if strings.Contains(e.Message, keyword) || strings.Contains(e.Module, keyword) {
			out = append(out, *e)
			if max > 0 && len(out) >= max {
				return false
			}
		}
		return true
	})
	return out
}

// CountByLevel returns how many retained entries sit at exactly the
// given level. Unlike the dump operations this is not counted as a
// query.
func (s *Store) CountByLevel(l Level) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	s.scan(func(e *Entry) bool {
		if e.Level == l {
			n++
		}
		return true
	})
	return n
}

// Stats returns a consistent snapshot of the store's counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Capacity:  len(s.ring),
		Count:     s.count,
		Total:     s.total,
		Dropped:   s.dropped,
		Queries:   s.queries,
		PerLevel:  s.perLevel,
		MinLevel:  s.minLevel,
		FillRatio: float64(s.count) / float64(len(s.ring)),
	}
}

// Capacity returns the fixed ring size.
func (s *Store) Capacity() int {
	return len(s.ring)
}

// scan visits retained entries oldest to newest until fn returns
// false. Callers must hold s.mu.
func (s *Store) scan(fn func(*Entry) bool) {
	start := (s.head - s.count + len(s.ring)) % len(s.ring)
	for i := 0; i < s.count; i++ {
		idx := (start + i) % len(s.ring)
		if !fn(&s.ring[idx]) {
			return
		}
	}
}

// clampBytes truncates s to at most max bytes without splitting a
// multi-byte rune at the boundary.
func clampBytes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
