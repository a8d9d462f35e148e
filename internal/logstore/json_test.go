package logstore

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wirePayload struct {
	LogCount int `json:"log_count"`
	Total    int `json:"total"`
	Dropped  int `json:"dropped"`
	Entries  []struct {
		T   int64  `json:"t"`
		L   string `json:"l"`
		M   string `json:"m"`
		Msg string `json:"msg"`
		Seq uint64 `json:"seq"`
	} `json:"entries"`
}

func decodePayload(t *testing.T, raw []byte) wirePayload {
	t.Helper()
	var p wirePayload
	require.NoError(t, json.Unmarshal(raw, &p), "payload must be valid JSON: %s", raw)
	return p
}

// TestMarshalBounded_Envelope verifies the serialized shape
func TestMarshalBounded_Envelope(t *testing.T) {
	s, clk := newTestStore(t, 8)
	clk.Advance(1234 * time.Millisecond)
	s.Append(Warn, "NET", "link down")

	p := decodePayload(t, s.MarshalBounded(10, 0))

	assert.Equal(t, 1, p.LogCount)
	assert.Equal(t, 1, p.Total)
	assert.Equal(t, 0, p.Dropped)
	require.Len(t, p.Entries, 1)
	assert.Equal(t, int64(1234), p.Entries[0].T)
	assert.Equal(t, "WARN", p.Entries[0].L)
	assert.Equal(t, "NET", p.Entries[0].M)
	assert.Equal(t, "link down", p.Entries[0].Msg)
	assert.Equal(t, uint64(0), p.Entries[0].Seq)
}

// TestMarshalBounded_WindowIsMostRecent verifies the maxEntries window
func TestMarshalBounded_WindowIsMostRecent(t *testing.T) {
	s, _ := newTestStore(t, 8)
	for i := 0; i < 6; i++ {
		s.Appendf(Info, "X", "m%d", i)
	}

	p := decodePayload(t, s.MarshalBounded(3, 0))

	assert.Equal(t, 6, p.LogCount, "log_count is the retained count, not the window size")
	require.Len(t, p.Entries, 3)
	assert.Equal(t, "m3", p.Entries[0].Msg, "window is oldest-first")
	assert.Equal(t, "m5", p.Entries[2].Msg)
}

// TestMarshalBounded_ZeroMaxEntries verifies the empty-window envelope
func TestMarshalBounded_ZeroMaxEntries(t *testing.T) {
	s, _ := newTestStore(t, 4)
	s.Append(Info, "X", "m")

	p := decodePayload(t, s.MarshalBounded(0, 0))
	assert.Equal(t, 1, p.LogCount)
	assert.Empty(t, p.Entries)
}

// TestMarshalBounded_ByteBudget verifies truncation always yields a
// closed, well-formed envelope
func TestMarshalBounded_ByteBudget(t *testing.T) {
	s, _ := newTestStore(t, 16)
	for i := 0; i < 10; i++ {
		s.Appendf(Info, "MOD", "some message body %d", i)
	}

	full := s.MarshalBounded(10, 0)

	// Shrink the budget byte by byte: output must stay valid JSON and
	// never exceed the budget once at least the bare envelope fits.
	bare := len(s.MarshalBounded(0, 0))
	for budget := len(full); budget >= bare; budget -= 7 {
		out := s.MarshalBounded(10, budget)
		p := decodePayload(t, out)
		assert.LessOrEqual(t, len(out), budget)
		assert.Equal(t, 10, p.LogCount)
	}

	// A budget that only fits the envelope keeps zero entries.
	p := decodePayload(t, s.MarshalBounded(10, bare))
	assert.Empty(t, p.Entries)
}

// TestMarshalBounded_DropsFromTail verifies byte truncation keeps the
// oldest entries of the window
func TestMarshalBounded_DropsFromTail(t *testing.T) {
	s, _ := newTestStore(t, 8)
	for i := 0; i < 4; i++ {
		s.Appendf(Info, "X", "entry-%d", i)
	}

	full := s.MarshalBounded(4, 0)
	p := decodePayload(t, s.MarshalBounded(4, len(full)-5))

	require.NotEmpty(t, p.Entries)
	assert.Less(t, len(p.Entries), 4)
	assert.Equal(t, "entry-0", p.Entries[0].Msg)
}

// TestMarshalBounded_EscapesSpecialCharacters verifies quoting stays valid
func TestMarshalBounded_EscapesSpecialCharacters(t *testing.T) {
	s, _ := newTestStore(t, 4)
	s.Append(Error, `MO"D`, `he said "boom" \ and left`)

	p := decodePayload(t, s.MarshalBounded(4, 0))
	require.Len(t, p.Entries, 1)
	assert.Equal(t, `MO"D`, p.Entries[0].M)
	assert.Equal(t, `he said "boom" \ and left`, p.Entries[0].Msg)
}
