package logstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseLevel verifies case-insensitive level parsing
func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"DEBUG", Debug, false},
		{"debug", Debug, false},
		{"Info", Info, false},
		{"WARN", Warn, false},
		{"warn", Warn, false},
		{"error", Error, false},
		{"ERROR", Error, false},
		{"", Debug, true},
		{"verbose", Debug, true},
		{"WARNING", Debug, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

// TestLevelString verifies name rendering including out-of-range values
func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", Debug.String())
	assert.Equal(t, "INFO", Info.String())
	assert.Equal(t, "WARN", Warn.String())
	assert.Equal(t, "ERROR", Error.String())
	assert.Equal(t, "UNKNOWN", Level(9).String())
}

// TestLevelTag verifies compact console tags
func TestLevelTag(t *testing.T) {
	assert.Equal(t, "[D]", Debug.Tag())
	assert.Equal(t, "[E]", Error.Tag())
	assert.Equal(t, "[?]", Level(200).Tag())
}

// TestLevelMarshalJSON verifies the quoted-name encoding
func TestLevelMarshalJSON(t *testing.T) {
	b, err := Warn.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"WARN"`, string(b))
}

// TestLevelOrdering verifies the severity order relied on by filters
func TestLevelOrdering(t *testing.T) {
	assert.True(t, Debug < Info)
	assert.True(t, Info < Warn)
	assert.True(t, Warn < Error)
}
