package sysinfo

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTempSensor_StartsAtNominal(t *testing.T) {
	s := newTempSensor(7)

	assert.Equal(t, tempNominal, s.c)
	assert.InDelta(t, tempNominal, s.read(), tempStep)
}

func TestTempSensor_WalkStaysBounded(t *testing.T) {
	s := newTempSensor(1)

	for i := 0; i < 10000; i++ {
		v := s.read()
		require.GreaterOrEqual(t, v, tempMin)
		require.LessOrEqual(t, v, tempMax)
	}
}

func TestRefresh_PopulatesSnapshot(t *testing.T) {
	c := New(DefaultConfig(), zap.NewNop())
	base := time.Unix(1700000000, 0)
	c.start = base
	c.now = func() time.Time { return base.Add(90 * time.Second) }

	snap := c.Refresh()

	assert.Equal(t, "shrike-lite", snap.Board)
	assert.Equal(t, uint64(90), snap.UptimeSecs)
	assert.Positive(t, snap.Goroutines)
	assert.NotZero(t, snap.HeapSys)
	assert.InDelta(t, tempNominal, snap.TempC, tempStep)
	assert.Equal(t, snap, c.Latest())
}

func TestStats_CountsRefreshes(t *testing.T) {
	c := New(DefaultConfig(), zap.NewNop())

	c.Refresh()
	c.Refresh()

	st := c.Stats()
	assert.Equal(t, uint64(2), st.Refreshes)
	assert.False(t, st.LastSample.IsZero())
}

func TestUptimeSecs(t *testing.T) {
	c := New(DefaultConfig(), zap.NewNop())
	base := time.Unix(1700000000, 0)
	c.start = base
	c.now = func() time.Time { return base.Add(3*time.Second + 900*time.Millisecond) }

	assert.Equal(t, uint64(3), c.UptimeSecs())
}

func TestTelemetryJSON_Format(t *testing.T) {
	c := New(DefaultConfig(), zap.NewNop())
	c.snap = Snapshot{
		TempC:      43.5,
		UptimeSecs: 12,
		Goroutines: 9,
		HeapAlloc:  1048576,
		ProcCPU:    2.5,
	}

	got := c.TelemetryJSON()

	assert.Equal(t, `{"temp":43.5,"up":12,"thds":9,"heap":1048576,"cpu":2.5}`, string(got))
	assert.True(t, json.Valid(got))
}

func TestDump_RendersReport(t *testing.T) {
	c := New(Config{Board: "bench-rig", Firmware: "1.2.0"}, zap.NewNop())
	c.snap = Snapshot{
		Board:      "bench-rig",
		Firmware:   "1.2.0",
		UptimeSecs: 42,
		Boots:      1,
		TempC:      40.5,
		Goroutines: 7,
		OSThreads:  9,
		HeapAlloc:  1024,
		HeapSys:    4096,
	}

	var buf bytes.Buffer
	c.Dump(&buf)

	out := buf.String()
	assert.Contains(t, out, "=== boardmon System Info ===")
	assert.Contains(t, out, "Board     : bench-rig\n")
	assert.Contains(t, out, "Firmware  : 1.2.0\n")
	assert.Contains(t, out, "Uptime    : 42 s\n")
	assert.Contains(t, out, "Boot #    : 1\n")
	assert.Contains(t, out, "Temp      : 40.5 C\n")
	assert.Contains(t, out, "Goroutines: 7 (OS threads ~9)\n")
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Interval = 10 * time.Millisecond
	c := New(cfg, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return c.Stats().Refreshes >= 1 },
		time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}
	assert.Equal(t, uint32(1), c.Latest().Boots)
}
