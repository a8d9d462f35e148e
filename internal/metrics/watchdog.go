package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/eliteGoblin/boardmon/internal/watchdog"
)

// WatchdogReader supplies the supervisor's stats and target table.
type WatchdogReader interface {
	Stats() watchdog.Stats
	Snapshot() []watchdog.TargetInfo
}

type watchdogCollector struct {
	board string
	src   WatchdogReader

	enabledDesc    *prometheus.Desc
	registeredDesc *prometheus.Desc
	activeDesc     *prometheus.Desc
	healthyDesc    *prometheus.Desc
	byStateDesc    *prometheus.Desc
	checksDesc     *prometheus.Desc
	beatsDesc      *prometheus.Desc
	timeoutsDesc   *prometheus.Desc
	recoveriesDesc *prometheus.Desc
}

// NewWatchdogCollector exposes supervisor counters.
func NewWatchdogCollector(board string, src WatchdogReader) prometheus.Collector {
	return &watchdogCollector{
		board: board,
		src:   src,
		enabledDesc: prometheus.NewDesc(
			"boardmon_watchdog_enabled",
			"Whether timeout sweeps are running (1) or suspended (0)",
			[]string{"board"}, nil),
		registeredDesc: prometheus.NewDesc(
			"boardmon_watchdog_registered",
			"Slots handed out over the supervisor's lifetime",
			[]string{"board"}, nil),
		activeDesc: prometheus.NewDesc(
			"boardmon_watchdog_active",
			"Targets currently supervised",
			[]string{"board"}, nil),
		healthyDesc: prometheus.NewDesc(
			"boardmon_watchdog_healthy",
			"Active targets in the HEALTHY state",
			[]string{"board"}, nil),
		byStateDesc: prometheus.NewDesc(
			"boardmon_watchdog_targets",
			"Active targets by state",
			[]string{"board", "state"}, nil),
		checksDesc: prometheus.NewDesc(
			"boardmon_watchdog_checks_total",
			"Timeout sweeps performed",
			[]string{"board"}, nil),
		beatsDesc: prometheus.NewDesc(
			"boardmon_watchdog_beats_total",
			"Heartbeats received",
			[]string{"board"}, nil),
		timeoutsDesc: prometheus.NewDesc(
			"boardmon_watchdog_timeouts_total",
			"Silence windows that expired",
			[]string{"board"}, nil),
		recoveriesDesc: prometheus.NewDesc(
			"boardmon_watchdog_recoveries_total",
			"Recovery actions executed",
			[]string{"board"}, nil),
	}
}

func (c *watchdogCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.enabledDesc
	ch <- c.registeredDesc
	ch <- c.activeDesc
	ch <- c.healthyDesc
	ch <- c.byStateDesc
	ch <- c.checksDesc
	ch <- c.beatsDesc
	ch <- c.timeoutsDesc
	ch <- c.recoveriesDesc
}

func (c *watchdogCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.src.Stats()

	enabled := 0.0
	if st.Enabled {
		enabled = 1.0
	}
	ch <- prometheus.MustNewConstMetric(c.enabledDesc, prometheus.GaugeValue,
		enabled, c.board)
	ch <- prometheus.MustNewConstMetric(c.registeredDesc, prometheus.GaugeValue,
		float64(st.Registered), c.board)
	ch <- prometheus.MustNewConstMetric(c.activeDesc, prometheus.GaugeValue,
		float64(st.Active), c.board)
	ch <- prometheus.MustNewConstMetric(c.healthyDesc, prometheus.GaugeValue,
		float64(st.Healthy), c.board)
	ch <- prometheus.MustNewConstMetric(c.checksDesc, prometheus.CounterValue,
		float64(st.Checks), c.board)
	ch <- prometheus.MustNewConstMetric(c.beatsDesc, prometheus.CounterValue,
		float64(st.Beats), c.board)
	ch <- prometheus.MustNewConstMetric(c.timeoutsDesc, prometheus.CounterValue,
		float64(st.Timeouts), c.board)
	ch <- prometheus.MustNewConstMetric(c.recoveriesDesc, prometheus.CounterValue,
		float64(st.Recoveries), c.board)

	byState := make(map[watchdog.State]int)
	for _, t := range c.src.Snapshot() {
		byState[t.State]++
	}
	for s := watchdog.Idle; s <= watchdog.Recovered; s++ {
		ch <- prometheus.MustNewConstMetric(c.byStateDesc, prometheus.GaugeValue,
			float64(byState[s]), c.board, s.String())
	}
}
