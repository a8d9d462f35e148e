package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/eliteGoblin/boardmon/internal/shell"
)

// ShellStatsReader supplies the command engine stats snapshot.
type ShellStatsReader interface {
	Stats() shell.Stats
}

type shellCollector struct {
	board string
	src   ShellStatsReader

	registeredDesc *prometheus.Desc
	executedDesc   *prometheus.Desc
	succeededDesc  *prometheus.Desc
	failedDesc     *prometheus.Desc
	unknownDesc    *prometheus.Desc
	argErrorsDesc  *prometheus.Desc
	historyDesc    *prometheus.Desc
}

// NewShellCollector exposes command engine counters.
func NewShellCollector(board string, src ShellStatsReader) prometheus.Collector {
	return &shellCollector{
		board: board,
		src:   src,
		registeredDesc: prometheus.NewDesc(
			"boardmon_shell_commands_registered",
			"Commands in the dispatch table",
			[]string{"board"}, nil),
		executedDesc: prometheus.NewDesc(
			"boardmon_shell_executed_total",
			"Command dispatches attempted",
			[]string{"board"}, nil),
		succeededDesc: prometheus.NewDesc(
			"boardmon_shell_succeeded_total",
			"Command dispatches whose handler returned success",
			[]string{"board"}, nil),
		failedDesc: prometheus.NewDesc(
			"boardmon_shell_failed_total",
			"Command dispatches whose handler returned an error",
			[]string{"board"}, nil),
		unknownDesc: prometheus.NewDesc(
			"boardmon_shell_unknown_total",
			"Dispatches naming no registered command",
			[]string{"board"}, nil),
		argErrorsDesc: prometheus.NewDesc(
			"boardmon_shell_arg_errors_total",
			"Dispatches rejected for bad argument counts",
			[]string{"board"}, nil),
		historyDesc: prometheus.NewDesc(
			"boardmon_shell_history_len",
			"Lines currently retained in command history",
			[]string{"board"}, nil),
	}
}

func (c *shellCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.registeredDesc
	ch <- c.executedDesc
	ch <- c.succeededDesc
	ch <- c.failedDesc
	ch <- c.unknownDesc
	ch <- c.argErrorsDesc
	ch <- c.historyDesc
}

func (c *shellCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.src.Stats()

	ch <- prometheus.MustNewConstMetric(c.registeredDesc, prometheus.GaugeValue,
		float64(st.Registered), c.board)
	ch <- prometheus.MustNewConstMetric(c.executedDesc, prometheus.CounterValue,
		float64(st.Total), c.board)
	ch <- prometheus.MustNewConstMetric(c.succeededDesc, prometheus.CounterValue,
		float64(st.Succeeded), c.board)
	ch <- prometheus.MustNewConstMetric(c.failedDesc, prometheus.CounterValue,
		float64(st.Failed), c.board)
	ch <- prometheus.MustNewConstMetric(c.unknownDesc, prometheus.CounterValue,
		float64(st.Unknown), c.board)
	ch <- prometheus.MustNewConstMetric(c.argErrorsDesc, prometheus.CounterValue,
		float64(st.ArgErrors), c.board)
	ch <- prometheus.MustNewConstMetric(c.historyDesc, prometheus.GaugeValue,
		float64(st.HistoryLen), c.board)
}
