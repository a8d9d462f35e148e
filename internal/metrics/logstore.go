package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/eliteGoblin/boardmon/internal/logstore"
)

// LogStatsReader supplies the log store stats snapshot.
type LogStatsReader interface {
	Stats() logstore.Stats
}

type logStoreCollector struct {
	board string
	src   LogStatsReader

	entriesDesc  *prometheus.Desc
	capacityDesc *prometheus.Desc
	appendsDesc  *prometheus.Desc
	byLevelDesc  *prometheus.Desc
	droppedDesc  *prometheus.Desc
	queriesDesc  *prometheus.Desc
	fillDesc     *prometheus.Desc
}

// NewLogStoreCollector exposes log store counters.
func NewLogStoreCollector(board string, src LogStatsReader) prometheus.Collector {
	return &logStoreCollector{
		board: board,
		src:   src,
		entriesDesc: prometheus.NewDesc(
			"boardmon_logstore_entries",
			"Log records currently retained in the ring",
			[]string{"board"}, nil),
		capacityDesc: prometheus.NewDesc(
			"boardmon_logstore_capacity",
			"Ring capacity in records",
			[]string{"board"}, nil),
		appendsDesc: prometheus.NewDesc(
			"boardmon_logstore_appends_total",
			"Log records accepted since boot",
			[]string{"board"}, nil),
		byLevelDesc: prometheus.NewDesc(
			"boardmon_logstore_appends_by_level_total",
			"Log records accepted since boot by level",
			[]string{"board", "level"}, nil),
		droppedDesc: prometheus.NewDesc(
			"boardmon_logstore_dropped_total",
			"Log records overwritten before being read",
			[]string{"board"}, nil),
		queriesDesc: prometheus.NewDesc(
			"boardmon_logstore_queries_total",
			"Dump and search operations served",
			[]string{"board"}, nil),
		fillDesc: prometheus.NewDesc(
			"boardmon_logstore_fill_ratio",
			"Ring occupancy between 0 and 1",
			[]string{"board"}, nil),
	}
}

func (c *logStoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entriesDesc
	ch <- c.capacityDesc
	ch <- c.appendsDesc
	ch <- c.byLevelDesc
	ch <- c.droppedDesc
	ch <- c.queriesDesc
	ch <- c.fillDesc
}

func (c *logStoreCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.src.Stats()

	ch <- prometheus.MustNewConstMetric(c.entriesDesc, prometheus.GaugeValue,
		float64(st.Count), c.board)
	ch <- prometheus.MustNewConstMetric(c.capacityDesc, prometheus.GaugeValue,
		float64(st.Capacity), c.board)
	ch <- prometheus.MustNewConstMetric(c.appendsDesc, prometheus.CounterValue,
		float64(st.Total), c.board)
	ch <- prometheus.MustNewConstMetric(c.droppedDesc, prometheus.CounterValue,
		float64(st.Dropped), c.board)
	ch <- prometheus.MustNewConstMetric(c.queriesDesc, prometheus.CounterValue,
		float64(st.Queries), c.board)
	ch <- prometheus.MustNewConstMetric(c.fillDesc, prometheus.GaugeValue,
		st.FillRatio, c.board)

	for lvl := logstore.Debug; lvl <= logstore.Error; lvl++ {
		ch <- prometheus.MustNewConstMetric(c.byLevelDesc, prometheus.CounterValue,
			float64(st.PerLevel[lvl]), c.board, lvl.String())
	}
}
