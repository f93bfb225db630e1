package scan

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qrscan_scans_total",
			Help: "Total number of finished scan tasks",
		},
		[]string{"status"},
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qrscan_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"stage"}, // stage: normalize, decode, detect
	)

	activeScans = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "qrscan_active_scans",
			Help: "Number of scan tasks currently holding the active slot",
		},
	)
)
