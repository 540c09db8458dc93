package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FilesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emailinsights_ingest_files_total",
		Help: "Ingested source files by kind (weekly or mapping).",
	}, []string{"kind"})

	RowsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "emailinsights_ingest_rows_total",
		Help: "Normalized weekly rows stored.",
	})

	ParseWarnings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "emailinsights_ingest_parse_warnings_total",
		Help: "Cells that failed to parse and were stored as missing values.",
	})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "emailinsights_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})
)
