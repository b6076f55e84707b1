package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	embeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataqna_embedding_requests_total",
			Help: "Total number of embedding service calls by mode and outcome.",
		},
		[]string{"mode", "outcome"},
	)
	embeddingLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dataqna_embedding_latency_seconds",
			Help:    "Embedding service call latency in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"mode"},
	)
	vectorRowsWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataqna_vector_rows_written_total",
			Help: "Total number of embedding rows written to a vector store.",
		},
		[]string{"backend", "table"},
	)
	exampleUpsertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataqna_example_upserts_total",
			Help: "Total number of question/SQL example upserts by outcome.",
		},
		[]string{"backend", "outcome"},
	)
	responseGenerationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataqna_response_generations_total",
			Help: "Total number of natural-language answers generated by model family and outcome.",
		},
		[]string{"family", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		embeddingRequestsTotal,
		embeddingLatencySeconds,
		vectorRowsWrittenTotal,
		exampleUpsertsTotal,
		responseGenerationsTotal,
	)
}

func ObserveEmbeddingCall(mode string, elapsed time.Duration, err error) {
	embeddingRequestsTotal.WithLabelValues(mode, outcome(err)).Inc()
	embeddingLatencySeconds.WithLabelValues(mode).Observe(elapsed.Seconds())
}

func AddVectorRowsWritten(backend, table string, rows int) {
	if rows <= 0 {
		return
	}
	vectorRowsWrittenTotal.WithLabelValues(backend, table).Add(float64(rows))
}

func ObserveExampleUpsert(backend string, err error) {
	exampleUpsertsTotal.WithLabelValues(backend, outcome(err)).Inc()
}

func ObserveResponseGeneration(family string, err error) {
	responseGenerationsTotal.WithLabelValues(family, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
