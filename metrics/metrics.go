// Package metrics exposes Prometheus instrumentation for the pipeline.
// Registration is lazy so importing the package in tests does not touch
// the default registry until something is observed.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	retrieverLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rag_retriever_latency_ms",
		Help:    "Latency of retrieval calls in milliseconds",
		Buckets: []float64{10, 25, 50, 75, 100, 150, 200, 300, 500, 800, 1200},
	}, []string{"origin"})

	retrieverResults = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rag_retriever_results",
		Help:    "Number of results returned per retrieval",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
	}, []string{"origin"})

	stageSkips = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rag_stage_skip_total",
		Help: "Optional stage soft-failures by stage name",
	}, []string{"stage"})

	budgetUtilization = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rag_budget_utilization_ratio",
		Help:    "Tokens used over tokens allotted per pool",
		Buckets: []float64{0.1, 0.25, 0.5, 0.75, 0.9, 0.95, 1.0},
	}, []string{"pool"})

	ingestOutcome = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rag_ingest_documents_total",
		Help: "Document ingest outcomes",
	}, []string{"outcome"})

	ingestChunks = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rag_ingest_chunks",
		Help:    "Chunks produced per ingested document",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
	})

	answerLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rag_answer_first_delta_ms",
		Help:    "Time to first streamed delta in milliseconds",
		Buckets: []float64{100, 250, 500, 1000, 2000, 4000, 8000},
	})
)

func ensureRegistered() {
	once.Do(func() {
		prometheus.MustRegister(retrieverLatency, retrieverResults, stageSkips,
			budgetUtilization, ingestOutcome, ingestChunks, answerLatency)
	})
}

// ObserveRetrieval records latency and result size for one origin
// ("dense", "sparse" or "fused").
func ObserveRetrieval(origin string, start time.Time, results int) {
	ensureRegistered()
	retrieverLatency.WithLabelValues(origin).Observe(float64(time.Since(start).Milliseconds()))
	retrieverResults.WithLabelValues(origin).Observe(float64(results))
}

// IncStageSkip counts an optional stage degrading instead of applying.
func IncStageSkip(stage string) {
	ensureRegistered()
	stageSkips.WithLabelValues(stage).Inc()
}

// ObserveBudget records how much of a pool's allotment was actually used.
func ObserveBudget(pool string, used, allotted int) {
	if allotted <= 0 {
		return
	}
	ensureRegistered()
	budgetUtilization.WithLabelValues(pool).Observe(float64(used) / float64(allotted))
}

// ObserveIngest records one document ingest outcome and its chunk count.
func ObserveIngest(outcome string, chunks int) {
	ensureRegistered()
	ingestOutcome.WithLabelValues(outcome).Inc()
	if chunks > 0 {
		ingestChunks.Observe(float64(chunks))
	}
}

// ObserveFirstDelta records time to the first streamed answer fragment.
func ObserveFirstDelta(start time.Time) {
	ensureRegistered()
	answerLatency.Observe(float64(time.Since(start).Milliseconds()))
}
