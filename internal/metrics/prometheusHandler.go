package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var HttpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "http_requests_total",
	Help: "Total number of requests labelled by path and status",
}, []string{"path", "status"})

var queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "ingest_queue_depth",
	Help: "Pending plus in-flight messages in the work queue",
})

var messagesInFlight = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "ingest_messages_in_flight",
	Help: "Messages currently claimed by a worker",
})

var activeWorkerCount = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "active_worker_count",
	Help: "Number of active workers",
})

var documentsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "documents_processed_total",
	Help: "Finished ingestions labelled by outcome",
}, []string{"outcome"})

var embeddingBatches = promauto.NewCounter(prometheus.CounterOpts{
	Name: "embedding_batches_total",
	Help: "Embedding batch requests issued upstream",
})

var cacheReads = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "result_cache_reads_total",
	Help: "Result reads labelled hit or miss",
}, []string{"outcome"})

type HttpStatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *HttpStatusRecorder) WriteHeader(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming endpoints responsive through the recorder.
func (r *HttpStatusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func SetQueueDepth(depth int64) {
	queueDepth.Set(float64(depth))
}

func IncrementMessagesInFlight() {
	messagesInFlight.Inc()
}

func DecrementMessagesInFlight() {
	messagesInFlight.Dec()
}

func IncrementActiveWorkerCount() {
	activeWorkerCount.Inc()
}
func DecrementActiveWorkerCount() {
	activeWorkerCount.Dec()
}

func CountDocumentProcessed(outcome string) {
	documentsProcessed.WithLabelValues(outcome).Inc()
}

func CountEmbeddingBatch() {
	embeddingBatches.Inc()
}

func CountCacheRead(hit bool) {
	if hit {
		cacheReads.WithLabelValues("hit").Inc()
		return
	}
	cacheReads.WithLabelValues("miss").Inc()
}

var stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "ingest_stage_duration_seconds",
	Help:    "Time spent per pipeline stage.",
	Buckets: []float64{.1, .5, 1, 2, 5, 10, 30, 60, 120},
}, []string{"stage"})

var dependencyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "dependency_latency_seconds",
	Help:    "Latency of external service calls.",
	Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
}, []string{"service"})

var retrievalDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "retrieval_duration_seconds",
	Help:    "Time spent in similarity search.",
	Buckets: []float64{.01, .05, .1, .15, .25, .4, .8, 2},
})

func CaptureStageMetrics(stage string, timeElapsed time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(timeElapsed.Seconds())
}

func CaptureExecutionMetrics(label string, timeElapsed time.Duration) {
	dependencyLatency.WithLabelValues(label).Observe(timeElapsed.Seconds())
}

func CaptureRetrievalMetrics(timeElapsed time.Duration) {
	retrievalDuration.Observe(timeElapsed.Seconds())
}
