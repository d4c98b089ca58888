// Package metrics provides the Prometheus and OpenTelemetry implementations of the
// observability ports declared in pkg/batch/core/metrics.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/push"

	metrics "github.com/tigerroll/postchunk/pkg/batch/core/metrics"
	"github.com/tigerroll/postchunk/pkg/batch/support/util/logger"
)

// PrometheusRecorder is a Prometheus implementation of the metrics.MetricRecorder interface.
// A batch run is short lived, so metrics are pushed to a Pushgateway on Flush instead of scraped.
type PrometheusRecorder struct {
	registry       *prometheus.Registry
	jobName        string
	pushgatewayURL string
	log            logger.Logger

	postsRead        prometheus.Counter
	chunksAssembled  *prometheus.CounterVec
	assemblySkipped  *prometheus.CounterVec
	chunkWrites      *prometheus.CounterVec
	commits          prometheus.Counter
	committedRows    prometheus.Counter
	rollbacks        prometheus.Counter
	runDuration      *prometheus.HistogramVec
	lastRunStatus    prometheus.Gauge
	lastRunTimestamp prometheus.Gauge
}

// NewPrometheusRecorder creates a new instance of PrometheusRecorder.
// An empty pushgatewayURL turns Flush into a no-op.
func NewPrometheusRecorder(jobName, pushgatewayURL string, log logger.Logger) *PrometheusRecorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry:       registry,
		jobName:        jobName,
		pushgatewayURL: pushgatewayURL,
		log:            log.Named("metrics"),
		postsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "postchunk_posts_read_total",
			Help: "Total posts loaded from the source table.",
		}),
		chunksAssembled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postchunk_chunks_assembled_total",
			Help: "Total chunks assembled, by whether the word budget truncated them.",
		}, []string{"truncated"}),
		assemblySkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postchunk_assembly_skipped_total",
			Help: "Total posts skipped because their chunk could not be assembled.",
		}, []string{"reason"}),
		chunkWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postchunk_chunk_writes_total",
			Help: "Total single-row chunk inserts by result.",
		}, []string{"result"}),
		commits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "postchunk_commits_total",
			Help: "Total commit checkpoints issued by the chunk writer.",
		}),
		committedRows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "postchunk_committed_rows_total",
			Help: "Total chunk rows made durable by commits.",
		}),
		rollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "postchunk_rollbacks_total",
			Help: "Total failed rows rolled back to their savepoint.",
		}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "postchunk_run_duration_seconds",
			Help:    "Duration of pipeline runs.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"status"}),
		lastRunStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "postchunk_last_run_status_code",
			Help: "Status code of the most recent run (200 or 500).",
		}),
		lastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "postchunk_last_run_timestamp_seconds",
			Help: "Unix time at which the most recent run finished.",
		}),
	}

	registry.MustRegister(
		r.postsRead,
		r.chunksAssembled,
		r.assemblySkipped,
		r.chunkWrites,
		r.commits,
		r.committedRows,
		r.rollbacks,
		r.runDuration,
		r.lastRunStatus,
		r.lastRunTimestamp,
	)
	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

func (r *PrometheusRecorder) RecordPostsRead(ctx context.Context, count int) {
	r.postsRead.Add(float64(count))
}

func (r *PrometheusRecorder) RecordChunkAssembled(ctx context.Context, truncated bool) {
	r.chunksAssembled.WithLabelValues(strconv.FormatBool(truncated)).Inc()
}

func (r *PrometheusRecorder) RecordAssemblySkipped(ctx context.Context, reason string) {
	r.assemblySkipped.WithLabelValues(reason).Inc()
}

func (r *PrometheusRecorder) RecordChunkWrite(ctx context.Context, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	r.chunkWrites.WithLabelValues(result).Inc()
}

func (r *PrometheusRecorder) RecordCommit(ctx context.Context, count int) {
	r.commits.Inc()
	r.committedRows.Add(float64(count))
}

func (r *PrometheusRecorder) RecordRollback(ctx context.Context) {
	r.rollbacks.Inc()
}

func (r *PrometheusRecorder) RecordRunEnd(ctx context.Context, statusCode int, duration time.Duration) {
	r.runDuration.WithLabelValues(strconv.Itoa(statusCode)).Observe(duration.Seconds())
	r.lastRunStatus.Set(float64(statusCode))
	r.lastRunTimestamp.SetToCurrentTime()
	r.log.Debugf("Run finished with status %d in %s.", statusCode, duration)
}

// Flush pushes the registry to the configured Pushgateway.
func (r *PrometheusRecorder) Flush(ctx context.Context) error {
	if r.pushgatewayURL == "" {
		return nil
	}
	if err := push.New(r.pushgatewayURL, r.jobName).Gatherer(r.registry).PushContext(ctx); err != nil {
		return err
	}
	r.log.Debugf("Metrics pushed to %s (job=%s).", r.pushgatewayURL, r.jobName)
	return nil
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
