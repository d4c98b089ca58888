// Package app wires the job and its infrastructure into an fx application.
package app

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/fx"

	"github.com/tigerroll/postchunk/internal/config"
	"github.com/tigerroll/postchunk/internal/job"
	"github.com/tigerroll/postchunk/pkg/batch/adapter/database"
	gormadapter "github.com/tigerroll/postchunk/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/postchunk/pkg/batch/core/metrics"
	inframetrics "github.com/tigerroll/postchunk/pkg/batch/infrastructure/metrics"
	"github.com/tigerroll/postchunk/pkg/batch/support/util/exception"
	"github.com/tigerroll/postchunk/pkg/batch/support/util/logger"
)

const stopTimeout = 15 * time.Second

// Module provides the job and everything it depends on. It expects *config.Config and
// logger.Logger to be supplied.
var Module = fx.Module("postchunk",
	fx.Provide(
		NewDBProvider,
		NewMetricRecorder,
		NewTracer,
		NewJobSettings,
		job.NewETLJob,
	),
)

// NewDBProvider creates the connection provider and closes any connection left open at shutdown.
func NewDBProvider(lc fx.Lifecycle, cfg *config.Config, log logger.Logger) (database.DBProvider, error) {
	conns, err := cfg.ConnectionConfigs()
	if err != nil {
		return nil, err
	}
	provider := gormadapter.NewProvider(conns, log)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return provider.CloseAll()
		},
	})
	return provider, nil
}

// NewMetricRecorder creates the Prometheus recorder; it pushes only when a Pushgateway is configured.
func NewMetricRecorder(cfg *config.Config, log logger.Logger) metrics.MetricRecorder {
	return inframetrics.NewPrometheusRecorder(cfg.Metrics.JobName, cfg.Metrics.PushgatewayURL, log)
}

// NewTracer creates the OpenTelemetry tracer and flushes it at shutdown.
func NewTracer(lc fx.Lifecycle, cfg *config.Config, log logger.Logger) (metrics.Tracer, error) {
	tracer, err := inframetrics.NewOpenTelemetryTracer(context.Background(), inframetrics.TracingConfig{
		ServiceName: cfg.Tracing.ServiceName,
		Endpoint:    cfg.Tracing.OTLPEndpoint,
		Insecure:    cfg.Tracing.Insecure,
	}, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: tracer.Shutdown})
	return tracer, nil
}

// NewJobSettings extracts the job tunables from the configuration.
func NewJobSettings(cfg *config.Config) job.Settings {
	return job.Settings{
		Tables:           cfg.TableNames(),
		ChunkSize:        cfg.Processing.ChunkSize,
		BatchCommitSize:  cfg.Processing.BatchCommitSize,
		ProgressInterval: cfg.Processing.ProgressInterval,
	}
}

// Options builds the fx options for cfg.
func Options(cfg *config.Config, log logger.Logger) []fx.Option {
	return []fx.Option{
		fx.Supply(cfg, fx.Annotate(log, fx.As(new(logger.Logger)))),
		logger.Module,
		fx.StopTimeout(stopTimeout),
		Module,
	}
}

// Execute starts the application, hands the job to fn and stops the application again,
// releasing connections and flushing traces whatever fn returns.
func Execute(ctx context.Context, cfg *config.Config, log logger.Logger, fn func(context.Context, *job.ETLJob) error) error {
	var etl *job.ETLJob
	fxApp := fx.New(append(Options(cfg, log), fx.Populate(&etl))...)
	if err := fxApp.Err(); err != nil {
		return exception.NewBatchError(exception.ModuleJob, "failed to build application", err, false, false)
	}

	if err := fxApp.Start(ctx); err != nil {
		return exception.NewBatchError(exception.ModuleJob, "failed to start application", err, false, false)
	}

	var result *multierror.Error
	if err := fn(ctx, etl); err != nil {
		result = multierror.Append(result, err)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := fxApp.Stop(stopCtx); err != nil {
		log.Warnf("Application stop reported: %v", err)
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
