package export

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/invitely/invitely/internal/export"

// Metrics holds the export pipeline instruments. A nil *Metrics records nothing.
type Metrics struct {
	submitted      metric.Int64Counter
	completed      metric.Int64Counter
	failed         metric.Int64Counter
	aborted        metric.Int64Counter
	downloads      metric.Int64Counter
	renderDuration metric.Float64Histogram
}

// NewMetrics creates the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	submitted, err := meter.Int64Counter("exports.submitted",
		metric.WithDescription("Export jobs accepted"),
		metric.WithUnit("{job}"))
	if err != nil {
		return nil, err
	}

	completed, err := meter.Int64Counter("exports.completed",
		metric.WithDescription("Export jobs completed"),
		metric.WithUnit("{job}"))
	if err != nil {
		return nil, err
	}

	failed, err := meter.Int64Counter("exports.failed",
		metric.WithDescription("Export jobs failed"),
		metric.WithUnit("{job}"))
	if err != nil {
		return nil, err
	}

	aborted, err := meter.Int64Counter("exports.aborted",
		metric.WithDescription("Export jobs abandoned because the record was deleted mid-flight"),
		metric.WithUnit("{job}"))
	if err != nil {
		return nil, err
	}

	downloads, err := meter.Int64Counter("exports.downloads",
		metric.WithDescription("Export file downloads"),
		metric.WithUnit("{download}"))
	if err != nil {
		return nil, err
	}

	renderDuration, err := meter.Float64Histogram("exports.render.duration",
		metric.WithDescription("Time spent rendering an export"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		submitted:      submitted,
		completed:      completed,
		failed:         failed,
		aborted:        aborted,
		downloads:      downloads,
		renderDuration: renderDuration,
	}, nil
}

func jobAttrs(j *Job) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("export.type", string(j.Type)),
		attribute.String("export.format", string(j.Format)),
	)
}

func (m *Metrics) recordSubmitted(ctx context.Context, j *Job) {
	if m == nil {
		return
	}
	m.submitted.Add(ctx, 1, jobAttrs(j))
}

func (m *Metrics) recordCompleted(ctx context.Context, j *Job) {
	if m == nil {
		return
	}
	m.completed.Add(ctx, 1, jobAttrs(j))
}

func (m *Metrics) recordFailed(ctx context.Context, j *Job) {
	if m == nil {
		return
	}
	m.failed.Add(ctx, 1, jobAttrs(j))
}

func (m *Metrics) recordAborted(ctx context.Context, j *Job) {
	if m == nil {
		return
	}
	m.aborted.Add(ctx, 1, jobAttrs(j))
}

func (m *Metrics) recordDownload(ctx context.Context, j *Job) {
	if m == nil {
		return
	}
	m.downloads.Add(ctx, 1, jobAttrs(j))
}

func (m *Metrics) recordRender(ctx context.Context, j *Job, d time.Duration) {
	if m == nil {
		return
	}
	m.renderDuration.Record(ctx, d.Seconds(), jobAttrs(j))
}
