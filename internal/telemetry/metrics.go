package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/DammyCodes-all/framez-socials"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Controller metrics
	AuthEventsTotal          metric.Int64Counter
	HydrationsTotal          metric.Int64Counter
	HydrationsDiscardedTotal metric.Int64Counter
	ProfileFetchErrorsTotal  metric.Int64Counter
	ProfileFetchDuration     metric.Float64Histogram
	StatePublishesTotal      metric.Int64Counter

	// Session metrics
	SessionRefreshTotal       metric.Int64Counter
	SessionRefreshErrorsTotal metric.Int64Counter

	// Media metrics
	UploadsTotal      metric.Int64Counter
	UploadBytesTotal  metric.Int64Counter
	UploadErrorsTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = NewMetrics(otel.GetMeterProvider().Meter(meterName))
	})
	return metrics
}

// NewMetrics creates the instruments on meter. Most callers want GetMetrics.
func NewMetrics(meter metric.Meter) *Metrics {
	m := &Metrics{}

	m.AuthEventsTotal, _ = meter.Int64Counter(
		"framez.auth.events.total",
		metric.WithDescription("Total number of auth state change events received"),
		metric.WithUnit("{event}"),
	)

	m.HydrationsTotal, _ = meter.Int64Counter(
		"framez.auth.hydrations.total",
		metric.WithDescription("Total number of session hydrations started"),
		metric.WithUnit("{hydration}"),
	)

	m.HydrationsDiscardedTotal, _ = meter.Int64Counter(
		"framez.auth.hydrations.discarded.total",
		metric.WithDescription("Total number of hydration results discarded as superseded"),
		metric.WithUnit("{hydration}"),
	)

	m.ProfileFetchErrorsTotal, _ = meter.Int64Counter(
		"framez.profiles.fetch.errors.total",
		metric.WithDescription("Total number of failed or empty profile fetches"),
		metric.WithUnit("{error}"),
	)

	m.ProfileFetchDuration, _ = meter.Float64Histogram(
		"framez.profiles.fetch.duration",
		metric.WithDescription("Duration of profile fetches"),
		metric.WithUnit("ms"),
	)

	m.StatePublishesTotal, _ = meter.Int64Counter(
		"framez.auth.state.publishes.total",
		metric.WithDescription("Total number of auth state publishes"),
		metric.WithUnit("{publish}"),
	)

	m.SessionRefreshTotal, _ = meter.Int64Counter(
		"framez.sessions.refresh.total",
		metric.WithDescription("Total number of session refresh attempts"),
		metric.WithUnit("{refresh}"),
	)

	m.SessionRefreshErrorsTotal, _ = meter.Int64Counter(
		"framez.sessions.refresh.errors.total",
		metric.WithDescription("Total number of failed session refreshes"),
		metric.WithUnit("{error}"),
	)

	m.UploadsTotal, _ = meter.Int64Counter(
		"framez.media.uploads.total",
		metric.WithDescription("Total number of image uploads"),
		metric.WithUnit("{upload}"),
	)

	m.UploadBytesTotal, _ = meter.Int64Counter(
		"framez.media.uploads.bytes",
		metric.WithDescription("Total number of bytes uploaded"),
		metric.WithUnit("By"),
	)

	m.UploadErrorsTotal, _ = meter.Int64Counter(
		"framez.media.uploads.errors.total",
		metric.WithDescription("Total number of failed image uploads"),
		metric.WithUnit("{error}"),
	)

	return m
}
