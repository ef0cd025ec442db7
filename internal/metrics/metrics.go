// Package metrics wires OpenTelemetry metrics for the reminder and ordering
// paths. Without an OTLP endpoint the global no-op provider is used.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "smart-calendar-api"

// Setup installs a global meter provider exporting to endpoint over OTLP
// gRPC. The returned func flushes and shuts it down.
func Setup(ctx context.Context, endpoint string, logger *slog.Logger) (func(context.Context) error, error) {
	if endpoint == "" {
		logger.Info("metrics export disabled")
		return func(context.Context) error { return nil }, nil
	}

	exp, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("otlp metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(30*time.Second))),
	)
	otel.SetMeterProvider(mp)
	logger.Info("metrics export enabled", "endpoint", endpoint)
	return mp.Shutdown, nil
}

// Counters used by the reminder scheduler and the order synchronizer.
type Counters struct {
	RemindersArmed   metric.Int64Counter
	RemindersFired   metric.Int64Counter
	RemindersSkipped metric.Int64Counter
	OrderWrites      metric.Int64Counter
	OrderWriteErrors metric.Int64Counter
}

// NewCounters creates the instruments from the global provider. Instruments
// created before Setup follow the provider installed later.
func NewCounters() *Counters {
	m := otel.Meter(meterName)
	c := &Counters{}
	c.RemindersArmed, _ = m.Int64Counter("calendar.reminders.armed",
		metric.WithDescription("reminder timers armed"))
	c.RemindersFired, _ = m.Int64Counter("calendar.reminders.fired",
		metric.WithDescription("reminder timers that fired"))
	c.RemindersSkipped, _ = m.Int64Counter("calendar.reminders.skipped",
		metric.WithDescription("events outside the look-ahead window or invalid"))
	c.OrderWrites, _ = m.Int64Counter("calendar.order.writes",
		metric.WithDescription("positional order writes issued"))
	c.OrderWriteErrors, _ = m.Int64Counter("calendar.order.write_errors",
		metric.WithDescription("positional order writes that failed"))
	return c
}
