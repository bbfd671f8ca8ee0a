package service

import (
	"context"
	"time"

	"bank_system/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "bank_system/internal/service"

// ledgerMetrics holds the OpenTelemetry instruments of the ledger
type ledgerMetrics struct {
	operations metric.Int64Counter
	duration   metric.Float64Histogram
}

// newLedgerMetrics creates the ledger instruments. Instruments that fail to
// register fall back to the no-op ones returned by the global meter.
func newLedgerMetrics(meter metric.Meter) *ledgerMetrics {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	operations, _ := meter.Int64Counter("ledger.operations",
		metric.WithDescription("Deposits and withdrawals by outcome"),
		metric.WithUnit("{operation}"),
	)
	duration, _ := meter.Float64Histogram("ledger.operation.duration",
		metric.WithDescription("Ledger operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	return &ledgerMetrics{operations: operations, duration: duration}
}

func (m *ledgerMetrics) record(ctx context.Context, kind domain.TransactionKind, err error, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.String("outcome", outcome(err)),
	)
	if m.operations != nil {
		m.operations.Add(ctx, 1, attrs) // One per attempt
	}
	if m.duration != nil {
		m.duration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs) // Fractional milliseconds
	}
}

// outcome buckets an operation error into a low-cardinality label
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case isRejection(err):
		return "rejected"
	default:
		return "error"
	}
}
