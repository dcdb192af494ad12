package postgres

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/posline/billing-engine/internal/storage/postgres"

var (
	tracer = otel.Tracer(instrumentationName)
	meter  = otel.Meter(instrumentationName)

	commitCounter   metric.Int64Counter
	conflictCounter metric.Int64Counter
)

func init() {
	var err error
	commitCounter, err = meter.Int64Counter("ledger.commits",
		metric.WithDescription("Invoice ledger commits, by outcome"))
	if err != nil {
		otel.Handle(err)
	}
	conflictCounter, err = meter.Int64Counter("ledger.conflicts",
		metric.WithDescription("Ledger commit attempts lost to serialization or deadlock failures"))
	if err != nil {
		otel.Handle(err)
	}
}
