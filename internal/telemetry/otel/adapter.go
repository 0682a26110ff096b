package otel

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otellog "go.opentelemetry.io/otel/log"
	otelmetric "go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"sessionkeeper/backend/internal/telemetry"
)

// RecordEmitter is the subset of otellog.Logger the event emitter needs.
type RecordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends events as OTel log records via logs and
// counts them on meter as sessionkeeper.session.events, keyed by event_type and reason.
// A nil logs returns a no-op emitter; a nil meter skips counting.
func NewEventEmitter(logs *sdklog.LoggerProvider, meter otelmetric.Meter) (telemetry.EventEmitter, error) {
	if logs == nil {
		return noopEmitter{}, nil
	}
	e := &otelEmitter{logger: logs.Logger(SessionScope)}
	if meter != nil {
		c, err := meter.Int64Counter("sessionkeeper.session.events",
			otelmetric.WithDescription("Session lifecycle events by type and reason."),
			otelmetric.WithUnit("{event}"),
		)
		if err != nil {
			return nil, fmt.Errorf("session event counter: %w", err)
		}
		e.events = c
	}
	return e, nil
}

// NewEventEmitterWithLogger returns an EventEmitter writing records to logger, without counting.
func NewEventEmitterWithLogger(logger RecordEmitter) telemetry.EventEmitter {
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *telemetry.Event) error { return nil }

type otelEmitter struct {
	logger RecordEmitter
	events otelmetric.Int64Counter
}

// Emit converts the event to an OTel log record and emits it.
func (e *otelEmitter) Emit(ctx context.Context, event *telemetry.Event) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	if !event.CreatedAt.IsZero() {
		rec.SetTimestamp(event.CreatedAt)
	} else {
		rec.SetTimestamp(time.Now().UTC())
	}
	rec.SetEventName(event.Type)
	rec.SetBody(otellog.StringValue(event.Type))
	if event.Type == telemetry.EventReplayDetected || event.Type == telemetry.EventRejected {
		rec.SetSeverity(otellog.SeverityWarn)
	} else {
		rec.SetSeverity(otellog.SeverityInfo)
	}
	if event.Type != "" {
		rec.AddAttributes(otellog.String("event_type", event.Type))
	}
	if event.UserID != "" {
		rec.AddAttributes(otellog.String("user_id", event.UserID))
	}
	if event.SessionID != "" {
		rec.AddAttributes(otellog.String("session_id", event.SessionID))
	}
	if event.Reason != "" {
		rec.AddAttributes(otellog.String("reason", event.Reason))
	}
	e.logger.Emit(ctx, rec)
	if e.events != nil {
		e.events.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("event_type", event.Type),
			attribute.String("reason", event.Reason),
		))
	}
	return nil
}
