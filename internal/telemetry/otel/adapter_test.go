package otel

import (
	"context"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"sessionkeeper/backend/internal/telemetry"
)

func TestNewEventEmitter_NilProvider_ReturnsNoop(t *testing.T) {
	em, err := NewEventEmitter(nil, nil)
	if err != nil || em == nil {
		t.Fatal("NewEventEmitter(nil) returned nil")
	}
	if err := em.Emit(context.Background(), nil); err != nil {
		t.Errorf("noop Emit(ctx, nil): %v", err)
	}
	if err := em.Emit(context.Background(), &telemetry.Event{Type: telemetry.EventLogin}); err != nil {
		t.Errorf("noop Emit(ctx, event): %v", err)
	}
}

func TestEmit_WithProvider(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	em, err := NewEventEmitter(provider, nil)
	if err != nil {
		t.Fatalf("NewEventEmitter: %v", err)
	}
	if err := em.Emit(context.Background(), nil); err != nil {
		t.Errorf("Emit(ctx, nil): %v", err)
	}
	if err := em.Emit(context.Background(), &telemetry.Event{Type: telemetry.EventRotated}); err != nil {
		t.Errorf("Emit: %v", err)
	}
}

// recordCapture stores the last Record passed to Emit for assertion.
type recordCapture struct {
	rec otellog.Record
	n   int
}

func (r *recordCapture) Emit(ctx context.Context, rec otellog.Record) {
	r.rec = rec
	r.n++
}

func attributes(rec otellog.Record) map[string]string {
	attrs := make(map[string]string)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value.AsString()
		return true
	})
	return attrs
}

func TestEmit_AttributeMapping(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap)
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	event := &telemetry.Event{
		Type:      telemetry.EventReplayDetected,
		UserID:    "user1",
		SessionID: "sess1",
		Reason:    "version_mismatch",
		CreatedAt: created,
	}
	if err := em.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	rec := cap.rec
	if !rec.Timestamp().Equal(created) {
		t.Errorf("timestamp = %v, want %v", rec.Timestamp(), created)
	}
	if rec.EventName() != telemetry.EventReplayDetected {
		t.Errorf("event name = %q", rec.EventName())
	}
	if rec.Severity() != otellog.SeverityWarn {
		t.Errorf("severity = %v, want warn", rec.Severity())
	}
	want := map[string]string{
		"event_type": telemetry.EventReplayDetected,
		"user_id":    "user1",
		"session_id": "sess1",
		"reason":     "version_mismatch",
	}
	got := attributes(rec)
	for k, v := range want {
		if got[k] != v {
			t.Errorf("attr %q = %q, want %q", k, got[k], v)
		}
	}
}

func TestEmit_ZeroTimestamp_SetsCurrentTime(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap)
	before := time.Now().UTC()
	if err := em.Emit(context.Background(), &telemetry.Event{Type: telemetry.EventLogin}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	after := time.Now().UTC()
	ts := cap.rec.Timestamp()
	if ts.Before(before) || ts.After(after) {
		t.Errorf("timestamp = %v, should be between %v and %v", ts, before, after)
	}
	if cap.rec.Severity() != otellog.SeverityInfo {
		t.Errorf("severity = %v, want info", cap.rec.Severity())
	}
}

func TestEmit_EmptyFieldsOmitted(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap)
	if err := em.Emit(context.Background(), &telemetry.Event{Type: telemetry.EventRevoked, UserID: "u1"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	attrs := attributes(cap.rec)
	if _, ok := attrs["session_id"]; ok {
		t.Error("session_id should not be set")
	}
	if _, ok := attrs["reason"]; ok {
		t.Error("reason should not be set")
	}
	if attrs["user_id"] != "u1" {
		t.Errorf("user_id = %q", attrs["user_id"])
	}
}

func TestEmit_NilEventSkipsLogger(t *testing.T) {
	cap := &recordCapture{}
	if err := NewEventEmitterWithLogger(cap).Emit(context.Background(), nil); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if cap.n != 0 {
		t.Errorf("logger called %d times, want 0", cap.n)
	}
}

func TestEmit_CountsSessionEvents(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	lp := sdklog.NewLoggerProvider()
	defer func() {
		_ = mp.Shutdown(ctx)
		_ = lp.Shutdown(ctx)
	}()

	em, err := NewEventEmitter(lp, mp.Meter(SessionScope))
	if err != nil {
		t.Fatalf("NewEventEmitter: %v", err)
	}
	for _, ev := range []*telemetry.Event{
		{Type: telemetry.EventRotated, SessionID: "s1"},
		{Type: telemetry.EventRotated, SessionID: "s1"},
		{Type: telemetry.EventRejected, SessionID: "s1", Reason: "revoked"},
	} {
		if err := em.Emit(ctx, ev); err != nil {
			t.Fatalf("Emit: %v", err)
		}
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	got := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		if sm.Scope.Name != SessionScope {
			continue
		}
		for _, m := range sm.Metrics {
			if m.Name != "sessionkeeper.session.events" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("data = %T, want Sum[int64]", m.Data)
			}
			for _, dp := range sum.DataPoints {
				typ, _ := dp.Attributes.Value("event_type")
				reason, _ := dp.Attributes.Value("reason")
				got[typ.AsString()+"/"+reason.AsString()] += dp.Value
			}
		}
	}
	want := map[string]int64{
		telemetry.EventRotated + "/":         2,
		telemetry.EventRejected + "/revoked": 1,
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("count[%s] = %d, want %d (all: %v)", k, got[k], v, got)
		}
	}
}
