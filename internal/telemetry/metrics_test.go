package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/goliatone/go-callback-relay/core"
)

type recordedCounter struct {
	noop.Int64Counter
	mu    sync.Mutex
	total int64
	attrs attribute.Set
}

func (c *recordedCounter) Add(_ context.Context, incr int64, opts ...metric.AddOption) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total += incr
	c.attrs = metric.NewAddConfig(opts).Attributes()
}

type recordedHistogram struct {
	noop.Float64Histogram
	mu     sync.Mutex
	values []float64
	attrs  attribute.Set
}

func (h *recordedHistogram) Record(_ context.Context, value float64, opts ...metric.RecordOption) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.values = append(h.values, value)
	h.attrs = metric.NewRecordConfig(opts).Attributes()
}

type recordingMeter struct {
	noop.Meter
	counters   map[string]*recordedCounter
	histograms map[string]*recordedHistogram
	created    int
	failWith   error
}

func newRecordingMeter() *recordingMeter {
	return &recordingMeter{
		counters:   map[string]*recordedCounter{},
		histograms: map[string]*recordedHistogram{},
	}
}

func (m *recordingMeter) Int64Counter(name string, _ ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	m.created++
	counter := &recordedCounter{}
	m.counters[name] = counter
	return counter, nil
}

func (m *recordingMeter) Float64Histogram(name string, _ ...metric.Float64HistogramOption) (metric.Float64Histogram, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	m.created++
	histogram := &recordedHistogram{}
	m.histograms[name] = histogram
	return histogram, nil
}

func TestMeterRecorder_ObserverOutcomesBecomeInstruments(t *testing.T) {
	meter := newRecordingMeter()
	observer := core.NewObserver("relay", nil, NewMeterRecorder(meter, nil))

	observer.Observe(context.Background(), time.Now(), "ingest session", nil, map[string]any{"session_id": "sess-1"})
	observer.Observe(context.Background(), time.Now(), "ingest session", nil, nil)

	counter, ok := meter.counters["relay.ingest_session.total"]
	if !ok {
		t.Fatalf("expected relay.ingest_session.total counter, got %v", meter.counters)
	}
	if counter.total != 2 {
		t.Fatalf("expected two increments, got %d", counter.total)
	}
	if status, _ := counter.attrs.Value("status"); status.AsString() != "success" {
		t.Fatalf("expected status attribute, got %v", counter.attrs)
	}
	if _, ok := counter.attrs.Value("session_id"); ok {
		t.Fatalf("session ids must not become attributes")
	}
	histogram, ok := meter.histograms["relay.ingest_session.duration_ms"]
	if !ok || len(histogram.values) != 2 {
		t.Fatalf("expected two duration samples, got %v", meter.histograms)
	}
	if meter.created != 2 {
		t.Fatalf("expected instruments to be cached, created %d", meter.created)
	}
}

func TestMeterRecorder_InstrumentErrorsAreSkipped(t *testing.T) {
	meter := newRecordingMeter()
	meter.failWith = errors.New("invalid instrument name")
	recorder := NewMeterRecorder(meter, nil)

	recorder.IncCounter(context.Background(), "bad name", 1, nil)
	recorder.ObserveHistogram(context.Background(), "bad name", 3, nil)
	if len(meter.counters) != 0 || len(meter.histograms) != 0 {
		t.Fatalf("expected no instruments")
	}
}

func TestMeterRecorder_DefaultsToGlobalMeter(t *testing.T) {
	recorder := NewMeterRecorder(nil, nil)
	recorder.IncCounter(context.Background(), "relay.health.total", 1, map[string]string{"status": "success"})
	recorder.ObserveHistogram(context.Background(), "relay.health.duration_ms", 1, nil)
}
