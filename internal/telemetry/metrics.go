package telemetry

import (
	"context"
	"sort"
	"sync"

	glog "github.com/goliatone/go-logger/glog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/goliatone/go-callback-relay/core"
)

// MeterRecorder records observer counters and histograms as OpenTelemetry
// instruments. Instruments are created on first use and cached by name.
type MeterRecorder struct {
	meter  metric.Meter
	logger glog.Logger

	mu         sync.Mutex
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
}

var _ core.MetricsRecorder = (*MeterRecorder)(nil)

// NewMeterRecorder wraps meter. A nil meter resolves to the global provider,
// which stays a no-op until a metrics SDK registers one.
func NewMeterRecorder(meter metric.Meter, logger glog.Logger) *MeterRecorder {
	if meter == nil {
		meter = otel.Meter("github.com/goliatone/go-callback-relay")
	}
	return &MeterRecorder{
		meter:      meter,
		logger:     glog.Ensure(logger),
		counters:   map[string]metric.Int64Counter{},
		histograms: map[string]metric.Float64Histogram{},
	}
}

func (r *MeterRecorder) IncCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	counter := r.counter(name)
	if counter == nil {
		return
	}
	counter.Add(ensureContext(ctx), value, metric.WithAttributes(attributes(tags)...))
}

func (r *MeterRecorder) ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	histogram := r.histogram(name)
	if histogram == nil {
		return
	}
	histogram.Record(ensureContext(ctx), value, metric.WithAttributes(attributes(tags)...))
}

func (r *MeterRecorder) counter(name string) metric.Int64Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if counter, ok := r.counters[name]; ok {
		return counter
	}
	counter, err := r.meter.Int64Counter(name)
	if err != nil {
		r.logger.Warn("metric instrument rejected", "name", name, "error", err.Error())
		return nil
	}
	r.counters[name] = counter
	return counter
}

func (r *MeterRecorder) histogram(name string) metric.Float64Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	if histogram, ok := r.histograms[name]; ok {
		return histogram
	}
	histogram, err := r.meter.Float64Histogram(name, metric.WithUnit("ms"))
	if err != nil {
		r.logger.Warn("metric instrument rejected", "name", name, "error", err.Error())
		return nil
	}
	r.histograms[name] = histogram
	return histogram
}

func attributes(tags map[string]string) []attribute.KeyValue {
	keys := make([]string, 0, len(tags))
	for key := range tags {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]attribute.KeyValue, 0, len(keys))
	for _, key := range keys {
		out = append(out, attribute.String(key, tags[key]))
	}
	return out
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
