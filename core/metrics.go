package core

import (
	"context"
	"fmt"
	"strings"
)

const (
	metricSuffixTotal    = "total"
	metricSuffixDuration = "duration_ms"
)

// metricTagFields are the observed fields promoted to metric tags. Anything
// else, session ids included, stays in the log line only.
var metricTagFields = []string{"event", "provider_id"}

// NopMetricsRecorder is the recorder used when none is configured.
type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

var _ MetricsRecorder = NopMetricsRecorder{}

// MetricName joins a prefix, an operation and a suffix into the dotted name
// recorded for an operation, e.g. relay.ingest_session.total.
func MetricName(prefix string, operation string, suffix string) string {
	return prefix + "." + operation + "." + suffix
}

func operationTags(operation string, status string, fields map[string]any) map[string]string {
	tags := map[string]string{
		"operation": operation,
		"status":    status,
	}
	for _, key := range metricTagFields {
		if value := strings.TrimSpace(fmt.Sprint(fields[key])); value != "" && value != "<nil>" {
			tags[key] = value
		}
	}
	return tags
}

func cloneTags(tags map[string]string) map[string]string {
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}
