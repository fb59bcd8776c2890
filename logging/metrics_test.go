package logging

import (
	"reflect"
	"testing"
)

func TestMetricsAddAndStore(t *testing.T) {
	var metrics Metrics
	metrics.TelemetryAdd("skipped", 2)
	metrics.TelemetryStore("pending", 5)
	metrics.TelemetryAdd("skipped", 1)

	snapshot := metrics.Snapshot()
	if snapshot["skipped"] != 3 || snapshot["pending"] != 5 {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
	if keys := metrics.Keys(); !reflect.DeepEqual(keys, []string{"pending", "skipped"}) {
		t.Fatalf("unexpected keys: %v", keys)
	}

	var nilMetrics *Metrics
	nilMetrics.TelemetryAdd("ignored", 1)
	if nilMetrics.Snapshot() != nil {
		t.Fatalf("expected nil snapshot for nil metrics")
	}
}
