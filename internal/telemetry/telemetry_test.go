package telemetry

import (
	"context"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/straja-ai/mailsieve/internal/embedding"
	"github.com/straja-ai/mailsieve/internal/inference"
	"github.com/straja-ai/mailsieve/internal/provider"
)

func testProvider(t *testing.T) (*Provider, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return newProvider(tracenoop.NewTracerProvider().Tracer(""), mp.Meter("test")), reader
}

func sumOf(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %s is %T, not an int64 sum", name, m.Data)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestDisabledProviderIsNoop(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if p.Enabled {
		t.Fatalf("expected disabled provider")
	}
	p.RecordPrediction(context.Background(), "classify", "forward")
	p.RecordEpoch(context.Background(), 0.9)
	p.Shutdown(context.Background())

	var nilProvider *Provider
	nilProvider.RecordProviderCall(context.Background(), "embedding", "x", 1, true)
}

func TestUnknownProtocol(t *testing.T) {
	if _, err := NewProvider(context.Background(), Config{Enabled: true, Endpoint: "localhost:4317", Protocol: "udp"}); err == nil {
		t.Fatalf("expected error for unknown protocol")
	}
}

func TestWrapEmbedderRecordsCalls(t *testing.T) {
	p, reader := testProvider(t)
	emb := WrapEmbedder(embedding.Static{"ok": {1, 2}}, p, "static")

	if _, err := emb.Embed(context.Background(), "ok"); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if _, err := emb.Embed(context.Background(), "missing"); err == nil {
		t.Fatalf("expected error")
	} else if _, ok := embedding.AsError(err); !ok {
		t.Fatalf("wrapper must keep the provider error, got %v", err)
	}

	if got := sumOf(t, reader, "mailsieve_provider_errors_total"); got != 1 {
		t.Fatalf("expected 1 provider error, got %d", got)
	}
}

func TestWrapChatRecordsErrors(t *testing.T) {
	p, reader := testProvider(t)
	chat := WrapChat(&provider.FakeProvider{Error: errors.New("down")}, p, "fake")
	if _, err := chat.ChatCompletion(context.Background(), &inference.Request{Model: "m"}); err == nil {
		t.Fatalf("expected error")
	}
	if got := sumOf(t, reader, "mailsieve_provider_errors_total"); got != 1 {
		t.Fatalf("expected 1 provider error, got %d", got)
	}
	if WrapChat(nil, p, "none") != nil {
		t.Fatalf("nil chat provider should stay nil")
	}
}

func TestRecordCounters(t *testing.T) {
	p, reader := testProvider(t)
	p.RecordPrediction(context.Background(), "classify", "forward")
	p.RecordPrediction(context.Background(), "aggregate", "discard")
	p.RecordEpoch(context.Background(), 0.75)

	if got := sumOf(t, reader, "mailsieve_predictions_total"); got != 2 {
		t.Fatalf("expected 2 predictions, got %d", got)
	}
	if got := sumOf(t, reader, "mailsieve_training_epochs_total"); got != 1 {
		t.Fatalf("expected 1 epoch, got %d", got)
	}
}

func TestAccuracyHistogramUsesUnitBuckets(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithView(views()...))
	defer mp.Shutdown(context.Background())
	p := newProvider(tracenoop.NewTracerProvider().Tracer(""), mp.Meter("test"))

	p.RecordEpoch(context.Background(), 0.93)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "mailsieve_validation_accuracy" {
				continue
			}
			h, ok := m.Data.(metricdata.Histogram[float64])
			if !ok || len(h.DataPoints) != 1 {
				t.Fatalf("unexpected data %T", m.Data)
			}
			if got := h.DataPoints[0].Bounds; len(got) != len(accuracyBuckets) || got[len(got)-1] != 1 {
				t.Fatalf("unexpected bounds %v", got)
			}
			return
		}
	}
	t.Fatalf("accuracy histogram not collected")
}
