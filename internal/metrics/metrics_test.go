package metrics

import (
	"context"
	"errors"
	"testing"
)

func TestRecordCallDoesNotPanicBeforeInit(t *testing.T) {
	// Before Init runs, otel's global meter provider is the no-op default;
	// RecordCall must still be safe to call (handlers don't know whether
	// the process wired a real exporter).
	RecordCall(context.Background(), "graph_next", 12.5, nil)
	RecordCall(context.Background(), "graph_next", 4.0, errors.New("boom"))
}

func TestInitReturnsWorkingShutdown(t *testing.T) {
	ctx := context.Background()
	shutdown, err := Init(ctx, "graphd-test")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if shutdown == nil {
		t.Fatal("Init returned a nil shutdown func")
	}
	RecordCall(ctx, "graph_plan", 1.0, nil)
	if err := shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
