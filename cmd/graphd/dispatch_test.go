package main

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/andburman/graphkeep/internal/engineerr"
	"github.com/andburman/graphkeep/internal/graph"
	"github.com/andburman/graphkeep/internal/handlers"
	"github.com/andburman/graphkeep/internal/storage/sqlite"
)

func newTestHandlers(t *testing.T) *handlers.Handlers {
	t.Helper()
	store, err := sqlite.New(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return handlers.New(graph.New(store, 0))
}

func TestDispatcherRoutesOpen(t *testing.T) {
	h := newTestHandlers(t)
	dispatch := dispatcherFor(h)

	params, _ := json.Marshal(map[string]string{"Project": "demo", "Goal": "ship it"})
	result, err := dispatch(context.Background(), "graph_open", params)
	if err != nil {
		t.Fatalf("dispatch graph_open: %v", err)
	}
	res, ok := result.(*handlers.OpenResult)
	if !ok {
		t.Fatalf("result type = %T, want *handlers.OpenResult", result)
	}
	if res.Root == nil || res.Root.Project != "demo" {
		t.Fatalf("unexpected root: %+v", res.Root)
	}
}

func TestDispatcherUnknownMethod(t *testing.T) {
	h := newTestHandlers(t)
	dispatch := dispatcherFor(h)

	_, err := dispatch(context.Background(), "graph_nonexistent", nil)
	if err == nil {
		t.Fatal("expected an error for an unknown method")
	}
	ee, ok := err.(*engineerr.Error)
	if !ok {
		t.Fatalf("error type = %T, want *engineerr.Error", err)
	}
	if ee.Code != engineerr.CodeInvalidInput {
		t.Fatalf("code = %q, want %q", ee.Code, engineerr.CodeInvalidInput)
	}
}

func TestDispatcherInvalidParamsShape(t *testing.T) {
	h := newTestHandlers(t)
	dispatch := dispatcherFor(h)

	_, err := dispatch(context.Background(), "graph_plan", json.RawMessage(`{"nodes": "not-an-array"}`))
	if err == nil {
		t.Fatal("expected a decode error")
	}
	ee, ok := err.(*engineerr.Error)
	if !ok {
		t.Fatalf("error type = %T, want *engineerr.Error", err)
	}
	if ee.Code != engineerr.CodeInvalidInput {
		t.Fatalf("code = %q, want %q", ee.Code, engineerr.CodeInvalidInput)
	}
}

func TestDispatcherRoutesQueryWithBareFilter(t *testing.T) {
	h := newTestHandlers(t)
	dispatch := dispatcherFor(h)

	openParams, _ := json.Marshal(map[string]string{"Project": "demo"})
	if _, err := dispatch(context.Background(), "graph_open", openParams); err != nil {
		t.Fatalf("seed graph_open: %v", err)
	}

	queryParams, _ := json.Marshal(map[string]string{"Project": "demo"})
	result, err := dispatch(context.Background(), "graph_query", queryParams)
	if err != nil {
		t.Fatalf("dispatch graph_query: %v", err)
	}
	if result == nil {
		t.Fatal("expected a non-nil query result")
	}
}
