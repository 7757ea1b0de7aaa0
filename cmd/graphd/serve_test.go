package main

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/andburman/graphkeep/internal/engineerr"
)

func echoDispatch(_ context.Context, method string, params json.RawMessage) (any, error) {
	switch method {
	case "fail":
		return nil, engineerr.New(engineerr.CodeNodeNotFound, "nope", "try something else")
	case "boom":
		return nil, errors.New("unstructured failure")
	default:
		return map[string]string{"method": method, "params": string(params)}, nil
	}
}

func TestServeLoopEchoesResult(t *testing.T) {
	in := strings.NewReader(`{"method":"graph_open","params":{"project":"p1"}}` + "\n")
	var out strings.Builder

	if err := serveLoop(context.Background(), in, &out, echoDispatch); err != nil {
		t.Fatalf("serveLoop: %v", err)
	}

	var resp response
	if err := json.Unmarshal([]byte(out.String()), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error envelope: %+v", resp.Error)
	}
	if resp.Result == nil {
		t.Fatal("expected a result payload")
	}
}

func TestServeLoopStructuredError(t *testing.T) {
	in := strings.NewReader(`{"method":"fail","params":{}}` + "\n")
	var out strings.Builder

	if err := serveLoop(context.Background(), in, &out, echoDispatch); err != nil {
		t.Fatalf("serveLoop: %v", err)
	}

	var resp response
	if err := json.Unmarshal([]byte(out.String()), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error == nil {
		t.Fatal("expected an error envelope")
	}
	if resp.Error.Code != string(engineerr.CodeNodeNotFound) {
		t.Fatalf("code = %q, want %q", resp.Error.Code, engineerr.CodeNodeNotFound)
	}
	if resp.Error.Remediation == "" {
		t.Fatal("expected a remediation string")
	}
}

func TestServeLoopUnstructuredErrorBecomesInternal(t *testing.T) {
	in := strings.NewReader(`{"method":"boom","params":{}}` + "\n")
	var out strings.Builder

	if err := serveLoop(context.Background(), in, &out, echoDispatch); err != nil {
		t.Fatalf("serveLoop: %v", err)
	}

	var resp response
	if err := json.Unmarshal([]byte(out.String()), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != string(engineerr.CodeInternal) {
		t.Fatalf("expected CodeInternal, got %+v", resp.Error)
	}
}

func TestServeLoopMalformedLineDoesNotEndSession(t *testing.T) {
	in := strings.NewReader("not json\n" + `{"method":"graph_open","params":{}}` + "\n")
	var out strings.Builder

	if err := serveLoop(context.Background(), in, &out, echoDispatch); err != nil {
		t.Fatalf("serveLoop: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 response lines, got %d: %v", len(lines), lines)
	}

	var malformed response
	if err := json.Unmarshal([]byte(lines[0]), &malformed); err != nil {
		t.Fatalf("unmarshal first response: %v", err)
	}
	if malformed.Error == nil || malformed.Error.Code != string(engineerr.CodeInvalidInput) {
		t.Fatalf("expected CodeInvalidInput for malformed line, got %+v", malformed.Error)
	}

	var ok response
	if err := json.Unmarshal([]byte(lines[1]), &ok); err != nil {
		t.Fatalf("unmarshal second response: %v", err)
	}
	if ok.Error != nil {
		t.Fatalf("second line should have succeeded, got %+v", ok.Error)
	}
}

func TestServeLoopBlankLinesSkipped(t *testing.T) {
	in := strings.NewReader("\n\n" + `{"method":"graph_open","params":{}}` + "\n")
	var out strings.Builder

	if err := serveLoop(context.Background(), in, &out, echoDispatch); err != nil {
		t.Fatalf("serveLoop: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 response line, got %d: %v", len(lines), lines)
	}
}
