package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/andburman/graphkeep/internal/config"
	"github.com/andburman/graphkeep/internal/engineerr"
	"github.com/andburman/graphkeep/internal/graph"
	"github.com/andburman/graphkeep/internal/handlers"
	"github.com/andburman/graphkeep/internal/metrics"
	"github.com/andburman/graphkeep/internal/storage/sqlite"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept graph_* tool calls over a line-delimited JSON session",
	RunE:  runServe,
}

// request is one line of the session: {method, params}.
type request struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// response is the content envelope spec §6 describes: a successful call
// carries result, a failed one carries a structured {code, message}
// error instead. Both are mutually exclusive in a well-formed response.
type response struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *errorEnvelope  `json:"error,omitempty"`
}

type errorEnvelope struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Remediation string `json:"remediation,omitempty"`
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	cfg, err := config.Load(cmd, cwd)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	if cfg.DBPath == "" {
		return fmt.Errorf("serve: no database path resolved; pass --db-path or run inside a %s project", config.ProjectDirName)
	}

	shutdownMetrics, err := metrics.Init(ctx, "graphd")
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	defer func() { _ = shutdownMetrics(context.Background()) }()

	store, err := sqlite.New(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("serve: open store: %w", err)
	}
	defer func() { _ = store.Close() }()

	engine := graph.New(store, cfg.ClaimTTL)
	h := handlers.New(engine)

	var watcher *config.Watcher
	if cfg.ProjectDir != "" {
		watcher, err = config.NewWatcher(cfg.ProjectDir, cfg.RepoRoot, func() {
			log.Printf("graphd: config changed on disk; restart to pick up claim-ttl/strict-mode edits")
		})
		if err != nil {
			log.Printf("graphd: config watcher disabled: %v", err)
		} else {
			defer func() { _ = watcher.Close() }()
		}
	}

	return serveLoop(ctx, os.Stdin, os.Stdout, dispatcherFor(h))
}

// serveLoop reads one JSON request per line from r until EOF or ctx is
// canceled, dispatches it, and writes one JSON response per line to w.
// A malformed line or handler error never ends the session; only EOF,
// a write failure, or context cancellation does.
func serveLoop(ctx context.Context, r io.Reader, w io.Writer, dispatch func(context.Context, string, json.RawMessage) (any, error)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			if encErr := enc.Encode(response{Error: &errorEnvelope{
				Code: string(engineerr.CodeInvalidInput), Message: fmt.Sprintf("malformed request: %v", err),
			}}); encErr != nil {
				return encErr
			}
			continue
		}

		start := time.Now()
		result, err := dispatch(ctx, req.Method, req.Params)
		metrics.RecordCall(ctx, req.Method, float64(time.Since(start).Milliseconds()), err)

		resp := responseFor(result, err)
		if err := enc.Encode(resp); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func responseFor(result any, err error) response {
	if err != nil {
		var ee *engineerr.Error
		if asEngineErr(err, &ee) {
			return response{Error: &errorEnvelope{Code: string(ee.Code), Message: ee.Message, Remediation: ee.Remediation}}
		}
		return response{Error: &errorEnvelope{Code: string(engineerr.CodeInternal), Message: err.Error()}}
	}
	data, marshalErr := json.Marshal(result)
	if marshalErr != nil {
		return response{Error: &errorEnvelope{Code: string(engineerr.CodeInternal), Message: marshalErr.Error()}}
	}
	return response{Result: data}
}

func asEngineErr(err error, target **engineerr.Error) bool {
	if ee, ok := err.(*engineerr.Error); ok {
		*target = ee
		return true
	}
	return false
}
