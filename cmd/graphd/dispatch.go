package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/andburman/graphkeep/internal/engineerr"
	"github.com/andburman/graphkeep/internal/handlers"
	"github.com/andburman/graphkeep/internal/types"
)

// dispatcherFor builds the method-name table spec §6 names, one entry per
// handler, decoding params into that handler's concrete input type before
// calling it. Unmarshaling failures become CodeInvalidInput, not a panic.
func dispatcherFor(h *handlers.Handlers) func(context.Context, string, json.RawMessage) (any, error) {
	return func(ctx context.Context, method string, params json.RawMessage) (any, error) {
		switch method {
		case "graph_open":
			var p handlers.OpenParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			return h.Open(ctx, p)
		case "graph_plan":
			var p handlers.PlanParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			return h.Plan(ctx, p)
		case "graph_next":
			var p handlers.NextParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			return h.Next(ctx, p)
		case "graph_context":
			var p handlers.ContextParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			return h.Context(ctx, p)
		case "graph_update":
			var p handlers.UpdateParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			return h.Update(ctx, p)
		case "graph_connect":
			var p handlers.ConnectParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			return h.Connect(ctx, p)
		case "graph_query":
			var f types.QueryFilter
			if err := decode(params, &f); err != nil {
				return nil, err
			}
			return h.Query(ctx, f)
		case "graph_restructure":
			var p handlers.RestructureParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			return h.Restructure(ctx, p)
		case "graph_history":
			var p handlers.HistoryParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			return h.History(ctx, p)
		case "graph_onboard":
			var p handlers.OnboardParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			return h.Onboard(ctx, p)
		case "graph_status":
			var p handlers.StatusParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			return h.Status(ctx, p)
		case "graph_resolve":
			var p handlers.ResolveParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			return h.Resolve(ctx, p)
		case "graph_knowledge_read":
			var p handlers.KnowledgeReadParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			return h.KnowledgeRead(ctx, p)
		case "graph_knowledge_write":
			var p handlers.KnowledgeWriteParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			return h.KnowledgeWrite(ctx, p)
		case "graph_knowledge_delete":
			var p handlers.KnowledgeDeleteParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			return h.KnowledgeDelete(ctx, p)
		case "graph_knowledge_search":
			var p handlers.KnowledgeSearchParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			return h.KnowledgeSearch(ctx, p)
		case "graph_knowledge_audit":
			var p handlers.KnowledgeAuditParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			return h.KnowledgeAudit(ctx, p)
		case "graph_retro":
			var p handlers.RetroParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			return h.Retro(ctx, p)
		case "graph_roadmap":
			var p handlers.RoadmapParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			return h.Roadmap(ctx, p)
		default:
			return nil, engineerr.New(engineerr.CodeInvalidInput, fmt.Sprintf("unknown method %q", method), "see the graph_* method set")
		}
	}
}

func decode(raw json.RawMessage, target any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return engineerr.New(engineerr.CodeInvalidInput, fmt.Sprintf("invalid params: %v", err), "check the method's input shape")
	}
	return nil
}
