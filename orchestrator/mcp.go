package orchestrator

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/atelierink/sketchd/history"
	"github.com/atelierink/sketchd/idgen"
	"github.com/atelierink/sketchd/kit"
)

// wrap is the middleware stack shared by every tool endpoint: mark the
// transport, mint a request id, log the call.
func (o *Orchestrator) wrap(op string, endpoint kit.Endpoint) kit.Endpoint {
	mw := kit.Chain(
		kit.RequestID(idgen.Prefixed("req_", idgen.Default)),
		kit.Logging(o.logger, op),
	)
	return mw(func(ctx context.Context, req any) (any, error) {
		return endpoint(kit.WithTransport(ctx, "mcp"), req)
	})
}

// RegisterMCP registers the canvas tools on an MCP server.
func (o *Orchestrator) RegisterMCP(srv *mcp.Server) {
	o.registerCommandTool(srv)
	o.registerClarifyTool(srv)
	o.registerCancelTool(srv)
	o.registerShapesTool(srv)
	o.registerHistoryTool(srv)
	o.registerHistoryDeleteTool(srv)
	o.registerHistoryClearTool(srv)
	o.registerRecentColorsTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// --- command ---

type commandRequest struct {
	Prompt string `json:"prompt"`
}

func (o *Orchestrator) registerCommandTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "canvas_command",
		Description: "Run a natural-language drawing command against the canvas. May return a clarification question instead of executing; answer it with canvas_clarify.",
		InputSchema: inputSchema(map[string]any{
			"prompt": map[string]any{"type": "string", "description": "The drawing command, e.g. 'draw a red circle at 100,100'"},
		}, []string{"prompt"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*commandRequest)
		return o.SubmitCommand(ctx, r.Prompt)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r commandRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, o.wrap("canvas_command", endpoint), decode)
}

// --- clarify ---

type clarifyRequest struct {
	Option string `json:"option"`
}

func (o *Orchestrator) registerClarifyTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "canvas_clarify",
		Description: "Answer the pending clarification question with one of its options. Re-runs the original command with the answer appended.",
		InputSchema: inputSchema(map[string]any{
			"option": map[string]any{"type": "string", "description": "The chosen clarification option"},
		}, []string{"option"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*clarifyRequest)
		return o.ResolveClarification(ctx, r.Option)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r clarifyRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, o.wrap("canvas_clarify", endpoint), decode)
}

// --- cancel ---

func (o *Orchestrator) registerCancelTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "canvas_cancel",
		Description: "Cancel the pending clarification and return to idle.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		if err := o.CancelClarification(); err != nil {
			return nil, err
		}
		return map[string]string{"status": "cancelled"}, nil
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, o.wrap("canvas_cancel", endpoint), decode)
}

// --- shapes ---

func (o *Orchestrator) registerShapesTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "canvas_shapes",
		Description: "Get the current document snapshot: all shapes in document order, the selection, viewport, and canvas bounds.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return o.mut.Snapshot(ctx)
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, o.wrap("canvas_shapes", endpoint), decode)
}

// --- history ---

type historyRequest struct {
	Status string `json:"status"`
	Search string `json:"search"`
}

func (o *Orchestrator) registerHistoryTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "canvas_history",
		Description: "List command history entries, newest first. Optionally filter by outcome or search prompts.",
		InputSchema: inputSchema(map[string]any{
			"status": map[string]any{"type": "string", "enum": []any{"all", "success", "failed"}, "description": "Outcome filter (default: all)"},
			"search": map[string]any{"type": "string", "description": "Case-insensitive prompt substring"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*historyRequest)
		filter := history.FilterAll
		switch r.Status {
		case "success":
			filter = history.FilterSuccess
		case "failed":
			filter = history.FilterFailed
		}
		return o.hist.List(ctx, filter, r.Search)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r historyRequest
		json.Unmarshal(req.Params.Arguments, &r)
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, o.wrap("canvas_history", endpoint), decode)
}

// --- history_delete ---

type historyDeleteRequest struct {
	EntryID string `json:"entry_id"`
}

func (o *Orchestrator) registerHistoryDeleteTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "canvas_history_delete",
		Description: "Delete one command history entry.",
		InputSchema: inputSchema(map[string]any{
			"entry_id": map[string]any{"type": "string", "description": "History entry ID to delete"},
		}, []string{"entry_id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*historyDeleteRequest)
		if err := o.hist.Delete(ctx, r.EntryID); err != nil {
			return nil, err
		}
		return map[string]string{"status": "deleted", "entry_id": r.EntryID}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r historyDeleteRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, o.wrap("canvas_history_delete", endpoint), decode)
}

// --- history_clear ---

func (o *Orchestrator) registerHistoryClearTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "canvas_history_clear",
		Description: "Delete all command history entries.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		if err := o.hist.Clear(ctx); err != nil {
			return nil, err
		}
		return map[string]string{"status": "cleared"}, nil
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, o.wrap("canvas_history_clear", endpoint), decode)
}

// --- recent_colors ---

func (o *Orchestrator) registerRecentColorsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "canvas_recent_colors",
		Description: "List recently used colors, most recent first.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return o.hist.RecentColors(ctx)
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, o.wrap("canvas_recent_colors", endpoint), decode)
}
