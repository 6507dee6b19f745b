// CLAUDE:SUMMARY Registers reminders_today/list/save/delete/pause MCP tools via kit.RegisterMCPTool.
package reminders

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/adfriend/kit"
)

// RegisterMCP registers the reminder tools on an MCP server.
func RegisterMCP(srv *mcp.Server, store *Store) {
	registerTodayTool(srv, store)
	registerListTool(srv, store)
	registerSaveTool(srv, store)
	registerDeleteTool(srv, store)
	registerPauseTool(srv, store)
}

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

func decodeInto[T any](req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	var r T
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
	}
	return &kit.MCPDecodeResult{Request: &r}, nil
}

type emptyReq struct{}

// --- today ---

func registerTodayTool(srv *mcp.Server, store *Store) {
	tool := &mcp.Tool{
		Name:        "reminders_today",
		Description: "List the reminders that would be shown in ad slots right now.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	endpoint := func(ctx context.Context, _ any) (any, error) {
		list, err := store.Today(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"reminders": list, "count": len(list)}, nil
	}
	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[emptyReq])
}

// --- list ---

func registerListTool(srv *mcp.Server, store *Store) {
	tool := &mcp.Tool{
		Name:        "reminders_list",
		Description: "List every stored reminder, paused ones included.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	endpoint := func(ctx context.Context, _ any) (any, error) {
		list, err := store.All(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"reminders": list, "count": len(list)}, nil
	}
	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[emptyReq])
}

// --- save ---

func registerSaveTool(srv *mcp.Server, store *Store) {
	tool := &mcp.Tool{
		Name:        "reminders_save",
		Description: "Create a reminder, or update it when id is given. Days use M T W TH FR SA SU; no days means one-time.",
		InputSchema: inputSchema(map[string]any{
			"id":       map[string]any{"type": "string", "description": "Existing reminder id to update"},
			"text":     map[string]any{"type": "string", "description": "Reminder text"},
			"remindAt": map[string]any{"type": "string", "description": "Time of day, HH:MM"},
			"days": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string", "enum": dayCodes[:]},
				"description": "Recurring days",
			},
			"isPaused": map[string]any{"type": "boolean"},
		}, []string{"text", "remindAt"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		return store.Save(ctx, *req.(*Input))
	}
	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[Input])
}

// --- delete ---

func registerDeleteTool(srv *mcp.Server, store *Store) {
	tool := &mcp.Tool{
		Name:        "reminders_delete",
		Description: "Delete a reminder by id.",
		InputSchema: inputSchema(map[string]any{
			"id": map[string]any{"type": "string", "description": "Reminder id"},
		}, []string{"id"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*idPayload)
		if err := store.Delete(ctx, r.ID); err != nil {
			return nil, err
		}
		return map[string]any{"deleted": r.ID}, nil
	}
	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[idPayload])
}

// --- pause ---

func registerPauseTool(srv *mcp.Server, store *Store) {
	tool := &mcp.Tool{
		Name:        "reminders_pause",
		Description: "Toggle the paused state of a reminder.",
		InputSchema: inputSchema(map[string]any{
			"id": map[string]any{"type": "string", "description": "Reminder id"},
		}, []string{"id"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*idPayload)
		rem, err := store.TogglePause(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		if rem == nil {
			return nil, ErrNotFound
		}
		return rem, nil
	}
	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[idPayload])
}
