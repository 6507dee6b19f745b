package reminders

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var testMCPImpl = &mcp.Implementation{Name: "reminders-test", Version: "0.1.0"}

func mcpSession(t *testing.T, store *Store) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testMCPImpl, nil)
	RegisterMCP(srv, store)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func mcpCall(t *testing.T, session *mcp.ClientSession, name string, args any) (string, error) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if len(result.Content) == 0 {
		t.Fatalf("CallTool(%s): empty content", name)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	if result.IsError {
		return "", errors.New(tc.Text)
	}
	return tc.Text, nil
}

func TestMCP_SaveListPauseDelete(t *testing.T) {
	session := mcpSession(t, newTestStore(t))

	text, err := mcpCall(t, session, "reminders_save", map[string]any{
		"text": "Stand up", "remindAt": "11:00", "days": []string{"W"},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	var saved Reminder
	if err := json.Unmarshal([]byte(text), &saved); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	text, err = mcpCall(t, session, "reminders_today", map[string]any{})
	if err != nil {
		t.Fatalf("today: %v", err)
	}
	var list struct {
		Reminders []Reminder `json:"reminders"`
		Count     int        `json:"count"`
	}
	json.Unmarshal([]byte(text), &list)
	if list.Count != 1 || list.Reminders[0].ID != saved.ID {
		t.Fatalf("today = %s", text)
	}

	text, err = mcpCall(t, session, "reminders_pause", map[string]any{"id": saved.ID})
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	var paused Reminder
	json.Unmarshal([]byte(text), &paused)
	if !paused.IsPaused {
		t.Fatalf("pause = %s", text)
	}

	if _, err := mcpCall(t, session, "reminders_delete", map[string]any{"id": saved.ID}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	text, _ = mcpCall(t, session, "reminders_list", map[string]any{})
	json.Unmarshal([]byte(text), &list)
	if list.Count != 0 {
		t.Fatalf("list after delete = %s", text)
	}
}

func TestMCP_ErrorsAreToolErrors(t *testing.T) {
	session := mcpSession(t, newTestStore(t))
	_, err := mcpCall(t, session, "reminders_save", map[string]any{"text": "x", "remindAt": "99:99"})
	if err == nil {
		t.Fatal("expected tool error for invalid time")
	}
	if !strings.Contains(err.Error(), "99:99") {
		t.Errorf("error text = %q", err)
	}
	if _, err := mcpCall(t, session, "reminders_pause", map[string]any{"id": "rem_unknown"}); err == nil {
		t.Fatal("expected tool error for unknown id")
	}
}
