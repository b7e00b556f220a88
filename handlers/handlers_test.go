// ABOUTME: Tests for the MCP tools, resources, and prompts
// ABOUTME: Drives a real MCP client over in-memory transports against the mock CRM server
package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/harperreed/salesdesk/api"
	"github.com/harperreed/salesdesk/mockapi"
	"github.com/harperreed/salesdesk/session"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupClient(t *testing.T) (*mcp.ClientSession, *mockapi.Server) {
	t.Helper()
	srv := mockapi.New(mockapi.WithSeed())
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	sess := session.New(session.Options{
		Transport: api.NewHTTPTransport(ts.URL+"/api", api.WithMaxRetries(0)),
		Scope:     session.StaticScope{CompanyID: "c1"},
	})

	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ss, err := NewServer(sess).Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })

	return cs, srv
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any, out any) *mcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	if out != nil && !res.IsError {
		data, err := json.Marshal(res.StructuredContent)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, out))
	}
	return res
}

func errorText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.True(t, res.IsError, "expected tool error")
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestListToolUsesSessionScope(t *testing.T) {
	cs, _ := setupClient(t)

	var out ListOutput
	res := callTool(t, cs, "list_tasks", map[string]any{}, &out)
	require.False(t, res.IsError)

	assert.Equal(t, 3, out.Total)
	assert.Len(t, out.Items, 3)
	assert.Equal(t, "task-1", out.Items[0]["id"])
}

func TestListToolFiltersAndPages(t *testing.T) {
	cs, _ := setupClient(t)

	var out ListOutput
	callTool(t, cs, "list_leads", map[string]any{"company_id": "c2"}, &out)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "Barbara Liskov", out.Items[0]["name"])

	callTool(t, cs, "list_leads", map[string]any{"limit": 2, "page": 2}, &out)
	assert.Equal(t, 3, out.Total)
	assert.Equal(t, 2, out.CurrentPage)
	assert.Equal(t, 2, out.TotalPages)
	assert.Len(t, out.Items, 1)
}

func TestListToolRejectsBadDates(t *testing.T) {
	cs, _ := setupClient(t)

	res := callTool(t, cs, "list_meetings", map[string]any{"from": "yesterday"}, nil)
	assert.Contains(t, errorText(t, res), "invalid from")
}

func TestGetToolReturnsDetails(t *testing.T) {
	cs, _ := setupClient(t)

	var out RecordOutput
	res := callTool(t, cs, "get_lead", map[string]any{"id": "L1"}, &out)
	require.False(t, res.IsError)

	assert.Equal(t, "Ada Lovelace", out.Record["name"])
	require.NotNil(t, out.Details)
	deals, ok := out.Details["deals"].([]any)
	require.True(t, ok)
	assert.Len(t, deals, 2)
	counts := out.Details["counts"].(map[string]any)
	assert.EqualValues(t, 2, counts["meetings"])
}

func TestGetToolNotFound(t *testing.T) {
	cs, _ := setupClient(t)

	res := callTool(t, cs, "get_call", map[string]any{"id": "call-99"}, nil)
	assert.Contains(t, errorText(t, res), "not found")
}

func TestCreateToolDefaultsCompany(t *testing.T) {
	cs, srv := setupClient(t)

	var out RecordOutput
	res := callTool(t, cs, "create_task", map[string]any{
		"fields": map[string]any{"title": "Call back", "priority": "high"},
	}, &out)
	require.False(t, res.IsError)

	assert.NotEmpty(t, out.Record["id"])
	assert.Equal(t, "c1", out.Record["companyId"])
	assert.Equal(t, 5, srv.Count("tasks"))
}

func TestCreateToolValidatesLocally(t *testing.T) {
	cs, srv := setupClient(t)

	res := callTool(t, cs, "create_task", map[string]any{
		"fields": map[string]any{"priority": "urgent"},
	}, nil)
	assert.Contains(t, errorText(t, res), "Title")
	assert.Equal(t, 0, srv.Hits(mockapi.OpCreate, "tasks"))
}

func TestUpdateTool(t *testing.T) {
	cs, _ := setupClient(t)

	var out RecordOutput
	res := callTool(t, cs, "update_lead", map[string]any{
		"id":     "L2",
		"fields": map[string]any{"status": "qualified"},
	}, &out)
	require.False(t, res.IsError)
	assert.Equal(t, "qualified", out.Record["status"])

	res = callTool(t, cs, "update_lead", map[string]any{"id": "L2", "fields": map[string]any{}}, nil)
	assert.Contains(t, errorText(t, res), "at least one field")
}

func TestDeleteToolListsFirst(t *testing.T) {
	cs, srv := setupClient(t)

	var out DeleteOutput
	res := callTool(t, cs, "delete_task", map[string]any{"id": "task-1"}, &out)
	require.False(t, res.IsError)

	assert.Equal(t, []string{"task-1"}, out.Deleted)
	assert.Equal(t, 2, out.Remaining)
	assert.Equal(t, 3, srv.Count("tasks"))
	assert.Equal(t, 1, srv.Hits(mockapi.OpList, "tasks"))
}

func TestDeleteToolUnknownID(t *testing.T) {
	cs, srv := setupClient(t)

	res := callTool(t, cs, "delete_task", map[string]any{"id": "task-42"}, nil)
	assert.Contains(t, errorText(t, res), "may already be deleted")
	assert.Equal(t, 0, srv.Hits(mockapi.OpDelete, "tasks"))
}

func TestBulkDeleteToolPartialFailureReloads(t *testing.T) {
	cs, srv := setupClient(t)

	var list ListOutput
	callTool(t, cs, "list_tasks", map[string]any{}, &list)
	require.Len(t, list.Items, 3)

	res := callTool(t, cs, "bulk_delete_tasks", map[string]any{"ids": []string{"task-1", "task-404"}}, nil)
	assert.Contains(t, errorText(t, res), "1 of 2 tasks not found")
	assert.Equal(t, 2, srv.Hits(mockapi.OpList, "tasks"))

	rr, err := cs.ReadResource(context.Background(), &mcp.ReadResourceParams{URI: "crm://tasks"})
	require.NoError(t, err)
	require.Len(t, rr.Contents, 1)

	var page struct {
		Items []map[string]any `json:"items"`
		Total int              `json:"total"`
		Error string           `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(rr.Contents[0].Text), &page))
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 2, page.Total)
	assert.Contains(t, page.Error, "not found")
}

func TestBulkDeleteToolEmptySelection(t *testing.T) {
	cs, srv := setupClient(t)

	res := callTool(t, cs, "bulk_delete_calls", map[string]any{"ids": []string{}}, nil)
	assert.Contains(t, errorText(t, res), "select at least one")
	assert.Equal(t, 0, srv.Hits(mockapi.OpBulkDelete, "calls"))
	assert.Equal(t, 0, srv.Hits(mockapi.OpList, "calls"))
}

func TestReadRecordResource(t *testing.T) {
	cs, _ := setupClient(t)
	ctx := context.Background()

	callTool(t, cs, "list_meetings", map[string]any{}, nil)

	rr, err := cs.ReadResource(ctx, &mcp.ReadResourceParams{URI: "crm://meetings/meeting-2"})
	require.NoError(t, err)
	assert.Contains(t, rr.Contents[0].Text, "Pilot scoping")
	assert.Equal(t, "application/json", rr.Contents[0].MIMEType)

	_, err = cs.ReadResource(ctx, &mcp.ReadResourceParams{URI: "crm://meetings/meeting-4"})
	assert.Error(t, err)
}

func TestLeadSummaryPrompt(t *testing.T) {
	cs, _ := setupClient(t)

	res, err := cs.GetPrompt(context.Background(), &mcp.GetPromptParams{
		Name:      "lead-summary",
		Arguments: map[string]string{"lead_id": "L1"},
	})
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)

	text := res.Messages[0].Content.(*mcp.TextContent).Text
	assert.Contains(t, text, "Ada Lovelace")
	assert.Contains(t, text, "Owner: Grace Hopper")
	assert.Contains(t, text, "Analytical Engines pilot (proposal) $12000")
}

func TestFollowUpPrompt(t *testing.T) {
	cs, _ := setupClient(t)

	res, err := cs.GetPrompt(context.Background(), &mcp.GetPromptParams{
		Name:      "follow-up-suggestions",
		Arguments: map[string]string{"lead_id": "L1"},
	})
	require.NoError(t, err)

	text := res.Messages[0].Content.(*mcp.TextContent).Text
	assert.Contains(t, text, "Open tasks: 1")
	assert.Contains(t, text, "Send proposal")
	assert.Contains(t, text, "Follow up on pricing: interested")
}

func TestUploadAttachmentTool(t *testing.T) {
	cs, _ := setupClient(t)

	path := filepath.Join(t.TempDir(), "agenda.txt")
	require.NoError(t, os.WriteFile(path, []byte("1. intros\n2. pricing\n"), 0o600))

	var out UploadOutput
	res := callTool(t, cs, "upload_meeting_attachment", map[string]any{"id": "meeting-1", "path": path}, &out)
	require.False(t, res.IsError)
	assert.Equal(t, "agenda.txt", out.Attachment["name"])
	assert.EqualValues(t, 21, out.Attachment["size"])

	res = callTool(t, cs, "upload_meeting_attachment", map[string]any{"id": "meeting-1", "path": filepath.Join(t.TempDir(), "missing")}, nil)
	assert.Contains(t, errorText(t, res), "failed to open file")
}
