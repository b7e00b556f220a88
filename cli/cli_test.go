// ABOUTME: Tests for the record, account, and config CLI commands
// ABOUTME: Runs commands against the mock CRM server and checks printed output
package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harperreed/salesdesk/api"
	"github.com/harperreed/salesdesk/config"
	"github.com/harperreed/salesdesk/db"
	"github.com/harperreed/salesdesk/mockapi"
	"github.com/harperreed/salesdesk/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	prev := stdout
	stdout = buf
	t.Cleanup(func() { stdout = prev })
	return buf
}

func setupTestCLI(t *testing.T, opts session.Options) (*session.Session, *mockapi.Server) {
	t.Helper()
	srv := mockapi.New(mockapi.WithSeed())
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	opts.Transport = api.NewHTTPTransport(ts.URL+"/api", api.WithMaxRetries(0))
	if opts.Scope == nil {
		opts.Scope = session.StaticScope{CompanyID: "c1"}
	}
	return session.New(opts), srv
}

func TestListCommandPrintsTable(t *testing.T) {
	sess, _ := setupTestCLI(t, session.Options{})
	out := captureOutput(t)

	err := RecordCommand(context.Background(), sess, 20, "list", []string{"tasks", "--status", "open"})
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "TITLE")
	assert.Contains(t, text, "Send proposal")
	assert.NotContains(t, text, "Update CRM notes")
	assert.Contains(t, text, "Page 1 of 1 (1 total)")
}

func TestListCommandDateRange(t *testing.T) {
	sess, _ := setupTestCLI(t, session.Options{})
	out := captureOutput(t)

	err := RecordCommand(context.Background(), sess, 20, "list", []string{"meetings", "--from", "2026-03-04", "--to", "2026-03-08"})
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "Pilot scoping")
	assert.Contains(t, text, "Intro")
	assert.NotContains(t, text, "Discovery call")

	err = RecordCommand(context.Background(), sess, 20, "list", []string{"meetings", "--from", "March"})
	assert.ErrorContains(t, err, "invalid --from")
}

func TestListCommandRequiresCompany(t *testing.T) {
	sess, srv := setupTestCLI(t, session.Options{Scope: session.StaticScope{}})
	captureOutput(t)

	err := RecordCommand(context.Background(), sess, 20, "list", []string{"leads"})
	assert.ErrorContains(t, err, "companyId is required")
	assert.Equal(t, 0, srv.Hits(mockapi.OpList, "leads"))
}

func TestListCommandCachedPage(t *testing.T) {
	conn, err := db.OpenDatabase(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	snapshots := db.NewSnapshotRepository(conn)

	sess, srv := setupTestCLI(t, session.Options{Snapshots: snapshots})
	out := captureOutput(t)
	ctx := context.Background()

	err = RecordCommand(ctx, sess, 20, "list", []string{"leads", "--cached"})
	assert.ErrorContains(t, err, "no cached page")

	require.NoError(t, RecordCommand(ctx, sess, 20, "list", []string{"leads"}))

	// A fresh session over the same cache shows the page without a request.
	again, _ := setupTestCLI(t, session.Options{Snapshots: snapshots})
	out.Reset()
	require.NoError(t, RecordCommand(ctx, again, 20, "list", []string{"leads", "--cached"}))
	assert.Contains(t, out.String(), "Ada Lovelace")
	assert.Equal(t, 1, srv.Hits(mockapi.OpList, "leads"))
}

func TestShowCommandPrintsDetails(t *testing.T) {
	sess, _ := setupTestCLI(t, session.Options{})
	out := captureOutput(t)

	require.NoError(t, RecordCommand(context.Background(), sess, 20, "show", []string{"leads", "L1"}))

	text := out.String()
	assert.Contains(t, text, "Ada Lovelace")
	assert.Contains(t, text, "Owner: Grace Hopper <grace@example.com>")
	assert.Contains(t, text, "Activity: 2 meetings, 1 calls, 2 tasks")
	assert.Contains(t, text, "Analytical Engines pilot (proposal) $12000")
	assert.NotContains(t, text, "aliasIds")
}

func TestShowCommandRequiresCompany(t *testing.T) {
	sess, srv := setupTestCLI(t, session.Options{Scope: session.StaticScope{}})
	captureOutput(t)

	err := RecordCommand(context.Background(), sess, 20, "show", []string{"leads", "L1"})
	assert.ErrorContains(t, err, "companyId is required")
	assert.Equal(t, 0, srv.Hits(mockapi.OpGet, "leads"))
}

func TestAddCommandParsesTypedValues(t *testing.T) {
	sess, srv := setupTestCLI(t, session.Options{})
	out := captureOutput(t)

	err := RecordCommand(context.Background(), sess, 20, "add", []string{
		"calls",
		"--set", "subject=Pricing follow-up",
		"--set", "durationSeconds=300",
		"--set", "direction=outbound",
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "✓ Created call")
	assert.Equal(t, 4, srv.Count("calls"))

	st := sess.Calls.Snapshot()
	require.Len(t, st.Items, 1)
	assert.Equal(t, 300, st.Items[0].DurationSeconds)
	assert.Equal(t, "c1", st.Items[0].CompanyID)
}

func TestAddCommandValidatesBeforeSending(t *testing.T) {
	sess, srv := setupTestCLI(t, session.Options{})
	captureOutput(t)

	err := RecordCommand(context.Background(), sess, 20, "add", []string{"leads", "--set", "name=Grace", "--set", "email=not-an-email"})
	assert.ErrorContains(t, err, "Email")
	assert.Equal(t, 0, srv.Hits(mockapi.OpCreate, "leads"))

	err = RecordCommand(context.Background(), sess, 20, "add", []string{"leads", "--set", "novalue"})
	assert.ErrorContains(t, err, "key=value")
}

func TestUpdateCommand(t *testing.T) {
	sess, _ := setupTestCLI(t, session.Options{})
	out := captureOutput(t)

	err := RecordCommand(context.Background(), sess, 20, "update", []string{"leads", "--set", "status=qualified", "L2"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "✓ Updated L2")

	err = RecordCommand(context.Background(), sess, 20, "update", []string{"leads", "L2"})
	assert.ErrorContains(t, err, "nothing to update")
}

func TestDeleteCommand(t *testing.T) {
	sess, srv := setupTestCLI(t, session.Options{})
	out := captureOutput(t)

	require.NoError(t, RecordCommand(context.Background(), sess, 20, "delete", []string{"tasks", "task-2"}))
	assert.Contains(t, out.String(), "✓ Deleted task-2")
	assert.Equal(t, 3, srv.Count("tasks"))

	err := RecordCommand(context.Background(), sess, 20, "delete", []string{"tasks", "task-2"})
	assert.ErrorContains(t, err, "may already be deleted")
}

func TestBulkDeleteCommandPartialFailure(t *testing.T) {
	sess, srv := setupTestCLI(t, session.Options{})
	out := captureOutput(t)

	err := RecordCommand(context.Background(), sess, 20, "bulk-delete", []string{"tasks", "task-1", "task-9"})
	assert.ErrorContains(t, err, "1 of 2 tasks not found")
	assert.Contains(t, out.String(), "Reloaded: 2 tasks remain")
	assert.Equal(t, 2, srv.Hits(mockapi.OpList, "tasks"))

	out.Reset()
	err = RecordCommand(context.Background(), sess, 20, "bulk-delete", []string{"tasks"})
	assert.ErrorContains(t, err, "select at least one")
	assert.Equal(t, 2, srv.Hits(mockapi.OpList, "tasks"))
	assert.NotContains(t, out.String(), "Reloaded")
}

func TestAttachCommand(t *testing.T) {
	sess, _ := setupTestCLI(t, session.Options{})
	out := captureOutput(t)

	path := filepath.Join(t.TempDir(), "deck.pdf")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), 4096), 0o600))

	require.NoError(t, RecordCommand(context.Background(), sess, 20, "attach", []string{"meetings", "meeting-2", path}))
	assert.Contains(t, out.String(), "deck.pdf: 100%")
	assert.Contains(t, out.String(), "✓ Attached deck.pdf (4096 bytes)")
	assert.Empty(t, sess.Meetings.Snapshot().UploadProgress)

	err := RecordCommand(context.Background(), sess, 20, "attach", []string{"tasks", "task-1", path})
	assert.ErrorContains(t, err, "do not take attachments")
}

func TestUnknownResourceAndAction(t *testing.T) {
	sess, _ := setupTestCLI(t, session.Options{})

	err := RecordCommand(context.Background(), sess, 20, "list", []string{"widgets"})
	assert.ErrorContains(t, err, "unknown resource")

	err = RecordCommand(context.Background(), sess, 20, "list", nil)
	assert.ErrorContains(t, err, "requires a resource")
}

func TestLoginAndLogout(t *testing.T) {
	out := captureOutput(t)
	tokens := session.NewTokenStore(filepath.Join(t.TempDir(), "token.json"))

	stdin = strings.NewReader("secret-token\n")
	t.Cleanup(func() { stdin = os.Stdin })

	require.NoError(t, LoginCommand(tokens, nil))
	assert.Contains(t, out.String(), "✓ Logged in")

	tok, err := tokens.Load()
	require.NoError(t, err)
	require.NotNil(t, tok)
	assert.Equal(t, "secret-token", tok.AccessToken)

	sess, _ := setupTestCLI(t, session.Options{Tokens: tokens})
	require.NoError(t, RecordCommand(context.Background(), sess, 20, "list", []string{"calls"}))
	require.NotEmpty(t, sess.Calls.Snapshot().Items)

	require.NoError(t, LogoutCommand(context.Background(), sess))
	assert.Empty(t, sess.Calls.Snapshot().Items)

	tok, err = tokens.Load()
	require.NoError(t, err)
	assert.Nil(t, tok)
}

func TestLoginRequiresToken(t *testing.T) {
	captureOutput(t)
	stdin = strings.NewReader("\n")
	t.Cleanup(func() { stdin = os.Stdin })

	err := LoginCommand(session.NewTokenStore(filepath.Join(t.TempDir(), "token.json")), nil)
	assert.ErrorContains(t, err, "token is required")
}

func TestConfigInitAndShow(t *testing.T) {
	out := captureOutput(t)
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := config.DefaultConfig()

	require.NoError(t, ConfigCommand(cfg, path, []string{"init", "--company", "c9", "--cache", "badger"}))
	assert.Contains(t, out.String(), "Configuration saved")

	loaded, err := config.LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "c9", loaded.Scope.CompanyID)
	assert.Equal(t, config.CacheBadger, loaded.Cache.Backend)

	err = ConfigCommand(cfg, path, []string{"init"})
	assert.ErrorContains(t, err, "already exists")

	err = ConfigCommand(cfg, path, []string{"init", "--force", "--cache", "redis"})
	assert.ErrorContains(t, err, "invalid config")

	out.Reset()
	require.NoError(t, ConfigCommand(loaded, path, nil))
	assert.Contains(t, out.String(), `"company_id": "c9"`)
}
