// ABOUTME: Tests for the session container and token storage
// ABOUTME: Uses a stub transport and temp directories
package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/harperreed/salesdesk/api"
	"github.com/harperreed/salesdesk/kv"
	"github.com/harperreed/salesdesk/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type transportFunc func(ctx context.Context, req *api.Request) (*api.Response, error)

func (f transportFunc) Do(ctx context.Context, req *api.Request) (*api.Response, error) {
	return f(ctx, req)
}

func listTransport(body string) api.Transport {
	return transportFunc(func(ctx context.Context, req *api.Request) (*api.Response, error) {
		return &api.Response{StatusCode: 200, Body: []byte(body)}, nil
	})
}

func TestTokenStoreRoundTrip(t *testing.T) {
	tokens := NewTokenStore(filepath.Join(t.TempDir(), "nested", "token.json"))

	missing, err := tokens.Load()
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, tokens.Save(&oauth2.Token{AccessToken: "abc", TokenType: "Bearer"}))

	loaded, err := tokens.Load()
	require.NoError(t, err)
	assert.Equal(t, "abc", loaded.AccessToken)

	ts, err := tokens.TokenSource()
	require.NoError(t, err)
	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "abc", tok.AccessToken)

	require.NoError(t, tokens.Delete())
	require.NoError(t, tokens.Delete())
	ts, err = tokens.TokenSource()
	require.NoError(t, err)
	assert.Nil(t, ts)
}

func TestTokenStoreRejectsEmptyToken(t *testing.T) {
	tokens := NewTokenStore(filepath.Join(t.TempDir(), "token.json"))
	assert.Error(t, tokens.Save(&oauth2.Token{}))
}

func TestQueryFillsScope(t *testing.T) {
	s := New(Options{
		Transport: listTransport(`{"result":[]}`),
		Scope:     StaticScope{CompanyID: "c1", Status: "ignored"},
	})

	q := s.Query(models.Query{Status: "open"})
	assert.Equal(t, "c1", q.CompanyID)
	assert.Equal(t, "open", q.Status)

	explicit := s.Query(models.Query{CompanyID: "c2"})
	assert.Equal(t, "c2", explicit.CompanyID)
}

func TestResetClearsStoresAndCache(t *testing.T) {
	cache, err := kv.Open("")
	require.NoError(t, err)
	defer cache.Close()

	s := New(Options{
		Transport: listTransport(`{"result":{"total":1,"currentPage":1,"totalPages":1,"items":[{"_id":"L1","name":"Ada"}]}}`),
		Scope:     StaticScope{CompanyID: "c1"},
		Snapshots: cache,
	})
	ctx := context.Background()

	q := s.Query(models.Query{})
	s.Leads.FetchPage(ctx, q)
	require.Len(t, s.Leads.Snapshot().Items, 1)

	saved, err := cache.LoadPage(ctx, "leads", q.Key())
	require.NoError(t, err)
	require.NotNil(t, saved)

	require.NoError(t, s.Reset(ctx))

	assert.Empty(t, s.Leads.Snapshot().Items)
	saved, err = cache.LoadPage(ctx, "leads", q.Key())
	require.NoError(t, err)
	assert.Nil(t, saved)
}

func TestLogoutDeletesToken(t *testing.T) {
	tokens := NewTokenStore(filepath.Join(t.TempDir(), "token.json"))
	require.NoError(t, tokens.Save(&oauth2.Token{AccessToken: "abc"}))

	s := New(Options{Transport: listTransport(`{}`), Tokens: tokens})
	require.NoError(t, s.Logout(context.Background()))

	tok, err := tokens.Load()
	require.NoError(t, err)
	assert.Nil(t, tok)
}
