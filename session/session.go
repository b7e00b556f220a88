// ABOUTME: Per-session container for the four entity stores and their collaborators
// ABOUTME: Built once at startup, reset on logout, and closed on exit
package session

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/harperreed/salesdesk/api"
	"github.com/harperreed/salesdesk/config"
	"github.com/harperreed/salesdesk/db"
	"github.com/harperreed/salesdesk/kv"
	"github.com/harperreed/salesdesk/models"
	"github.com/harperreed/salesdesk/store"
	"go.uber.org/zap"
)

// ScopeProvider supplies the tenant fields (companyId, leadId) that list
// and detail calls need. The stores never discover them on their own.
type ScopeProvider interface {
	Scope() models.Query
}

// StaticScope is a ScopeProvider with fixed values.
type StaticScope models.Query

func (s StaticScope) Scope() models.Query {
	return models.Query(s).Scope()
}

type Options struct {
	Transport api.Transport
	Scope     ScopeProvider
	Logger    *zap.Logger
	Snapshots store.Snapshotter
	Tokens    *TokenStore
}

type Session struct {
	Meetings *store.Store[models.Meeting, models.Details]
	Leads    *store.Store[models.Lead, models.Details]
	Calls    *store.Store[models.Call, models.Details]
	Tasks    *store.Store[models.Task, models.Details]

	scope     ScopeProvider
	logger    *zap.Logger
	snapshots store.Snapshotter
	tokens    *TokenStore
	closers   []io.Closer
}

func New(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	scope := opts.Scope
	if scope == nil {
		scope = StaticScope{}
	}

	storeOpts := []store.Option{store.WithLogger(logger), store.WithScope(scope.Scope)}
	if opts.Snapshots != nil {
		storeOpts = append(storeOpts, store.WithSnapshots(opts.Snapshots))
	}

	return &Session{
		Meetings:  store.New[models.Meeting, models.Details](api.Meetings(opts.Transport), storeOpts...),
		Leads:     store.New[models.Lead, models.Details](api.Leads(opts.Transport), storeOpts...),
		Calls:     store.New[models.Call, models.Details](api.Calls(opts.Transport), storeOpts...),
		Tasks:     store.New[models.Task, models.Details](api.Tasks(opts.Transport), storeOpts...),
		scope:     scope,
		logger:    logger,
		snapshots: opts.Snapshots,
		tokens:    opts.Tokens,
	}
}

// Open builds a session from configuration: the saved token, the HTTP
// transport, and the configured page cache.
func Open(cfg *config.Config, logger *zap.Logger) (*Session, error) {
	tokens := NewTokenStore(TokenPath())
	ts, err := tokens.TokenSource()
	if err != nil {
		return nil, err
	}

	transportOpts := []api.Option{
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithMaxRetries(cfg.API.MaxRetries),
	}
	if ts != nil {
		transportOpts = append(transportOpts, api.WithTokenSource(ts))
	}

	snapshots, closer, err := openCache(cfg)
	if err != nil {
		// The cache is an optimization; run without it.
		logger.Warn("page cache unavailable", zap.String("backend", cfg.Cache.Backend), zap.Error(err))
		snapshots, closer = nil, nil
	}

	s := New(Options{
		Transport: api.NewHTTPTransport(cfg.API.BaseURL, transportOpts...),
		Scope:     StaticScope{CompanyID: cfg.Scope.CompanyID, LeadID: cfg.Scope.LeadID},
		Logger:    logger,
		Snapshots: snapshots,
		Tokens:    tokens,
	})
	if closer != nil {
		s.closers = append(s.closers, closer)
	}
	return s, nil
}

func openCache(cfg *config.Config) (store.Snapshotter, io.Closer, error) {
	switch cfg.Cache.Backend {
	case config.CacheSQLite:
		conn, err := db.OpenDatabase(cfg.CachePath())
		if err != nil {
			return nil, nil, err
		}
		return db.NewSnapshotRepository(conn), conn, nil
	case config.CacheBadger:
		cache, err := kv.Open(cfg.CachePath())
		if err != nil {
			return nil, nil, err
		}
		return cache, cache, nil
	default:
		return nil, nil, nil
	}
}

// Scope returns the current tenant fields.
func (s *Session) Scope() models.Query {
	return s.scope.Scope()
}

// Query fills the scoping fields q leaves empty from the session scope.
func (s *Session) Query(q models.Query) models.Query {
	return q.WithDefaults(s.Scope())
}

func (s *Session) Logger() *zap.Logger {
	return s.logger
}

// Reset clears every store and the page cache.
func (s *Session) Reset(ctx context.Context) error {
	s.Meetings.Reset()
	s.Leads.Reset()
	s.Calls.Reset()
	s.Tasks.Reset()

	if s.snapshots != nil {
		if err := s.snapshots.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear page cache: %w", err)
		}
	}
	return nil
}

// Logout resets the session and deletes the saved token.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.Reset(ctx); err != nil {
		return err
	}
	if s.tokens != nil {
		return s.tokens.Delete()
	}
	return nil
}

func (s *Session) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
