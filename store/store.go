// ABOUTME: Entity store that keeps one resource's list, detail view, and request status in sync with the API
// ABOUTME: Reconciles local state after create/update/delete and self-heals after failed bulk deletes
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/harperreed/salesdesk/api"
	"github.com/harperreed/salesdesk/models"
	"go.uber.org/zap"
)

// Backend is the entity API module the store talks to. *api.Resource
// implements it.
type Backend[E models.Entity, D any] interface {
	Name() string
	Scope() models.ScopeRule
	List(ctx context.Context, q models.Query) (*models.PageResult[E], error)
	Get(ctx context.Context, id string, scope models.Query) (*E, *D, error)
	Create(ctx context.Context, payload any) (*E, error)
	Update(ctx context.Context, id string, payload any) (*E, error)
	Delete(ctx context.Context, id string) error
	BulkDelete(ctx context.Context, ids []string) error
	Upload(ctx context.Context, id string, file models.File, progress func(int)) (*models.Attachment, error)
}

type options struct {
	logger    *zap.Logger
	snapshots Snapshotter
	scope     func() models.Query
}

type Option func(*options)

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithSnapshots persists every successful page so Hydrate can show it on the
// next start.
func WithSnapshots(s Snapshotter) Option {
	return func(o *options) {
		o.snapshots = s
	}
}

// WithScope supplies the tenant fields used by FetchByID when the last list
// query did not carry them, e.g. before the first FetchPage.
func WithScope(fn func() models.Query) Option {
	return func(o *options) {
		o.scope = fn
	}
}

// Store is the single source of truth for one resource. All reads go through
// Snapshot or Subscribe; all writes go through the action methods.
//
// Every action replaces the whole State under mu, so observers never see a
// half-applied change. List responses carry a token: only the newest list
// request may write, and ids removed while it was in flight are filtered
// out of its result.
type Store[E models.Entity, D any] struct {
	backend   Backend[E, D]
	logger    *zap.Logger
	snapshots Snapshotter
	scope     func() models.Query

	mu    sync.Mutex
	state State[E, D]

	subs    map[int]func(State[E, D])
	nextSub int

	listToken    uint64
	listCancel   context.CancelFunc
	listInflight int
	detailToken  uint64
	mutating     int
	fetched      bool

	// epoch changes on Reset; late results from an older epoch are dropped.
	epoch uint64

	seq      uint64
	removals []removal
}

type removal struct {
	seq uint64
	ids []string
}

func New[E models.Entity, D any](backend Backend[E, D], opts ...Option) *Store[E, D] {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[E, D]{
		backend:   backend,
		logger:    o.logger.With(zap.String("resource", backend.Name())),
		snapshots: o.snapshots,
		scope:     o.scope,
		subs:      make(map[int]func(State[E, D])),
	}
}

func (s *Store[E, D]) Name() string {
	return s.backend.Name()
}

// Snapshot returns the current state.
func (s *Store[E, D]) Snapshot() State[E, D] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn to receive every published state. fn runs on the
// goroutine that performed the action and must not block. Deliveries from
// concurrent actions may arrive out of order; compare Version to discard
// older ones.
func (s *Store[E, D]) Subscribe(fn func(State[E, D])) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// FetchPage loads one page for q. It never returns an error: failures land
// in State.Error and State.List, and the previous items stay visible.
func (s *Store[E, D]) FetchPage(ctx context.Context, q models.Query) {
	const op = "fetchPage"

	if se := s.checkQuery(op, q); se != nil {
		s.update(func(st *State[E, D]) {
			st.List = RequestState{Status: StatusFailed, Err: se}
			st.Error = se.Message
		})
		s.logger.Debug("rejected list query", zap.String("op", op), zap.Error(se))
		return
	}

	s.mu.Lock()
	if s.listCancel != nil {
		// A newer page supersedes the one still loading.
		s.listCancel()
	}
	s.listToken++
	token := s.listToken
	startSeq := s.seq
	s.listInflight++
	listCtx, cancel := context.WithCancel(ctx)
	s.listCancel = cancel
	next := s.state
	next.List = RequestState{Status: StatusLoading}
	snap, fns := s.commitLocked(next)
	s.mu.Unlock()
	notify(snap, fns)

	page, err := s.backend.List(listCtx, q)
	cancel()

	s.mu.Lock()
	s.listInflight--
	if token != s.listToken {
		s.mu.Unlock()
		s.logger.Debug("dropped superseded list response", zap.String("op", op), zap.Uint64("token", token))
		return
	}
	s.listCancel = nil

	next = s.state
	if err != nil {
		se := backendError(op, err)
		next.List = RequestState{Status: StatusFailed, Err: se}
		next.Error = se.Message
		snap, fns = s.commitLocked(next)
		s.mu.Unlock()
		notify(snap, fns)
		s.logger.Warn("list fetch failed", zap.String("op", op), zap.Error(err))
		return
	}

	items, dropped := s.withoutRemovedLocked(page.Items, startSeq)
	total := page.Total - dropped
	if total < len(items) {
		total = len(items)
	}
	currentPage := page.CurrentPage
	if currentPage > page.TotalPages {
		currentPage = page.TotalPages
	}

	next.Items = items
	next.Total = total
	next.CurrentPage = currentPage
	next.TotalPages = page.TotalPages
	next.Filters = q
	next.Error = ""
	next.List = RequestState{Status: StatusSucceeded}
	s.removals = nil
	s.fetched = true
	snap, fns = s.commitLocked(next)
	s.mu.Unlock()
	notify(snap, fns)

	s.logger.Debug("list fetched",
		zap.String("op", op),
		zap.Int("items", len(items)),
		zap.Int("total", total),
		zap.Int("dropped", dropped),
	)
	s.saveSnapshot(ctx, q, snap)
}

// FetchByID loads one record and its detail projection into Current and
// CurrentDetails. Like FetchPage it reports failure only through State. A
// failed refresh of the record already on screen keeps it; a failed load of
// a different record clears the old one.
//
// The request is scoped by the last list filters, with missing fields taken
// from WithScope. Missing mandatory scope fails before any request.
func (s *Store[E, D]) FetchByID(ctx context.Context, id string) {
	const op = "fetchById"

	if id == "" {
		se := validationError(op, fmt.Errorf("id is required"))
		s.update(func(st *State[E, D]) {
			st.Detail = RequestState{Status: StatusFailed, Err: se}
			st.Error = se.Message
		})
		return
	}

	s.mu.Lock()
	scope := s.detailScopeLocked()
	if err := s.backend.Scope().Check(scope); err != nil {
		se := validationError(op, err)
		next := s.state
		next.Detail = RequestState{Status: StatusFailed, Err: se}
		next.Error = se.Message
		snap, fns := s.commitLocked(next)
		s.mu.Unlock()
		notify(snap, fns)
		s.logger.Debug("rejected detail fetch", zap.String("op", op), zap.String("id", id), zap.Error(se))
		return
	}
	s.detailToken++
	token := s.detailToken
	next := s.state
	next.Detail = RequestState{Status: StatusLoading}
	snap, fns := s.commitLocked(next)
	s.mu.Unlock()
	notify(snap, fns)

	entity, details, err := s.backend.Get(ctx, id, scope)

	s.mu.Lock()
	if token != s.detailToken {
		s.mu.Unlock()
		s.logger.Debug("dropped superseded detail response", zap.String("op", op), zap.String("id", id))
		return
	}

	next = s.state
	if err != nil {
		se := backendError(op, err)
		next.Detail = RequestState{Status: StatusFailed, Err: se}
		next.Error = se.Message
		if next.Current != nil && (*next.Current).EntityID() != id {
			next.Current = nil
			next.CurrentDetails = nil
		}
		snap, fns = s.commitLocked(next)
		s.mu.Unlock()
		notify(snap, fns)
		s.logger.Warn("detail fetch failed", zap.String("op", op), zap.String("id", id), zap.Error(err))
		return
	}

	next.Current = entity
	next.CurrentDetails = details
	next.Detail = RequestState{Status: StatusSucceeded}
	snap, fns = s.commitLocked(next)
	s.mu.Unlock()
	notify(snap, fns)
}

// Create posts payload and appends the created record to Items. Total grows
// by one; CurrentPage and TotalPages are left alone even though the new
// record may belong on another page.
func (s *Store[E, D]) Create(ctx context.Context, payload any) (*E, error) {
	const op = "create"

	epoch := s.beginMutation()
	entity, err := s.backend.Create(ctx, payload)

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return entity, err
	}
	next := s.state
	if err != nil {
		se := backendError(op, err)
		s.finishMutationLocked(&next, se)
		snap, fns := s.commitLocked(next)
		s.mu.Unlock()
		notify(snap, fns)
		s.logger.Warn("create failed", zap.String("op", op), zap.Error(err))
		return nil, se
	}

	id := (*entity).EntityID()
	if idx := indexOf(next.Items, id); idx >= 0 {
		// A concurrent fetch already brought it in.
		next.Items = replaceAt(next.Items, idx, *entity)
	} else {
		items := make([]E, 0, len(next.Items)+1)
		items = append(items, next.Items...)
		next.Items = append(items, *entity)
		next.Total++
	}
	s.finishMutationLocked(&next, nil)
	snap, fns := s.commitLocked(next)
	s.mu.Unlock()
	notify(snap, fns)

	s.logger.Info("created", zap.String("op", op), zap.String("id", id))
	return entity, nil
}

// Update sends payload for id, replaces the matching item and, when id is
// the current record, replaces Current and re-fetches its details.
func (s *Store[E, D]) Update(ctx context.Context, id string, payload any) (*E, error) {
	const op = "update"

	if id == "" {
		se := validationError(op, fmt.Errorf("id is required"))
		s.update(func(st *State[E, D]) { st.Error = se.Message })
		return nil, se
	}

	epoch := s.beginMutation()
	entity, err := s.backend.Update(ctx, id, payload)
	if err == nil && (entity == nil || (*entity).EntityID() == "") {
		// The server did not echo the record; read it back.
		fresh, _, getErr := s.backend.Get(ctx, id, s.Snapshot().Filters.Scope())
		if getErr != nil {
			s.logger.Warn("could not read back updated record", zap.String("op", op), zap.String("id", id), zap.Error(getErr))
		}
		entity = fresh
	}

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return entity, err
	}
	next := s.state
	if err != nil {
		se := backendError(op, err)
		s.finishMutationLocked(&next, se)
		snap, fns := s.commitLocked(next)
		s.mu.Unlock()
		notify(snap, fns)
		s.logger.Warn("update failed", zap.String("op", op), zap.String("id", id), zap.Error(err))
		return nil, se
	}

	isCurrent := next.Current != nil && (*next.Current).EntityID() == id
	if entity != nil {
		if idx := indexOf(next.Items, id); idx >= 0 {
			next.Items = replaceAt(next.Items, idx, *entity)
		}
		if isCurrent {
			current := *entity
			next.Current = &current
		}
	}
	s.finishMutationLocked(&next, nil)
	snap, fns := s.commitLocked(next)
	s.mu.Unlock()
	notify(snap, fns)

	if isCurrent {
		// Partial payloads rarely carry the aggregates in the details.
		s.FetchByID(ctx, id)
	}
	s.logger.Info("updated", zap.String("op", op), zap.String("id", id))
	return entity, nil
}

// Remove deletes id. The record must be in Items; otherwise it fails locally
// without a network call. The returned bool is true on success.
func (s *Store[E, D]) Remove(ctx context.Context, id string) (bool, error) {
	const op = "remove"

	s.mu.Lock()
	if id == "" || indexOf(s.state.Items, id) < 0 {
		se := notFoundError(op, id)
		next := s.state
		next.Error = se.Message
		snap, fns := s.commitLocked(next)
		s.mu.Unlock()
		notify(snap, fns)
		return false, se
	}
	epoch := s.epoch
	s.mutating++
	next := s.state
	next.Mutate = RequestState{Status: StatusLoading}
	snap, fns := s.commitLocked(next)
	s.mu.Unlock()
	notify(snap, fns)

	err := s.backend.Delete(ctx, id)

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return err == nil, err
	}
	next = s.state
	if err != nil {
		se := transportError(op, err)
		s.finishMutationLocked(&next, se)
		snap, fns = s.commitLocked(next)
		s.mu.Unlock()
		notify(snap, fns)
		s.logger.Warn("remove failed", zap.String("op", op), zap.String("id", id), zap.Error(err))
		return false, se
	}

	if idx := indexOf(next.Items, id); idx >= 0 {
		next.Items = removeAt(next.Items, idx)
		next.Total = decrement(next.Total, 1)
	}
	if next.Current != nil && (*next.Current).EntityID() == id {
		next.Current = nil
		next.CurrentDetails = nil
	}
	s.recordRemovalLocked([]string{id})
	s.finishMutationLocked(&next, nil)
	snap, fns = s.commitLocked(next)
	s.mu.Unlock()
	notify(snap, fns)

	s.logger.Info("removed", zap.String("op", op), zap.String("id", id))
	return true, nil
}

// BulkRemove deletes ids in one request. Ids are compared against every
// alias a record carries. When the request fails the store re-runs the last
// list query so Items matches the server again, then returns the error.
func (s *Store[E, D]) BulkRemove(ctx context.Context, ids []string) error {
	const op = "bulkRemove"

	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		se := validationError(op, ErrEmptySelection)
		s.update(func(st *State[E, D]) { st.Error = se.Message })
		return se
	}

	epoch := s.beginMutation()
	err := s.backend.BulkDelete(ctx, ids)

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return err
	}
	next := s.state
	if err != nil {
		se := transportError(op, err)
		s.finishMutationLocked(&next, se)
		filters, fetched := next.Filters, s.fetched
		snap, fns := s.commitLocked(next)
		s.mu.Unlock()
		notify(snap, fns)

		s.logger.Warn("bulk remove failed, refetching", zap.String("op", op), zap.Strings("ids", ids), zap.Error(err))
		if fetched {
			s.FetchPage(ctx, filters)
			// The refetch clears Error on success; the failure still stands.
			s.update(func(st *State[E, D]) { st.Error = se.Message })
		}
		return se
	}

	next.Items = removeMatching(next.Items, ids)
	next.Total = decrement(next.Total, len(ids))
	if next.Current != nil && matchesAny(*next.Current, ids) {
		next.Current = nil
		next.CurrentDetails = nil
	}
	s.recordRemovalLocked(ids)
	s.finishMutationLocked(&next, nil)
	snap, fns := s.commitLocked(next)
	s.mu.Unlock()
	notify(snap, fns)

	s.logger.Info("bulk removed", zap.String("op", op), zap.Int("count", len(ids)))
	return nil
}

// Upload attaches file to record id and tracks its progress under file.Name.
// The entry ends at 100 on success and is removed on failure.
func (s *Store[E, D]) Upload(ctx context.Context, id string, file models.File) (*models.Attachment, error) {
	const op = "upload"

	if id == "" || file.Name == "" || file.Data == nil {
		se := validationError(op, fmt.Errorf("record id, file name and data are required"))
		s.update(func(st *State[E, D]) { st.Error = se.Message })
		return nil, se
	}

	epoch := s.beginMutation()
	s.update(func(st *State[E, D]) {
		st.UploadProgress = withProgress(st.UploadProgress, file.Name, 0)
	})

	attachment, err := s.backend.Upload(ctx, id, file, func(pct int) {
		s.setProgress(file.Name, pct)
	})

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return attachment, err
	}
	next := s.state
	if err != nil {
		se := backendError(op, err)
		next.UploadProgress = withoutProgress(next.UploadProgress, file.Name)
		s.finishMutationLocked(&next, se)
		snap, fns := s.commitLocked(next)
		s.mu.Unlock()
		notify(snap, fns)
		s.logger.Warn("upload failed", zap.String("op", op), zap.String("id", id), zap.String("file", file.Name), zap.Error(err))
		return nil, se
	}

	next.UploadProgress = withProgress(next.UploadProgress, file.Name, 100)
	isCurrent := next.Current != nil && (*next.Current).EntityID() == id
	s.finishMutationLocked(&next, nil)
	snap, fns := s.commitLocked(next)
	s.mu.Unlock()
	notify(snap, fns)

	if isCurrent {
		s.FetchByID(ctx, id)
	}
	return attachment, nil
}

// ClearUploadProgress drops the progress entry for name.
func (s *Store[E, D]) ClearUploadProgress(name string) {
	s.update(func(st *State[E, D]) {
		st.UploadProgress = withoutProgress(st.UploadProgress, name)
	})
}

// SetCurrent selects a record without fetching it. Details are cleared when
// the selection changes to a different record.
func (s *Store[E, D]) SetCurrent(entity *E) {
	s.update(func(st *State[E, D]) {
		if entity == nil {
			st.Current = nil
			st.CurrentDetails = nil
			return
		}
		if st.Current == nil || (*st.Current).EntityID() != (*entity).EntityID() {
			st.CurrentDetails = nil
		}
		current := *entity
		st.Current = &current
	})
}

// ResetError clears Error and nothing else.
func (s *Store[E, D]) ResetError() {
	s.update(func(st *State[E, D]) { st.Error = "" })
}

// Reset returns the store to its initial state, cancelling any list request
// in flight. Results of requests started before Reset are discarded.
func (s *Store[E, D]) Reset() {
	s.mu.Lock()
	if s.listCancel != nil {
		s.listCancel()
		s.listCancel = nil
	}
	s.listToken++
	s.detailToken++
	s.epoch++
	s.mutating = 0
	s.fetched = false
	s.removals = nil
	snap, fns := s.commitLocked(State[E, D]{})
	s.mu.Unlock()
	notify(snap, fns)
}

func (s *Store[E, D]) detailScopeLocked() models.Query {
	scope := s.state.Filters.Scope()
	if s.scope == nil {
		return scope
	}
	return scope.WithDefaults(s.scope())
}

func (s *Store[E, D]) checkQuery(op string, q models.Query) *Error {
	if err := s.backend.Scope().Check(q); err != nil {
		return validationError(op, err)
	}
	if q.Page < 0 || q.Limit < 0 {
		return validationError(op, fmt.Errorf("%w: page and limit must be positive", ErrInvalidQuery))
	}
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return validationError(op, fmt.Errorf("%w: date range ends before it starts", ErrInvalidQuery))
	}
	return nil
}

func (s *Store[E, D]) beginMutation() uint64 {
	s.mu.Lock()
	s.mutating++
	epoch := s.epoch
	next := s.state
	next.Mutate = RequestState{Status: StatusLoading}
	snap, fns := s.commitLocked(next)
	s.mu.Unlock()
	notify(snap, fns)
	return epoch
}

// finishMutationLocked records one mutation's outcome. Mutate stays Loading
// while other mutations are still in flight.
func (s *Store[E, D]) finishMutationLocked(next *State[E, D], se *Error) {
	if s.mutating > 0 {
		s.mutating--
	}
	var err error
	if se != nil {
		err = se
		next.Error = se.Message
	}
	switch {
	case s.mutating > 0:
		next.Mutate = RequestState{Status: StatusLoading, Err: err}
	case se != nil:
		next.Mutate = RequestState{Status: StatusFailed, Err: err}
	default:
		next.Mutate = RequestState{Status: StatusSucceeded}
	}
}

// recordRemovalLocked remembers removed ids while a list request is in
// flight so its (possibly older) result cannot bring them back.
func (s *Store[E, D]) recordRemovalLocked(ids []string) {
	s.seq++
	if s.listInflight == 0 {
		return
	}
	s.removals = append(s.removals, removal{seq: s.seq, ids: ids})
}

func (s *Store[E, D]) withoutRemovedLocked(items []E, since uint64) ([]E, int) {
	var ids []string
	for _, r := range s.removals {
		if r.seq > since {
			ids = append(ids, r.ids...)
		}
	}
	if len(ids) == 0 {
		return items, 0
	}
	kept := removeMatching(items, ids)
	return kept, len(items) - len(kept)
}

func (s *Store[E, D]) setProgress(name string, pct int) {
	s.update(func(st *State[E, D]) {
		current, ok := st.UploadProgress[name]
		if !ok || pct <= current {
			return
		}
		st.UploadProgress = withProgress(st.UploadProgress, name, pct)
	})
}

// update applies fn to a copy of the state and publishes it.
func (s *Store[E, D]) update(fn func(st *State[E, D])) {
	s.mu.Lock()
	next := s.state
	fn(&next)
	snap, fns := s.commitLocked(next)
	s.mu.Unlock()
	notify(snap, fns)
}

func (s *Store[E, D]) commitLocked(next State[E, D]) (State[E, D], []func(State[E, D])) {
	next.Version = s.state.Version + 1
	s.state = next
	fns := make([]func(State[E, D]), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	return next, fns
}

func notify[E models.Entity, D any](st State[E, D], fns []func(State[E, D])) {
	for _, fn := range fns {
		fn(st)
	}
}

// backendError classifies a failure from a mutation call. Anything that is
// not a transport or server error was rejected locally by the API module.
func backendError(op string, err error) *Error {
	var apiErr *api.Error
	if errors.As(err, &apiErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return transportError(op, err)
	}
	return validationError(op, err)
}

func indexOf[E models.Entity](items []E, id string) int {
	for i, item := range items {
		if item.EntityID() == id {
			return i
		}
	}
	return -1
}

func replaceAt[E any](items []E, idx int, item E) []E {
	out := make([]E, len(items))
	copy(out, items)
	out[idx] = item
	return out
}

func removeAt[E any](items []E, idx int) []E {
	out := make([]E, 0, len(items)-1)
	out = append(out, items[:idx]...)
	return append(out, items[idx+1:]...)
}

func removeMatching[E models.Entity](items []E, ids []string) []E {
	out := make([]E, 0, len(items))
	for _, item := range items {
		if !matchesAny(item, ids) {
			out = append(out, item)
		}
	}
	return out
}

func matchesAny[E models.Entity](item E, ids []string) bool {
	for _, id := range ids {
		if item.Matches(id) {
			return true
		}
	}
	return false
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func decrement(total, n int) int {
	total -= n
	if total < 0 {
		return 0
	}
	return total
}

func withProgress(m map[string]int, name string, pct int) map[string]int {
	out := make(map[string]int, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[name] = pct
	return out
}

func withoutProgress(m map[string]int, name string) map[string]int {
	if _, ok := m[name]; !ok {
		return m
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		if k != name {
			out[k] = v
		}
	}
	return out
}
