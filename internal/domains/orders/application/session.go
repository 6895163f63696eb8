package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/Apurer/vendor-orders/internal/domains/orders/domain"
	"github.com/Apurer/vendor-orders/internal/domains/orders/ports"
)

// SessionMetrics receives lifecycle events of live sessions.
type SessionMetrics interface {
	SessionStarted()
	SessionStopped()
	SnapshotReceived(collection domain.Collection)
	AggregateRebuilt()
	StaleCallback()
	SubscriptionFailed(collection domain.Collection)
}

type noopSessionMetrics struct{}

func (noopSessionMetrics) SessionStarted() {}
func (noopSessionMetrics) SessionStopped() {}
func (noopSessionMetrics) SnapshotReceived(domain.Collection) {}
func (noopSessionMetrics) AggregateRebuilt() {}
func (noopSessionMetrics) StaleCallback() {}
func (noopSessionMetrics) SubscriptionFailed(domain.Collection) {}

// SessionState is an immutable copy of what a live session displays.
type SessionState struct {
	OwnerID      string
	Active       bool
	Loaded       bool
	Orders       []domain.Order
	Summary      domain.Summary
	Query        domain.Query
	EmptyMessage string
	Err          error
	Generation   uint64
}

// Session holds the live order state of one signed-in owner. Both record
// streams are subscribed on Start; every snapshot replaces the previous one
// from the same stream and the aggregate is rebuilt from the latest of both.
// Callbacks from a stopped session are dropped.
type Session struct {
	gateway ports.Gateway
	catalog *domain.Catalog
	logger  *slog.Logger
	metrics SessionMetrics

	// notifyMu serializes state changes with their listener delivery so
	// listeners observe states in order. Listeners must not mutate the session.
	notifyMu sync.Mutex
	mu       sync.Mutex

	generation   uint64
	ownerID      string
	active       bool
	items        []domain.ItemRecord
	payments     []domain.PaymentRecord
	haveItems    bool
	havePayments bool
	orders       []domain.Order
	query        domain.Query
	err          error
	unsubscribe  []ports.Unsubscribe

	listenersMu  sync.Mutex
	listeners    map[int]func(SessionState)
	nextListener int
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionCatalog overrides the built-in catalog.
func WithSessionCatalog(c *domain.Catalog) SessionOption {
	return func(s *Session) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithSessionLogger injects a slog logger.
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSessionMetrics injects a metrics sink.
func WithSessionMetrics(m SessionMetrics) SessionOption {
	return func(s *Session) {
		if m != nil {
			s.metrics = m
		}
	}
}

func NewSession(gateway ports.Gateway, opts ...SessionOption) *Session {
	s := &Session{
		gateway:   gateway,
		catalog:   domain.DefaultCatalog(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics:   noopSessionMetrics{},
		query:     domain.Query{Sort: domain.DefaultSort},
		listeners: map[int]func(SessionState){},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Start tears down any running session and subscribes both streams for ownerID.
// A failure to attach a stream leaves the session in the failed state and is
// also returned.
func (s *Session) Start(ctx context.Context, ownerID string) error {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return mapError(domain.ErrMissingOwner)
	}
	s.Stop()

	s.notifyMu.Lock()
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.ownerID = ownerID
	s.active = true
	s.resetLocked()
	state := s.stateLocked()
	s.mu.Unlock()
	s.metrics.SessionStarted()
	s.logger.InfoContext(ctx, "order session started", slog.String("owner.id", ownerID), slog.Uint64("session.generation", gen))
	s.deliver(state)
	s.notifyMu.Unlock()

	filter := ports.Filter{OwnerID: ownerID}
	unsubItems, err := s.gateway.SubscribeItems(ctx, filter,
		func(records []domain.ItemRecord) { s.applyItems(gen, records) },
		func(err error) { s.fail(gen, domain.CollectionItems, err) },
	)
	if err != nil {
		s.fail(gen, domain.CollectionItems, err)
		return fmt.Errorf("%w: %w", ErrSubscriptionFailure, err)
	}
	unsubPayments, err := s.gateway.SubscribePayments(ctx, filter,
		func(records []domain.PaymentRecord) { s.applyPayments(gen, records) },
		func(err error) { s.fail(gen, domain.CollectionPayments, err) },
	)
	if err != nil {
		unsubItems()
		s.fail(gen, domain.CollectionPayments, err)
		return fmt.Errorf("%w: %w", ErrSubscriptionFailure, err)
	}

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		unsubItems()
		unsubPayments()
		return nil
	}
	s.unsubscribe = []ports.Unsubscribe{unsubItems, unsubPayments}
	s.mu.Unlock()
	return nil
}

// Stop unsubscribes both streams and discards the session's records and
// aggregates. It is a no-op when no session is running.
func (s *Session) Stop() {
	s.notifyMu.Lock()
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		s.notifyMu.Unlock()
		return
	}
	s.generation++
	owner := s.ownerID
	unsubs := s.unsubscribe
	s.unsubscribe = nil
	s.active = false
	s.ownerID = ""
	s.resetLocked()
	state := s.stateLocked()
	s.mu.Unlock()
	s.deliver(state)
	s.notifyMu.Unlock()

	// Callbacks already in flight see the bumped generation and are dropped.
	for _, unsubscribe := range unsubs {
		if unsubscribe != nil {
			unsubscribe()
		}
	}
	s.metrics.SessionStopped()
	s.logger.Info("order session stopped", slog.String("owner.id", owner))
}

// State returns the current view, summary and status.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// SetSearch changes the filter term and returns the new state.
func (s *Session) SetSearch(term string) SessionState {
	return s.update(func() { s.query.Search = term })
}

// SetSort replaces the sort specification.
func (s *Session) SetSort(spec domain.SortSpec) SessionState {
	return s.update(func() { s.query.Sort = spec })
}

// ToggleSort applies a click on the criteria's sort control.
func (s *Session) ToggleSort(criteria domain.SortCriteria) SessionState {
	return s.update(func() { s.query.Sort = domain.NextSort(s.query.Sort, criteria) })
}

// OnChange registers fn to receive every new state. The returned func
// unregisters it.
func (s *Session) OnChange(fn func(SessionState)) func() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Session) update(mutate func()) SessionState {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.mu.Lock()
	mutate()
	state := s.stateLocked()
	s.mu.Unlock()
	s.deliver(state)
	return state
}

func (s *Session) applyItems(gen uint64, records []domain.ItemRecord) {
	copied := append([]domain.ItemRecord(nil), records...)
	s.apply(gen, domain.CollectionItems, func() {
		s.items = copied
		s.haveItems = true
	})
}

func (s *Session) applyPayments(gen uint64, records []domain.PaymentRecord) {
	copied := append([]domain.PaymentRecord(nil), records...)
	s.apply(gen, domain.CollectionPayments, func() {
		s.payments = copied
		s.havePayments = true
	})
}

func (s *Session) apply(gen uint64, collection domain.Collection, store func()) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		s.metrics.StaleCallback()
		s.logger.Debug("dropping snapshot from stopped session", slog.String("collection", string(collection)))
		return
	}
	store()
	s.orders = domain.OrderList(domain.Aggregate(s.items, s.payments))
	state := s.stateLocked()
	s.mu.Unlock()

	s.metrics.SnapshotReceived(collection)
	s.metrics.AggregateRebuilt()
	s.deliver(state)
}

func (s *Session) fail(gen uint64, collection domain.Collection, err error) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		s.metrics.StaleCallback()
		return
	}
	s.err = fmt.Errorf("%w: %s: %w", ErrSubscriptionFailure, collection, err)
	owner := s.ownerID
	state := s.stateLocked()
	s.mu.Unlock()

	s.metrics.SubscriptionFailed(collection)
	s.logger.Error("order stream failed",
		slog.String("owner.id", owner), slog.String("collection", string(collection)), slog.String("error", err.Error()))
	s.deliver(state)
}

func (s *Session) resetLocked() {
	s.items = nil
	s.payments = nil
	s.haveItems = false
	s.havePayments = false
	s.orders = nil
	s.err = nil
}

func (s *Session) stateLocked() SessionState {
	view := domain.View(s.orders, s.query, s.catalog)
	for i := range view {
		view[i] = view[i].Clone()
	}
	state := SessionState{
		OwnerID:    s.ownerID,
		Active:     s.active,
		Loaded:     s.haveItems && s.havePayments,
		Orders:     view,
		Summary:    domain.Summarize(s.orders, s.catalog),
		Query:      s.query,
		Err:        s.err,
		Generation: s.generation,
	}
	if len(view) == 0 {
		state.EmptyMessage = domain.EmptyMessage(s.query.Search)
	}
	return state
}

func (s *Session) deliver(state SessionState) {
	s.listenersMu.Lock()
	listeners := make([]func(SessionState), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.listenersMu.Unlock()
	for _, fn := range listeners {
		fn(state)
	}
}
