package api

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"prism-board/board"
)

// Sessions keeps one loaded board store per scope.
type Sessions struct {
	gw     board.Gateway
	opts   []board.Option
	logger *log.Logger

	mu     sync.Mutex
	stores map[string]*session
}

type session struct {
	store *board.Store
	once  sync.Once
	err   error
}

func NewSessions(gw board.Gateway, logger *log.Logger, opts ...board.Option) *Sessions {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Sessions{
		gw:     gw,
		opts:   append([]board.Option{board.WithLogger(logger)}, opts...),
		logger: logger,
		stores: make(map[string]*session),
	}
}

// Get returns the store for scope, loading it on first use. A failed load is
// not kept, so the next call retries.
func (s *Sessions) Get(ctx context.Context, scope string) (*board.Store, error) {
	s.mu.Lock()
	sess, ok := s.stores[scope]
	if !ok {
		sess = &session{store: board.NewStore(s.gw, s.opts...)}
		s.stores[scope] = sess
	}
	s.mu.Unlock()

	sess.once.Do(func() {
		_, sess.err = sess.store.Load(ctx, scope)
	})
	if sess.err != nil {
		s.mu.Lock()
		if s.stores[scope] == sess {
			delete(s.stores, scope)
		}
		s.mu.Unlock()
		return nil, sess.err
	}
	return sess.store, nil
}

// Refresh reloads scope if it is held by this instance. It is the handler for
// updates written by other instances.
func (s *Sessions) Refresh(ctx context.Context, scope string) {
	s.mu.Lock()
	sess, ok := s.stores[scope]
	s.mu.Unlock()
	if !ok || sess.store.Scope() != scope {
		return
	}
	if _, err := sess.store.Reload(ctx); err != nil {
		s.logger.WithError(err).WithField("scope", scope).Warn("refresh board")
	}
}

// Len reports how many scopes are loaded.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stores)
}
