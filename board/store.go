package board

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"prism-board/domain"
)

const defaultReloadTimeout = 15 * time.Second

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for observability events.
func WithLogger(logger *log.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides how provisional ids are minted.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// WithDefaultColumn sets the column used for drafts that do not name one.
func WithDefaultColumn(col domain.ColumnID) Option {
	return func(s *Store) {
		if col.Valid() {
			s.defaultColumn = col
		}
	}
}

// WithRollbackFailedCreates removes optimistic inserts whose persistence failed
// instead of leaving them on the board flagged as unsynced.
func WithRollbackFailedCreates(enabled bool) Option {
	return func(s *Store) { s.rollbackCreates = enabled }
}

// WithSiblingPersistence patches every sibling whose position drifted from the
// gateway after a committed move or delete.
func WithSiblingPersistence(enabled bool) Option {
	return func(s *Store) { s.persistSiblings = enabled }
}

// WithReloadTimeout bounds the resynchronization that follows a failed write.
func WithReloadTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.reloadTimeout = d
		}
	}
}

type slot struct {
	column   domain.ColumnID
	position int
}

// Store is the in-memory source of truth for one board scope. Mutations apply
// locally first and are then persisted through the Gateway with the lock released.
type Store struct {
	gw              Gateway
	logger          *log.Logger
	now             func() time.Time
	newID           func() string
	defaultColumn   domain.ColumnID
	rollbackCreates bool
	persistSiblings bool
	reloadTimeout   time.Duration

	mu        sync.Mutex
	scope     string
	loaded    bool
	board     domain.Board
	persisted map[string]slot
	dirty     map[domain.ColumnID]struct{}
	unsynced  map[string]struct{}
	subs      map[int]func(domain.Board)
	nextSub   int
}

// NewStore creates an empty store backed by gw.
func NewStore(gw Gateway, opts ...Option) *Store {
	s := &Store{
		gw:            gw,
		logger:        log.StandardLogger(),
		now:           time.Now,
		newID:         func() string { return uuid.NewString() },
		defaultColumn: domain.DefaultColumn,
		reloadTimeout: defaultReloadTimeout,
		board:         domain.Board{},
		persisted:     map[string]slot{},
		dirty:         map[domain.ColumnID]struct{}{},
		unsynced:      map[string]struct{}{},
		subs:          map[int]func(domain.Board){},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scope returns the currently loaded scope, or "" before the first Load.
func (s *Store) Scope() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope
}

// Snapshot returns a deep copy of the board.
func (s *Store) Snapshot() domain.Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Clone()
}

// Task returns a copy of the task with the given id.
func (s *Store) Task(id string) (domain.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.board.Task(id)
	return t.Clone(), ok
}

// Unsynced reports whether id is an optimistic insert the gateway has not confirmed.
func (s *Store) Unsynced(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.unsynced[id]
	return ok
}

// Subscribe registers fn to receive a copy of the board after every change.
// Callbacks run outside the store lock; the returned func unregisters fn.
func (s *Store) Subscribe(fn func(domain.Board)) func() {
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

// commitLocked installs next as the board and returns what publish needs.
// Callers must hold s.mu.
func (s *Store) commitLocked(next domain.Board) (domain.Board, []func(domain.Board)) {
	s.board = next
	subs := make([]func(domain.Board), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	return s.board, subs
}

func publish(b domain.Board, subs []func(domain.Board)) {
	for _, fn := range subs {
		fn(b.Clone())
	}
}

// Load replaces the board with the gateway's view of scope.
func (s *Store) Load(ctx context.Context, scope string) (domain.Board, error) {
	m, ctx := startOp(ctx, s.logger, "load", scope, "")
	start := time.Now()
	tasks, err := s.gw.ListTasks(ctx, scope)
	m.ObserveGateway(time.Since(start))
	if err != nil {
		ferr := &domain.FetchError{Scope: scope, Err: err}
		m.SetErrorStage("fetch")
		m.End(ferr)
		return s.Snapshot(), ferr
	}

	b := domain.GroupTasks(tasks)
	persisted := make(map[string]slot, len(tasks))
	for _, t := range tasks {
		col := t.ColumnID
		if col == "" {
			col = domain.DefaultColumn
		}
		persisted[t.ID] = slot{column: col, position: t.Position}
	}

	s.mu.Lock()
	s.scope = scope
	s.loaded = true
	s.persisted = persisted
	s.dirty = map[domain.ColumnID]struct{}{}
	s.unsynced = map[string]struct{}{}
	snap, subs := s.commitLocked(b)
	out := snap.Clone()
	s.mu.Unlock()

	publish(snap, subs)
	m.SetTasks(len(tasks))
	m.End(nil)
	return out, nil
}

// Reload loads the current scope again.
func (s *Store) Reload(ctx context.Context) (domain.Board, error) {
	s.mu.Lock()
	scope, loaded := s.scope, s.loaded
	s.mu.Unlock()
	if !loaded {
		return domain.Board{}.Clone(), domain.ErrNoScope
	}
	return s.Load(ctx, scope)
}

// Create appends a task built from d to its column and persists it.
func (s *Store) Create(ctx context.Context, d domain.Draft) (domain.Task, error) {
	if err := d.Validate(); err != nil {
		return domain.Task{}, err
	}

	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return domain.Task{}, domain.ErrNoScope
	}
	if d.ColumnID == "" {
		d.ColumnID = s.defaultColumn
	}
	scope := s.scope
	task := domain.NewTask(d, scope, s.now())
	task.ID = s.newID()
	task.Position = s.board.NextPosition(task.ColumnID)
	s.unsynced[task.ID] = struct{}{}
	snap, subs := s.commitLocked(s.board.Append(task))
	s.mu.Unlock()
	publish(snap, subs)

	m, ctx := startOp(ctx, s.logger, "create", scope, task.ID)
	start := time.Now()
	saved, err := s.gw.InsertTask(ctx, scope, task.Clone())
	m.ObserveGateway(time.Since(start))
	if err != nil {
		perr := &domain.PersistenceError{Op: "create", TaskID: task.ID, Err: err}
		m.SetErrorStage("persist")
		if s.rollbackCreates {
			s.mu.Lock()
			delete(s.unsynced, task.ID)
			var subs []func(domain.Board)
			var snap domain.Board
			if next, _, ok := s.board.Remove(task.ID); ok && s.scope == scope {
				snap, subs = s.commitLocked(next)
			}
			s.mu.Unlock()
			publish(snap, subs)
		}
		m.End(perr)
		return task, perr
	}

	s.mu.Lock()
	result := saved
	var pubSubs []func(domain.Board)
	var pubSnap domain.Board
	if s.scope == scope {
		delete(s.unsynced, task.ID)
		if next, ok := s.board.Replace(task.ID, saved); ok {
			pubSnap, pubSubs = s.commitLocked(next)
			result, _ = next.Task(saved.ID)
		}
		s.persisted[saved.ID] = slot{column: saved.ColumnID, position: saved.Position}
	}
	result = result.Clone()
	s.mu.Unlock()
	publish(pubSnap, pubSubs)

	m.End(nil)
	return result, nil
}

// Update applies p to the task. A column or position change relocates the task
// and renumbers the affected columns.
func (s *Store) Update(ctx context.Context, id string, p domain.Patch) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return domain.ErrNoScope
	}
	current, ok := s.board.Task(id)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("update %s: %w", id, domain.ErrTaskNotFound)
	}
	scope := s.scope
	now := s.now()

	next := s.board
	var affected []domain.ColumnID
	fields := p
	fields.ColumnID, fields.Position = nil, nil
	if p.ColumnID != nil || p.Position != nil {
		col := current.ColumnID
		if p.ColumnID != nil {
			col = *p.ColumnID
		}
		index := domain.AppendIndex
		if p.Position != nil {
			index = *p.Position - 1
		} else if col == current.ColumnID {
			index = current.Position - 1
		}
		moved, res, err := domain.ApplyMove(next, id, col, index)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		next = moved
		affected = res.Affected()
		fields.ColumnID = &res.Task.ColumnID
		pos := res.Task.Position
		fields.Position = &pos
	}
	fields.UpdatedAt = &now
	updated, _ := next.Task(id)
	next, _ = next.Replace(id, fields.Apply(updated))
	snap, subs := s.commitLocked(next)
	s.mu.Unlock()
	publish(snap, subs)

	m, ctx := startOp(ctx, s.logger, "update", scope, id)
	if err := s.persist(ctx, m, scope, id, fields); err != nil {
		err = s.reconcile(ctx, m, "update", id, err)
		m.End(err)
		return err
	}
	if err := s.persistSiblingsOf(ctx, m, scope, affected); err != nil {
		err = s.reconcile(ctx, m, "update", id, err)
		m.End(err)
		return err
	}
	m.End(nil)
	return nil
}

// Delete removes the task and renumbers its column.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return domain.ErrNoScope
	}
	next, removed, ok := s.board.Remove(id)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("delete %s: %w", id, domain.ErrTaskNotFound)
	}
	scope := s.scope
	_, wasUnsynced := s.unsynced[id]
	delete(s.unsynced, id)
	snap, subs := s.commitLocked(next)
	s.mu.Unlock()
	publish(snap, subs)

	m, ctx := startOp(ctx, s.logger, "delete", scope, id)
	start := time.Now()
	err := s.gw.DeleteTask(ctx, scope, id)
	m.ObserveGateway(time.Since(start))
	if err != nil && !wasUnsynced {
		err = s.reconcile(ctx, m, "delete", id, err)
		m.End(err)
		return err
	}
	s.mu.Lock()
	delete(s.persisted, id)
	s.mu.Unlock()
	if err := s.persistSiblingsOf(ctx, m, scope, []domain.ColumnID{removed.ColumnID}); err != nil {
		err = s.reconcile(ctx, m, "delete", id, err)
		m.End(err)
		return err
	}
	m.End(nil)
	return nil
}

// Preview relocates the task locally without persisting it. The affected columns
// are remembered so a later committed move can persist their siblings.
func (s *Store) Preview(id string, col domain.ColumnID, index int) error {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return domain.ErrNoScope
	}
	next, res, err := domain.ApplyMove(s.board, id, col, index)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if !res.Changed() {
		s.mu.Unlock()
		return nil
	}
	for _, c := range res.Affected() {
		s.dirty[c] = struct{}{}
	}
	snap, subs := s.commitLocked(next)
	s.mu.Unlock()
	publish(snap, subs)
	s.logger.WithFields(log.Fields{
		"task_id": id,
		"column":  col,
		"index":   res.Index,
	}).Debug("board preview")
	return nil
}

// Move places the task at index of col and persists its new column and position
// in a single gateway call.
func (s *Store) Move(ctx context.Context, id string, col domain.ColumnID, index int) error {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return domain.ErrNoScope
	}
	next, res, err := domain.ApplyMove(s.board, id, col, index)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	scope := s.scope
	now := s.now()
	affected := s.drainDirtyLocked(res.Affected())
	snap, subs := s.commitLocked(next)
	s.mu.Unlock()
	publish(snap, subs)

	m, ctx := startOp(ctx, s.logger, "move", scope, id)
	pos := res.Task.Position
	patch := domain.Patch{ColumnID: &res.Task.ColumnID, Position: &pos, UpdatedAt: &now}
	if err := s.persist(ctx, m, scope, id, patch); err != nil {
		err = s.reconcile(ctx, m, "move", id, err)
		m.End(err)
		return err
	}
	if err := s.persistSiblingsOf(ctx, m, scope, affected); err != nil {
		err = s.reconcile(ctx, m, "move", id, err)
		m.End(err)
		return err
	}
	m.End(nil)
	return nil
}

// Completion is the outcome of Complete. Next is set when a recurring task
// spawned its next occurrence.
type Completion struct {
	Task domain.Task  `json:"task"`
	Next *domain.Task `json:"next,omitempty"`
}

// Complete moves the task to the end of the completed column, stamps it and,
// for recurring tasks, creates the next occurrence. Empty notes keep the
// existing result notes.
func (s *Store) Complete(ctx context.Context, id, resultNotes string) (Completion, error) {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return Completion{}, domain.ErrNoScope
	}
	next, res, err := domain.ApplyMove(s.board, id, domain.ColumnCompleted, domain.AppendIndex)
	if err != nil {
		s.mu.Unlock()
		return Completion{}, err
	}
	scope := s.scope
	now := s.now()
	notes := res.Task.ResultNotes
	if resultNotes != "" {
		notes = resultNotes
	}
	pos := res.Task.Position
	patch := domain.Patch{
		ColumnID:    &res.Task.ColumnID,
		Position:    &pos,
		CompletedAt: &now,
		ResultNotes: &notes,
		UpdatedAt:   &now,
	}
	done := patch.Apply(res.Task)
	next, _ = next.Replace(id, done)
	affected := s.drainDirtyLocked(res.Affected())
	snap, subs := s.commitLocked(next)
	s.mu.Unlock()
	publish(snap, subs)

	m, ctx := startOp(ctx, s.logger, "complete", scope, id)
	if err := s.persist(ctx, m, scope, id, patch); err != nil {
		err = s.reconcile(ctx, m, "complete", id, err)
		m.End(err)
		return Completion{}, err
	}
	if err := s.persistSiblingsOf(ctx, m, scope, affected); err != nil {
		err = s.reconcile(ctx, m, "complete", id, err)
		m.End(err)
		return Completion{}, err
	}
	m.End(nil)

	out := Completion{Task: done.Clone()}
	draft, ok := domain.Expand(done)
	if !ok {
		return out, nil
	}
	created, err := s.Create(ctx, draft)
	if err != nil {
		return out, fmt.Errorf("create next occurrence of %s: %w", id, err)
	}
	out.Next = &created
	return out, nil
}

// drainDirtyLocked merges cols with the preview-dirtied columns and resets them.
// Callers must hold s.mu.
func (s *Store) drainDirtyLocked(cols []domain.ColumnID) []domain.ColumnID {
	seen := make(map[domain.ColumnID]struct{}, len(cols)+len(s.dirty))
	out := make([]domain.ColumnID, 0, len(cols)+len(s.dirty))
	for _, c := range cols {
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	for _, c := range domain.Columns {
		if _, ok := s.dirty[c]; !ok {
			continue
		}
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	s.dirty = map[domain.ColumnID]struct{}{}
	return out
}
