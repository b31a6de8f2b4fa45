package board

import (
	"context"
	"sync"
	"testing"
	"time"

	"prism-board/domain"
)

type patchCall struct {
	id    string
	patch domain.Patch
}

// fakeGateway keeps server-side tasks in memory. Error fields fail the matching call.
type fakeGateway struct {
	mu        sync.Mutex
	tasks     map[string]domain.Task
	order     []string
	listErr   error
	insertErr error
	patchErr  func(id string, p domain.Patch) error
	deleteErr error

	listCalls int
	inserts   []domain.Task
	patches   []patchCall
	deletes   []string
}

func newFakeGateway(tasks ...domain.Task) *fakeGateway {
	g := &fakeGateway{tasks: map[string]domain.Task{}}
	for _, t := range tasks {
		g.tasks[t.ID] = t
		g.order = append(g.order, t.ID)
	}
	return g
}

func (g *fakeGateway) ListTasks(_ context.Context, _ string) ([]domain.Task, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listCalls++
	if g.listErr != nil {
		return nil, g.listErr
	}
	out := make([]domain.Task, 0, len(g.order))
	for _, id := range g.order {
		if t, ok := g.tasks[id]; ok {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

func (g *fakeGateway) InsertTask(_ context.Context, scope string, t domain.Task) (domain.Task, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inserts = append(g.inserts, t)
	if g.insertErr != nil {
		return domain.Task{}, g.insertErr
	}
	t.ID = "srv-" + t.ID
	t.UserID = scope
	g.tasks[t.ID] = t
	g.order = append(g.order, t.ID)
	return t, nil
}

func (g *fakeGateway) PatchTask(_ context.Context, _ string, id string, p domain.Patch) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.patches = append(g.patches, patchCall{id: id, patch: p})
	if g.patchErr != nil {
		if err := g.patchErr(id, p); err != nil {
			return err
		}
	}
	t, ok := g.tasks[id]
	if !ok {
		return domain.ErrTaskNotFound
	}
	g.tasks[id] = p.Apply(t)
	return nil
}

func (g *fakeGateway) DeleteTask(_ context.Context, _ string, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deletes = append(g.deletes, id)
	if g.deleteErr != nil {
		return g.deleteErr
	}
	delete(g.tasks, id)
	return nil
}

func (g *fakeGateway) patchCalls() []patchCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]patchCall(nil), g.patches...)
}

var baseTime = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func task(id string, col domain.ColumnID, pos int) domain.Task {
	return domain.Task{
		ID:        id,
		UserID:    "user-1",
		Title:     "Task " + id,
		ColumnID:  col,
		Position:  pos,
		CreatedAt: baseTime,
	}
}

func columnIDs(b domain.Board, col domain.ColumnID) []string {
	out := make([]string, 0, len(b[col]))
	for _, t := range b[col] {
		out = append(out, t.ID)
	}
	return out
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func loadedStore(t testing.TB, gw *fakeGateway, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return baseTime.Add(time.Hour) })}, opts...)
	s := NewStore(gw, opts...)
	if _, err := s.Load(context.Background(), "user-1"); err != nil {
		t.Fatalf("load: %v", err)
	}
	return s
}
