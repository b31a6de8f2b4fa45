package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"prism-board/domain"
)

// Memory keeps tasks in process. It backs the demo terminal board and tests.
type Memory struct {
	mu     sync.Mutex
	scopes map[string][]domain.Task
	now    func() time.Time
}

func NewMemory(seed ...domain.Task) *Memory {
	m := &Memory{scopes: map[string][]domain.Task{}, now: time.Now}
	for _, t := range seed {
		m.scopes[t.UserID] = append(m.scopes[t.UserID], t.Clone())
	}
	return m
}

func (m *Memory) ListTasks(_ context.Context, scope string) ([]domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.scopes[scope]
	out := make([]domain.Task, len(list))
	for i, t := range list {
		out[i] = t.Clone()
	}
	return out, nil
}

func (m *Memory) InsertTask(_ context.Context, scope string, t domain.Task) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	for _, existing := range m.scopes[scope] {
		if existing.ID == t.ID {
			return domain.Task{}, fmt.Errorf("insert %s: task already exists", t.ID)
		}
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = m.now()
	}
	t.UserID = scope
	m.scopes[scope] = append(m.scopes[scope], t.Clone())
	return t, nil
}

func (m *Memory) PatchTask(_ context.Context, scope, id string, p domain.Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.scopes[scope]
	for i := range list {
		if list[i].ID == id {
			list[i] = p.Apply(list[i]).Clone()
			return nil
		}
	}
	return fmt.Errorf("patch %s: %w", id, domain.ErrTaskNotFound)
}

func (m *Memory) DeleteTask(_ context.Context, scope, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.scopes[scope]
	for i := range list {
		if list[i].ID == id {
			m.scopes[scope] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}
