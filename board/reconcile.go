package board

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"prism-board/domain"
)

// persist sends one patch and records the slot the gateway now holds.
func (s *Store) persist(ctx context.Context, m *opMetrics, scope, id string, p domain.Patch) error {
	start := time.Now()
	err := s.gw.PatchTask(ctx, scope, id, p)
	m.ObserveGateway(time.Since(start))
	if err != nil {
		m.SetErrorStage("persist")
		return err
	}
	if p.ColumnID == nil && p.Position == nil {
		return nil
	}
	s.mu.Lock()
	sl := s.persisted[id]
	if p.ColumnID != nil {
		sl.column = *p.ColumnID
	}
	if p.Position != nil {
		sl.position = *p.Position
	}
	s.persisted[id] = sl
	s.mu.Unlock()
	return nil
}

type siblingPatch struct {
	id    string
	patch domain.Patch
}

// persistSiblingsOf patches every task in cols whose column or position differs
// from what the gateway last acknowledged. It does nothing unless sibling
// persistence is enabled.
func (s *Store) persistSiblingsOf(ctx context.Context, m *opMetrics, scope string, cols []domain.ColumnID) error {
	if !s.persistSiblings || len(cols) == 0 {
		return nil
	}
	s.mu.Lock()
	if s.scope != scope {
		s.mu.Unlock()
		return nil
	}
	var pending []siblingPatch
	for _, col := range cols {
		for _, t := range s.board[col] {
			if _, ok := s.unsynced[t.ID]; ok {
				continue
			}
			if sl, ok := s.persisted[t.ID]; ok && sl.column == t.ColumnID && sl.position == t.Position {
				continue
			}
			c, pos := t.ColumnID, t.Position
			pending = append(pending, siblingPatch{
				id:    t.ID,
				patch: domain.Patch{ColumnID: &c, Position: &pos},
			})
		}
	}
	s.mu.Unlock()

	for _, sp := range pending {
		if err := s.persist(ctx, m, scope, sp.id, sp.patch); err != nil {
			m.SetErrorStage("persist_siblings")
			return err
		}
	}
	if len(pending) > 0 {
		s.logger.WithFields(log.Fields{
			"scope":    scope,
			"siblings": len(pending),
		}).Debug("board siblings persisted")
	}
	return nil
}

// reconcile resynchronizes the board after a failed write. The reload runs even
// when ctx is already cancelled, bounded by the reload timeout.
func (s *Store) reconcile(ctx context.Context, m *opMetrics, op, id string, cause error) error {
	perr := &domain.PersistenceError{Op: op, TaskID: id, Err: cause}
	scope := s.Scope()

	reloadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.reloadTimeout)
	defer cancel()
	if _, err := s.Load(reloadCtx, scope); err != nil {
		m.SetErrorStage("reload")
		s.logger.WithError(err).WithFields(log.Fields{
			"scope":   scope,
			"op":      op,
			"task_id": id,
		}).Error("board reload after failed write")
		return errors.Join(perr, err)
	}
	perr.Reloaded = true
	m.SetReloaded(true)
	return perr
}
