package api

import (
	"context"

	"prism-board/domain"
)

// Authenticator maps an Authorization header to a board scope.
type Authenticator interface {
	ScopeFromAuthHeader(string) (string, error)
}

// Deduper prevents processing of duplicate create requests.
type Deduper interface {
	Add(ctx context.Context, scope, key string) (bool, error)
	Remove(ctx context.Context, scope, key string) error
}

type columnResponse struct {
	ID    domain.ColumnID `json:"id"`
	Label string          `json:"label"`
	Tasks []domain.Task   `json:"tasks"`
}

type boardResponse struct {
	Scope   string           `json:"scope"`
	Columns []columnResponse `json:"columns"`
}

type moveRequest struct {
	ColumnID domain.ColumnID `json:"columnId"`
	Index    *int            `json:"index,omitempty"`
}

type completeRequest struct {
	ResultNotes string `json:"resultNotes"`
}

type errorResponse struct {
	Error    string `json:"error"`
	Field    string `json:"field,omitempty"`
	Reloaded bool   `json:"reloaded,omitempty"`
}

func newBoardResponse(scope string, b domain.Board, f domain.Filter) boardResponse {
	resp := boardResponse{Scope: scope, Columns: make([]columnResponse, 0, len(domain.Columns))}
	for _, col := range domain.Columns {
		tasks := b.Visible(col, f)
		if tasks == nil {
			tasks = []domain.Task{}
		}
		resp.Columns = append(resp.Columns, columnResponse{ID: col, Label: col.Label(), Tasks: tasks})
	}
	return resp
}
