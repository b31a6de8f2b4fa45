package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"prism-board/board"
	"prism-board/domain"
)

const (
	maxBodySize          = 64 << 10
	headerIdempotencyKey = "Idempotency-Key"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, sessions *Sessions, auth Authenticator, deduper Deduper, logger *log.Logger) {
	h := &handlers{sessions: sessions, auth: auth, deduper: deduper, logger: logger}
	e.JSONSerializer = sonicSerializer{}
	e.Use(RequestMetrics(logger))

	e.GET("/healthz", h.healthz)
	g := e.Group("/api")
	g.GET("/board", h.getBoard)
	g.POST("/board/reload", h.reloadBoard)
	g.GET("/board/stream", h.streamBoard)
	g.POST("/tasks", h.createTask)
	g.PATCH("/tasks/:id", h.updateTask)
	g.DELETE("/tasks/:id", h.deleteTask)
	g.POST("/tasks/:id/move", h.moveTask)
	g.POST("/tasks/:id/complete", h.completeTask)
}

type handlers struct {
	sessions *Sessions
	auth     Authenticator
	deduper  Deduper
	logger   *log.Logger
}

func (h *handlers) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]int{"boards": h.sessions.Len()})
}

// store authenticates the request and returns the caller's loaded board.
func (h *handlers) store(c echo.Context, authHeader string) (*board.Store, string, error) {
	m := metricsFrom(c)
	scope, err := h.auth.ScopeFromAuthHeader(authHeader)
	if err != nil {
		m.SetErrorStage("auth")
		return nil, "", c.JSON(http.StatusUnauthorized, errorResponse{Error: err.Error()})
	}
	m.SetScope(scope)
	s, err := h.sessions.Get(c.Request().Context(), scope)
	if err != nil {
		m.SetErrorStage("load")
		return nil, scope, writeError(c, err)
	}
	return s, scope, nil
}

func (h *handlers) getBoard(c echo.Context) error {
	s, scope, err := h.store(c, c.Request().Header.Get(echo.HeaderAuthorization))
	if s == nil {
		return err
	}
	return c.JSON(http.StatusOK, newBoardResponse(scope, s.Snapshot(), filterFrom(c)))
}

func (h *handlers) reloadBoard(c echo.Context) error {
	s, scope, err := h.store(c, c.Request().Header.Get(echo.HeaderAuthorization))
	if s == nil {
		return err
	}
	b, err := s.Reload(c.Request().Context())
	if err != nil {
		metricsFrom(c).SetErrorStage("reload")
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, newBoardResponse(scope, b, filterFrom(c)))
}

func (h *handlers) createTask(c echo.Context) error {
	s, scope, err := h.store(c, c.Request().Header.Get(echo.HeaderAuthorization))
	if s == nil {
		return err
	}
	var draft domain.Draft
	if err := decodeBody(c, &draft); err != nil {
		return err
	}

	ctx := c.Request().Context()
	key := strings.TrimSpace(c.Request().Header.Get(headerIdempotencyKey))
	if key != "" && h.deduper != nil {
		added, err := h.deduper.Add(ctx, scope, key)
		if err != nil {
			h.logger.WithError(err).Warn("deduper unavailable; processing without idempotency")
			key = ""
		} else if !added {
			metricsFrom(c).SetErrorStage("duplicate")
			return c.JSON(http.StatusConflict, errorResponse{Error: "duplicate request"})
		}
	}

	task, err := s.Create(ctx, draft)
	if err != nil {
		if key != "" && h.deduper != nil {
			if rmErr := h.deduper.Remove(ctx, scope, key); rmErr != nil {
				h.logger.WithError(rmErr).Warn("release idempotency key")
			}
		}
		metricsFrom(c).SetErrorStage("create")
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, task)
}

func (h *handlers) updateTask(c echo.Context) error {
	s, _, err := h.store(c, c.Request().Header.Get(echo.HeaderAuthorization))
	if s == nil {
		return err
	}
	var patch domain.Patch
	if err := decodeBody(c, &patch); err != nil {
		return err
	}
	id := c.Param("id")
	if err := s.Update(c.Request().Context(), id, patch); err != nil {
		metricsFrom(c).SetErrorStage("update")
		return writeError(c, err)
	}
	task, _ := s.Task(id)
	return c.JSON(http.StatusOK, task)
}

func (h *handlers) deleteTask(c echo.Context) error {
	s, _, err := h.store(c, c.Request().Header.Get(echo.HeaderAuthorization))
	if s == nil {
		return err
	}
	if err := s.Delete(c.Request().Context(), c.Param("id")); err != nil {
		metricsFrom(c).SetErrorStage("delete")
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) moveTask(c echo.Context) error {
	s, _, err := h.store(c, c.Request().Header.Get(echo.HeaderAuthorization))
	if s == nil {
		return err
	}
	var req moveRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	index := domain.AppendIndex
	if req.Index != nil {
		if *req.Index < 0 {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "index must not be negative", Field: "index"})
		}
		index = *req.Index
	}
	id := c.Param("id")
	if err := s.Move(c.Request().Context(), id, req.ColumnID, index); err != nil {
		metricsFrom(c).SetErrorStage("move")
		return writeError(c, err)
	}
	task, _ := s.Task(id)
	return c.JSON(http.StatusOK, task)
}

func (h *handlers) completeTask(c echo.Context) error {
	s, _, err := h.store(c, c.Request().Header.Get(echo.HeaderAuthorization))
	if s == nil {
		return err
	}
	var req completeRequest
	if c.Request().ContentLength != 0 {
		if err := decodeBody(c, &req); err != nil {
			return err
		}
	}
	done, err := s.Complete(c.Request().Context(), c.Param("id"), req.ResultNotes)
	if err != nil && done.Task.ID == "" {
		metricsFrom(c).SetErrorStage("complete")
		return writeError(c, err)
	}
	if err != nil {
		h.logger.WithError(err).WithField("task_id", done.Task.ID).Warn("next occurrence not created")
	}
	return c.JSON(http.StatusOK, done)
}

func filterFrom(c echo.Context) domain.Filter {
	return domain.Filter{
		TaskType: c.QueryParam("taskType"),
		Priority: domain.Priority(c.QueryParam("priority")),
	}
}

func decodeBody(c echo.Context, v any) error {
	lr := io.LimitReader(c.Request().Body, maxBodySize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		metricsFrom(c).SetErrorStage("decode")
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
	}
	return nil
}

// writeError maps board errors onto HTTP responses.
func writeError(c echo.Context, err error) error {
	var verr *domain.ValidationError
	var perr *domain.PersistenceError
	var ferr *domain.FetchError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Field: verr.Field})
	case errors.Is(err, domain.ErrInvalidTarget):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Field: "columnId"})
	case errors.As(err, &perr):
		return c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error(), Reloaded: perr.Reloaded})
	case errors.Is(err, domain.ErrTaskNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.As(err, &ferr):
		return c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrNoScope):
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	}
	c.Logger().Error(err)
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
}
