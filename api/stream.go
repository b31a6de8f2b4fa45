package api

import (
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"prism-board/domain"
)

var heartbeatInterval = 30 * time.Second

// streamBoard pushes the caller's board as server-sent events: once on connect
// and again after every change. EventSource cannot set headers, so the token
// may also arrive as a query parameter.
func (h *handlers) streamBoard(c echo.Context) error {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if token := c.QueryParam("token"); authHeader == "" && token != "" {
		authHeader = bearerPrefix + token
	}
	s, scope, err := h.store(c, authHeader)
	if s == nil {
		return err
	}
	filter := filterFrom(c)

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	flusher, ok := res.Writer.(http.Flusher)
	if !ok {
		return c.String(http.StatusInternalServerError, "stream unsupported")
	}
	res.WriteHeader(http.StatusOK)

	// Only the latest board matters, so a pending one is replaced.
	updates := make(chan domain.Board, 1)
	unsubscribe := s.Subscribe(func(b domain.Board) {
		select {
		case <-updates:
		default:
		}
		select {
		case updates <- b:
		default:
		}
	})
	defer unsubscribe()

	send := func(b domain.Board) bool {
		data, err := sonic.ConfigStd.Marshal(newBoardResponse(scope, b, filter))
		if err != nil {
			h.logger.WithError(err).Error("encode board event")
			return true
		}
		if _, err := res.Write([]byte("event: board\ndata: ")); err != nil {
			return false
		}
		if _, err := res.Write(data); err != nil {
			return false
		}
		if _, err := res.Write([]byte("\n\n")); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !send(s.Snapshot()) {
		return nil
	}
	ctx := c.Request().Context()
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case b := <-updates:
			if !send(b) {
				return nil
			}
		case <-ticker.C:
			if _, err := res.Write([]byte(": ping\n\n")); err != nil {
				return nil
			}
			flusher.Flush()
		}
	}
}
