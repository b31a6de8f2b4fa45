package api

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"prism-board/domain"
)

func readEvent(t *testing.T, r *bufio.Reader) boardResponse {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		data, ok := strings.CutPrefix(strings.TrimRight(line, "\n"), "data: ")
		if !ok {
			continue
		}
		var resp boardResponse
		if err := sonic.ConfigStd.UnmarshalFromString(data, &resp); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		return resp
	}
}

func TestStreamBoardPushesChanges(t *testing.T) {
	s := newTestServer(t, nil)
	srv := httptest.NewServer(s.e)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/board/stream?token="+s.token, nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Fatalf("unexpected response %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	r := bufio.NewReader(resp.Body)

	first := readEvent(t, r)
	if got := columnTasks(first, domain.ColumnBacklog); strings.Join(got, ",") != "a,b" {
		t.Fatalf("unexpected initial backlog %v", got)
	}

	if rec := s.do(http.MethodPost, "/api/tasks/a/move", `{"columnId":"review"}`); rec.Code != http.StatusOK {
		t.Fatalf("move: %d", rec.Code)
	}
	next := readEvent(t, r)
	if got := columnTasks(next, domain.ColumnReview); strings.Join(got, ",") != "a" {
		t.Fatalf("expected pushed move, got review %v", got)
	}
}

func TestStreamBoardRequiresAuth(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/board/stream", nil)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestSessionsRefresh(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(http.MethodGet, "/api/board", "")

	// Another instance wrote directly to storage.
	if err := s.gw.Memory.DeleteTask(context.Background(), "user-1", "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := columnTasks(decodeBoard(t, s.do(http.MethodGet, "/api/board", "")), domain.ColumnBacklog); len(got) != 2 {
		t.Fatalf("board should still be held in memory, got %v", got)
	}

	s.sessions.Refresh(context.Background(), "user-1")
	if got := columnTasks(decodeBoard(t, s.do(http.MethodGet, "/api/board", "")), domain.ColumnBacklog); strings.Join(got, ",") != "b" {
		t.Fatalf("refresh should pick up the external delete, got %v", got)
	}

	s.sessions.Refresh(context.Background(), "unknown")
	if s.sessions.Len() != 1 {
		t.Fatalf("refresh must not create sessions, got %d", s.sessions.Len())
	}
}
