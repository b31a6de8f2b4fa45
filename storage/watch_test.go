package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
)

func TestWatchUpdatesSkipsOwnOrigin(t *testing.T) {
	_, rc := newTestRedis(t)
	logger, _ := test.NewNullLogger()

	var mu sync.Mutex
	var got []string
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		WatchUpdates(ctx, logger, rc, "chan", "self", func(scope string) {
			mu.Lock()
			got = append(got, scope)
			mu.Unlock()
		})
		close(done)
	}()
	// wait for subscription to start
	time.Sleep(50 * time.Millisecond)

	for _, payload := range []string{
		`{"UserId":"user-1","Origin":"self"}`,
		`not json`,
		`{"UserId":"","Origin":"other"}`,
		`{"UserId":"user-2","Origin":"other"}`,
	} {
		if err := rc.Publish(context.Background(), "chan", payload).Err(); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	scopes := append([]string(nil), got...)
	mu.Unlock()
	if len(scopes) != 1 || scopes[0] != "user-2" {
		t.Fatalf("unexpected scopes %v", scopes)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WatchUpdates did not exit")
	}
}
