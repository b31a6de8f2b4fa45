package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"prism-board/domain"
)

type backend interface {
	ListTasks(ctx context.Context, scope string) ([]domain.Task, error)
	InsertTask(ctx context.Context, scope string, t domain.Task) (domain.Task, error)
	PatchTask(ctx context.Context, scope, id string, p domain.Patch) error
	DeleteTask(ctx context.Context, scope, id string) error
}

// BoardUpdate is published on the updates channel after every write.
type BoardUpdate struct {
	UserID string `json:"UserId"`
	Origin string `json:"Origin"`
}

// Cache wraps a gateway with a Redis read-through cache of each scope's tasks.
// Writes evict the scope and announce it on the updates channel.
type Cache struct {
	base    backend
	redis   *redis.Client
	ttl     time.Duration
	channel string
	origin  string
	logger  *log.Logger
}

// NewCache creates a caching gateway. An empty channel disables update announcements.
func NewCache(base backend, client *redis.Client, ttl time.Duration, channel string, logger *log.Logger) *Cache {
	if base == nil {
		panic("storage.NewCache: base gateway is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Cache{
		base:    base,
		redis:   client,
		ttl:     ttl,
		channel: channel,
		origin:  uuid.NewString(),
		logger:  logger,
	}
}

// Origin identifies updates published by this cache.
func (c *Cache) Origin() string { return c.origin }

func (c *Cache) ListTasks(ctx context.Context, scope string) ([]domain.Task, error) {
	if tasks, ok := c.loadTasksFromCache(ctx, scope); ok {
		return tasks, nil
	}

	tasks, err := c.base.ListTasks(ctx, scope)
	if err != nil {
		return nil, err
	}

	c.storeTasks(ctx, scope, tasks)
	return tasks, nil
}

func (c *Cache) InsertTask(ctx context.Context, scope string, t domain.Task) (domain.Task, error) {
	saved, err := c.base.InsertTask(ctx, scope, t)
	if err != nil {
		return domain.Task{}, err
	}
	c.written(ctx, scope)
	return saved, nil
}

func (c *Cache) PatchTask(ctx context.Context, scope, id string, p domain.Patch) error {
	if err := c.base.PatchTask(ctx, scope, id, p); err != nil {
		return err
	}
	c.written(ctx, scope)
	return nil
}

func (c *Cache) DeleteTask(ctx context.Context, scope, id string) error {
	if err := c.base.DeleteTask(ctx, scope, id); err != nil {
		return err
	}
	c.written(ctx, scope)
	return nil
}

func (c *Cache) loadTasksFromCache(ctx context.Context, scope string) ([]domain.Task, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, tasksCacheKey(scope)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing gateway without failing.
			_ = c.redis.Del(ctx, tasksCacheKey(scope)).Err()
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := sonic.ConfigStd.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, tasksCacheKey(scope)).Err()
		return nil, false
	}
	return tasks, true
}

func (c *Cache) storeTasks(ctx context.Context, scope string, tasks []domain.Task) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.ConfigStd.Marshal(tasks)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, tasksCacheKey(scope), data, c.ttl).Err()
}

func (c *Cache) written(ctx context.Context, scope string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, tasksCacheKey(scope)).Result()
	if c.channel == "" {
		return
	}
	data, err := sonic.ConfigStd.Marshal(BoardUpdate{UserID: scope, Origin: c.origin})
	if err != nil {
		return
	}
	if err := c.redis.Publish(ctx, c.channel, data).Err(); err != nil {
		c.logger.WithError(err).WithField("user_id", scope).Warn("publish board update")
	}
}

func tasksCacheKey(scope string) string {
	return "tasks:" + scope
}
