package health

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// StatusStore remembers the last observed status per (project, job name) so
// the checker can alert on transitions instead of every observation. Key
// count is bounded by the number of distinct jobs; entries are never
// cleared.
type StatusStore interface {
	Get(ctx context.Context, project, jobName string) (Status, bool, error)
	Set(ctx context.Context, project, jobName string, status Status) error
}

// MemoryStatusStore keeps previous statuses in-process. Good for tests and
// single-process deployments; state resets on restart, which at worst means
// one duplicate alert after a redeploy.
type MemoryStatusStore struct {
	mu   sync.Mutex
	prev map[string]Status
}

func NewMemoryStatusStore() *MemoryStatusStore {
	return &MemoryStatusStore{prev: make(map[string]Status)}
}

func statusKey(project, jobName string) string {
	return fmt.Sprintf("jobstatus:%s:%s", project, jobName)
}

func (m *MemoryStatusStore) Get(_ context.Context, project, jobName string) (Status, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.prev[statusKey(project, jobName)]
	return s, ok, nil
}

func (m *MemoryStatusStore) Set(_ context.Context, project, jobName string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prev[statusKey(project, jobName)] = status
	return nil
}

// RedisStatusStore persists previous statuses in Redis so edge-triggered
// alerting survives process restarts and can be shared by replicas.
type RedisStatusStore struct {
	client *redis.Client
}

func NewRedisStatusStore(client *redis.Client) *RedisStatusStore {
	return &RedisStatusStore{client: client}
}

func (r *RedisStatusStore) Get(ctx context.Context, project, jobName string) (Status, bool, error) {
	val, err := r.client.Get(ctx, statusKey(project, jobName)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("status store get: %w", err)
	}
	return Status(val), true, nil
}

func (r *RedisStatusStore) Set(ctx context.Context, project, jobName string, status Status) error {
	if err := r.client.Set(ctx, statusKey(project, jobName), string(status), 0).Err(); err != nil {
		return fmt.Errorf("status store set: %w", err)
	}
	return nil
}
