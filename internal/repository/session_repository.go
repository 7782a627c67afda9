package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/YJLINa/peer-review-form/internal/model"
	"github.com/YJLINa/peer-review-form/internal/util"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// SessionRepository 会话存放在 Redis，过期即结束
type SessionRepository struct {
	Redis  *redis.Client
	prefix string
	ttl    time.Duration
}

func NewSessionRepository(rdb *redis.Client, surveyID string, ttl time.Duration) *SessionRepository {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &SessionRepository{
		Redis:  rdb,
		prefix: "peer_review:" + surveyID + ":session:",
		ttl:    ttl,
	}
}

func (r *SessionRepository) key(id string) string {
	return r.prefix + id
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*model.Session, error) {
	data, err := r.Redis.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, util.ErrSessionNotFound
		}
		return nil, err
	}

	var s model.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	if s.Scores == nil {
		s.Scores = make(map[string]int)
	}
	return &s, nil
}

// Save 写入会话并刷新过期时间
func (r *SessionRepository) Save(ctx context.Context, s *model.Session) error {
	s.UpdatedAt = time.Now()
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.Redis.Set(ctx, r.key(s.ID), data, r.ttl).Err()
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	return r.Redis.Del(ctx, r.key(id)).Err()
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// FinalizeLock 串行化提交：进程内互斥 + Redis 锁（多实例部署）
type FinalizeLock struct {
	Redis *redis.Client
	key   string
	ttl   time.Duration
	wait  time.Duration
	mu    sync.Mutex
}

func NewFinalizeLock(rdb *redis.Client, surveyID string, ttl time.Duration) *FinalizeLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &FinalizeLock{
		Redis: rdb,
		key:   "peer_review:" + surveyID + ":finalize_lock",
		ttl:   ttl,
		wait:  ttl,
	}
}

// Acquire 获取锁，等待超过 ttl 返回 ErrLockBusy；返回的函数用于释放
func (l *FinalizeLock) Acquire(ctx context.Context) (func(), error) {
	l.mu.Lock()

	token := uuid.New().String()
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.Redis.SetNX(ctx, l.key, token, l.ttl).Result()
		if err != nil {
			l.mu.Unlock()
			return nil, err
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			l.mu.Unlock()
			return nil, util.ErrLockBusy
		}
		select {
		case <-ctx.Done():
			l.mu.Unlock()
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}

	return func() {
		releaseScript.Run(context.Background(), l.Redis, []string{l.key}, token)
		l.mu.Unlock()
	}, nil
}
