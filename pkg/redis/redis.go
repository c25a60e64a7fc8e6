package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var ErrNotFound = errors.New("key not found")

// ISessionStore keeps per-session UI state, the pending upload and the
// analysis lock. Every key expires after the session TTL.
type ISessionStore interface {
	SetState(ctx context.Context, sessionID string, state []byte) error
	GetState(ctx context.Context, sessionID string) ([]byte, error)
	DeleteState(ctx context.Context, sessionID string) error
	SetUpload(ctx context.Context, sessionID string, data []byte) error
	GetUpload(ctx context.Context, sessionID string) ([]byte, error)
	DeleteUpload(ctx context.Context, sessionID string) error
	AcquireLock(ctx context.Context, sessionID string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, sessionID string) error
	Ping(ctx context.Context) error
}

type Options struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
	Prefix   string
}

type redisClient struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func New(opts Options) ISessionStore {
	logrus.Info(fmt.Sprintf("Connecting to Redis at %s...", opts.Address))

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		logrus.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		logrus.Info("Successfully connected to Redis")
	}

	return NewWithClient(client, opts.TTL, opts.Prefix)
}

func NewWithClient(client *redis.Client, ttl time.Duration, prefix string) ISessionStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if prefix == "" {
		prefix = "battery"
	}
	return &redisClient{client: client, ttl: ttl, prefix: prefix}
}

func (r *redisClient) key(sessionID, kind string) string {
	return fmt.Sprintf("%s:session:%s:%s", r.prefix, sessionID, kind)
}

func (r *redisClient) SetState(ctx context.Context, sessionID string, state []byte) error {
	return r.set(ctx, r.key(sessionID, "state"), state, r.ttl)
}

func (r *redisClient) GetState(ctx context.Context, sessionID string) ([]byte, error) {
	return r.get(ctx, r.key(sessionID, "state"))
}

func (r *redisClient) DeleteState(ctx context.Context, sessionID string) error {
	return r.del(ctx, r.key(sessionID, "state"))
}

func (r *redisClient) SetUpload(ctx context.Context, sessionID string, data []byte) error {
	return r.set(ctx, r.key(sessionID, "upload"), data, r.ttl)
}

func (r *redisClient) GetUpload(ctx context.Context, sessionID string) ([]byte, error) {
	return r.get(ctx, r.key(sessionID, "upload"))
}

func (r *redisClient) DeleteUpload(ctx context.Context, sessionID string) error {
	return r.del(ctx, r.key(sessionID, "upload"))
}

func (r *redisClient) AcquireLock(ctx context.Context, sessionID string, ttl time.Duration) (bool, error) {
	key := r.key(sessionID, "lock")
	ok, err := r.client.SetNX(ctx, key, time.Now().Unix(), ttl).Result()
	if err != nil {
		logrus.Error(fmt.Sprintf("Error acquiring lock %s: %v", key, err))
		return false, err
	}
	if !ok {
		logrus.Debug(fmt.Sprintf("Lock %s already held", key))
	}
	return ok, nil
}

func (r *redisClient) ReleaseLock(ctx context.Context, sessionID string) error {
	return r.del(ctx, r.key(sessionID, "lock"))
}

func (r *redisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisClient) set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	logrus.Debug(fmt.Sprintf("Setting key %s with expiration %v", key, ttl))
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		logrus.Error(fmt.Sprintf("Error setting key %s: %v", key, err))
		return err
	}
	return nil
}

func (r *redisClient) get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		logrus.Debug(fmt.Sprintf("Key %s not found", key))
		return nil, ErrNotFound
	} else if err != nil {
		logrus.Error(fmt.Sprintf("Error getting key %s: %v", key, err))
		return nil, err
	}
	return val, nil
}

func (r *redisClient) del(ctx context.Context, key string) error {
	result, err := r.client.Del(ctx, key).Result()
	if err != nil {
		logrus.Error(fmt.Sprintf("Error deleting key %s: %v", key, err))
		return err
	}

	if result == 0 {
		logrus.Debug(fmt.Sprintf("Key %s not found for deletion", key))
	}
	return nil
}
