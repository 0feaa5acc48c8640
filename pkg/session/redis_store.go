package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bookchat-dev/bookchat/pkg/chat"
)

// RedisStore implements Store using Redis. It lets multiple devices share
// one chat identity and conversation mirror.
//
// Key layout (under the configured prefix):
//
//	<prefix>identity             persisted session id
//	<prefix>messages:<id>        list of JSON-encoded messages
//	<prefix>activity             hash: session id -> last-append unix time
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration

	mu     sync.RWMutex
	closed bool
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string
	// Password is the Redis password (optional).
	Password string
	// DB is the Redis database number.
	DB int
	// Prefix is the key prefix (default "bookchat:").
	Prefix string
	// TTL is the expiry applied to message mirrors (0 = never expire).
	TTL time.Duration
	// PoolSize is the connection pool size (default 10).
	PoolSize int
}

// NewRedisStore creates a Redis-backed store and verifies connectivity.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: poolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewRedisStoreFromClient(client, cfg.Prefix, cfg.TTL), nil
}

// NewRedisStoreFromClient wraps an existing Redis client. Used by tests.
func NewRedisStoreFromClient(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "bookchat:"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// LoadIdentity returns the persisted session identifier.
func (r *RedisStore) LoadIdentity(ctx context.Context) (string, error) {
	if err := r.check(); err != nil {
		return "", err
	}

	id, err := r.client.Get(ctx, r.prefix+"identity").Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrIdentityNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load identity: %w", err)
	}
	return id, nil
}

// SaveIdentity persists the session identifier.
func (r *RedisStore) SaveIdentity(ctx context.Context, sessionID string) error {
	if err := r.check(); err != nil {
		return err
	}
	if sessionID == "" {
		return errors.New("session id cannot be empty")
	}

	if err := r.client.Set(ctx, r.prefix+"identity", sessionID, 0).Err(); err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	return nil
}

// AppendMessage appends a message to the session's mirror list.
func (r *RedisStore) AppendMessage(ctx context.Context, sessionID string, msg *chat.Message) error {
	if err := r.check(); err != nil {
		return err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	key := r.messagesKey(sessionID)
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.HSet(ctx, r.prefix+"activity", sessionID, strconv.FormatInt(time.Now().Unix(), 10))
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// LoadMessages returns the session's mirrored messages in order.
func (r *RedisStore) LoadMessages(ctx context.Context, sessionID string) ([]*chat.Message, error) {
	if err := r.check(); err != nil {
		return nil, err
	}

	raw, err := r.client.LRange(ctx, r.messagesKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	messages := make([]*chat.Message, 0, len(raw))
	for _, item := range raw {
		var msg chat.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("parse stored message: %w", err)
		}
		messages = append(messages, &msg)
	}
	return messages, nil
}

// ClearMessages removes the session's mirror.
func (r *RedisStore) ClearMessages(ctx context.Context, sessionID string) error {
	if err := r.check(); err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.messagesKey(sessionID))
	pipe.HDel(ctx, r.prefix+"activity", sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	return nil
}

// Prune removes session mirrors whose last append is older than maxAge.
func (r *RedisStore) Prune(ctx context.Context, maxAge time.Duration) (int, error) {
	if err := r.check(); err != nil {
		return 0, err
	}

	activity, err := r.client.HGetAll(ctx, r.prefix+"activity").Result()
	if err != nil {
		return 0, fmt.Errorf("read activity: %w", err)
	}

	cutoff := time.Now().Add(-maxAge).Unix()
	removed := 0
	for sessionID, lastStr := range activity {
		last, err := strconv.ParseInt(lastStr, 10, 64)
		if err != nil || last >= cutoff {
			continue
		}
		pipe := r.client.TxPipeline()
		pipe.Del(ctx, r.messagesKey(sessionID))
		pipe.HDel(ctx, r.prefix+"activity", sessionID)
		if _, err := pipe.Exec(ctx); err == nil {
			removed++
		}
	}
	return removed, nil
}

// Ping verifies the Redis connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.check(); err != nil {
		return err
	}
	return r.client.Ping(ctx).Err()
}

// Close releases the Redis connection pool.
func (r *RedisStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.client.Close()
}

func (r *RedisStore) check() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrStoreClosed
	}
	return nil
}

func (r *RedisStore) messagesKey(sessionID string) string {
	return r.prefix + "messages:" + sessionID
}
