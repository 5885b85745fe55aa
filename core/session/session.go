package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds configuration for the Redis session store.
type Config struct {
	// Addr is the Redis host:port.
	Addr string `mapstructure:"addr" default:"localhost:6379"`
	// Password is the Redis password.
	Password string `mapstructure:"password" default:""`
	// DB is the Redis database index.
	DB int `mapstructure:"db" default:"0"`
	// TTLMinutes is the admin session lifetime in minutes.
	TTLMinutes int `mapstructure:"ttl_minutes" default:"720"`
	// ResetTTLMinutes is the password-reset token lifetime in minutes.
	ResetTTLMinutes int `mapstructure:"reset_ttl_minutes" default:"30"`
}

// Connect creates a Redis client and verifies it with a ping.
func Connect(cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}

// Session is the server-side record behind an admin session cookie.
type Session struct {
	UserID    string `json:"uid"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// Store keeps admin sessions and password-reset tokens in Redis.
// Tokens are server-issued and server-validated; nothing about the
// identity lives on the client beyond the opaque cookie value.
type Store struct {
	rdb      *redis.Client
	ttl      time.Duration
	resetTTL time.Duration
}

// NewStore creates a session store from the configuration.
func NewStore(rdb *redis.Client, cfg Config) *Store {
	return &Store{
		rdb:      rdb,
		ttl:      time.Duration(cfg.TTLMinutes) * time.Minute,
		resetTTL: time.Duration(cfg.ResetTTLMinutes) * time.Minute,
	}
}

func key(id string) string         { return fmt.Sprintf("lk:sess:%s", id) }
func userSetKey(uid string) string { return fmt.Sprintf("lk:user_sessions:%s", uid) }
func resetKey(hash string) string  { return fmt.Sprintf("lk:reset:%s", hash) }

// Create stores a new session under id and tracks it per user so that
// deleting the user can revoke every session at once.
func (s *Store) Create(ctx context.Context, id, userID string) error {
	now := time.Now()
	b, _ := json.Marshal(Session{
		UserID:    userID,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.ttl).Unix(),
	})
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, key(id), b, s.ttl)
	pipe.SAdd(ctx, userSetKey(userID), id)
	pipe.Expire(ctx, userSetKey(userID), s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Get loads the session for id.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	b, err := s.rdb.Get(ctx, key(id)).Bytes()
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Delete removes one session.
func (s *Store) Delete(ctx context.Context, id string) error {
	sess, _ := s.Get(ctx, id)
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, key(id))
	if sess != nil {
		pipe.SRem(ctx, userSetKey(sess.UserID), id)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// RevokeAllForUser removes every session of a user. Called when the
// user is deleted or demoted.
func (s *Store) RevokeAllForUser(ctx context.Context, userID string) error {
	ids, err := s.rdb.SMembers(ctx, userSetKey(userID)).Result()
	if err != nil && err != redis.Nil {
		return err
	}

	pipe := s.rdb.TxPipeline()
	for _, sid := range ids {
		pipe.Del(ctx, key(sid))
	}
	pipe.Del(ctx, userSetKey(userID))
	_, err = pipe.Exec(ctx)
	return err
}

// SaveResetToken stores a password-reset token hash for a user.
// Only the hash ever reaches Redis.
func (s *Store) SaveResetToken(ctx context.Context, tokenHash, userID string) error {
	return s.rdb.Set(ctx, resetKey(tokenHash), userID, s.resetTTL).Err()
}

// ConsumeResetToken resolves a token hash to its user and deletes it,
// so each token can be used at most once.
func (s *Store) ConsumeResetToken(ctx context.Context, tokenHash string) (string, error) {
	return s.rdb.GetDel(ctx, resetKey(tokenHash)).Result()
}
