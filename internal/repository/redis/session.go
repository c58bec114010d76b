// Package redis keeps login sessions in Redis instead of the main store.
//
// Sessions are the only high-churn rows the site writes, and keeping them in
// Redis lets several server processes share logins. Each session is a JSON
// value with a TTL matching its expiry, plus a per-account set of session
// ids so an admin password reset can revoke them all.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/sakif/memorial/internal/apperror"
	"github.com/sakif/memorial/internal/model"
	"github.com/sakif/memorial/internal/repository"
)

var _ repository.SessionRepository = (*SessionStore)(nil)

const defaultPrefix = "memorial:"

type SessionStore struct {
	client goredis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewSessionStore wraps an existing client. An empty prefix uses "memorial:".
func NewSessionStore(client goredis.UniversalClient, prefix string) *SessionStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &SessionStore{client: client, prefix: prefix, now: time.Now}
}

// Dial connects to addr and checks the connection with PING.
func Dial(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}
	return client, nil
}

func (s *SessionStore) sessionKey(id string) string {
	return s.prefix + "session:" + id
}

func (s *SessionStore) accountKey(accountID string) string {
	return s.prefix + "account:" + accountID + ":sessions"
}

func (s *SessionStore) CreateSession(ctx context.Context, sess *model.Session) error {
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return apperror.ValidationFailed("expiresAt", "session already expired")
	}

	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("redis: encoding session: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, s.sessionKey(sess.ID), payload, ttl)
		pipe.SAdd(ctx, s.accountKey(sess.AccountID), sess.ID)
		// Every session gets the same TTL, so the newest one outlives the rest.
		pipe.Expire(ctx, s.accountKey(sess.AccountID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: storing session: %w", err)
	}
	return nil
}

func (s *SessionStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	raw, err := s.client.Get(ctx, s.sessionKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, apperror.NotFound("session", id)
	}
	if err != nil {
		return nil, fmt.Errorf("redis: loading session: %w", err)
	}

	var sess model.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("redis: decoding session %s: %w", id, err)
	}
	return &sess, nil
}

// DeleteSession is idempotent; deleting a missing session is not an error.
func (s *SessionStore) DeleteSession(ctx context.Context, id string) error {
	sess, err := s.GetSession(ctx, id)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, s.sessionKey(id))
		pipe.SRem(ctx, s.accountKey(sess.AccountID), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: deleting session: %w", err)
	}
	return nil
}

func (s *SessionStore) DeleteAccountSessions(ctx context.Context, accountID string) error {
	ids, err := s.client.SMembers(ctx, s.accountKey(accountID)).Result()
	if err != nil {
		return fmt.Errorf("redis: listing sessions of %s: %w", accountID, err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, s.sessionKey(id))
	}
	keys = append(keys, s.accountKey(accountID))

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis: revoking sessions of %s: %w", accountID, err)
	}
	return nil
}
