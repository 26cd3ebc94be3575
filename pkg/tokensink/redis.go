// Package tokensink persists bearer tokens outside the process so a restarted
// host can reuse an unexpired token instead of logging in again.
package tokensink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/adilumer/parasut-api-client/pkg/utils"
)

const defaultPrefix = "parasut:token:"

// entry is the JSON value stored per instance.
type entry struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// TokenSeeder accepts a restored token. *parasut.Client satisfies it.
type TokenSeeder interface {
	InstanceID() string
	UpdateToken(accessToken string, expiresAt time.Time) error
}

// RedisSink stores tokens in Redis with a TTL matching their expiry.
type RedisSink struct {
	rdb     *redis.Client
	logger  *zap.Logger
	prefix  string
	timeout time.Duration
	now     func() time.Time
}

// NewRedisSink wraps an existing Redis client.
func NewRedisSink(rdb *redis.Client, logger *zap.Logger) *RedisSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSink{
		rdb:     rdb,
		logger:  logger,
		prefix:  defaultPrefix,
		timeout: 3 * time.Second,
		now:     time.Now,
	}
}

func (s *RedisSink) key(instanceID string) string {
	return s.prefix + instanceID
}

// Save writes the token for instanceID. Tokens that are already expired are skipped.
func (s *RedisSink) Save(ctx context.Context, instanceID, accessToken string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(entry{AccessToken: accessToken, ExpiresAt: expiresAt})
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.key(instanceID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key(instanceID), err)
	}
	return nil
}

// Observe matches auth.Observer and is meant to be passed as
// parasut.Options.OnTokenReceived. Failures are logged and dropped.
func (s *RedisSink) Observe(accessToken string, expiresAt time.Time, instanceID string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.Save(ctx, instanceID, accessToken, expiresAt); err != nil {
		s.logger.Warn("parasut.tokensink.save_failed",
			zap.String("instance", instanceID),
			zap.Error(err))
		return
	}
	s.logger.Debug("parasut.tokensink.saved",
		zap.String("instance", instanceID),
		zap.String("token", utils.MaskToken(accessToken)),
		zap.Time("expires_at", expiresAt))
}

// Load returns the stored token for instanceID. ok is false when none is stored.
func (s *RedisSink) Load(ctx context.Context, instanceID string) (accessToken string, expiresAt time.Time, ok bool, err error) {
	data, err := s.rdb.Get(ctx, s.key(instanceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", time.Time{}, false, nil
	}
	if err != nil {
		return "", time.Time{}, false, fmt.Errorf("redis get %s: %w", s.key(instanceID), err)
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return "", time.Time{}, false, fmt.Errorf("decode stored token: %w", err)
	}
	if e.AccessToken == "" || !s.now().Before(e.ExpiresAt) {
		return "", time.Time{}, false, nil
	}
	return e.AccessToken, e.ExpiresAt, true, nil
}

// Restore seeds c with its stored token, if any. It reports whether a token was restored.
func (s *RedisSink) Restore(ctx context.Context, c TokenSeeder) (bool, error) {
	tok, exp, ok, err := s.Load(ctx, c.InstanceID())
	if err != nil || !ok {
		return false, err
	}
	if err := c.UpdateToken(tok, exp); err != nil {
		return false, err
	}
	s.logger.Info("parasut.tokensink.restored",
		zap.String("instance", c.InstanceID()),
		zap.Time("expires_at", exp))
	return true, nil
}
