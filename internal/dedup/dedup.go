// Package dedup maintains the set of known audio fingerprints in
// Valkey/Redis. Membership queries are idempotent and additions are
// commutative, so re-adding after a retried stage is harmless.
package dedup

import (
	"context"
	"fmt"
	"log/slog"

	"memovault/internal/config"

	"github.com/redis/go-redis/v9"
)

// FingerprintSetKey is the Redis set holding every known audio fingerprint.
const FingerprintSetKey = "memovault:audio-fingerprints"

// Service is the fingerprint-set client.
type Service struct {
	client *redis.Client
}

// NewService connects to the configured Valkey instance.
func NewService(ctx context.Context) (*Service, error) {
	addr := fmt.Sprintf("%s:%d", config.ValkeyHost, config.ValkeyPort)
	slog.Debug("Connecting to fingerprint set", "addr", addr)

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: "",
		DB:       0,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	slog.Info("Fingerprint set initialized", "addr", addr)
	return &Service{client: client}, nil
}

// NewServiceWithClient wraps an existing Redis client (for testing).
func NewServiceWithClient(client *redis.Client) *Service {
	return &Service{client: client}
}

// IsDuplicate reports whether the fingerprint is already known.
func (s *Service) IsDuplicate(ctx context.Context, audioFP string) (bool, error) {
	if s.client == nil {
		return false, fmt.Errorf("fingerprint set is not connected")
	}

	exists, err := s.client.SIsMember(ctx, FingerprintSetKey, audioFP).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check fingerprint: %w", err)
	}
	return exists, nil
}

// AddFingerprint records a fingerprint. Callers add only after the capture
// row is durably staged.
func (s *Service) AddFingerprint(ctx context.Context, audioFP string) error {
	if s.client == nil {
		return fmt.Errorf("fingerprint set is not connected")
	}

	if err := s.client.SAdd(ctx, FingerprintSetKey, audioFP).Err(); err != nil {
		return fmt.Errorf("failed to add fingerprint: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (s *Service) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
