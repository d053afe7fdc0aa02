package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RotationStore records refresh-token rotations in Redis so each jti can be
// rotated at most once. Key format: refresh:rotated:<jti>
type RotationStore struct {
	client *redis.Client
}

// NewRotationStore creates a RotationStore wrapping the given Redis client.
func NewRotationStore(client *redis.Client) *RotationStore {
	return &RotationStore{client: client}
}

// MarkRotated atomically claims the rotation of jti. It returns true for the
// first caller and false for everyone after; the marker expires with the
// refresh token it guards.
func (s *RotationStore) MarkRotated(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(jti), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark rotated: %w", err)
	}
	return ok, nil
}

func (s *RotationStore) key(jti string) string {
	return "refresh:rotated:" + jti
}
