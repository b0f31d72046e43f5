package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oggyb/match-relay/internal/cache"
)

// Kind tags what a user's next free-form input means.
type Kind string

const (
	// KindNone routes free-form input to the chat relay.
	KindNone Kind = ""
	// KindReportReason captures the next text as a report reason for TargetID.
	KindReportReason Kind = "report_reason"
)

// Intent is the per-user pending input state.
type Intent struct {
	Kind     Kind   `json:"kind"`
	TargetID uint64 `json:"target_id,omitempty"`
}

// Store keeps intents in Redis under intent:<user_id>. Entries expire after
// the TTL so an abandoned flow never captures input indefinitely.
type Store struct {
	cache *cache.RedisCache
	ttl   time.Duration
}

func NewStore(c *cache.RedisCache, ttl time.Duration) *Store {
	return &Store{cache: c, ttl: ttl}
}

func key(userID uint64) string {
	return fmt.Sprintf("intent:%d", userID)
}

// Get returns the current intent, or the zero Intent (KindNone) when unset.
func (s *Store) Get(ctx context.Context, userID uint64) (Intent, error) {
	raw, err := s.cache.Get(ctx, key(userID))
	if errors.Is(err, redis.Nil) {
		return Intent{}, nil
	}
	if err != nil {
		return Intent{}, fmt.Errorf("failed to read intent: %w", err)
	}

	var in Intent
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		// unreadable entry: treat as none and drop it
		_ = s.cache.Del(ctx, key(userID))
		return Intent{}, nil
	}
	return in, nil
}

func (s *Store) Set(ctx context.Context, userID uint64, in Intent) error {
	if in.Kind == KindNone {
		return s.Clear(ctx, userID)
	}
	b, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal intent: %w", err)
	}
	if err := s.cache.Set(ctx, key(userID), b, s.ttl); err != nil {
		return fmt.Errorf("failed to store intent: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context, userID uint64) error {
	if err := s.cache.Del(ctx, key(userID)); err != nil {
		return fmt.Errorf("failed to clear intent: %w", err)
	}
	return nil
}
