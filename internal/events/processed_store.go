// Package events tracks which webhook events were already handled, so
// platform redeliveries do not trigger duplicate automated responses.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultTTL = 24 * time.Hour

// ProcessedStore is a Redis-backed dedupe guard keyed by provider message id.
// A nil store is valid and reports every event as unseen; the pipeline is
// idempotent at the storage layer anyway, this guard only saves the duplicate
// send.
type ProcessedStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewProcessedStore(client redis.UniversalClient, ttl time.Duration) *ProcessedStore {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &ProcessedStore{client: client, ttl: ttl}
}

func key(eventID string) string {
	return "concierge:processed:" + eventID
}

// MarkProcessed claims an event id, returning true when this is the first
// sighting. SETNX makes the claim atomic across instances.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	if s == nil {
		return true, nil
	}
	ok, err := s.client.SetNX(ctx, key(eventID), time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return ok, nil
}

// AlreadyProcessed reports whether an event id was claimed before.
func (s *ProcessedStore) AlreadyProcessed(ctx context.Context, eventID string) (bool, error) {
	if s == nil {
		return false, nil
	}
	n, err := s.client.Exists(ctx, key(eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("events: check processed: %w", err)
	}
	return n > 0, nil
}
