package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_pickup/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultDraftTTL = 30 * time.Minute

	maxUpdateAttempts = 5
)

func NewRedisDraftCache(client *redis.Client, ttl time.Duration) *RedisDraftCache {
	if ttl <= 0 {
		ttl = DefaultDraftTTL
	}
	return &RedisDraftCache{
		client: client,
		ttl:    ttl,
	}
}

// RedisDraftCache keeps drafts under a sliding TTL: every read or write pushes expiry out again.
type RedisDraftCache struct {
	client *redis.Client
	ttl    time.Duration
}

func (r RedisDraftCache) Get(ctx context.Context, customerID string) (*domain.Draft, error) {
	key := cacheKey(customerID)

	data, err := r.client.GetEx(ctx, key, r.ttl).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var draft domain.Draft
	if err2 := json.Unmarshal(data, &draft); err2 != nil {
		return nil, fmt.Errorf("unmarshal draft failed: %w", err2)
	}

	return &draft, nil
}

func (r RedisDraftCache) Set(ctx context.Context, customerID string, draft *domain.Draft) error {
	key := cacheKey(customerID)
	jsonDraft, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("marshal draft failed: %w", err)
	}

	if err := r.client.Set(ctx, key, string(jsonDraft), r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r RedisDraftCache) Delete(ctx context.Context, customerID string) error {
	key := cacheKey(customerID)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}

	return nil
}

// Update runs fn inside WATCH/MULTI so concurrent writers cannot drop each other's changes.
func (r RedisDraftCache) Update(ctx context.Context, customerID string, fn UpdateFunc) (*domain.Draft, error) {
	key := cacheKey(customerID)

	var updated *domain.Draft
	txf := func(tx *redis.Tx) error {
		var current *domain.Draft
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return fmt.Errorf("redis get failed: %w", err)
		default:
			current = &domain.Draft{}
			if err := json.Unmarshal(data, current); err != nil {
				return fmt.Errorf("unmarshal draft failed: %w", err)
			}
		}

		next, err := fn(current)
		if err != nil {
			return err
		}
		jsonDraft, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshal draft failed: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, string(jsonDraft), r.ttl)
			return nil
		})
		if err == nil {
			updated = next
		}
		return err
	}

	for range maxUpdateAttempts {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUpdateContended, key)
}

func cacheKey(customerID string) string {
	return fmt.Sprintf("draft:%s", customerID)
}
