package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"helmet-shop/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultCartTTL = 15 * time.Minute
	generationKey  = "cart:generation"
)

// versionTTL outlives any cached cart, so an expired counter only resets to
// a version whose carts have expired too.
const versionTTL = 24 * time.Hour

func NewRedisCartCache(client *redis.Client) *RedisCartCache {
	return &RedisCartCache{
		client:  client,
		baseTTL: defaultCartTTL,
	}
}

// RedisCartCache namespaces cart keys by a catalog generation and a per-user
// cart version. Bumping either orphans the affected carts; orphans expire by
// TTL.
type RedisCartCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r *RedisCartCache) Get(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	version, err := r.Version(ctx, userID)
	if err != nil {
		return nil, err
	}

	data, err := r.client.Get(ctx, cartKey(version, userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}

	return &cart, nil
}

// Version reads the catalog generation and the user's cart version in one
// round trip. Missing counters read as zero.
func (r *RedisCartCache) Version(ctx context.Context, userID uuid.UUID) (Version, error) {
	values, err := r.client.MGet(ctx, generationKey, versionKey(userID)).Result()
	if err != nil {
		return Version{}, fmt.Errorf("redis get version failed: %w", err)
	}

	catalog, err := counter(values[0])
	if err != nil {
		return Version{}, err
	}
	cart, err := counter(values[1])
	if err != nil {
		return Version{}, err
	}

	return Version{Catalog: catalog, Cart: cart}, nil
}

// Set stores the cart under version with up to five minutes of jitter so
// carts cached together do not expire together.
func (r *RedisCartCache) Set(ctx context.Context, userID uuid.UUID, version Version, cart *domain.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(5)) * time.Minute
	if err := r.client.Set(ctx, cartKey(version, userID), data, r.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete moves the user's cart version on, which retires the cached cart
// and any Set still holding the previous version.
func (r *RedisCartCache) Delete(ctx context.Context, userID uuid.UUID) error {
	key := versionKey(userID)

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, versionTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis version bump failed: %w", err)
	}
	return nil
}

func (r *RedisCartCache) InvalidateAll(ctx context.Context) error {
	if err := r.client.Incr(ctx, generationKey).Err(); err != nil {
		return fmt.Errorf("redis incr failed: %w", err)
	}
	return nil
}

func counter(value interface{}) (int64, error) {
	if value == nil {
		return 0, nil
	}
	raw, ok := value.(string)
	if !ok {
		return 0, fmt.Errorf("unexpected version value %v", value)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version failed: %w", err)
	}
	return n, nil
}

func versionKey(userID uuid.UUID) string {
	return fmt.Sprintf("cart:version:%s", userID)
}

func cartKey(version Version, userID uuid.UUID) string {
	return fmt.Sprintf("cart:%d:%d:%s", version.Catalog, version.Cart, userID)
}
