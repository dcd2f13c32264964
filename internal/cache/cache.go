package cache

import (
	"context"
	"errors"

	"helmet-shop/internal/domain"

	"github.com/google/uuid"
)

// Version identifies the state a cached cart was assembled under. Catalog
// moves on every catalog change, Cart on every write to that user's cart.
type Version struct {
	Catalog int64
	Cart    int64
}

// CartCache holds assembled carts keyed by user. Cached carts embed product
// data, so catalog changes call InvalidateAll.
//
// A reader takes Version before loading from the database and hands it to
// Set. A write that lands in between moves the version on, and the late Set
// is then never read back.
type CartCache interface {
	Get(ctx context.Context, userID uuid.UUID) (*domain.Cart, error)
	Version(ctx context.Context, userID uuid.UUID) (Version, error)
	Set(ctx context.Context, userID uuid.UUID, version Version, cart *domain.Cart) error
	Delete(ctx context.Context, userID uuid.UUID) error
	InvalidateAll(ctx context.Context) error
}

var ErrCacheMiss = errors.New("cache miss")

// NoopCartCache always misses. Used when Redis is not reachable at startup.
type NoopCartCache struct{}

func (NoopCartCache) Get(context.Context, uuid.UUID) (*domain.Cart, error) { return nil, ErrCacheMiss }

func (NoopCartCache) Version(context.Context, uuid.UUID) (Version, error) { return Version{}, nil }

func (NoopCartCache) Set(context.Context, uuid.UUID, Version, *domain.Cart) error { return nil }

func (NoopCartCache) Delete(context.Context, uuid.UUID) error { return nil }

func (NoopCartCache) InvalidateAll(context.Context) error { return nil }
