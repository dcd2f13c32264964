package service

import (
	"context"
	"errors"
	"time"

	"helmet-shop/internal/cache"
	"helmet-shop/internal/domain"
	"helmet-shop/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const cartLoadTimeout = 5 * time.Second

// CartService manages the authenticated user's cart.
type CartService interface {
	AddToCart(ctx context.Context, userID uuid.UUID, key domain.CartKey) (*domain.CartEntry, error)
	// UpdateQuantity overwrites the quantity; zero or less removes the entry.
	UpdateQuantity(ctx context.Context, userID uuid.UUID, key domain.CartKey, quantity int) error
	RemoveFromCart(ctx context.Context, userID uuid.UUID, key domain.CartKey) error
	GetCart(ctx context.Context, userID uuid.UUID) (*domain.Cart, error)
	Invalidate(userID uuid.UUID)
}

type cartService struct {
	repo   repository.CartRepository
	cache  cache.CartCache
	sfg    singleflight.Group
	logger *zap.Logger
}

// NewCartService creates a new instance of CartService
func NewCartService(repo repository.CartRepository, cartCache cache.CartCache, logger *zap.Logger) CartService {
	return &cartService{
		repo:   repo,
		cache:  cartCache,
		logger: logger,
	}
}

func (s *cartService) AddToCart(ctx context.Context, userID uuid.UUID, key domain.CartKey) (*domain.CartEntry, error) {
	if userID == uuid.Nil {
		return nil, ErrAuthRequired
	}

	entry, err := s.repo.Increment(ctx, userID, key)
	if err != nil {
		return nil, err
	}

	s.Invalidate(userID)
	return entry, nil
}

func (s *cartService) UpdateQuantity(ctx context.Context, userID uuid.UUID, key domain.CartKey, quantity int) error {
	if userID == uuid.Nil {
		return ErrAuthRequired
	}

	if quantity <= 0 {
		return s.RemoveFromCart(ctx, userID, key)
	}

	if err := s.repo.SetQuantity(ctx, userID, key, quantity); err != nil {
		return err
	}

	s.Invalidate(userID)
	return nil
}

func (s *cartService) RemoveFromCart(ctx context.Context, userID uuid.UUID, key domain.CartKey) error {
	if userID == uuid.Nil {
		return ErrAuthRequired
	}

	if err := s.repo.Remove(ctx, userID, key); err != nil {
		return err
	}

	s.Invalidate(userID)
	return nil
}

// GetCart serves from cache and collapses concurrent misses for one user
// into a single database read. The shared read does not inherit any one
// caller's cancellation; each caller still stops waiting when its own
// context ends.
func (s *cartService) GetCart(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	if userID == uuid.Nil {
		return nil, ErrAuthRequired
	}

	ch := s.sfg.DoChan(userID.String(), func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cartLoadTimeout)
		defer cancel()
		return s.loadCart(loadCtx, userID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.Cart), nil
	}
}

func (s *cartService) loadCart(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	cart, err := s.cache.Get(ctx, userID)
	if err == nil {
		return cart, nil
	}

	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("Cart cache read failed", zap.String("user_id", userID.String()), zap.Error(err))
	}

	// Taken before the read so a write landing mid-read retires this result.
	version, versionErr := s.cache.Version(ctx, userID)

	entries, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	cart = &domain.Cart{UserID: userID, Items: entries}

	if versionErr != nil {
		s.logger.Warn("Cart cache version read failed", zap.String("user_id", userID.String()), zap.Error(versionErr))
		return cart, nil
	}

	if err := s.cache.Set(ctx, userID, version, cart); err != nil {
		s.logger.Warn("Cart cache write failed", zap.String("user_id", userID.String()), zap.Error(err))
	}

	return cart, nil
}

// Invalidate drops the cached cart after any write to it. Readers arriving
// afterwards start a fresh load instead of joining one begun before the write.
func (s *cartService) Invalidate(userID uuid.UUID) {
	s.sfg.Forget(userID.String())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := s.cache.Delete(ctx, userID); err != nil {
		s.logger.Warn("Cart cache invalidation failed", zap.String("user_id", userID.String()), zap.Error(err))
	}
}
