package service

import (
	"context"
	"fmt"

	"helmet-shop/internal/domain"
	"helmet-shop/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProfileInput carries the fields a profile owner or admin may edit.
type ProfileInput struct {
	Username *string
	FullName *string
	Address  *string
	Phone    *string
	Age      *int
}

// ProfileService manages storefront profiles.
type ProfileService interface {
	GetProfile(ctx context.Context, principal domain.Principal) (*domain.Profile, error)
	// SaveProfile creates the caller's profile on first save.
	SaveProfile(ctx context.Context, principal domain.Principal, input ProfileInput) (*domain.Profile, error)

	ListProfiles(ctx context.Context) ([]*domain.Profile, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, input ProfileInput) (*domain.Profile, error)
	DeleteProfile(ctx context.Context, id uuid.UUID) error
}

type profileService struct {
	profiles   repository.ProfileRepository
	authorizer Authorizer
	logger     *zap.Logger
}

// NewProfileService creates a new instance of ProfileService
func NewProfileService(profiles repository.ProfileRepository, authorizer Authorizer, logger *zap.Logger) ProfileService {
	return &profileService{
		profiles:   profiles,
		authorizer: authorizer,
		logger:     logger,
	}
}

func (s *profileService) GetProfile(ctx context.Context, principal domain.Principal) (*domain.Profile, error) {
	if principal.UserID == uuid.Nil {
		return nil, ErrAuthRequired
	}

	profile, err := s.profiles.FindByID(ctx, principal.UserID)
	if err != nil {
		return nil, err
	}

	isAdmin, err := s.authorizer.IsAdmin(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve admin capability: %w", err)
	}
	profile.IsAdmin = isAdmin

	return profile, nil
}

func (s *profileService) SaveProfile(ctx context.Context, principal domain.Principal, input ProfileInput) (*domain.Profile, error) {
	if principal.UserID == uuid.Nil {
		return nil, ErrAuthRequired
	}

	if err := validateProfileInput(input); err != nil {
		return nil, err
	}

	profile := applyProfileInput(&domain.Profile{ID: principal.UserID, Email: principal.Email}, input)
	if err := s.profiles.Upsert(ctx, profile); err != nil {
		return nil, err
	}

	return s.GetProfile(ctx, principal)
}

func (s *profileService) ListProfiles(ctx context.Context) ([]*domain.Profile, error) {
	return s.profiles.List(ctx)
}

// UpdateProfile edits an existing profile; it never creates one.
func (s *profileService) UpdateProfile(ctx context.Context, id uuid.UUID, input ProfileInput) (*domain.Profile, error) {
	if err := validateProfileInput(input); err != nil {
		return nil, err
	}

	existing, err := s.profiles.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	profile := applyProfileInput(&domain.Profile{ID: id, Email: existing.Email}, input)
	if err := s.profiles.Upsert(ctx, profile); err != nil {
		return nil, err
	}

	s.logger.Info("Profile updated by admin", zap.String("profile_id", id.String()))
	return s.profiles.FindByID(ctx, id)
}

func (s *profileService) DeleteProfile(ctx context.Context, id uuid.UUID) error {
	if err := s.profiles.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("Profile deleted", zap.String("profile_id", id.String()))
	return nil
}

func applyProfileInput(profile *domain.Profile, input ProfileInput) *domain.Profile {
	profile.Username = input.Username
	profile.FullName = input.FullName
	profile.Address = input.Address
	profile.Phone = input.Phone
	profile.Age = input.Age
	return profile
}

func validateProfileInput(input ProfileInput) error {
	if input.Age != nil && (*input.Age < 0 || *input.Age > 150) {
		return fmt.Errorf("%w: age out of range", ErrInvalidProfile)
	}
	return nil
}
