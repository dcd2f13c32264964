package service

import (
	"context"
	"strings"

	"helmet-shop/internal/domain"
	"helmet-shop/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Authorizer is the one place admin capability is decided.
type Authorizer interface {
	IsAdmin(ctx context.Context, principal domain.Principal) (bool, error)
}

// AdminService decides and manages admin capability.
type AdminService interface {
	Authorizer
	GrantAdmin(ctx context.Context, profileID uuid.UUID, role string) (*domain.AdminGrant, error)
	RevokeAdmin(ctx context.Context, profileID uuid.UUID) error
}

type adminService struct {
	admins     repository.AdminRepository
	adminEmail string
	logger     *zap.Logger
}

// NewAdminService creates a new instance of AdminService. adminEmail, when
// set, is always treated as an admin regardless of grants.
func NewAdminService(admins repository.AdminRepository, adminEmail string, logger *zap.Logger) AdminService {
	return &adminService{
		admins:     admins,
		adminEmail: strings.TrimSpace(adminEmail),
		logger:     logger,
	}
}

func (s *adminService) IsAdmin(ctx context.Context, principal domain.Principal) (bool, error) {
	if principal.UserID == uuid.Nil {
		return false, ErrAuthRequired
	}

	if s.adminEmail != "" && strings.EqualFold(principal.Email, s.adminEmail) {
		return true, nil
	}

	return s.admins.Exists(ctx, principal.UserID)
}

func (s *adminService) GrantAdmin(ctx context.Context, profileID uuid.UUID, role string) (*domain.AdminGrant, error) {
	role = strings.TrimSpace(role)
	if role == "" {
		role = "admin"
	}

	grant := &domain.AdminGrant{ProfileID: profileID, Role: role}
	if err := s.admins.Grant(ctx, grant); err != nil {
		return nil, err
	}

	s.logger.Info("Admin granted", zap.String("profile_id", profileID.String()), zap.String("role", role))
	return grant, nil
}

func (s *adminService) RevokeAdmin(ctx context.Context, profileID uuid.UUID) error {
	if err := s.admins.Revoke(ctx, profileID); err != nil {
		return err
	}

	s.logger.Info("Admin revoked", zap.String("profile_id", profileID.String()))
	return nil
}
