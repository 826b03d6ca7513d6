package users

import (
	"context"
)

// RepositoryPort defines data access methods for the directory.
type RepositoryPort interface {
	ListUsers(ctx context.Context, orgID int64) ([]User, error)
	GetUser(ctx context.Context, id int64) (User, error)
}

// Service handles directory reads.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListUsers returns the organization's users.
func (s *Service) ListUsers(ctx context.Context, orgID int64) ([]User, error) {
	return s.repo.ListUsers(ctx, orgID)
}

// GetUser returns one user.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}
