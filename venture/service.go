package venture

import "context"

// ProfileReader abstracts repository operations for the service.
type ProfileReader interface {
	GetByID(ctx context.Context, id string) (Profile, error)
	List(ctx context.Context, limit int) ([]Profile, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Profile, error)
}

// Service exposes business-level venture operations.
type Service struct {
	repo ProfileReader
}

// NewService builds a Service using the provided repository.
func NewService(repo ProfileReader) *Service {
	return &Service{repo: repo}
}

// GetByID returns the venture profile for the given identifier.
func (s *Service) GetByID(ctx context.Context, id string) (Profile, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns up to limit venture profiles.
func (s *Service) List(ctx context.Context, limit int) ([]Profile, error) {
	return s.repo.List(ctx, limit)
}

// ListByOwner returns the ventures operated by one seller.
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]Profile, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}
