package roles

import (
	"context"
	"errors"
)

// ErrParentCycle is returned when a parent link would make a role its own
// ancestor.
var ErrParentCycle = errors.New("roles: parent link would create a cycle")

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	UpdateParent(ctx context.Context, id int64, parentID *int64) error
}

// Service handles role business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// SetParent links a role under a new parent, or clears the link when parentID
// is nil. The proposed parent's ancestor chain must not contain the role
// itself; permission resolution tolerates cycles, but administration refuses
// to create them.
func (s *Service) SetParent(ctx context.Context, id int64, parentID *int64) error {
	if _, err := s.repo.GetRole(ctx, id); err != nil {
		return err
	}
	if parentID != nil {
		if *parentID == id {
			return ErrParentCycle
		}
		visited := map[int64]struct{}{id: {}}
		next := parentID
		for next != nil {
			if _, seen := visited[*next]; seen {
				return ErrParentCycle
			}
			visited[*next] = struct{}{}
			ancestor, err := s.repo.GetRole(ctx, *next)
			if err != nil {
				return err
			}
			next = ancestor.ParentID
		}
	}
	return s.repo.UpdateParent(ctx, id, parentID)
}
