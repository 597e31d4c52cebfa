package groups

import (
	"context"
	"errors"
	"strings"
)

// RepositoryPort defines data access methods for groups.
type RepositoryPort interface {
	ListGroups(ctx context.Context) ([]Group, error)
	CreateGroup(ctx context.Context, name, kind string) (Group, error)
	DeleteGroup(ctx context.Context, id int64) error
	GetGroup(ctx context.Context, id int64) (Group, error)
	AddMember(ctx context.Context, groupID, memberID int64) error
	RemoveMember(ctx context.Context, groupID, memberID int64) error
	ListMembers(ctx context.Context, groupID int64) ([]int64, error)
	AttachPermission(ctx context.Context, groupID, permissionID int64) error
	DetachPermission(ctx context.Context, groupID, permissionID int64) error
	ListPermissions(ctx context.Context, groupID int64) ([]string, error)
}

// Service handles group administration.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListGroups returns all groups.
func (s *Service) ListGroups(ctx context.Context) ([]Group, error) {
	return s.repo.ListGroups(ctx)
}

// CreateGroup makes a new user or role set.
func (s *Service) CreateGroup(ctx context.Context, name, kind string) (Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Group{}, errors.New("groups: name required")
	}
	if kind != KindUser && kind != KindRole {
		return Group{}, errors.New("groups: kind must be user or role")
	}
	return s.repo.CreateGroup(ctx, name, kind)
}

// DeleteGroup removes a group and its edges.
func (s *Service) DeleteGroup(ctx context.Context, id int64) error {
	return s.repo.DeleteGroup(ctx, id)
}

// AddMember adds a user or role to the group.
func (s *Service) AddMember(ctx context.Context, groupID, memberID int64) error {
	if _, err := s.repo.GetGroup(ctx, groupID); err != nil {
		return err
	}
	return s.repo.AddMember(ctx, groupID, memberID)
}

// RemoveMember drops a member from the group.
func (s *Service) RemoveMember(ctx context.Context, groupID, memberID int64) error {
	return s.repo.RemoveMember(ctx, groupID, memberID)
}

// Members lists member ids.
func (s *Service) Members(ctx context.Context, groupID int64) ([]int64, error) {
	return s.repo.ListMembers(ctx, groupID)
}

// AttachPermission bulk-grants a permission through the group.
func (s *Service) AttachPermission(ctx context.Context, groupID, permissionID int64) error {
	if _, err := s.repo.GetGroup(ctx, groupID); err != nil {
		return err
	}
	return s.repo.AttachPermission(ctx, groupID, permissionID)
}

// DetachPermission revokes a group grant.
func (s *Service) DetachPermission(ctx context.Context, groupID, permissionID int64) error {
	return s.repo.DetachPermission(ctx, groupID, permissionID)
}

// Permissions lists the group's granted permission names.
func (s *Service) Permissions(ctx context.Context, groupID int64) ([]string, error) {
	return s.repo.ListPermissions(ctx, groupID)
}
