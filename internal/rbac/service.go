package rbac

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/akademika-id/akademika/internal/shared"
)

// Service computes effective permission sets and authorization decisions.
// It only ever reads the grant graph.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// EffectivePermissions computes the union of role-hierarchy grants, direct
// user grants and group grants for a user. An empty set is a valid outcome,
// not an error: a missing role or an empty grant table resolves to no
// permissions.
//
// The role chain is walked with an explicit worklist and a visited set, so a
// malformed cycle in the administered parent relation terminates instead of
// looping, contributing each role's grants exactly once.
func (s *Service) EffectivePermissions(ctx context.Context, userID, roleID int64) (map[string]struct{}, error) {
	effective := make(map[string]struct{})

	visited := make(map[int64]struct{})
	var chain []int64
	worklist := []int64{roleID}
	for len(worklist) > 0 {
		id := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		if id <= 0 {
			continue
		}
		if _, seen := visited[id]; seen {
			continue
		}
		visited[id] = struct{}{}
		chain = append(chain, id)

		role, err := s.repo.GetRole(ctx, id)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				continue
			}
			return nil, err
		}
		perms, err := s.repo.RolePermissions(ctx, id)
		if err != nil {
			return nil, err
		}
		addAll(effective, perms)

		if role.ParentID != nil {
			worklist = append(worklist, *role.ParentID)
		}
	}

	direct, err := s.repo.UserPermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	addAll(effective, direct)

	userGroups, err := s.repo.UserGroupPermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	addAll(effective, userGroups)

	roleGroups, err := s.repo.RoleGroupPermissions(ctx, chain)
	if err != nil {
		return nil, err
	}
	addAll(effective, roleGroups)

	return effective, nil
}

// Authorize tests whether the principal holds the required permission.
// A missing permission is ErrForbidden; a missing principal is
// ErrUnauthenticated. The decision is stateless and repeatable.
func (s *Service) Authorize(ctx context.Context, principal *shared.Principal, required string) error {
	if principal == nil {
		return shared.ErrUnauthenticated
	}
	required = normalize(required)
	if required == "" {
		return nil
	}
	effective, err := s.EffectivePermissions(ctx, principal.UserID, principal.RoleID)
	if err != nil {
		s.logger.Error("resolve permissions", slog.Int64("user_id", principal.UserID), slog.Any("error", err))
		return err
	}
	if _, ok := effective[required]; !ok {
		return shared.ErrForbidden
	}
	return nil
}

// ListPermissions returns the administered permission catalog.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

func addAll(set map[string]struct{}, names []string) {
	for _, name := range names {
		name = normalize(name)
		if name == "" {
			continue
		}
		set[name] = struct{}{}
	}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
