package roles

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akademika-id/akademika/internal/shared"
)

type memoryRoleRepo struct {
	roles map[int64]Role
}

func (m *memoryRoleRepo) ListRoles(_ context.Context) ([]Role, error) {
	out := make([]Role, 0, len(m.roles))
	for _, r := range m.roles {
		out = append(out, r)
	}
	return out, nil
}

func (m *memoryRoleRepo) GetRole(_ context.Context, id int64) (Role, error) {
	r, ok := m.roles[id]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	return r, nil
}

func (m *memoryRoleRepo) UpdateParent(_ context.Context, id int64, parentID *int64) error {
	r, ok := m.roles[id]
	if !ok {
		return shared.ErrNotFound
	}
	r.ParentID = parentID
	m.roles[id] = r
	return nil
}

var _ RepositoryPort = (*memoryRoleRepo)(nil)

func ref(id int64) *int64 { return &id }

func TestSetParent(t *testing.T) {
	repo := &memoryRoleRepo{roles: map[int64]Role{
		1: {ID: 1, Name: "staff"},
		2: {ID: 2, Name: "teacher"},
	}}
	svc := NewService(repo)
	ctx := context.Background()

	require.NoError(t, svc.SetParent(ctx, 2, ref(1)))
	require.Equal(t, int64(1), *repo.roles[2].ParentID)

	require.NoError(t, svc.SetParent(ctx, 2, nil))
	require.Nil(t, repo.roles[2].ParentID)

	err := svc.SetParent(ctx, 99, ref(1))
	require.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestSetParentRejectsCycles(t *testing.T) {
	repo := &memoryRoleRepo{roles: map[int64]Role{
		1: {ID: 1, Name: "staff"},
		2: {ID: 2, Name: "teacher", ParentID: ref(1)},
		3: {ID: 3, Name: "homeroom", ParentID: ref(2)},
	}}
	svc := NewService(repo)
	ctx := context.Background()

	require.True(t, errors.Is(svc.SetParent(ctx, 1, ref(1)), ErrParentCycle))
	require.True(t, errors.Is(svc.SetParent(ctx, 1, ref(3)), ErrParentCycle))

	// Re-parenting within the chain without closing a loop is allowed.
	require.NoError(t, svc.SetParent(ctx, 3, ref(1)))
}
