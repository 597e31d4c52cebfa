package groups

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akademika-id/akademika/internal/shared"
)

type memoryGroupRepo struct {
	nextID  int64
	groups  map[int64]Group
	members map[int64]map[int64]struct{}
	grants  map[int64]map[int64]struct{}
	names   map[int64]string
}

func newMemoryGroupRepo() *memoryGroupRepo {
	return &memoryGroupRepo{
		groups:  make(map[int64]Group),
		members: make(map[int64]map[int64]struct{}),
		grants:  make(map[int64]map[int64]struct{}),
		names:   make(map[int64]string),
	}
}

func (m *memoryGroupRepo) ListGroups(_ context.Context) ([]Group, error) {
	out := make([]Group, 0, len(m.groups))
	for _, g := range m.groups {
		out = append(out, g)
	}
	return out, nil
}

func (m *memoryGroupRepo) CreateGroup(_ context.Context, name, kind string) (Group, error) {
	for _, g := range m.groups {
		if g.Name == name {
			return Group{}, shared.ErrDuplicate
		}
	}
	m.nextID++
	g := Group{ID: m.nextID, Name: name, Kind: kind}
	m.groups[g.ID] = g
	return g, nil
}

func (m *memoryGroupRepo) DeleteGroup(_ context.Context, id int64) error {
	if _, ok := m.groups[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.groups, id)
	delete(m.members, id)
	delete(m.grants, id)
	return nil
}

func (m *memoryGroupRepo) GetGroup(_ context.Context, id int64) (Group, error) {
	g, ok := m.groups[id]
	if !ok {
		return Group{}, shared.ErrNotFound
	}
	return g, nil
}

func (m *memoryGroupRepo) AddMember(_ context.Context, groupID, memberID int64) error {
	if m.members[groupID] == nil {
		m.members[groupID] = make(map[int64]struct{})
	}
	m.members[groupID][memberID] = struct{}{}
	return nil
}

func (m *memoryGroupRepo) RemoveMember(_ context.Context, groupID, memberID int64) error {
	delete(m.members[groupID], memberID)
	return nil
}

func (m *memoryGroupRepo) ListMembers(_ context.Context, groupID int64) ([]int64, error) {
	var out []int64
	for id := range m.members[groupID] {
		out = append(out, id)
	}
	return out, nil
}

func (m *memoryGroupRepo) AttachPermission(_ context.Context, groupID, permissionID int64) error {
	if m.grants[groupID] == nil {
		m.grants[groupID] = make(map[int64]struct{})
	}
	m.grants[groupID][permissionID] = struct{}{}
	return nil
}

func (m *memoryGroupRepo) DetachPermission(_ context.Context, groupID, permissionID int64) error {
	delete(m.grants[groupID], permissionID)
	return nil
}

func (m *memoryGroupRepo) ListPermissions(_ context.Context, groupID int64) ([]string, error) {
	var out []string
	for id := range m.grants[groupID] {
		out = append(out, m.names[id])
	}
	return out, nil
}

var _ RepositoryPort = (*memoryGroupRepo)(nil)

func TestCreateGroupValidation(t *testing.T) {
	svc := NewService(newMemoryGroupRepo())
	ctx := context.Background()

	_, err := svc.CreateGroup(ctx, "  ", KindUser)
	require.Error(t, err)

	_, err = svc.CreateGroup(ctx, "wali kelas", "team")
	require.Error(t, err)

	g, err := svc.CreateGroup(ctx, "wali kelas", KindUser)
	require.NoError(t, err)
	require.Equal(t, "wali kelas", g.Name)
	require.Equal(t, KindUser, g.Kind)

	_, err = svc.CreateGroup(ctx, "wali kelas", KindUser)
	require.True(t, errors.Is(err, shared.ErrDuplicate))
}

func TestGroupMembership(t *testing.T) {
	repo := newMemoryGroupRepo()
	svc := NewService(repo)
	ctx := context.Background()

	g, err := svc.CreateGroup(ctx, "panitia ujian", KindUser)
	require.NoError(t, err)

	require.NoError(t, svc.AddMember(ctx, g.ID, 7))
	require.NoError(t, svc.AddMember(ctx, g.ID, 7))

	members, err := svc.Members(ctx, g.ID)
	require.NoError(t, err)
	require.Equal(t, []int64{7}, members)

	require.NoError(t, svc.RemoveMember(ctx, g.ID, 7))
	members, err = svc.Members(ctx, g.ID)
	require.NoError(t, err)
	require.Empty(t, members)

	err = svc.AddMember(ctx, 999, 7)
	require.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestGroupPermissionGrants(t *testing.T) {
	repo := newMemoryGroupRepo()
	repo.names[1] = "grades.edit"
	svc := NewService(repo)
	ctx := context.Background()

	g, err := svc.CreateGroup(ctx, "kurikulum", KindRole)
	require.NoError(t, err)

	require.NoError(t, svc.AttachPermission(ctx, g.ID, 1))
	perms, err := svc.Permissions(ctx, g.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"grades.edit"}, perms)

	require.NoError(t, svc.DetachPermission(ctx, g.ID, 1))
	perms, err = svc.Permissions(ctx, g.ID)
	require.NoError(t, err)
	require.Empty(t, perms)

	err = svc.AttachPermission(ctx, 999, 1)
	require.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestDeleteGroup(t *testing.T) {
	repo := newMemoryGroupRepo()
	svc := NewService(repo)
	ctx := context.Background()

	g, err := svc.CreateGroup(ctx, "osis", KindUser)
	require.NoError(t, err)
	require.NoError(t, svc.AddMember(ctx, g.ID, 3))

	require.NoError(t, svc.DeleteGroup(ctx, g.ID))
	err = svc.DeleteGroup(ctx, g.ID)
	require.True(t, errors.Is(err, shared.ErrNotFound))
}
