package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aanand-mishra/users-api/internal/storage"
	"github.com/aanand-mishra/users-api/internal/types"
)

func strPtr(s string) *string { return &s }

func TestNew_Seeded(t *testing.T) {
	m := New()

	users, err := m.GetUsers()
	require.NoError(t, err)
	require.Len(t, users, 3)

	for i, u := range users {
		assert.Equal(t, int64(i+1), u.ID)
	}
}

func TestGetUserByID(t *testing.T) {
	m := New()

	for _, seeded := range Seed {
		u, err := m.GetUserByID(seeded.ID)
		require.NoError(t, err)
		assert.Equal(t, seeded, u)
	}

	_, err := m.GetUserByID(999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Contains(t, err.Error(), "999")
}

func TestCreateUser_Lifecycle(t *testing.T) {
	m := New()

	created, err := m.CreateUser("X", "x@y.com")
	require.NoError(t, err)
	assert.Equal(t, types.User{ID: 4, Name: "X", Email: "x@y.com"}, created)
	assert.Equal(t, 4, m.Count())

	got, err := m.GetUserByID(4)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	require.NoError(t, m.DeleteUserByID(4))
	assert.Equal(t, 3, m.Count())

	_, err = m.GetUserByID(4)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCreateUser_IDsNeverReused(t *testing.T) {
	m := New()

	first, err := m.CreateUser("a", "a@example.com")
	require.NoError(t, err)
	require.NoError(t, m.DeleteUserByID(first.ID))

	second, err := m.CreateUser("b", "b@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID+1, second.ID)
}

func TestCreateUser_AppendsInOrder(t *testing.T) {
	m := New()

	_, err := m.CreateUser("a", "dup@example.com")
	require.NoError(t, err)
	_, err = m.CreateUser("b", "dup@example.com")
	require.NoError(t, err)

	users, err := m.GetUsers()
	require.NoError(t, err)
	require.Len(t, users, 5)
	assert.Equal(t, "a", users[3].Name)
	assert.Equal(t, "b", users[4].Name)
}

func TestUpdateUserByID_Partial(t *testing.T) {
	tests := []struct {
		name  string
		patch types.UserPatch
		want  types.User
	}{
		{
			name:  "name only",
			patch: types.UserPatch{Name: strPtr("Johnny")},
			want:  types.User{ID: 1, Name: "Johnny", Email: "john@example.com"},
		},
		{
			name:  "email only",
			patch: types.UserPatch{Email: strPtr("johnny@example.com")},
			want:  types.User{ID: 1, Name: "John Doe", Email: "johnny@example.com"},
		},
		{
			name:  "both",
			patch: types.UserPatch{Name: strPtr("J"), Email: strPtr("j@example.com")},
			want:  types.User{ID: 1, Name: "J", Email: "j@example.com"},
		},
		{
			name:  "empty patch",
			patch: types.UserPatch{},
			want:  Seed[0],
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()

			updated, err := m.UpdateUserByID(1, tt.patch)
			require.NoError(t, err)
			assert.Equal(t, tt.want, updated)

			stored, err := m.GetUserByID(1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stored)
		})
	}
}

func TestMissingID_AlwaysNotFound(t *testing.T) {
	m := New()

	_, err := m.GetUserByID(999)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = m.UpdateUserByID(999, types.UserPatch{Name: strPtr("x")})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = m.DeleteUserByID(999)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.Equal(t, 3, m.Count())
}

func TestDeleteUserByID_KeepsOrder(t *testing.T) {
	m := New()

	require.NoError(t, m.DeleteUserByID(2))

	users, err := m.GetUsers()
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, int64(1), users[0].ID)
	assert.Equal(t, int64(3), users[1].ID)
}

func TestGetUsers_ReturnsCopy(t *testing.T) {
	m := New()

	users, err := m.GetUsers()
	require.NoError(t, err)
	users[0].Name = "mutated"

	stored, err := m.GetUserByID(1)
	require.NoError(t, err)
	assert.Equal(t, "John Doe", stored.Name)
}

func TestGetUsers_EmptyIsNotNil(t *testing.T) {
	m := NewWithSeed(nil)

	users, err := m.GetUsers()
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)

	u, err := m.CreateUser("first", "first@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
}

func TestReset(t *testing.T) {
	m := New()

	_, err := m.CreateUser("x", "x@example.com")
	require.NoError(t, err)
	require.NoError(t, m.DeleteUserByID(1))

	m.Reset()

	users, err := m.GetUsers()
	require.NoError(t, err)
	assert.Equal(t, Seed, users)

	u, err := m.CreateUser("y", "y@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(4), u.ID)
}

func TestConcurrentCreates_UniqueIDs(t *testing.T) {
	m := New()

	const n = 100
	ids := make(chan int64, n)

	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := m.CreateUser("c", "c@example.com")
			assert.NoError(t, err)
			ids <- u.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool, n)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Equal(t, 3+n, m.Count())
}
