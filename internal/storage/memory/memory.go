// Package memory provides an in-process implementation of the
// storage.Storage interface backed by an ordered slice.
//
// Nothing is persisted: a new Memory (or a call to Reset) starts from the
// seeded set. All access goes through one RWMutex, so a single *Memory is
// safe for concurrent use by the HTTP server's goroutines.
package memory

import (
	"fmt"
	"sync"

	"github.com/aanand-mishra/users-api/internal/storage"
	"github.com/aanand-mishra/users-api/internal/types"
)

// Seed is the set of users every new store starts with.
var Seed = []types.User{
	{ID: 1, Name: "John Doe", Email: "john@example.com"},
	{ID: 2, Name: "Jane Smith", Email: "jane@example.com"},
	{ID: 3, Name: "Bob Johnson", Email: "bob@example.com"},
}

// Memory is the in-memory users collection.
type Memory struct {
	mu     sync.RWMutex
	users  []types.User
	nextID int64
	seed   []types.User
}

// New returns a store holding a copy of Seed.
func New() *Memory {
	return NewWithSeed(Seed)
}

// NewWithSeed returns a store holding a copy of seed. The ID counter starts
// after the largest seeded ID.
func NewWithSeed(seed []types.User) *Memory {
	m := &Memory{seed: append([]types.User(nil), seed...)}
	m.Reset()
	return m
}

// Reset restores the seeded set and rewinds the ID counter.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.users = append(make([]types.User, 0, len(m.seed)), m.seed...)
	m.nextID = 1
	for _, u := range m.seed {
		if u.ID >= m.nextID {
			m.nextID = u.ID + 1
		}
	}
}

// CreateUser appends a user under the next sequential ID. IDs are never
// reused, even after the user holding one is deleted.
func (m *Memory) CreateUser(name, email string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user := types.User{ID: m.nextID, Name: name, Email: email}
	m.nextID++
	m.users = append(m.users, user)

	return user, nil
}

// GetUserByID scans the collection for id.
func (m *Memory) GetUserByID(id int64) (types.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := m.indexOf(id)
	if i < 0 {
		return types.User{}, notFound(id)
	}
	return m.users[i], nil
}

// GetUsers returns a copy of the collection in insertion order.
func (m *Memory) GetUsers() ([]types.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]types.User, len(m.users))
	copy(users, m.users)
	return users, nil
}

// UpdateUserByID overwrites only the fields present in patch.
func (m *Memory) UpdateUserByID(id int64, patch types.UserPatch) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return types.User{}, notFound(id)
	}

	patch.Apply(&m.users[i])
	return m.users[i], nil
}

// DeleteUserByID removes the user in place, keeping the order of the rest.
func (m *Memory) DeleteUserByID(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return notFound(id)
	}

	m.users = append(m.users[:i], m.users[i+1:]...)
	return nil
}

// Count returns the number of stored users.
func (m *Memory) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}

// indexOf must be called with mu held.
func (m *Memory) indexOf(id int64) int {
	for i := range m.users {
		if m.users[i].ID == id {
			return i
		}
	}
	return -1
}

func notFound(id int64) error {
	return fmt.Errorf("user with id %d: %w", id, storage.ErrNotFound)
}

var _ storage.Storage = (*Memory)(nil)
