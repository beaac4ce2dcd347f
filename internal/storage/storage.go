// Package storage defines the Storage interface that any users backend
// must satisfy, plus the errors backends report through it.
//
// Handlers depend only on this interface. Tests pass the in-memory
// implementation or a fake.
package storage

import (
	"errors"

	"github.com/aanand-mishra/users-api/internal/types"
)

// ErrNotFound is returned (wrapped) when an id lookup misses.
// Callers check it with errors.Is.
var ErrNotFound = errors.New("user not found")

// Storage is the users collection contract.
type Storage interface {
	// CreateUser appends a new user and returns it with its assigned ID.
	CreateUser(name string, email string) (types.User, error)

	// GetUserByID returns the user with the given ID, or ErrNotFound.
	GetUserByID(id int64) (types.User, error)

	// GetUsers returns every user in insertion order.
	// Returns an empty slice (not nil) when the collection is empty.
	GetUsers() ([]types.User, error)

	// UpdateUserByID overwrites the fields present in patch and returns
	// the updated user, or ErrNotFound.
	UpdateUserByID(id int64, patch types.UserPatch) (types.User, error)

	// DeleteUserByID removes the user, or returns ErrNotFound.
	DeleteUserByID(id int64) error
}
