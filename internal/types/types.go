// Package types holds the shared data structures used across the
// application. Handlers, storage, and the load runner all import types
// without depending on each other.
package types

// User is a single record in the users collection.
//
// ID is assigned by the store and never changes afterwards. Email carries
// no uniqueness constraint.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"  validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

// UserPatch is the body of a PUT /users/{id} request.
//
// Pointer fields distinguish "not sent" (nil) from "sent as a value".
// Only non-nil fields are written to the stored record.
type UserPatch struct {
	Name  *string `json:"name,omitempty"  validate:"omitnil,min=1"`
	Email *string `json:"email,omitempty" validate:"omitnil,email"`
}

// Apply overwrites the fields of u that are present in p.
func (p UserPatch) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
}
