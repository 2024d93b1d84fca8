package user

import (
	"context"

	"github.com/google/uuid"
)

// Role is the authorization role stored on a user record.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User is a shop account. Users are owned by the identity service; this
// service only reads them.
type User struct {
	id    uuid.UUID
	name  string
	email string
	role  Role
}

// Reconstruct rebuilds a User from persistence. An empty role means RoleUser.
func Reconstruct(id uuid.UUID, name, email string, role Role) *User {
	if role == "" {
		role = RoleUser
	}
	return &User{id: id, name: name, email: email, role: role}
}

func (u *User) ID() uuid.UUID { return u.id }
func (u *User) Name() string  { return u.name }
func (u *User) Email() string { return u.email }
func (u *User) Role() Role    { return u.role }

// Identity is the resolved caller of an operation. A nil *Identity is the
// anonymous caller and has no id and no role.
type Identity struct {
	ID   uuid.UUID
	Role Role
}

// IdentityOf builds the caller identity for a stored user.
func IdentityOf(u *User) *Identity {
	return &Identity{ID: u.id, Role: u.role}
}

// IsAdmin reports whether the caller holds the admin role.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

// Is reports whether the caller is the given user.
func (i *Identity) Is(id uuid.UUID) bool {
	return i != nil && i.ID != uuid.Nil && i.ID == id
}

// MemberOf reports whether the caller's id appears in ids.
func (i *Identity) MemberOf(ids []uuid.UUID) bool {
	if i == nil || i.ID == uuid.Nil {
		return false
	}
	for _, id := range ids {
		if id == i.ID {
			return true
		}
	}
	return false
}

// Repository is the read-only view of the user directory.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*User, error)
	ListAll(ctx context.Context) ([]*User, error)
}
