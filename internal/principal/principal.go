// Package principal carries the authenticated caller through request handling.
package principal

import (
	"context"
	"errors"
	"strings"
)

// Role is the caller class supplied by the identity collaborator.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCompany  Role = "company"
	RoleCustomer Role = "customer"
)

// ErrInvalid is returned when the user id or role cannot be trusted.
var ErrInvalid = errors.New("principal: invalid user id or role")

// Principal identifies the caller of a service operation.
type Principal struct {
	UserID int64
	Role   Role
}

// New validates and builds a Principal.
func New(userID int64, role string) (Principal, error) {
	if userID <= 0 {
		return Principal{}, ErrInvalid
	}
	r := Role(strings.ToLower(strings.TrimSpace(role)))
	switch r {
	case RoleAdmin, RoleCompany, RoleCustomer:
		return Principal{UserID: userID, Role: r}, nil
	default:
		return Principal{}, ErrInvalid
	}
}

// Is reports whether the principal has the given role.
func (p Principal) Is(role Role) bool {
	return p.Role == role
}

// IsAdmin reports whether the principal is a platform administrator.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// CanSee reports whether the principal is a party to a record owned by companyID and customerID,
// or an administrator.
func (p Principal) CanSee(companyID, customerID int64) bool {
	switch p.Role {
	case RoleAdmin:
		return true
	case RoleCompany:
		return p.UserID == companyID
	case RoleCustomer:
		return p.UserID == customerID
	default:
		return false
	}
}

type contextKey struct{}

// WithContext stores p on ctx for transport layers.
func WithContext(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext retrieves the principal stored by WithContext.
func FromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok
}
