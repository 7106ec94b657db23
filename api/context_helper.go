package api

import (
	"context"
	"time"

	"github.com/linesmerrill/resolveit-api/lifecycle"
	"github.com/linesmerrill/resolveit-api/models"
)

// QueryTimeout is the default timeout for database queries
const QueryTimeout = 10 * time.Second

// WithQueryTimeout creates a context with query timeout
func WithQueryTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, QueryTimeout)
}

// Identity is the authenticated caller attached to a request by Middleware
type Identity struct {
	ID    string
	Email string
	Role  string
}

// Actor converts the identity into the caller passed to lifecycle operations
func (i Identity) Actor() lifecycle.Actor {
	return lifecycle.Actor{ID: i.ID, Role: i.Role}
}

// IsAdmin reports whether the caller holds the admin role
func (i Identity) IsAdmin() bool {
	return i.Role == models.UserRoleAdmin
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity stored by WithIdentity
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
