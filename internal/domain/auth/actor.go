// Package auth resolves API keys into verified actors. Store operations and
// handlers receive an Actor resolved once at the HTTP boundary instead of
// trusting a caller-supplied name string.
package auth

import "context"

// Role classifies what an actor may do with orders.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleRestaurant Role = "restaurant"
	RoleCourier    Role = "courier"
	RoleAdmin      Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleRestaurant, RoleCourier, RoleAdmin:
		return true
	}
	return false
}

// Actor is a verified identity attached to a request after API key
// authentication. Name is the display name the order filters match against:
// the customer name, the restaurant name, or the courier name, depending on
// the role.
type Actor struct {
	ID    string
	Name  string
	Phone string
	Role  Role
}

// APIKeyInfo holds the stored credential record for a validated API key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	Phone   string
	Role    Role
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}

type actorKey struct{}

// WithActor returns a context carrying the verified actor.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFromContext extracts the verified actor, if any.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}
