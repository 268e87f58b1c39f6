// Package identity exposes request claims as an explicit capability instead
// of ambient context lookups. Absent claims yield empty strings, never errors.
package identity

import (
	"context"
	"net/http"
)

type Provider interface {
	UserUUID() string
	RestaurantUUID() string
	UserName() string
}

type claims struct {
	userUUID       string
	restaurantUUID string
	userName       string
}

func (c claims) UserUUID() string       { return c.userUUID }
func (c claims) RestaurantUUID() string { return c.restaurantUUID }
func (c claims) UserName() string       { return c.userName }

type contextKey struct{}

const (
	userHeader       = "X-User-Id"
	restaurantHeader = "X-Restaurant-Id"
	userNameHeader   = "X-User-Name"
)

// Middleware extracts the gateway-verified claim headers into the request
// context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := claims{
			userUUID:       r.Header.Get(userHeader),
			restaurantUUID: r.Header.Get(restaurantHeader),
			userName:       r.Header.Get(userNameHeader),
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, c)))
	})
}

// FromContext returns the request's identity capability. A context without
// claims yields a provider whose getters all return "".
func FromContext(ctx context.Context) Provider {
	if c, ok := ctx.Value(contextKey{}).(claims); ok {
		return c
	}
	return claims{}
}
