// Package auth resolves who is calling. It does not decide what they may touch; every
// service re-checks ownership against the user id it is handed.
package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/apperr"
)

const identityKey = "identity"

// Identity is the verified caller.
type Identity struct {
	UserID   uint
	IsActive bool
}

// SetIdentity attaches id to the request context.
func SetIdentity(c *gin.Context, id Identity) {
	c.Set(identityKey, id)
}

// FromContext returns the identity set by the auth middleware.
func FromContext(c *gin.Context) (Identity, error) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, apperr.Unauthenticated("not logged in")
	}
	id, ok := v.(Identity)
	if !ok || id.UserID == 0 {
		return Identity{}, apperr.Unauthenticated("not logged in")
	}
	return id, nil
}
