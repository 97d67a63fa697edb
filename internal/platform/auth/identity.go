// Package auth provides the login strategies, JWT issuing and the gin middleware guarding the private API.
package auth

import "github.com/gin-gonic/gin"

const (
	CtxUserIDKey   = "user_id"
	CtxRoleKey     = "role"
	CtxEmailKey    = "email"
	ctxIdentityKey = "identity"
)

// Identity: ログイン中のスタッフ
type Identity struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

func setIdentity(c *gin.Context, id Identity) {
	c.Set(ctxIdentityKey, id)
	c.Set(CtxUserIDKey, id.ID)
	c.Set(CtxRoleKey, id.Role)
	c.Set(CtxEmailKey, id.Email)
}

// FromContext: RequireAuth を通った後でのみ ok
func FromContext(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(ctxIdentityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}
