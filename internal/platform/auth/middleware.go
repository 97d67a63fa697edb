package auth

import (
	"strings"

	"github.com/gin-gonic/gin"

	"hcsc-backend/internal/platform/api"
)

// RequireAuth: Authorization: Bearer <token> を検証して context に Identity を詰める。
// stub モードではトークン無しで固定 Identity を入れる
func RequireAuth(tokens *Tokens, strategy Strategy) gin.HandlerFunc {
	stub, isStub := strategy.(*Stub)
	return func(c *gin.Context) {
		if isStub {
			setIdentity(c, stub.Identity())
			c.Next()
			return
		}

		h := c.GetHeader("Authorization")
		if h == "" {
			api.Fail(c, api.ErrUnauthenticated("missing Authorization header"))
			return
		}
		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			api.Fail(c, api.ErrUnauthenticated("invalid Authorization header"))
			return
		}
		tokenStr := strings.TrimSpace(parts[1])
		if tokenStr == "" {
			api.Fail(c, api.ErrUnauthenticated("empty token"))
			return
		}

		id, err := tokens.Parse(tokenStr)
		if err != nil {
			api.Fail(c, api.ErrUnauthenticated(err.Error()))
			return
		}
		setIdentity(c, id)
		c.Next()
	}
}

// RequireRole: 例) admin のみ許可したい時に追加
func RequireRole(roles ...string) gin.HandlerFunc {
	roleSet := make(map[string]struct{})
	for _, r := range roles {
		if r == "" {
			continue
		}
		roleSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		id, ok := FromContext(c)
		if !ok || id.Role == "" {
			api.Fail(c, api.ErrForbidden("missing role"))
			return
		}
		if _, allowed := roleSet[id.Role]; !allowed {
			api.Fail(c, api.ErrForbidden("forbidden"))
			return
		}
		c.Next()
	}
}
