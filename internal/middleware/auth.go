package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/apperr"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/auth"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/util"
)

// TokenCookie is the cookie checked when no Authorization header is sent.
const TokenCookie = "ft_token"

// AuthMiddleware verifies the caller's token and stores the identity on the context.
// Inactive users are refused here so no handler has to check.
func AuthMiddleware(v auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c)
		if tokenStr == "" {
			util.Error(c, apperr.Unauthenticated("not logged in"))
			return
		}

		id, err := v.Verify(c.Request.Context(), tokenStr)
		if err != nil {
			util.Error(c, auth.VerifyError(err))
			return
		}
		if !id.IsActive {
			util.Error(c, apperr.Forbidden("account is deactivated"))
			return
		}

		auth.SetIdentity(c, id)
		l := util.RequestLogger(c).With().Uint("user_id", id.UserID).Logger()
		util.SetRequestLogger(c, l)
		c.Next()
	}
}

// bearerToken reads the Authorization header, then ?token= for downloads that cannot set
// headers, then the cookie.
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if t := c.Query("token"); t != "" {
		return t
	}
	if cookie, err := c.Cookie(TokenCookie); err == nil {
		return cookie
	}
	return ""
}
