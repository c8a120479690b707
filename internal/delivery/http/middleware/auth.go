package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oggyb/campusknot/internal/db"
	"github.com/oggyb/campusknot/internal/delivery/http/handler"
	svcErr "github.com/oggyb/campusknot/internal/errors"
	"github.com/oggyb/campusknot/internal/logger"
)

// Authenticator resolves a bearer token to its active user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*db.User, error)
}

type AuthMiddleware struct {
	auth Authenticator
}

func NewAuthMiddleware(auth Authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// RequireAuth rejects requests without a valid "Authorization: Bearer"
// token. On success the user id and user are stored on the gin context and
// the request logger gains a user_id attribute.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, handler.ErrorResponse{Error: "Not authenticated"})
			return
		}

		ctx := c.Request.Context()
		u, err := m.auth.Authenticate(ctx, token)
		if err != nil {
			c.AbortWithStatusJSON(svcErr.HTTPStatus(err), handler.ErrorResponse{Error: svcErr.Message(err)})
			return
		}

		c.Set(handler.UserIDKey, u.ID)
		c.Set(handler.UserKey, u)
		c.Request = c.Request.WithContext(logger.WithContext(ctx, logger.FromContext(ctx).With("user_id", u.ID)))
		c.Next()
	}
}
