package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	userDomain "github.com/lumiere-jewels/service-coupon/internal/domain/user"
	"github.com/lumiere-jewels/service-coupon/pkg/auth"
	"github.com/lumiere-jewels/service-coupon/pkg/middleware"
)

// Guard resolves the caller of each request and gates admin routes.
type Guard struct {
	jwtManager   *auth.JWTManager
	users        userDomain.Repository
	enforceAdmin bool
	logger       *zap.Logger
}

// NewGuard creates a Guard. When enforceAdmin is false AdminOnly lets every
// caller through.
func NewGuard(jwtManager *auth.JWTManager, users userDomain.Repository, enforceAdmin bool, logger *zap.Logger) *Guard {
	return &Guard{jwtManager: jwtManager, users: users, enforceAdmin: enforceAdmin, logger: logger}
}

// Identify resolves a bearer token to a stored user and records its id and
// role in the context. Requests without a usable token continue anonymously.
func (g *Guard) Identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.Next()
			return
		}

		claims, err := g.jwtManager.Validate(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			g.logger.Debug("ignoring invalid bearer token", zap.Error(err))
			c.Next()
			return
		}

		u, err := g.users.FindByID(c.Request.Context(), claims.UserID)
		if err != nil {
			g.logger.Debug("ignoring token for unknown user",
				zap.String("user_id", claims.UserID.String()),
				zap.Error(err),
			)
			c.Next()
			return
		}

		middleware.SetIdentity(c, u.ID(), string(u.Role()))
		c.Next()
	}
}

// AdminOnly requires the admin role when admin enforcement is on.
func (g *Guard) AdminOnly() gin.HandlerFunc {
	if g.enforceAdmin {
		return middleware.RequireRole(auth.RoleAdmin)
	}
	return func(c *gin.Context) { c.Next() }
}

// callerFrom returns the identity resolved by Identify, or nil for anonymous
// requests.
func callerFrom(c *gin.Context) *userDomain.Identity {
	id, ok := middleware.GetUserID(c)
	if !ok {
		return nil
	}
	role, _ := middleware.GetUserRole(c)
	return &userDomain.Identity{ID: id, Role: userDomain.Role(role)}
}
