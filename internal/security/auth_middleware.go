package security

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"delta-gateway/internal/utils"
	"delta-gateway/pkg/response"
)

const claimsKey = "user_claims"

// AuthMiddleware provides JWT authentication middleware
type AuthMiddleware struct {
	jwtManager *JWTManager
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(jwtManager *JWTManager) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager: jwtManager,
	}
}

// RequireAuth rejects requests without a valid bearer token
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := ExtractTokenFromHeader(c.GetHeader("Authorization"))
		if err != nil {
			am.unauthorized(c, err.Error())
			return
		}

		claims, err := am.jwtManager.ValidateToken(token)
		if err != nil {
			am.unauthorized(c, "Invalid or expired token")
			return
		}

		c.Set(claimsKey, claims)
		c.Set("user_id", claims.UserID)
		c.Next()
	}
}

// RequireTableAccess rejects requests whose ?path= table is outside the
// token's grants. It must run after RequireAuth.
func (am *AuthMiddleware) RequireTableAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetUserClaims(c)
		if !ok {
			am.unauthorized(c, "User claims not found")
			return
		}
		if table := c.Query("path"); table != "" && !claims.CanRead(table) {
			c.AbortWithStatusJSON(http.StatusForbidden, response.ErrorResponse(
				utils.ErrCodeForbidden,
				"Access to table denied",
				table,
				correlationID(c),
			))
			return
		}
		c.Next()
	}
}

func (am *AuthMiddleware) unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, response.UnauthorizedResponse(message, correlationID(c)))
}

func correlationID(c *gin.Context) string {
	if id, exists := c.Get("correlation_id"); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}

// GetUserClaims extracts user claims from context
func GetUserClaims(c *gin.Context) (*Claims, bool) {
	claims, exists := c.Get(claimsKey)
	if !exists {
		return nil, false
	}
	userClaims, ok := claims.(*Claims)
	return userClaims, ok
}
