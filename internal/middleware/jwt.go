package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/veritest/veritest-backend/internal/model"
	"github.com/veritest/veritest-backend/internal/response"
	"github.com/veritest/veritest-backend/internal/service"
)

// ContextKeyClaims is the Gin context key for validated JWT claims.
const ContextKeyClaims = "claims"

// RequireJWT admits any authenticated account.
func RequireJWT(authService *service.AuthService) gin.HandlerFunc {
	return requireToken(authService, nil, "")
}

// RequireStudentJWT admits students only.
func RequireStudentJWT(authService *service.AuthService) gin.HandlerFunc {
	return requireToken(authService, func(r model.Role) bool {
		return r == model.RoleStudent
	}, response.ErrStudentAccessOnly)
}

// RequireStaffJWT admits lecturers and admins.
func RequireStaffJWT(authService *service.AuthService) gin.HandlerFunc {
	return requireToken(authService, func(r model.Role) bool {
		return r == model.RoleLecturer || r == model.RoleAdmin
	}, response.ErrStaffAccessOnly)
}

func requireToken(authService *service.AuthService, allow func(model.Role) bool, denyCode response.ErrCode) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := bearerClaims(c, authService)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}
		if allow != nil && !allow(claims.Role) {
			response.AbortFail(c, http.StatusForbidden, denyCode)
			return
		}
		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// RequireStudentWSAuth authenticates WebSocket upgrades from the ?token
// query parameter, since browser WebSocket clients cannot set headers.
func RequireStudentWSAuth(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}
		if claims.Role != model.RoleStudent {
			response.AbortFail(c, http.StatusForbidden, response.ErrStudentAccessOnly)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// GetClaims returns the validated claims set by the auth middlewares,
// or nil when the chain did not run.
func GetClaims(c *gin.Context) *service.Claims {
	val, ok := c.Get(ContextKeyClaims)
	if !ok {
		return nil
	}
	claims, ok := val.(*service.Claims)
	if !ok {
		return nil
	}
	return claims
}

func bearerClaims(c *gin.Context, authService *service.AuthService) (*service.Claims, error) {
	var token string
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			token = parts[1]
		}
	}
	// EventSource cannot send headers; SSE endpoints pass ?token instead.
	if token == "" {
		token = c.Query("token")
	}
	if token == "" {
		return nil, fmt.Errorf("authorization header or token query required")
	}
	return authService.ValidateToken(token)
}
