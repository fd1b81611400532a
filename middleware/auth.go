package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/hcc/clinic-api/model"
	"github.com/hcc/clinic-api/util"
)

// Auth is the combined access guard: it resolves the caller's identity from
// the bearer token and, when a role whitelist is given, enforces membership.
// Identity resolution always runs first; there is no role check without it.
//
// Flow per request:
//  1. extract bearer token from the Authorization header -> 401 if absent
//  2. verify signature and expiry -> 401 on failure
//  3. load the user by the embedded id -> 401 if gone (stale token)
//  4. attach {id, email, role} to the context
//  5. compare role against the whitelist -> 403 if not a member
func Auth(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := extractBearerToken(c)
		if err != nil {
			util.CallUserNotAuthorized(c, util.APIErrorParams{Msg: "Authentication required", Err: err})
			c.Abort()
			return
		}

		claims, err := util.ParseToken(tokenString)
		if err != nil {
			util.CallUserNotAuthorized(c, util.APIErrorParams{Msg: "Invalid token", Err: errors.New("token verification failed")})
			c.Abort()
			return
		}

		db := GetDB(c)
		if db == nil {
			util.CallServerError(c, util.APIErrorParams{Msg: "Database connection not available", Err: errors.New("db is nil")})
			c.Abort()
			return
		}

		// A deleted user may still hold a syntactically valid token.
		var user model.User
		if err := db.First(&user, claims.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				util.CallUserNotAuthorized(c, util.APIErrorParams{Msg: "User not found", Err: errors.New("user not found")})
			} else {
				util.CallServerError(c, util.APIErrorParams{Msg: "Database error", Err: err})
			}
			c.Abort()
			return
		}

		c.Set(CurrentUserKey, AuthUser{ID: user.ID, Email: user.Email, Role: user.Role})

		if len(roles) > 0 && !util.Contains(user.Role, roles) {
			util.LogUnauthorizedAccess(user.ID, user.Role, c.ClientIP(), c.Request.URL.Path)
			util.CallForbidden(c, util.APIErrorParams{Msg: "Access denied", Err: errors.New("insufficient role")})
			c.Abort()
			return
		}

		c.Next()
	}
}

func extractBearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", fmt.Errorf("authorization header missing")
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return "", fmt.Errorf("authorization header is not a bearer token")
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return "", fmt.Errorf("bearer token is empty")
	}
	return token, nil
}
