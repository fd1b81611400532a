package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Context keys used to pass request-scoped values to handlers.
const (
	DBKey          = "db"
	CurrentUserKey = "current_user"
)

// DatabaseMiddleware injects the shared gorm handle into the request context
// so handlers never reach for package-global connection state.
func DatabaseMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(DBKey, db)
		c.Next()
	}
}

// GetDB returns the gorm handle injected by DatabaseMiddleware, or nil.
func GetDB(c *gin.Context) *gorm.DB {
	if v, ok := c.Get(DBKey); ok {
		if db, ok := v.(*gorm.DB); ok {
			return db
		}
	}
	return nil
}

// AuthUser is the identity resolved by the access guard and attached to the
// request context for downstream handlers.
type AuthUser struct {
	ID    uint
	Email string
	Role  string
}

// GetCurrentUser returns the identity resolved by Auth, if any.
func GetCurrentUser(c *gin.Context) (AuthUser, bool) {
	if v, ok := c.Get(CurrentUserKey); ok {
		if u, ok := v.(AuthUser); ok {
			return u, true
		}
	}
	return AuthUser{}, false
}

// CORSMiddleware configures CORS headers for incoming requests.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, DELETE, PATCH")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "X-Requested-With, Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Content-Type", "application/json")

		// For preflight requests, respond with 204 and abort further processing.
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
