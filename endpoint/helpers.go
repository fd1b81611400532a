package endpoint

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/hcc/clinic-api/middleware"
	"github.com/hcc/clinic-api/util"
)

var timeOfDayPattern = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`)

// bindJSONOrRespond binds the request body into dst, writing a 400 response
// and returning false when the payload is malformed.
func bindJSONOrRespond(c *gin.Context, dst interface{}, msg string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: msg, Err: err})
		return false
	}
	return true
}

// getDBOrRespond fetches the injected gorm handle, writing a 500 response and
// returning false when it is missing.
func getDBOrRespond(c *gin.Context) (*gorm.DB, bool) {
	db := middleware.GetDB(c)
	if db == nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Database connection not available", Err: fmt.Errorf("db is nil")})
		return nil, false
	}
	return db, true
}

// currentUserOrRespond fetches the identity resolved by the access guard,
// writing a 401 response and returning false when it is missing.
func currentUserOrRespond(c *gin.Context) (middleware.AuthUser, bool) {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		util.CallUserNotAuthorized(c, util.APIErrorParams{Msg: "Authentication required", Err: fmt.Errorf("no authenticated user in context")})
		return middleware.AuthUser{}, false
	}
	return user, true
}

// parseIDParam parses the named path parameter as an unsigned id, writing a
// 400 response and returning false when it is absent or not a number.
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		util.CallUserError(c, util.APIErrorParams{Msg: fmt.Sprintf("Invalid %s", name), Err: fmt.Errorf("%s must be a positive integer", name)})
		return 0, false
	}
	return uint(id), true
}

// validDate reports whether s is a YYYY-MM-DD calendar date.
func validDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

// validTimeOfDay reports whether s is a HH:MM time of day.
func validTimeOfDay(s string) bool {
	return timeOfDayPattern.MatchString(s)
}

// today returns the current date in the YYYY-MM-DD form stored on headers and slots.
func today() string {
	return time.Now().Format("2006-01-02")
}
