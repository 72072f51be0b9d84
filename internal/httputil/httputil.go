package httputil

import (
	"fmt"
	"net/http"
	"strconv"

	"messenger/internal/errs"

	"github.com/gin-gonic/gin"
)

// UserIDKey is the gin context key the auth middleware stores the caller's id under.
const UserIDKey = "user_id"

// AdminKey holds the caller's admin claim.
const AdminKey = "admin"

func UserID(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok && id != 0
}

// IsAdmin reports whether the caller may broadcast and moderate broadcast threads.
func IsAdmin(c *gin.Context) bool {
	return c.GetBool(AdminKey)
}

// MustUserID aborts with 401 when the request carries no authenticated user.
func MustUserID(c *gin.Context) (uint64, bool) {
	id, ok := UserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	}
	return id, ok
}

func ParamUint64(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid %s", name)})
		return 0, false
	}
	return id, true
}

func RespondError(c *gin.Context, err error) {
	status := errs.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg})
}
