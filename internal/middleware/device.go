package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// DeviceKeyHeader authenticates GPS hardware posting samples over HTTP.
const DeviceKeyHeader = "X-Device-Key"

// RequireDeviceKeyOrRoles admits requests that carry the shared device key,
// or otherwise a valid JWT with one of roles. An empty key disables the
// device path.
func RequireDeviceKeyOrRoles(key string, j *JWT, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if got := c.GetHeader(DeviceKeyHeader); got != "" {
			if key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid device key"})
				return
			}
			c.Next()
			return
		}
		if j.authenticate(c) && authorize(c, roles) {
			c.Next()
		}
	}
}
