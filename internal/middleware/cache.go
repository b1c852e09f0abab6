package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// CacheControl marks responses as publicly cacheable for maxAgeSeconds.
// Applied to the static uploads group; uploaded files never change in place.
func CacheControl(maxAgeSeconds int) gin.HandlerFunc {
	value := "public, max-age=" + strconv.Itoa(maxAgeSeconds)
	return func(c *gin.Context) {
		c.Header("Cache-Control", value)
		c.Next()
	}
}
