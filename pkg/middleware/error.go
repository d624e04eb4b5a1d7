package middleware

import (
	"errors"
	"net/http"

	"overscope/pkg/errutil"

	"github.com/gin-gonic/gin"
)

// Error renders the last error attached to the context as the response body.
// Handlers call c.Error(err) and return; anything that is not a BaseError
// becomes a generic 500.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		err := c.Errors.Last()
		if err == nil || c.Writer.Written() {
			return
		}

		var be errutil.BaseError
		if errors.As(err.Err, &be) {
			c.JSON(be.Code.HTTPStatus(), be.JSON())
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    errutil.StatusInternal,
				"message": err.Error(),
			},
		})
	}
}
