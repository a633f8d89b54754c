package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/princinho/postboard/apperror"
	"github.com/princinho/postboard/logging"
	"go.uber.org/zap"
)

// Authorize loads the resource named by the :id path parameter and lets the
// request through only when owner reports the authenticated caller. The
// loaded resource is left on the context for the handler, see Resource.
func Authorize[T any](fetch func(ctx context.Context, id string) (*T, error), owner func(*T) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": apperror.Message(apperror.ErrUnauthenticated)})
			return
		}

		res, err := fetch(c.Request.Context(), c.Param("id"))
		if err != nil {
			status := apperror.Status(err)
			if status == http.StatusInternalServerError {
				logging.From(c, nil).Error("authorize: fetch resource", zap.Error(err))
			}
			c.AbortWithStatusJSON(status, gin.H{"message": apperror.Message(err)})
			return
		}

		if owner(res) != userID {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": apperror.Message(apperror.ErrForbidden)})
			return
		}

		c.Set(resourceKey, res)
		c.Next()
	}
}

// Resource returns the resource Authorize loaded for this request.
func Resource[T any](c *gin.Context) (*T, bool) {
	v, ok := c.Get(resourceKey)
	if !ok {
		return nil, false
	}
	res, ok := v.(*T)
	return res, ok
}
