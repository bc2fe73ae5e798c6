package middleware

import (
	"github.com/gin-gonic/gin"
)

// HTTPObserver counts served requests.
type HTTPObserver interface {
	ObserveHTTP(method, route string, status int)
}

// Metrics records one counter sample per request, labelled by route template.
func Metrics(obs HTTPObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if obs == nil {
			return
		}
		obs.ObserveHTTP(c.Request.Method, c.FullPath(), c.Writer.Status())
	}
}
