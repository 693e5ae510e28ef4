package gateway

import (
	"github.com/example/foodhall/pkg/apperr"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError writes the {success:false, message} body. Only unexpected errors are logged.
func (g *Gateway) respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal || kind == apperr.KindGateway {
		g.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("kind", kind.String()),
			zap.Error(err))
	}
	c.JSON(apperr.HTTPStatus(kind), gin.H{"success": false, "message": apperr.Message(err)})
}

func (g *Gateway) bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		g.respondError(c, apperr.Wrap(apperr.KindInvalidInput, "Invalid request body", err))
		return false
	}
	return true
}

func currentUser(c *gin.Context) string {
	return c.GetString(userIDKey)
}
