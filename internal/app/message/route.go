package message

import "github.com/gin-gonic/gin"

func RegisterRoutes(rg *gin.RouterGroup, handler Handler, limit gin.HandlerFunc) {
	rg.POST("/messages", limit, handler.Send)
	rg.POST("/threads/:id/messages", limit, handler.Reply)
}
