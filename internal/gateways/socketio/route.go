package socketio

import "github.com/gin-gonic/gin"

func RegisterRoutes(r gin.IRoutes, server *Server) {
	h := gin.WrapH(server.Handler())
	r.GET("/socket.io/*any", h)
	r.POST("/socket.io/*any", h)
}
