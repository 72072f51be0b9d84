package router

import (
	"messenger/internal/app/health"
	"messenger/internal/app/message"
	"messenger/internal/app/notification"
	"messenger/internal/app/thread"
	"messenger/internal/gateways/socketio"
	"messenger/internal/gateways/websocket"
	"messenger/internal/metrics"
	"messenger/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Router struct {
	Engine *gin.Engine
	api    *gin.RouterGroup
}

func NewRouter(logger *zap.Logger, allowedOrigins []string) *Router {
	engine := gin.New()
	engine.Use(middleware.CORSMiddleware(allowedOrigins))
	engine.Use(middleware.LoggerMiddleware(logger))
	engine.Use(gin.Recovery())
	return &Router{Engine: engine, api: engine.Group("/api")}
}

// Authenticated returns the /api group guarded by the JWT middleware.
func (r *Router) Authenticated(jwtSecret []byte) *gin.RouterGroup {
	return r.api.Group("", middleware.AuthMiddleware(jwtSecret))
}

func (r *Router) RegisterHealthRoutes(handler health.Handler) {
	health.RegisterRoutes(r.api, handler)
}

func (r *Router) RegisterMetricsRoutes() {
	metrics.RegisterRoutes(r.Engine)
}

func (r *Router) RegisterThreadRoutes(rg *gin.RouterGroup, handler thread.Handler) {
	thread.RegisterRoutes(rg, handler)
}

func (r *Router) RegisterMessageRoutes(rg *gin.RouterGroup, handler message.Handler, perMinute, burst int) {
	message.RegisterRoutes(rg, handler, middleware.RateLimit(perMinute, burst))
}

func (r *Router) RegisterNotificationRoutes(rg *gin.RouterGroup, handler notification.Handler) {
	notification.RegisterRoutes(rg, handler)
}

func (r *Router) RegisterWebSocketRoutes(hub *websocket.Hub) {
	websocket.RegisterRoutes(r.Engine, hub)
}

func (r *Router) RegisterSocketIORoutes(server *socketio.Server) {
	socketio.RegisterRoutes(r.Engine, server)
}
