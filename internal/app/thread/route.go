package thread

import "github.com/gin-gonic/gin"

func RegisterRoutes(rg *gin.RouterGroup, handler Handler) {
	threads := rg.Group("/threads")
	{
		threads.GET("", handler.Inbox)
		threads.GET("/unread", handler.Unread)
		threads.GET("/search", handler.Search)
		threads.GET("/between", handler.Between)
		threads.GET("/:id", handler.GetThread)
		threads.DELETE("/:id", handler.DeleteThread)
		threads.GET("/:id/unread", handler.UnreadMessages)
		threads.POST("/:id/read", handler.MarkRead)
		threads.GET("/:id/participants", handler.Participants)
		threads.POST("/:id/participants", handler.AddParticipants)
		threads.DELETE("/:id/participants/:user_id", handler.RemoveParticipant)
	}
}
