package routes

import (
	"github.com/gin-gonic/gin"

	"go-skywatch/broadcast"
	"go-skywatch/chat"
	"go-skywatch/handlers"
	"go-skywatch/objects"
)

func SetupRouter(objectsSvc *objects.Service, chatSvc *chat.Service, hub *broadcast.Hub) *gin.Engine {
	r := gin.Default()

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "Hello, welcome to Skywatch!",
		})
	})

	r.GET("/ws", hub.HandleWebSocket)

	// api routes
	api := r.Group("/api/skywatch")
	{
		obj := api.Group("/objects")
		{
			obj.POST("", func(c *gin.Context) { handlers.CreateObject(c, objectsSvc) })
			obj.POST("/temporary", func(c *gin.Context) { handlers.SetTemporaryObject(c, objectsSvc) })
			obj.POST("/classify", func(c *gin.Context) { handlers.ClassifyObject(c, objectsSvc) })
			obj.GET("/:id/change", func(c *gin.Context) { handlers.TriggerObjectChange(c, objectsSvc) })
			obj.GET("/radars", handlers.GetRadars)
			obj.POST("/radar-point", func(c *gin.Context) { handlers.CreateRadarPoint(c, objectsSvc) })
		}

		ch := api.Group("/chat")
		{
			ch.POST("", func(c *gin.Context) { handlers.SendChatMessage(c, chatSvc) })
			ch.POST("/summarize", func(c *gin.Context) { handlers.SummarizeMessages(c, chatSvc) })
			ch.GET("/system-messages", func(c *gin.Context) { handlers.GetSystemMessages(c, chatSvc) })
			ch.DELETE("/conversation", func(c *gin.Context) { handlers.ClearConversation(c, chatSvc) })
			ch.PUT("/current-object", func(c *gin.Context) { handlers.SetCurrentObject(c, chatSvc) })
			ch.DELETE("/current-object", func(c *gin.Context) { handlers.ClearCurrentObject(c, chatSvc) })
			ch.POST("/realtime-session", func(c *gin.Context) { handlers.CreateRealtimeSession(c, chatSvc) })
		}
	}

	return r
}
