package routes

import (
	"github.com/dallosh/livedesk/internal/api/handlers"
	"github.com/dallosh/livedesk/internal/api/middleware"
	"github.com/gin-gonic/gin"
)

type Deps struct {
	Session    *handlers.SessionHandler
	Message    *handlers.MessageHandler
	Request    *handlers.RequestHandler
	Attachment *handlers.AttachmentHandler
	WS         *handlers.WSHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// Protected routes (JWT)
	auth := r.Group("/")
	auth.Use(middleware.JWTAuth())

	auth.POST("/sessions", d.Session.Create)
	auth.GET("/sessions", d.Session.List)
	auth.GET("/sessions/:session_id", d.Session.Get)
	auth.POST("/sessions/:session_id/close", d.Session.Close)
	auth.DELETE("/sessions/:session_id", d.Session.Delete)
	auth.GET("/sessions/:session_id/presence", d.Session.Presence)

	agent := auth.Group("/")
	agent.Use(middleware.RequireAgent())
	agent.POST("/sessions/:session_id/join", d.Session.Join)
	agent.POST("/sessions/:session_id/leave", d.Session.Leave)

	auth.GET("/sessions/:session_id/messages", d.Message.History)
	auth.POST("/sessions/:session_id/messages", d.Message.Send)
	auth.GET("/sessions/:session_id/transcripts", d.Message.Archive)
	auth.PUT("/messages/:message_id", d.Message.Edit)
	auth.DELETE("/messages/:message_id", d.Message.Delete)

	auth.POST("/requests", d.Request.Create)
	auth.GET("/requests", d.Request.ListMine)
	auth.GET("/requests/:request_id", d.Request.Get)
	auth.GET("/sessions/:session_id/requests", d.Request.ListBySession)
	auth.POST("/requests/:request_id/cancel", d.Request.Cancel)
	agent.POST("/requests/:request_id/resolve", d.Request.Resolve)
	agent.DELETE("/requests/:request_id", d.Request.Delete)

	auth.POST("/sessions/:session_id/attachments", d.Attachment.Upload)

	// WebSocket (live session control channel)
	auth.GET("/ws/session/:session_id", d.WS.SessionWS)
}
