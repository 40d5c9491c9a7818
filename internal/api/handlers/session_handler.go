package handlers

import (
	"net/http"

	"github.com/dallosh/livedesk/internal/services"
	"github.com/dallosh/livedesk/internal/utils"
	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	chat services.ChatService
}

func NewSessionHandler(chat services.ChatService) *SessionHandler {
	return &SessionHandler{chat: chat}
}

type createSessionReq struct {
	Content  string `json:"content"`
	Source   string `json:"source"`
	SourceID string `json:"source_id"`
}

func (h *SessionHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req createSessionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "SessionHandler.Create", "invalid body", err))
		return
	}

	sess, err := h.chat.CreateSession(c.Request.Context(), services.CreateSessionInput{
		AuthorID:   userID,
		AuthorName: userName(c),
		Content:    req.Content,
		Source:     req.Source,
		SourceID:   req.SourceID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (h *SessionHandler) Get(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	sess, err := h.chat.GetSession(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *SessionHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	out, err := h.chat.ListSessions(c.Request.Context(), userID, 0)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

func (h *SessionHandler) Close(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	if err := h.chat.CloseSession(c.Request.Context(), c.Param("session_id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "closed"})
}

func (h *SessionHandler) Delete(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	if err := h.chat.DeleteSession(c.Request.Context(), c.Param("session_id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Join puts a human agent on the session; the live engine notices on its
// next presence poll and drops the bot.
func (h *SessionHandler) Join(c *gin.Context) {
	agentID, ok := requireUserID(c)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")
	if err := h.chat.AssignAgent(c.Request.Context(), sessionID, agentID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "joined"})
}

func (h *SessionHandler) Leave(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	if err := h.chat.ReleaseAgent(c.Request.Context(), c.Param("session_id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "left"})
}

func (h *SessionHandler) Presence(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	joined, agentID, err := h.chat.HasAgentJoined(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent_joined": joined, "agent_id": agentID})
}
