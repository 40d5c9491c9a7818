package handlers

import (
	"net/http"

	"github.com/dallosh/livedesk/internal/models"
	"github.com/dallosh/livedesk/internal/services"
	"github.com/dallosh/livedesk/internal/utils"
	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	chat    services.ChatService
	archive services.ArchiveService
}

func NewMessageHandler(chat services.ChatService, archive services.ArchiveService) *MessageHandler {
	return &MessageHandler{chat: chat, archive: archive}
}

func (h *MessageHandler) History(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	out, err := h.chat.History(c.Request.Context(), c.Param("session_id"), 0)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}

type sendMessageReq struct {
	Content string `json:"content"`
}

func (h *MessageHandler) Send(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "MessageHandler.Send", "invalid body", err))
		return
	}

	role := models.RoleCustomer
	if v, _ := c.Get("role"); v == "agent" || v == "admin" {
		role = models.RoleAgent
	}

	in := services.AddMessageInput{
		SessionID:  c.Param("session_id"),
		Content:    req.Content,
		SenderID:   userID,
		SenderName: userName(c),
		SenderRole: role,
	}
	if role == models.RoleAgent {
		in.AgentID = userID
	}

	msg, err := h.chat.AddMessage(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

type editMessageReq struct {
	Content string `json:"content"`
}

func (h *MessageHandler) Edit(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	var req editMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "MessageHandler.Edit", "invalid body", err))
		return
	}

	msg, removed, err := h.chat.EditMessage(c.Request.Context(), c.Param("message_id"), req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg, "removed_ids": removed})
}

func (h *MessageHandler) Delete(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	removed, err := h.chat.DeleteMessage(c.Request.Context(), c.Param("message_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed_ids": removed})
}

func (h *MessageHandler) Archive(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	rows, err := h.archive.ListBySession(c.Request.Context(), c.Param("session_id"), 0)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": rows})
}
