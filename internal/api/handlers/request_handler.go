package handlers

import (
	"net/http"

	"github.com/dallosh/livedesk/internal/services"
	"github.com/dallosh/livedesk/internal/utils"
	"github.com/gin-gonic/gin"
)

type RequestHandler struct {
	requests services.RequestService
}

func NewRequestHandler(requests services.RequestService) *RequestHandler {
	return &RequestHandler{requests: requests}
}

type createRequestReq struct {
	SessionID   string `json:"session_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Label       string `json:"label"`
}

func (h *RequestHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req createRequestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "RequestHandler.Create", "invalid body", err))
		return
	}

	out, err := h.requests.Create(c.Request.Context(), services.CreateRequestInput{
		SessionID:   req.SessionID,
		Title:       req.Title,
		Description: req.Description,
		UserID:      userID,
		UserName:    userName(c),
		Label:       req.Label,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	if out == nil {
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *RequestHandler) Get(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	out, err := h.requests.Get(c.Request.Context(), c.Param("request_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *RequestHandler) ListMine(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	out, err := h.requests.ListByUser(c.Request.Context(), userID, 0)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": out})
}

func (h *RequestHandler) ListBySession(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	out, err := h.requests.ListBySession(c.Request.Context(), c.Param("session_id"), 0)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": out})
}

type resolveRequestReq struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

func (h *RequestHandler) Resolve(c *gin.Context) {
	techID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req resolveRequestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "RequestHandler.Resolve", "invalid body", err))
		return
	}

	err := h.requests.Resolve(c.Request.Context(), services.ResolveRequestInput{
		RequestID:      c.Param("request_id"),
		Status:         req.Status,
		TechnicianID:   techID,
		TechnicianName: userName(c),
		TechnicianNote: req.Note,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}

func (h *RequestHandler) Cancel(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	if err := h.requests.Cancel(c.Request.Context(), c.Param("request_id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

func (h *RequestHandler) Delete(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	if err := h.requests.Delete(c.Request.Context(), c.Param("request_id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
