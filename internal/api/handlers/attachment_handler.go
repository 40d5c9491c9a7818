package handlers

import (
	"net/http"
	"path"

	"github.com/dallosh/livedesk/internal/storage"
	"github.com/dallosh/livedesk/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AttachmentHandler stores files a customer shares during a session
// (screenshots, invoices) and returns the stored URL so the message can
// reference it.
type AttachmentHandler struct {
	uploader storage.Uploader
}

func NewAttachmentHandler(uploader storage.Uploader) *AttachmentHandler {
	return &AttachmentHandler{uploader: uploader}
}

const maxAttachmentBytes = 20 << 20 // 20 MiB

func (h *AttachmentHandler) Upload(c *gin.Context) {
	const op = "AttachmentHandler.Upload"

	if _, ok := requireUserID(c); !ok {
		return
	}

	sessionID := c.Param("session_id")
	file, err := c.FormFile("file")
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "missing file field", err))
		return
	}
	if file.Size > maxAttachmentBytes {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "file too large", nil))
		return
	}

	src, err := file.Open()
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "open upload", err))
		return
	}
	defer src.Close()

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	object := path.Join("attachments", sessionID, uuid.NewString()+path.Ext(file.Filename))
	url, err := h.uploader.Upload(c.Request.Context(), object, contentType, src)
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "store attachment", err))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"url": url, "name": file.Filename})
}
