package handler

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/careercopilot/internal/service"
)

type FileHandler struct {
	resumes *service.ResumeService
}

func NewFileHandler(resumes *service.ResumeService) *FileHandler {
	return &FileHandler{resumes: resumes}
}

// Get streams the original upload behind one of the caller's resumes.
func (h *FileHandler) Get(c *gin.Context) {
	key := c.Param("key")
	file, err := h.resumes.OpenFile(c.Request.Context(), getUserID(c), key)
	if err != nil {
		handleError(c, err)
		return
	}
	defer func() { _ = file.Close() }()
	contentType := mime.TypeByExtension(filepath.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", "attachment; filename=\""+key+"\"")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, file)
}
