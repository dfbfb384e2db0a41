package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/careercopilot/internal/ingest"
	"github.com/xxxsen/careercopilot/internal/pkg/errcode"
	"github.com/xxxsen/careercopilot/internal/pkg/response"
	"github.com/xxxsen/careercopilot/internal/service"
)

type ResumeHandler struct {
	resumes   *service.ResumeService
	maxUpload int64
}

func NewResumeHandler(resumes *service.ResumeService, maxUpload int64) *ResumeHandler {
	return &ResumeHandler{resumes: resumes, maxUpload: maxUpload}
}

func (h *ResumeHandler) Create(c *gin.Context) {
	var req service.CreateResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c)
		return
	}
	resume, err := h.resumes.Create(c.Request.Context(), getUserID(c), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, resume)
}

func (h *ResumeHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "file is required")
		return
	}
	if !ingest.IsSupported(file.Filename) {
		response.Error(c, errcode.ErrInvalidFile, ingest.UnsupportedFileMessage)
		return
	}
	if h.maxUpload > 0 && file.Size > h.maxUpload {
		response.Error(c, errcode.ErrFileTooLarge, "file exceeds "+formatUploadLimit(h.maxUpload))
		return
	}
	opened, err := file.Open()
	if err != nil {
		response.Error(c, errcode.ErrUploadFailed, "failed to open file")
		return
	}
	defer func() { _ = opened.Close() }()
	data, err := io.ReadAll(io.LimitReader(opened, file.Size))
	if err != nil {
		response.Error(c, errcode.ErrUploadFailed, "failed to read file")
		return
	}
	resume, err := h.resumes.Upload(c.Request.Context(), getUserID(c), c.PostForm("title"), file.Filename, data)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, resume)
}

func (h *ResumeHandler) List(c *gin.Context) {
	offset, limit := pageArgs(c)
	items, err := h.resumes.List(c.Request.Context(), getUserID(c), offset, limit)
	if err != nil {
		handleError(c, err)
		return
	}
	response.SuccessList(c, items, len(items))
}

func (h *ResumeHandler) Get(c *gin.Context) {
	resume, err := h.resumes.Get(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, resume)
}

func (h *ResumeHandler) Delete(c *gin.Context) {
	if err := h.resumes.Delete(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}
