package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/careercopilot/internal/middleware"
	"github.com/xxxsen/careercopilot/internal/pkg/errcode"
	appErr "github.com/xxxsen/careercopilot/internal/pkg/errors"
	"github.com/xxxsen/careercopilot/internal/pkg/response"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func getUserID(c *gin.Context) string {
	return c.GetString(middleware.ContextUserIDKey)
}

// pageArgs reads ?offset=&limit= with a default and capped page size.
func pageArgs(c *gin.Context) (uint, uint) {
	offset, _ := strconv.ParseUint(c.Query("offset"), 10, 32)
	limit, err := strconv.ParseUint(c.Query("limit"), 10, 32)
	if err != nil || limit == 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return uint(offset), uint(limit)
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logger := logutil.GetLogger(c.Request.Context()).With(
		zap.String("request_id", c.GetString(middleware.ContextRequestIDKey)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("user_id", getUserID(c)),
	)
	var verr *appErr.ValidationError
	switch {
	case errors.As(err, &verr):
		logger.Debug("request rejected", zap.Error(err))
		response.Error(c, errcode.ErrInvalid, verr.Error())
	case errors.Is(err, appErr.ErrUnauthorized):
		response.Error(c, errcode.ErrUnauthorized, "unauthorized")
	case errors.Is(err, appErr.ErrForbidden):
		response.Error(c, errcode.ErrForbidden, "forbidden")
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, "invalid request")
	case errors.Is(err, appErr.ErrConflict):
		response.Error(c, errcode.ErrConflict, "conflict")
	case errors.Is(err, appErr.ErrTooMany):
		response.Error(c, errcode.ErrTooMany, "too many requests")
	case appErr.IsUpstream(err):
		logger.Error("upstream failure", zap.Error(err))
		response.Error(c, errcode.ErrAIUnavailable, "ai service unavailable")
	default:
		logger.Error("request failed", zap.Error(err))
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}

func invalidRequest(c *gin.Context) {
	response.Error(c, errcode.ErrInvalid, "invalid request")
}
