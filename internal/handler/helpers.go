package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/suma/internal/ai"
	"github.com/xxxsen/suma/internal/middleware"
	"github.com/xxxsen/suma/internal/pdftext"
	"github.com/xxxsen/suma/internal/pkg/errcode"
	appErr "github.com/xxxsen/suma/internal/pkg/errors"
	"github.com/xxxsen/suma/internal/pkg/response"
	"github.com/xxxsen/suma/internal/rag"
	"github.com/xxxsen/suma/internal/service"
)

var errUploadMissing = fmt.Errorf("file is required: %w", appErr.ErrInvalid)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("request_id", c.GetString(middleware.ContextRequestIDKey)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("user_id", middleware.UserID(c)),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, appErr.ErrUnauthorized):
		response.Error(c, http.StatusUnauthorized, errcode.ErrUnauthorized, err.Error())
	case errors.Is(err, appErr.ErrForbidden):
		response.Error(c, http.StatusForbidden, errcode.ErrForbidden, "forbidden")
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, http.StatusNotFound, errcode.ErrNotFound, err.Error())
	case errors.Is(err, service.ErrNotPDF), errors.Is(err, service.ErrEmptyUpload),
		errors.Is(err, pdftext.ErrUnreadablePDF), errors.Is(err, errUploadMissing):
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalidFile, err.Error())
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, err.Error())
	case errors.Is(err, appErr.ErrConflict):
		response.Error(c, http.StatusConflict, errcode.ErrConflict, err.Error())
	case errors.Is(err, appErr.ErrTooMany):
		response.Error(c, http.StatusTooManyRequests, errcode.ErrTooMany, err.Error())
	case errors.Is(err, rag.ErrIndexUnavailable):
		response.Error(c, http.StatusServiceUnavailable, errcode.ErrIndexUnavailable, err.Error())
	case errors.Is(err, rag.ErrNoDocuments), errors.Is(err, rag.ErrCorpusUnreadable):
		response.Error(c, http.StatusServiceUnavailable, errcode.ErrCorpusUnavailable, err.Error())
	case errors.Is(err, ai.ErrUnavailable):
		response.Error(c, http.StatusServiceUnavailable, errcode.ErrAIUnavailable, err.Error())
	case errors.Is(err, appErr.ErrUnavailable):
		response.Error(c, http.StatusServiceUnavailable, errcode.ErrUnavailable, err.Error())
	case errors.Is(err, service.ErrArchive):
		response.Error(c, http.StatusBadGateway, errcode.ErrUploadFailed, "failed to archive upload")
	case errors.Is(err, appErr.ErrDependency):
		response.Error(c, http.StatusBadGateway, errcode.ErrDependency, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, errcode.ErrInternal, "internal error")
	}
}

func invalidRequest(c *gin.Context, message string) {
	response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, message)
}

// limitBody caps how much of the request body any later form parsing may read.
func limitBody(c *gin.Context, limit int64) {
	if limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}
}

type uploadedFile struct {
	Name string
	Data []byte
}

// readUpload loads a multipart file field fully into memory, bounded by limit bytes.
func readUpload(c *gin.Context, field string, limit int64) (*uploadedFile, error) {
	limitBody(c, limit)
	header, err := c.FormFile(field)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("file exceeds %s limit: %w", formatUploadLimit(limit), appErr.ErrInvalid)
		}
		return nil, errUploadMissing
	}
	if limit > 0 && header.Size > limit {
		return nil, fmt.Errorf("file exceeds %s limit: %w", formatUploadLimit(limit), appErr.ErrInvalid)
	}
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", appErr.ErrInvalid)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", appErr.ErrInvalid)
	}
	return &uploadedFile{Name: header.Filename, Data: data}, nil
}

func parseBoolForm(value string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(value))
	return err == nil && v
}

func formatUploadLimit(bytes int64) string {
	const mb = 1024 * 1024
	if bytes <= 0 {
		return "0MB"
	}
	value := bytes / mb
	if value <= 0 {
		value = 1
	}
	return strconv.FormatInt(value, 10) + "MB"
}
