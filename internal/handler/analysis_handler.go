package handler

import (
	"context"
	"io"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/suma/internal/filestore"
	"github.com/xxxsen/suma/internal/model"
	"github.com/xxxsen/suma/internal/pkg/errcode"
	"github.com/xxxsen/suma/internal/pkg/response"
	"github.com/xxxsen/suma/internal/service"
)

type AnalysisService interface {
	Analyze(ctx context.Context, req service.AnalyzeRequest) (*model.AnalysisRecord, error)
	Get(ctx context.Context, id string) (*model.AnalysisRecord, error)
	List(ctx context.Context) ([]*model.AnalysisRecord, error)
}

type AnalysisHandler struct {
	analyses    AnalysisService
	files       filestore.Store
	uploadLimit int64
}

func NewAnalysisHandler(analyses AnalysisService, files filestore.Store, uploadLimit int64) *AnalysisHandler {
	return &AnalysisHandler{analyses: analyses, files: files, uploadLimit: uploadLimit}
}

// Analyze accepts a multipart PDF under "file" with optional "task_id" and "force_refresh" fields.
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	upload, err := readUpload(c, "file", h.uploadLimit)
	if err != nil {
		handleError(c, err)
		return
	}
	rec, err := h.analyses.Analyze(c.Request.Context(), service.AnalyzeRequest{
		ID:       c.PostForm("task_id"),
		Filename: path.Base(upload.Name),
		Data:     upload.Data,
		Force:    parseBoolForm(c.PostForm("force_refresh")),
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, rec)
}

func (h *AnalysisHandler) Get(c *gin.Context) {
	rec, err := h.analyses.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, rec)
}

func (h *AnalysisHandler) List(c *gin.Context) {
	items, err := h.analyses.List(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, items)
}

// File streams the archived upload of an analysis.
func (h *AnalysisHandler) File(c *gin.Context) {
	rec, err := h.analyses.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	if h.files == nil || rec.FileKey == "" {
		response.Error(c, http.StatusNotFound, errcode.ErrNotFound, "file not archived")
		return
	}
	rc, err := h.files.Open(c.Request.Context(), rec.FileKey)
	if err != nil {
		response.Error(c, http.StatusNotFound, errcode.ErrNotFound, "file not found")
		return
	}
	defer rc.Close()
	name := rec.SourceName
	if name == "" {
		name = rec.ID + ".pdf"
	}
	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", `inline; filename="`+path.Base(name)+`"`)
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, rc)
}
