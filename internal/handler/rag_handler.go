package handler

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/suma/internal/model"
	"github.com/xxxsen/suma/internal/pdftext"
	"github.com/xxxsen/suma/internal/pkg/response"
	"github.com/xxxsen/suma/internal/rag"
)

type RAGService interface {
	Build(ctx context.Context, force bool) (*rag.BuildResult, error)
	Query(ctx context.Context, question string) (*rag.QueryResult, error)
	Search(ctx context.Context, query string, k int) ([]model.Chunk, error)
	AnalyzeQuiz(ctx context.Context, quizText string) (*rag.QuizAnalysis, error)
}

type OverlapService interface {
	CheckHighOccurrence(ctx context.Context, assignmentText string, quizTexts []string) (*model.OverlapReport, error)
}

type RAGHandler struct {
	rag         RAGService
	overlap     OverlapService
	uploadLimit int64
}

func NewRAGHandler(ragService RAGService, overlap OverlapService, uploadLimit int64) *RAGHandler {
	return &RAGHandler{rag: ragService, overlap: overlap, uploadLimit: uploadLimit}
}

type buildRequest struct {
	ForceRebuild bool `json:"force_rebuild"`
}

type queryRequest struct {
	Question string `json:"question"`
}

type searchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type checkRequest struct {
	AssignmentText string   `json:"assignment_text"`
	QuizTexts      []string `json:"quiz_texts"`
}

func (h *RAGHandler) Build(c *gin.Context) {
	var req buildRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, "invalid request")
			return
		}
	}
	res, err := h.rag.Build(c.Request.Context(), req.ForceRebuild)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"status": "ok", "result": res})
}

func (h *RAGHandler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		invalidRequest(c, "question is required")
		return
	}
	res, err := h.rag.Query(c.Request.Context(), req.Question)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, res)
}

func (h *RAGHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		invalidRequest(c, "query is required")
		return
	}
	items, err := h.rag.Search(c.Request.Context(), req.Query, req.K)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"results": items})
}

// AnalyzeQuiz takes either a multipart PDF under "file" or plain text under "text".
func (h *RAGHandler) AnalyzeQuiz(c *gin.Context) {
	limitBody(c, h.uploadLimit)
	text := strings.TrimSpace(c.PostForm("text"))
	if text == "" {
		upload, err := readUpload(c, "file", h.uploadLimit)
		if errors.Is(err, errUploadMissing) {
			invalidRequest(c, "file or text is required")
			return
		}
		if err != nil {
			handleError(c, err)
			return
		}
		text, err = pdftext.ExtractText(upload.Data)
		if err != nil {
			handleError(c, err)
			return
		}
	}
	if strings.TrimSpace(text) == "" {
		invalidRequest(c, "quiz text is empty")
		return
	}
	res, err := h.rag.AnalyzeQuiz(c.Request.Context(), text)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, res)
}

// CheckHighOccurrence always reports overlap failures to the caller.
func (h *RAGHandler) CheckHighOccurrence(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, "invalid request")
		return
	}
	report, err := h.overlap.CheckHighOccurrence(c.Request.Context(), req.AssignmentText, req.QuizTexts)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, report)
}
