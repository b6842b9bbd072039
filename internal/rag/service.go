package rag

import (
	"bytes"
	"context"
	"math"

	"github.com/xxxsen/common/logutil"
	"github.com/yuin/goldmark"
	"go.uber.org/zap"

	"github.com/xxxsen/suma/internal/model"
)

const (
	qaK            = 5
	quizK          = 10
	quizSections   = 5
	sourcePreview  = 200
	defaultSearchK = 5
	maxSearchK     = 50
)

type Answerer interface {
	Answer(ctx context.Context, question string, passages []string) (string, error)
}

type Source struct {
	Content string `json:"content"`
	Source  string `json:"source"`
	Page    int    `json:"page"`
}

type QueryResult struct {
	Answer     string   `json:"answer"`
	AnswerHTML string   `json:"answer_html"`
	Sources    []Source `json:"sources"`
}

type QuizAnalysis struct {
	TopicsFound      bool          `json:"topics_found"`
	CoverageScore    float64       `json:"coverage_score"`
	RelevantSections []model.Chunk `json:"relevant_sections"`
	TotalMatches     int           `json:"total_matches"`
}

// Service answers questions and analyses quizzes against the textbook index.
type Service struct {
	index    *Index
	answerer Answerer
	md       goldmark.Markdown
}

func NewService(index *Index, answerer Answerer) *Service {
	return &Service{index: index, answerer: answerer, md: goldmark.New()}
}

func (s *Service) Build(ctx context.Context, force bool) (*BuildResult, error) {
	return s.index.Build(ctx, force)
}

func (s *Service) Search(ctx context.Context, query string, k int) ([]model.Chunk, error) {
	if k <= 0 {
		k = defaultSearchK
	}
	if k > maxSearchK {
		k = maxSearchK
	}
	return s.index.Search(ctx, query, k)
}

// Query retrieves the closest passages and asks the completion model to answer from them.
func (s *Service) Query(ctx context.Context, question string) (*QueryResult, error) {
	chunks, err := s.index.Search(ctx, question, qaK)
	if err != nil {
		return nil, err
	}
	passages := make([]string, 0, len(chunks))
	sources := make([]Source, 0, len(chunks))
	for _, c := range chunks {
		passages = append(passages, c.Content)
		sources = append(sources, Source{Content: preview(c.Content), Source: c.SourceID, Page: c.Page})
	}
	answer, err := s.answerer.Answer(ctx, question, passages)
	if err != nil {
		return nil, err
	}
	return &QueryResult{Answer: answer, AnswerHTML: s.renderHTML(ctx, answer), Sources: sources}, nil
}

func (s *Service) AnalyzeQuiz(ctx context.Context, quizText string) (*QuizAnalysis, error) {
	chunks, err := s.index.Search(ctx, quizText, quizK)
	if err != nil {
		return nil, err
	}
	top := chunks
	if len(top) > quizSections {
		top = top[:quizSections]
	}
	return &QuizAnalysis{
		TopicsFound:      len(chunks) > 0,
		CoverageScore:    math.Min(float64(len(chunks))/float64(quizK), 1.0),
		RelevantSections: top,
		TotalMatches:     len(chunks),
	}, nil
}

func (s *Service) renderHTML(ctx context.Context, answer string) string {
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(answer), &buf); err != nil {
		logutil.GetLogger(ctx).Warn("render answer markdown failed", zap.Error(err))
		return ""
	}
	return buf.String()
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) > sourcePreview {
		runes = runes[:sourcePreview]
	}
	return string(runes) + "..."
}
