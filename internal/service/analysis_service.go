package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/suma/internal/filestore"
	"github.com/xxxsen/suma/internal/model"
	"github.com/xxxsen/suma/internal/pdftext"
	appErr "github.com/xxxsen/suma/internal/pkg/errors"
	"github.com/xxxsen/suma/internal/pkg/timeutil"
	"github.com/xxxsen/suma/internal/tagger"
)

var (
	ErrEmptyUpload = fmt.Errorf("uploaded pdf is empty: %w", appErr.ErrInvalid)
	ErrNotPDF      = fmt.Errorf("uploaded file is not a pdf: %w", appErr.ErrInvalid)
	ErrNoText      = fmt.Errorf("unable to extract text from pdf: %w", appErr.ErrInvalid)
	ErrArchive     = fmt.Errorf("archive upload: %w", appErr.ErrDependency)
)

type AnalysisStore interface {
	Upsert(ctx context.Context, rec *model.AnalysisRecord) error
	GetByID(ctx context.Context, id string) (*model.AnalysisRecord, error)
	List(ctx context.Context) ([]*model.AnalysisRecord, error)
}

type AssignmentAnalyzer interface {
	AnalyzeAssignment(ctx context.Context, text string) (*model.AnalysisInput, error)
}

type OverlapChecker interface {
	CheckHighOccurrence(ctx context.Context, assignmentText string, quizTexts []string) (*model.OverlapReport, error)
}

type QuizSource interface {
	Load(ctx context.Context) ([]string, error)
}

type AnalysisOptions struct {
	// StrictOverlap aborts the analysis when the overlap check fails instead of
	// saving the record without an overlap report.
	StrictOverlap bool
}

type AnalyzeRequest struct {
	ID       string
	Filename string
	Data     []byte
	Force    bool
}

// AnalysisService runs an uploaded assignment through extraction, completion,
// tagging and the overlap check, then stores the result. Nothing is written
// unless every step succeeds.
type AnalysisService struct {
	records  AnalysisStore
	analyzer AssignmentAnalyzer
	overlap  OverlapChecker
	quizzes  QuizSource
	files    filestore.Store
	opts     AnalysisOptions
	extract  func([]byte) (string, error)
}

func NewAnalysisService(records AnalysisStore, analyzer AssignmentAnalyzer, overlap OverlapChecker,
	quizzes QuizSource, files filestore.Store, opts AnalysisOptions) *AnalysisService {
	return &AnalysisService{
		records:  records,
		analyzer: analyzer,
		overlap:  overlap,
		quizzes:  quizzes,
		files:    files,
		opts:     opts,
		extract:  pdftext.ExtractText,
	}
}

func (s *AnalysisService) Analyze(ctx context.Context, req AnalyzeRequest) (*model.AnalysisRecord, error) {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = newID()
	}
	logger := logutil.GetLogger(ctx).With(zap.String("task_id", id), zap.String("source", req.Filename), zap.Bool("force", req.Force))

	existing, err := s.records.GetByID(ctx, id)
	if err != nil && !appErr.IsNotFound(err) {
		return nil, err
	}
	if existing != nil && !req.Force {
		logger.Info("analysis exists, skip")
		return existing, nil
	}

	if len(req.Data) == 0 {
		return nil, ErrEmptyUpload
	}
	if !pdftext.IsPDF(req.Data) {
		return nil, ErrNotPDF
	}
	text, err := s.extract(req.Data)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoText
	}
	logger.Info("assignment text extracted", zap.Int("chars", len(text)))

	input, err := s.analyzer.AnalyzeAssignment(ctx, text)
	if err != nil {
		logger.Error("assignment analysis failed", zap.Error(err))
		return nil, err
	}
	logger.Info("assignment analyzed", zap.Int("difficulty", input.DifficultyOrZero()))

	tags := tagger.DeriveTags(input)

	report, err := s.checkOverlap(ctx, text)
	if err != nil {
		if s.opts.StrictOverlap {
			return nil, err
		}
		logger.Warn("overlap check failed, continue without report", zap.Error(err))
		report = nil
	}
	if report != nil && report.IsHighOccurrence {
		tags = tagger.AppendUnique(tags, tagger.TagHighOccurrence)
	}
	logger.Info("assignment tagged", zap.Strings("tags", tagger.Strings(tags)), zap.Bool("has_overlap", report != nil))

	fileKey, err := s.archive(ctx, id, req.Data)
	if err != nil {
		return nil, err
	}

	now := timeutil.NowUnix()
	rec := &model.AnalysisRecord{
		ID:             id,
		SourceName:     req.Filename,
		Difficulty:     input.Difficulty,
		ContentSummary: input.ContentSummary,
		EstimatedTime:  input.EstimatedTime,
		Challenges:     nonNil(input.Challenges),
		Plan:           nonNil(input.Plan),
		Tags:           tagger.Strings(tags),
		Overlap:        report,
		AIComment:      ComposeAIComment(input, report),
		FileKey:        fileKey,
		Ctime:          now,
		Mtime:          now,
	}
	if err := s.records.Upsert(ctx, rec); err != nil {
		s.discard(ctx, fileKey)
		return nil, fmt.Errorf("save analysis: %w", err)
	}
	logger.Info("analysis persisted")
	if existing != nil && existing.FileKey != fileKey {
		s.discard(ctx, existing.FileKey)
	}
	return rec, nil
}

// CheckHighOccurrence backs the dedicated endpoint, where a failure is always returned.
func (s *AnalysisService) CheckHighOccurrence(ctx context.Context, assignmentText string, quizTexts []string) (*model.OverlapReport, error) {
	if s.overlap == nil {
		return nil, fmt.Errorf("overlap checker not configured: %w", appErr.ErrUnavailable)
	}
	if quizTexts == nil && s.quizzes != nil && strings.TrimSpace(assignmentText) != "" {
		loaded, err := s.quizzes.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load quizzes: %w", err)
		}
		quizTexts = loaded
	}
	return s.overlap.CheckHighOccurrence(ctx, assignmentText, quizTexts)
}

func (s *AnalysisService) Get(ctx context.Context, id string) (*model.AnalysisRecord, error) {
	return s.records.GetByID(ctx, id)
}

func (s *AnalysisService) List(ctx context.Context) ([]*model.AnalysisRecord, error) {
	return s.records.List(ctx)
}

func (s *AnalysisService) checkOverlap(ctx context.Context, text string) (*model.OverlapReport, error) {
	if s.overlap == nil {
		return nil, fmt.Errorf("overlap checker not configured: %w", appErr.ErrUnavailable)
	}
	var quizTexts []string
	if s.quizzes != nil {
		loaded, err := s.quizzes.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load quizzes: %w", err)
		}
		quizTexts = loaded
	}
	return s.overlap.CheckHighOccurrence(ctx, text, quizTexts)
}

func (s *AnalysisService) archive(ctx context.Context, id string, data []byte) (string, error) {
	if s.files == nil {
		return "", nil
	}
	// Each upload gets its own key so a failed save never touches the file of the stored record.
	key := "analyses/" + id + "/" + newID() + ".pdf"
	if err := s.files.Save(ctx, key, &bytesFile{Reader: bytes.NewReader(data)}, int64(len(data))); err != nil {
		return "", fmt.Errorf("%w: %w", ErrArchive, err)
	}
	return key, nil
}

func (s *AnalysisService) discard(ctx context.Context, key string) {
	if s.files == nil || key == "" {
		return
	}
	if err := s.files.Delete(ctx, key); err != nil {
		logutil.GetLogger(ctx).Warn("remove archived upload failed", zap.String("file_key", key), zap.Error(err))
	}
}

type bytesFile struct {
	*bytes.Reader
}

func (f *bytesFile) Close() error {
	return nil
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
