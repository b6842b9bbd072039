package rag

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/suma/internal/model"
	"github.com/xxxsen/suma/internal/pdftext"
	appErr "github.com/xxxsen/suma/internal/pkg/errors"
)

const (
	taskTypeDocument = "RETRIEVAL_DOCUMENT"
	taskTypeQuery    = "RETRIEVAL_QUERY"
)

var (
	ErrIndexUnavailable = fmt.Errorf("textbook index has not been built: %w", appErr.ErrUnavailable)
	ErrNoDocuments      = fmt.Errorf("no textbook documents found: %w", appErr.ErrUnavailable)
	ErrCorpusUnreadable = fmt.Errorf("textbook directory unreadable: %w", appErr.ErrUnavailable)
	ErrEmptyQuery       = fmt.Errorf("query cannot be empty: %w", appErr.ErrInvalid)
)

type ChunkStore interface {
	ReplaceCorpus(ctx context.Context, idx *model.CorpusIndex, chunks []model.ChunkEmbedding) error
	GetCorpusIndex(ctx context.Context, corpusID string) (*model.CorpusIndex, error)
	Search(ctx context.Context, corpusID string, vector []float32, k int) ([]model.Chunk, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
}

type IndexConfig struct {
	CorpusID     string
	TextbookDir  string
	ChunkSize    int
	ChunkOverlap int
	// Dimension, when set, is the vector length every embedding must have.
	Dimension int
}

type BuildResult struct {
	CorpusID    string `json:"corpus_id"`
	Rebuilt     bool   `json:"rebuilt"`
	Documents   int    `json:"documents"`
	Chunks      int    `json:"chunks"`
	Fingerprint string `json:"fingerprint"`
}

// Index is the textbook chunk store: PDFs are split per page, embedded and
// kept in postgres for nearest-neighbour search. Builds are serialized.
type Index struct {
	store    ChunkStore
	embedder Embedder
	splitter *Splitter
	cfg      IndexConfig
	extract  func([]byte) ([]pdftext.Page, error)
	mu       sync.Mutex
}

func NewIndex(store ChunkStore, embedder Embedder, cfg IndexConfig) *Index {
	return &Index{
		store:    store,
		embedder: embedder,
		splitter: NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		cfg:      cfg,
		extract:  pdftext.ExtractPages,
	}
}

// Build embeds the textbook directory. Without force an existing build is kept as is.
func (ix *Index) Build(ctx context.Context, force bool) (*BuildResult, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if !force {
		existing, err := ix.store.GetCorpusIndex(ctx, ix.cfg.CorpusID)
		if err == nil {
			logutil.GetLogger(ctx).Info("textbook index already built", zap.String("corpus_id", ix.cfg.CorpusID))
			return &BuildResult{
				CorpusID:    existing.CorpusID,
				Chunks:      existing.ChunkCount,
				Fingerprint: existing.Fingerprint,
			}, nil
		}
		if !appErr.IsNotFound(err) {
			return nil, err
		}
	}
	files, err := ix.scan()
	if err != nil {
		return nil, err
	}
	return ix.rebuild(ctx, files, fingerprint(files))
}

// Refresh rebuilds only when the textbook directory changed since the last build.
func (ix *Index) Refresh(ctx context.Context) (*BuildResult, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	files, err := ix.scan()
	if err != nil {
		return nil, err
	}
	fp := fingerprint(files)
	existing, err := ix.store.GetCorpusIndex(ctx, ix.cfg.CorpusID)
	if err != nil && !appErr.IsNotFound(err) {
		return nil, err
	}
	if existing != nil && existing.Fingerprint == fp {
		return &BuildResult{CorpusID: existing.CorpusID, Chunks: existing.ChunkCount, Fingerprint: fp}, nil
	}
	return ix.rebuild(ctx, files, fp)
}

func (ix *Index) scan() ([]corpusFile, error) {
	files, err := scanPDFs(ix.cfg.TextbookDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorpusUnreadable, err)
	}
	return files, nil
}

func (ix *Index) rebuild(ctx context.Context, files []corpusFile, fp string) (*BuildResult, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("corpus_id", ix.cfg.CorpusID))
	if len(files) == 0 {
		return nil, ErrNoDocuments
	}
	start := time.Now()
	var chunks []model.ChunkEmbedding
	documents := 0
	for i, f := range files {
		pages, err := ix.loadPages(f)
		if err != nil {
			logger.Warn("skip unreadable textbook", zap.String("file", f.Name), zap.Error(err))
			continue
		}
		documents++
		logger.Info("textbook loaded", zap.Int("index", i+1), zap.Int("total", len(files)),
			zap.String("file", f.Name), zap.Int("pages", len(pages)))
		for _, page := range pages {
			for _, piece := range ix.splitter.Split(page.Text) {
				vector, err := ix.embedder.Embed(ctx, piece, taskTypeDocument)
				if err != nil {
					return nil, fmt.Errorf("embed chunk of %s page %d: %w", f.Name, page.Number, err)
				}
				if ix.cfg.Dimension > 0 && len(vector) != ix.cfg.Dimension {
					return nil, fmt.Errorf("embedding has %d dims, want %d: %w", len(vector), ix.cfg.Dimension, appErr.ErrDependency)
				}
				chunks = append(chunks, model.ChunkEmbedding{
					Chunk: model.Chunk{
						CorpusID: ix.cfg.CorpusID,
						SourceID: f.Name,
						Page:     page.Number,
						Position: len(chunks),
						Content:  piece,
					},
					Embedding: vector,
				})
			}
		}
	}
	if len(chunks) == 0 {
		return nil, ErrNoDocuments
	}
	now := time.Now().Unix()
	idx := &model.CorpusIndex{
		CorpusID:    ix.cfg.CorpusID,
		Fingerprint: fp,
		ChunkCount:  len(chunks),
		Ctime:       now,
		Mtime:       now,
	}
	if err := ix.store.ReplaceCorpus(ctx, idx, chunks); err != nil {
		return nil, fmt.Errorf("save textbook chunks: %w", err)
	}
	logger.Info("textbook index built", zap.Int("documents", documents), zap.Int("chunks", len(chunks)),
		zap.Duration("cost", time.Since(start)))
	return &BuildResult{
		CorpusID:    ix.cfg.CorpusID,
		Rebuilt:     true,
		Documents:   documents,
		Chunks:      len(chunks),
		Fingerprint: fp,
	}, nil
}

func (ix *Index) loadPages(f corpusFile) ([]pdftext.Page, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}
	return ix.extract(data)
}

// Search returns up to k chunks most similar to query, best first.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]model.Chunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		k = 5
	}
	if _, err := ix.store.GetCorpusIndex(ctx, ix.cfg.CorpusID); err != nil {
		if appErr.IsNotFound(err) {
			return nil, ErrIndexUnavailable
		}
		return nil, err
	}
	vector, err := ix.embedder.Embed(ctx, query, taskTypeQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return ix.store.Search(ctx, ix.cfg.CorpusID, vector, k)
}
