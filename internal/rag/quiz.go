package rag

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/suma/internal/pdftext"
)

const quizCacheKey = "quiz_texts"

// QuizLoader reads prior quiz PDFs from a directory. Files whose name mentions
// "textbook" are skipped. Results are cached until ttl expires.
type QuizLoader struct {
	dir     string
	cache   *expirable.LRU[string, []string]
	extract func([]byte) (string, error)
}

func NewQuizLoader(dir string, ttl time.Duration) *QuizLoader {
	return &QuizLoader{
		dir:     dir,
		cache:   expirable.NewLRU[string, []string](1, nil, ttl),
		extract: pdftext.ExtractText,
	}
}

// Load returns the text of every readable quiz. An unset or missing directory yields no quizzes.
func (q *QuizLoader) Load(ctx context.Context) ([]string, error) {
	if q == nil || q.dir == "" {
		return nil, nil
	}
	if texts, ok := q.cache.Get(quizCacheKey); ok {
		return texts, nil
	}
	logger := logutil.GetLogger(ctx).With(zap.String("dir", q.dir))
	files, err := scanPDFs(q.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("quiz directory not found")
			return nil, nil
		}
		return nil, err
	}
	texts := make([]string, 0, len(files))
	for _, f := range files {
		if strings.Contains(strings.ToLower(f.Name), "textbook") {
			continue
		}
		data, err := os.ReadFile(f.Path)
		if err != nil {
			logger.Warn("read quiz failed", zap.String("file", f.Name), zap.Error(err))
			continue
		}
		text, err := q.extract(data)
		if err != nil || strings.TrimSpace(text) == "" {
			logger.Warn("skip unreadable quiz", zap.String("file", f.Name), zap.Error(err))
			continue
		}
		texts = append(texts, text)
	}
	logger.Info("quiz corpus loaded", zap.Int("quizzes", len(texts)))
	q.cache.Add(quizCacheKey, texts)
	return texts, nil
}

// Invalidate drops the cached quiz texts so the next Load rereads the directory.
func (q *QuizLoader) Invalidate() {
	if q == nil {
		return
	}
	q.cache.Purge()
}
