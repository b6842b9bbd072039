package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/suma/internal/rag"
)

type CorpusRefresher interface {
	Refresh(ctx context.Context) (*rag.BuildResult, error)
}

type QuizCache interface {
	Invalidate()
}

// CorpusRefreshJob rebuilds the textbook index when its files changed and
// drops cached quiz texts so new quizzes are picked up.
type CorpusRefreshJob struct {
	index   CorpusRefresher
	quizzes QuizCache
}

func NewCorpusRefreshJob(index CorpusRefresher, quizzes QuizCache) *CorpusRefreshJob {
	return &CorpusRefreshJob{index: index, quizzes: quizzes}
}

func (j *CorpusRefreshJob) Name() string {
	return "corpus_refresh"
}

func (j *CorpusRefreshJob) Run(ctx context.Context) error {
	if j.quizzes != nil {
		j.quizzes.Invalidate()
	}
	if j.index == nil {
		return nil
	}
	res, err := j.index.Refresh(ctx)
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("corpus refresh checked",
		zap.String("corpus_id", res.CorpusID),
		zap.Bool("rebuilt", res.Rebuilt),
		zap.Int("chunks", res.Chunks),
	)
	return nil
}
