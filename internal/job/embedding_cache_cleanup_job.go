package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type CacheEvictor interface {
	DeleteBefore(ctx context.Context, cutoff int64) (int64, error)
}

type EmbeddingCacheCleanupJob struct {
	cache      CacheEvictor
	maxAgeDays int
	now        func() time.Time
}

func NewEmbeddingCacheCleanupJob(cache CacheEvictor, maxAgeDays int) *EmbeddingCacheCleanupJob {
	return &EmbeddingCacheCleanupJob{cache: cache, maxAgeDays: maxAgeDays, now: time.Now}
}

func (j *EmbeddingCacheCleanupJob) Name() string {
	return "embedding_cache_cleanup"
}

func (j *EmbeddingCacheCleanupJob) Run(ctx context.Context) error {
	if j.cache == nil {
		return nil
	}
	maxAgeDays := j.maxAgeDays
	if maxAgeDays <= 0 {
		maxAgeDays = 30
	}
	cutoff := j.now().Add(-time.Duration(maxAgeDays) * 24 * time.Hour).Unix()
	removed, err := j.cache.DeleteBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("embedding cache cleaned", zap.Int64("removed", removed))
	return nil
}
