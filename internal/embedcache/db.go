package embedcache

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/suma/internal/ai"
	"github.com/xxxsen/suma/internal/model"
)

// Store is the persistent side of the cache, satisfied by repo.EmbeddingCacheRepo.
type Store interface {
	Get(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool, error)
	Save(ctx context.Context, item *model.CachedEmbedding) error
}

func WrapDB(e ai.IEmbedder, store Store) ai.IEmbedder {
	if e == nil || store == nil {
		return e
	}
	return &dbEmbedder{next: e, store: store}
}

type dbEmbedder struct {
	next  ai.IEmbedder
	store Store
}

// Embed treats a failing cache read as a miss so the provider can still answer.
func (d *dbEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	logger := logutil.GetLogger(ctx)
	key := newCacheKey(d.next.ModelName(), taskType, text)
	values, ok, err := d.store.Get(ctx, key.model, key.taskType, key.contentHash)
	if err != nil {
		logger.Warn("read embedding cache failed", zap.Error(err))
	}
	if err == nil && ok {
		logger.Debug("embedding cache hit", zap.String("layer", "db"), zap.String("task_type", taskType))
		return values, nil
	}
	res, err := d.next.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	if err := d.store.Save(ctx, &model.CachedEmbedding{
		Model:       key.model,
		TaskType:    key.taskType,
		ContentHash: key.contentHash,
		Vector:      res,
		Ctime:       time.Now().Unix(),
	}); err != nil {
		logger.Warn("write embedding cache failed", zap.Error(err))
	}
	return res, nil
}

func (d *dbEmbedder) ModelName() string {
	return d.next.ModelName()
}
