package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/suma/internal/rag"
)

type fakeRefresher struct {
	calls int
	err   error
}

func (f *fakeRefresher) Refresh(context.Context) (*rag.BuildResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &rag.BuildResult{CorpusID: "textbook", Rebuilt: true, Chunks: 3}, nil
}

type fakeQuizCache struct {
	invalidated int
}

func (f *fakeQuizCache) Invalidate() { f.invalidated++ }

type fakeEvictor struct {
	cutoff int64
}

func (f *fakeEvictor) DeleteBefore(_ context.Context, cutoff int64) (int64, error) {
	f.cutoff = cutoff
	return 2, nil
}

func TestCorpusRefreshJob(t *testing.T) {
	refresher := &fakeRefresher{}
	quizzes := &fakeQuizCache{}
	job := NewCorpusRefreshJob(refresher, quizzes)
	assert.Equal(t, "corpus_refresh", job.Name())
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, refresher.calls)
	assert.Equal(t, 1, quizzes.invalidated)

	refresher.err = errors.New("no pdfs")
	require.Error(t, job.Run(context.Background()))
}

func TestEmbeddingCacheCleanupJobCutoff(t *testing.T) {
	evictor := &fakeEvictor{}
	job := NewEmbeddingCacheCleanupJob(evictor, 0)
	fixed := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return fixed }
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, fixed.Add(-30*24*time.Hour).Unix(), evictor.cutoff)
}
