package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/suma/internal/model"
	appErr "github.com/xxxsen/suma/internal/pkg/errors"
)

// ChunkRepo stores embedded textbook chunks and the per-corpus build marker.
type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// ReplaceCorpus swaps every chunk of the corpus and records the build marker in one transaction.
func (r *ChunkRepo) ReplaceCorpus(ctx context.Context, idx *model.CorpusIndex, chunks []model.ChunkEmbedding) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM textbook_chunks WHERE corpus_id = $1`, idx.CorpusID); err != nil {
		return fmt.Errorf("clear corpus: %w", err)
	}
	const insert = `
		INSERT INTO textbook_chunks (corpus_id, source_id, page, position, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, item := range chunks {
		if _, err := tx.ExecContext(ctx, insert,
			idx.CorpusID,
			item.SourceID,
			item.Page,
			item.Position,
			item.Content,
			pgvector.NewVector(item.Embedding),
		); err != nil {
			return fmt.Errorf("insert chunk: %w", err)
		}
	}
	const upsert = `
		INSERT INTO corpus_indexes (corpus_id, fingerprint, chunk_count, ctime, mtime)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (corpus_id) DO UPDATE SET
			fingerprint = EXCLUDED.fingerprint,
			chunk_count = EXCLUDED.chunk_count,
			mtime = EXCLUDED.mtime
	`
	if _, err := tx.ExecContext(ctx, upsert, idx.CorpusID, idx.Fingerprint, idx.ChunkCount, idx.Ctime, idx.Mtime); err != nil {
		return fmt.Errorf("save corpus index: %w", err)
	}
	return tx.Commit()
}

func (r *ChunkRepo) GetCorpusIndex(ctx context.Context, corpusID string) (*model.CorpusIndex, error) {
	const query = `
		SELECT corpus_id, fingerprint, chunk_count, ctime, mtime
		FROM corpus_indexes
		WHERE corpus_id = $1
	`
	var idx model.CorpusIndex
	err := r.db.QueryRowContext(ctx, query, corpusID).Scan(&idx.CorpusID, &idx.Fingerprint, &idx.ChunkCount, &idx.Ctime, &idx.Mtime)
	if err == sql.ErrNoRows {
		return nil, appErr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &idx, nil
}

// Search returns the k chunks nearest to the query vector by cosine distance.
// Score is the cosine similarity, 1 - distance.
func (r *ChunkRepo) Search(ctx context.Context, corpusID string, vector []float32, k int) ([]model.Chunk, error) {
	const query = `
		SELECT source_id, page, position, content, embedding <=> $2 AS distance
		FROM textbook_chunks
		WHERE corpus_id = $1
		ORDER BY distance ASC
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, corpusID, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	results := make([]model.Chunk, 0, k)
	for rows.Next() {
		item := model.Chunk{CorpusID: corpusID}
		var distance float64
		if err := rows.Scan(&item.SourceID, &item.Page, &item.Position, &item.Content, &distance); err != nil {
			return nil, err
		}
		item.Score = 1 - distance
		results = append(results, item)
	}
	return results, rows.Err()
}
