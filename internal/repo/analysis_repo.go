package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/suma/internal/model"
	"github.com/xxxsen/suma/internal/pkg/dbutil"
	appErr "github.com/xxxsen/suma/internal/pkg/errors"
)

const analysisTable = "assignment_analyses"

var analysisColumns = []string{
	"id", "source_name", "difficulty", "content_summary", "estimated_time",
	"challenges", "plan", "tags", "overlap", "ai_comment", "file_key", "ctime", "mtime",
}

// AnalysisRepo persists analysis records keyed by task id.
type AnalysisRepo struct {
	db *sql.DB
}

func NewAnalysisRepo(db *sql.DB) *AnalysisRepo {
	return &AnalysisRepo{db: db}
}

// Upsert inserts the record or overwrites it in place. ctime of an existing row is kept.
func (r *AnalysisRepo) Upsert(ctx context.Context, rec *model.AnalysisRecord) error {
	challenges, err := dbutil.MarshalJSONColumn(rec.Challenges)
	if err != nil {
		return fmt.Errorf("encode challenges: %w", err)
	}
	plan, err := dbutil.MarshalJSONColumn(rec.Plan)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	tags, err := dbutil.MarshalJSONColumn(rec.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	var overlap interface{}
	if rec.Overlap != nil {
		raw, err := dbutil.MarshalJSONColumn(rec.Overlap)
		if err != nil {
			return fmt.Errorf("encode overlap: %w", err)
		}
		overlap = raw
	}
	var difficulty interface{}
	if rec.Difficulty != nil {
		difficulty = *rec.Difficulty
	}
	const query = `
		INSERT INTO assignment_analyses (id, source_name, difficulty, content_summary, estimated_time,
			challenges, plan, tags, overlap, ai_comment, file_key, ctime, mtime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			source_name = EXCLUDED.source_name,
			difficulty = EXCLUDED.difficulty,
			content_summary = EXCLUDED.content_summary,
			estimated_time = EXCLUDED.estimated_time,
			challenges = EXCLUDED.challenges,
			plan = EXCLUDED.plan,
			tags = EXCLUDED.tags,
			overlap = EXCLUDED.overlap,
			ai_comment = EXCLUDED.ai_comment,
			file_key = EXCLUDED.file_key,
			mtime = EXCLUDED.mtime
		RETURNING ctime
	`
	var ctime int64
	err = r.db.QueryRowContext(ctx, query,
		rec.ID,
		rec.SourceName,
		difficulty,
		rec.ContentSummary,
		rec.EstimatedTime,
		challenges,
		plan,
		tags,
		overlap,
		rec.AIComment,
		rec.FileKey,
		rec.Ctime,
		rec.Mtime,
	).Scan(&ctime)
	if err != nil {
		return err
	}
	rec.Ctime = ctime
	return nil
}

func (r *AnalysisRepo) GetByID(ctx context.Context, id string) (*model.AnalysisRecord, error) {
	sqlStr, args, err := builder.BuildSelect(analysisTable, map[string]interface{}{"id": id}, analysisColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, appErr.ErrNotFound
	}
	return scanAnalysis(rows)
}

// List returns all records, newest first.
func (r *AnalysisRepo) List(ctx context.Context) ([]*model.AnalysisRecord, error) {
	where := map[string]interface{}{"_orderby": "ctime desc"}
	sqlStr, args, err := builder.BuildSelect(analysisTable, where, analysisColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := make([]*model.AnalysisRecord, 0)
	for rows.Next() {
		rec, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}

func scanAnalysis(rows *sql.Rows) (*model.AnalysisRecord, error) {
	var (
		rec        model.AnalysisRecord
		difficulty sql.NullInt64
		challenges []byte
		plan       []byte
		tags       []byte
		overlap    sql.NullString
	)
	if err := rows.Scan(&rec.ID, &rec.SourceName, &difficulty, &rec.ContentSummary, &rec.EstimatedTime,
		&challenges, &plan, &tags, &overlap, &rec.AIComment, &rec.FileKey, &rec.Ctime, &rec.Mtime); err != nil {
		return nil, err
	}
	if difficulty.Valid {
		d := int(difficulty.Int64)
		rec.Difficulty = &d
	}
	rec.Challenges = []string{}
	rec.Plan = []string{}
	rec.Tags = []string{}
	if err := dbutil.UnmarshalJSONColumn(challenges, &rec.Challenges); err != nil {
		return nil, fmt.Errorf("decode challenges: %w", err)
	}
	if err := dbutil.UnmarshalJSONColumn(plan, &rec.Plan); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	if err := dbutil.UnmarshalJSONColumn(tags, &rec.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if overlap.Valid && overlap.String != "" && overlap.String != "null" {
		report := &model.OverlapReport{}
		if err := dbutil.UnmarshalJSONColumn([]byte(overlap.String), report); err != nil {
			return nil, fmt.Errorf("decode overlap: %w", err)
		}
		rec.Overlap = report
	}
	return &rec, nil
}
