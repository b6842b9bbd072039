// Package overlap scores how strongly an assignment's topics recur across the
// textbook corpus and a set of prior quizzes.
package overlap

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/suma/internal/model"
	appErr "github.com/xxxsen/suma/internal/pkg/errors"
)

const (
	AssignmentK       = 10
	QuizK             = 5
	CoverageThreshold = 5
	SimilarityCutoff  = 0.5
	relevantSections  = 5
)

var ErrEmptyInput = fmt.Errorf("assignment text cannot be empty: %w", appErr.ErrInvalid)

type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]model.Chunk, error)
}

type Scorer struct {
	searcher Searcher
}

func NewScorer(searcher Searcher) *Scorer {
	return &Scorer{searcher: searcher}
}

// CheckHighOccurrence queries the chunk store for the assignment and each quiz.
// A nil or empty quizTexts leaves QuizSimilarity nil and the verdict rests on
// textbook coverage alone.
func (s *Scorer) CheckHighOccurrence(ctx context.Context, assignmentText string, quizTexts []string) (*model.OverlapReport, error) {
	if strings.TrimSpace(assignmentText) == "" {
		return nil, ErrEmptyInput
	}
	if s.searcher == nil {
		return nil, errors.New("overlap scorer has no searcher")
	}
	logger := logutil.GetLogger(ctx).With(zap.Int("quiz_count", len(quizTexts)))

	matches, err := s.searcher.Search(ctx, assignmentText, AssignmentK)
	if err != nil {
		return nil, fmt.Errorf("search assignment: %w", err)
	}
	report := &model.OverlapReport{
		MatchesFound: len(matches),
		Confidence:   math.Min(float64(len(matches))/float64(AssignmentK), 1.0),
	}
	report.RelevantSections = topSections(matches, relevantSections)
	hasCoverage := report.MatchesFound >= CoverageThreshold
	report.IsHighOccurrence = hasCoverage

	if len(quizTexts) > 0 {
		topics := wordSet(assignmentText)
		hits := 0
		for i, quiz := range quizTexts {
			quizMatches, err := s.searcher.Search(ctx, quiz, QuizK)
			if err != nil {
				return nil, fmt.Errorf("search quiz %d: %w", i, err)
			}
			if anyChunkIntersects(quizMatches, topics) {
				hits++
			}
		}
		similarity := float64(hits) / float64(len(quizTexts))
		report.QuizSimilarity = &similarity
		report.IsHighOccurrence = hasCoverage && similarity > SimilarityCutoff
	}

	logger.Debug("overlap checked",
		zap.Int("matches_found", report.MatchesFound),
		zap.Bool("is_high_occurrence", report.IsHighOccurrence),
		zap.Float64("confidence", report.Confidence),
	)
	return report, nil
}

func anyChunkIntersects(chunks []model.Chunk, topics map[string]struct{}) bool {
	for _, c := range chunks {
		for _, word := range strings.Fields(strings.ToLower(c.Content)) {
			if _, ok := topics[word]; ok {
				return true
			}
		}
	}
	return false
}

func wordSet(text string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func topSections(chunks []model.Chunk, n int) []model.Chunk {
	if len(chunks) < n {
		n = len(chunks)
	}
	out := make([]model.Chunk, n)
	copy(out, chunks[:n])
	return out
}
