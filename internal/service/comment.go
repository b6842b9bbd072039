package service

import (
	"fmt"
	"math"
	"strings"

	"github.com/xxxsen/suma/internal/model"
)

const (
	commentChallenges = 3
	commentPlanSteps  = 4
)

// ComposeAIComment renders the analysis as short sentences, one per line.
// Absent fields are left out instead of being rendered as placeholders.
func ComposeAIComment(in *model.AnalysisInput, report *model.OverlapReport) string {
	var parts []string
	if in != nil {
		switch {
		case in.Difficulty != nil && in.EstimatedTime != "":
			parts = append(parts, fmt.Sprintf("Difficulty %d/10. Estimated effort: %s.", *in.Difficulty, in.EstimatedTime))
		case in.Difficulty != nil:
			parts = append(parts, fmt.Sprintf("Difficulty %d/10.", *in.Difficulty))
		case in.EstimatedTime != "":
			parts = append(parts, fmt.Sprintf("Estimated effort: %s.", in.EstimatedTime))
		}
		if in.ContentSummary != "" {
			parts = append(parts, "Focus: "+in.ContentSummary)
		}
		if len(in.Challenges) > 0 {
			parts = append(parts, "Key challenges: "+strings.Join(head(in.Challenges, commentChallenges), ", "))
		}
		if len(in.Plan) > 0 {
			parts = append(parts, "Suggested plan: "+strings.Join(head(in.Plan, commentPlanSteps), " → "))
		}
	}
	if report != nil {
		parts = append(parts, fmt.Sprintf("Textbook coverage matches: %d relevant sections.", report.MatchesFound))
		if report.QuizSimilarity != nil {
			pct := int(math.RoundToEven(*report.QuizSimilarity * 100))
			parts = append(parts, fmt.Sprintf("Quiz overlap: %d%% of quizzes touch related topics.", pct))
		}
		if report.IsHighOccurrence {
			parts = append(parts, "Frequently appears in quizzes/exams. Prioritize review.")
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func head(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
