package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xxxsen/suma/internal/model"
)

func TestComposeAIComment(t *testing.T) {
	difficulty := 6
	half := 0.125
	tests := []struct {
		name   string
		input  *model.AnalysisInput
		report *model.OverlapReport
		want   string
	}{
		{
			name:  "empty",
			input: &model.AnalysisInput{},
			want:  "",
		},
		{
			name:  "difficulty and time",
			input: &model.AnalysisInput{Difficulty: &difficulty, EstimatedTime: "3 hours"},
			want:  "Difficulty 6/10. Estimated effort: 3 hours.",
		},
		{
			name:  "time only",
			input: &model.AnalysisInput{EstimatedTime: "1 day"},
			want:  "Estimated effort: 1 day.",
		},
		{
			name: "lists are capped",
			input: &model.AnalysisInput{
				Difficulty:     &difficulty,
				ContentSummary: "Recursion",
				Challenges:     []string{"a", "b", "c", "d"},
				Plan:           []string{"1", "2", "3", "4", "5"},
			},
			want: "Difficulty 6/10.\nFocus: Recursion\nKey challenges: a, b, c\nSuggested plan: 1 → 2 → 3 → 4",
		},
		{
			name:   "overlap without quizzes",
			input:  &model.AnalysisInput{},
			report: &model.OverlapReport{MatchesFound: 4},
			want:   "Textbook coverage matches: 4 relevant sections.",
		},
		{
			name:   "overlap with quizzes rounds half to even",
			input:  &model.AnalysisInput{},
			report: &model.OverlapReport{MatchesFound: 7, QuizSimilarity: &half, IsHighOccurrence: true},
			want: "Textbook coverage matches: 7 relevant sections.\n" +
				"Quiz overlap: 12% of quizzes touch related topics.\n" +
				"Frequently appears in quizzes/exams. Prioritize review.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComposeAIComment(tt.input, tt.report))
		})
	}
}
