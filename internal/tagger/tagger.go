package tagger

import (
	"strings"

	"github.com/xxxsen/suma/internal/model"
)

type rule struct {
	tag   Tag
	match func(in *model.AnalysisInput, hours float64, summary string) bool
}

var rules = []rule{
	{tag: TagTimeConsuming, match: func(_ *model.AnalysisInput, hours float64, _ string) bool {
		return hours > timeConsumingHours
	}},
	{tag: TagQuickTask, match: func(_ *model.AnalysisInput, hours float64, _ string) bool {
		return hours > 0 && hours < quickTaskHours
	}},
	{tag: TagHighOccurrence, match: func(_ *model.AnalysisInput, _ float64, summary string) bool {
		return containsAny(summary, testKeywords)
	}},
	{tag: TagPracticeRecommended, match: func(in *model.AnalysisInput, _ float64, _ string) bool {
		return in.DifficultyOrZero() >= practiceDifficulty
	}},
	{tag: TagComplex, match: func(in *model.AnalysisInput, _ float64, _ string) bool {
		return in.DifficultyOrZero() >= complexDifficulty || len(in.Challenges) >= complexChallenges
	}},
	{tag: TagGroupWork, match: func(_ *model.AnalysisInput, _ float64, summary string) bool {
		return containsAny(summary, teamKeywords)
	}},
}

// DeriveTags evaluates every rule independently; the result follows rule order.
func DeriveTags(in *model.AnalysisInput) []Tag {
	if in == nil {
		return []Tag{}
	}
	hours := DurationToHours(in.EstimatedTime)
	summary := strings.ToLower(in.ContentSummary)
	tags := make([]Tag, 0, len(rules))
	for _, r := range rules {
		if r.match(in, hours, summary) {
			tags = append(tags, r.tag)
		}
	}
	return tags
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
