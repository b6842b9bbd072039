// Package tagger derives fixed-vocabulary labels from an assignment analysis.
package tagger

type Tag string

const (
	TagTimeConsuming       Tag = "Time Consuming"
	TagQuickTask           Tag = "Quick Task"
	TagHighOccurrence      Tag = "High Occurrence in tests"
	TagPracticeRecommended Tag = "Practice Recommended"
	TagComplex             Tag = "Complex"
	TagGroupWork           Tag = "Group Work Suggested"
)

var allTags = []Tag{
	TagTimeConsuming,
	TagQuickTask,
	TagHighOccurrence,
	TagPracticeRecommended,
	TagComplex,
	TagGroupWork,
}

var (
	testKeywords = []string{"test", "exam", "quiz", "assessment", "evaluation", "midterm", "final"}
	teamKeywords = []string{"group", "team", "collaboration", "partner", "together", "pair"}
)

const (
	timeConsumingHours = 10.0
	quickTaskHours     = 2.0
	practiceDifficulty = 7
	complexDifficulty  = 8
	complexChallenges  = 4
)

func AllTags() []Tag {
	out := make([]Tag, len(allTags))
	copy(out, allTags)
	return out
}

func (t Tag) Valid() bool {
	for _, item := range allTags {
		if item == t {
			return true
		}
	}
	return false
}

func (t Tag) String() string {
	return string(t)
}

// Strings converts tags for persistence, dropping anything outside the vocabulary.
func Strings(tags []Tag) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if !t.Valid() {
			continue
		}
		out = append(out, string(t))
	}
	return out
}

// AppendUnique adds t unless it is already present.
func AppendUnique(tags []Tag, t Tag) []Tag {
	for _, item := range tags {
		if item == t {
			return tags
		}
	}
	return append(tags, t)
}
