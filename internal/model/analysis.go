package model

// AnalysisInput holds the fields returned by the completion service for one document.
// Difficulty is nil when the response omitted it or it was not numeric.
type AnalysisInput struct {
	Difficulty     *int     `json:"difficulty"`
	ContentSummary string   `json:"content_summary"`
	EstimatedTime  string   `json:"estimated_time"`
	Challenges     []string `json:"challenges"`
	Plan           []string `json:"plan"`
}

// DifficultyOrZero is used for threshold comparisons.
func (in *AnalysisInput) DifficultyOrZero() int {
	if in == nil || in.Difficulty == nil {
		return 0
	}
	return *in.Difficulty
}

type OverlapReport struct {
	MatchesFound     int      `json:"matches_found"`
	QuizSimilarity   *float64 `json:"quiz_similarity"`
	IsHighOccurrence bool     `json:"is_high_occurrence"`
	Confidence       float64  `json:"confidence"`
	RelevantSections []Chunk  `json:"relevant_sections"`
}

type AnalysisRecord struct {
	ID             string         `json:"task_id"`
	SourceName     string         `json:"source_name"`
	Difficulty     *int           `json:"difficulty"`
	ContentSummary string         `json:"content_summary"`
	EstimatedTime  string         `json:"estimated_time"`
	Challenges     []string       `json:"challenges"`
	Plan           []string       `json:"plan"`
	Tags           []string       `json:"tags"`
	Overlap        *OverlapReport `json:"rag_summary"`
	AIComment      string         `json:"ai_comment"`
	FileKey        string         `json:"file_key,omitempty"`
	Ctime          int64          `json:"created_at"`
	Mtime          int64          `json:"updated_at"`
}

func (r *AnalysisRecord) Input() *AnalysisInput {
	return &AnalysisInput{
		Difficulty:     r.Difficulty,
		ContentSummary: r.ContentSummary,
		EstimatedTime:  r.EstimatedTime,
		Challenges:     r.Challenges,
		Plan:           r.Plan,
	}
}
