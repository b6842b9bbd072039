package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/suma/internal/pkg/errors"
)

type stubGenerator struct {
	reply   string
	err     error
	prompts []string
}

func (s *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.reply, s.err
}

func TestParseAnalysisFencedReply(t *testing.T) {
	raw := "```json\n{\"difficulty\": 7, \"content_summary\": \"Sorting\", \"estimated_time\": \"2-3 hours\", \"challenges\": [\"recursion\"], \"plan\": [\"read\", \"code\"]}\n```"
	in, err := ParseAnalysis(raw)
	require.NoError(t, err)
	require.NotNil(t, in.Difficulty)
	assert.Equal(t, 7, *in.Difficulty)
	assert.Equal(t, "Sorting", in.ContentSummary)
	assert.Equal(t, "2-3 hours", in.EstimatedTime)
	assert.Equal(t, []string{"recursion"}, in.Challenges)
	assert.Equal(t, []string{"read", "code"}, in.Plan)
}

func TestParseAnalysisCoercesLooseTypes(t *testing.T) {
	in, err := ParseAnalysis(`{"difficulty": "8", "challenges": "one big essay", "plan": null}`)
	require.NoError(t, err)
	require.NotNil(t, in.Difficulty)
	assert.Equal(t, 8, *in.Difficulty)
	assert.Equal(t, []string{"one big essay"}, in.Challenges)
	assert.Equal(t, []string{}, in.Plan)
	assert.Empty(t, in.ContentSummary)
}

func TestParseAnalysisUnparseableDifficulty(t *testing.T) {
	in, err := ParseAnalysis(`{"difficulty": "hard"}`)
	require.NoError(t, err)
	assert.Nil(t, in.Difficulty)
	assert.Equal(t, 0, in.DifficultyOrZero())
}

func TestParseAnalysisFloatDifficultyTruncates(t *testing.T) {
	in, err := ParseAnalysis(`{"difficulty": 6.9}`)
	require.NoError(t, err)
	require.NotNil(t, in.Difficulty)
	assert.Equal(t, 6, *in.Difficulty)
}

func TestParseAnalysisRejectsNonJSON(t *testing.T) {
	_, err := ParseAnalysis("I think this assignment is hard.")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidResponse))
	assert.True(t, appErr.IsDependency(err))

	_, err = ParseAnalysis("[1, 2]")
	require.Error(t, err)
}

func TestAnalyzeAssignmentTruncatesInput(t *testing.T) {
	gen := &stubGenerator{reply: `{"difficulty": 3}`}
	m := NewManager(gen, gen, nil, ManagerConfig{MaxInputChars: 10})
	in, err := m.AnalyzeAssignment(context.Background(), strings.Repeat("a", 50)+"TAIL")
	require.NoError(t, err)
	assert.Equal(t, 3, in.DifficultyOrZero())
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], strings.Repeat("a", 10))
	assert.NotContains(t, gen.prompts[0], "TAIL")
	assert.Contains(t, gen.prompts[0], "Respond with valid JSON only.")
}

func TestAnalyzeAssignmentProviderFailure(t *testing.T) {
	gen := &stubGenerator{err: errors.New("boom")}
	m := NewManager(gen, gen, nil, ManagerConfig{})
	_, err := m.AnalyzeAssignment(context.Background(), "text")
	require.Error(t, err)
	assert.True(t, appErr.IsDependency(err))
}

func TestManagerWithoutProviders(t *testing.T) {
	m := NewManager(nil, nil, nil, ManagerConfig{})
	_, err := m.AnalyzeAssignment(context.Background(), "text")
	assert.True(t, appErr.IsUnavailable(err))
	_, err = m.Answer(context.Background(), "q", nil)
	assert.True(t, appErr.IsUnavailable(err))
	_, err = m.Embed(context.Background(), "q", "query")
	assert.True(t, appErr.IsUnavailable(err))
}

func TestGroupGeneratorFallsBack(t *testing.T) {
	bad := &stubGenerator{err: errors.New("down")}
	good := &stubGenerator{reply: "ok"}
	g := NewGroupGenerator([]GeneratorEntry{{Name: "a", Generator: bad}, {Name: "b", Generator: good}})
	res, err := g.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", res)
	assert.Len(t, bad.prompts, 1)
}
