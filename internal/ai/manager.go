package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/suma/internal/model"
	appErr "github.com/xxxsen/suma/internal/pkg/errors"
)

var ErrInvalidResponse = fmt.Errorf("ai response is not valid json: %w", appErr.ErrDependency)

type ManagerConfig struct {
	Timeout       int
	MaxInputChars int
}

type Manager struct {
	analyzer IGenerator
	answerer IGenerator
	embedder IEmbedder
	cfg      ManagerConfig
}

func NewManager(analyzer IGenerator, answerer IGenerator, embedder IEmbedder, cfg ManagerConfig) *Manager {
	return &Manager{
		analyzer: analyzer,
		answerer: answerer,
		embedder: embedder,
		cfg:      cfg,
	}
}

func (m *Manager) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if m.embedder == nil {
		return nil, ErrUnavailable
	}
	return m.embedder.Embed(ctx, text, taskType)
}

func (m *Manager) EmbeddingModelName() string {
	if m.embedder == nil {
		return ""
	}
	return m.embedder.ModelName()
}

// AnalyzeAssignment asks the model for a structured breakdown of the assignment.
// A reply that does not decode to a JSON object fails with ErrInvalidResponse.
func (m *Manager) AnalyzeAssignment(ctx context.Context, text string) (*model.AnalysisInput, error) {
	if m.analyzer == nil {
		return nil, ErrUnavailable
	}
	prompt := fmt.Sprintf(`Please analyze the following assignment document and extract key information.
Return a structured analysis in JSON format with the following fields:
- difficulty: integer 1-10
- content_summary: string
- estimated_time: string (e.g. '2-3 hours')
- challenges: list of strings
- plan: list of step descriptions

Assignment content:
%s

Respond with valid JSON only.`, m.clip(ctx, text))
	raw, err := m.generateText(ctx, m.analyzer, prompt)
	if err != nil {
		return nil, err
	}
	return ParseAnalysis(raw)
}

// Answer produces a grounded answer from retrieved textbook passages.
func (m *Manager) Answer(ctx context.Context, question string, passages []string) (string, error) {
	if m.answerer == nil {
		return "", ErrUnavailable
	}
	prompt := fmt.Sprintf(`Use the following pieces of context from the textbook to answer the question.
If you don't know the answer, just say that you don't know, don't try to make up an answer.

Context: %s

Question: %s

Answer:`, strings.Join(passages, "\n\n"), m.clip(ctx, question))
	return m.generateText(ctx, m.answerer, prompt)
}

func (m *Manager) generateText(ctx context.Context, gen IGenerator, prompt string) (string, error) {
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(m.cfg.Timeout)*time.Second)
		defer cancel()
	}
	resp, err := gen.Generate(ctx, prompt)
	if err != nil {
		if appErr.IsUnavailable(err) {
			return "", err
		}
		return "", fmt.Errorf("completion failed: %w: %w", appErr.ErrDependency, err)
	}
	text := strings.TrimSpace(resp)
	if text == "" {
		return "", fmt.Errorf("empty ai response: %w", appErr.ErrDependency)
	}
	return text, nil
}

func (m *Manager) clip(ctx context.Context, text string) string {
	max := m.cfg.MaxInputChars
	runes := []rune(text)
	if max <= 0 || len(runes) <= max {
		return text
	}
	logutil.GetLogger(ctx).Info("ai input truncated", zap.Int("chars", len(runes)), zap.Int("max", max))
	return string(runes[:max])
}

// ParseAnalysis decodes a completion reply, tolerating a surrounding code fence.
// Field types are coerced loosely; unusable values become zero values.
func ParseAnalysis(raw string) (*model.AnalysisInput, error) {
	payload := stripCodeFence(raw)
	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: not an object", ErrInvalidResponse)
	}
	return &model.AnalysisInput{
		Difficulty:     coerceInt(fields["difficulty"]),
		ContentSummary: coerceString(fields["content_summary"]),
		EstimatedTime:  coerceString(fields["estimated_time"]),
		Challenges:     coerceStringList(fields["challenges"]),
		Plan:           coerceStringList(fields["plan"]),
	}, nil
}

func stripCodeFence(raw string) string {
	payload := strings.TrimSpace(raw)
	if !strings.HasPrefix(payload, "```") {
		return payload
	}
	payload = strings.TrimPrefix(payload, "```")
	if len(payload) >= 4 && strings.EqualFold(payload[:4], "json") {
		payload = payload[4:]
	}
	payload = strings.TrimSpace(payload)
	payload = strings.TrimSuffix(payload, "```")
	return strings.TrimSpace(payload)
}

func coerceInt(v interface{}) *int {
	switch value := v.(type) {
	case float64:
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return nil
		}
		n := int(value)
		return &n
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil
		}
		return &n
	default:
		return nil
	}
}

func coerceString(v interface{}) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	default:
		return fmt.Sprint(value)
	}
}

func coerceStringList(v interface{}) []string {
	switch value := v.(type) {
	case string:
		if strings.TrimSpace(value) == "" {
			return []string{}
		}
		return []string{value}
	case []interface{}:
		out := make([]string, 0, len(value))
		for _, item := range value {
			if item == nil {
				continue
			}
			out = append(out, coerceString(item))
		}
		return out
	default:
		return []string{}
	}
}
