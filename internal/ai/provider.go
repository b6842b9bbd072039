package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	appErr "github.com/xxxsen/suma/internal/pkg/errors"
)

var ErrUnavailable = fmt.Errorf("ai provider not configured: %w", appErr.ErrUnavailable)

type IAIProvider interface {
	Name() string
	Generate(ctx context.Context, model string, prompt string) (string, error)
}

type IEmbedProvider interface {
	Name() string
	Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error)
}

type IGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type IEmbedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
	ModelName() string
}

type generator struct {
	provider IAIProvider
	model    string
}

func NewGenerator(p IAIProvider, model string) IGenerator {
	return &generator{provider: p, model: model}
}

func (g *generator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.provider.Generate(ctx, g.model, prompt)
}

type embedder struct {
	provider IEmbedProvider
	model    string
}

func NewEmbedder(p IEmbedProvider, model string) IEmbedder {
	return &embedder{provider: p, model: model}
}

func (e *embedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return e.provider.Embed(ctx, e.model, text, taskType)
}

func (e *embedder) ModelName() string {
	return e.provider.Name() + ":" + e.model
}

type ProviderFactory func(args interface{}) (IAIProvider, error)

type EmbedProviderFactory func(args interface{}) (IEmbedProvider, error)

var (
	registryMu    sync.RWMutex
	registry      = map[string]ProviderFactory{}
	embedRegistry = map[string]EmbedProviderFactory{}
)

func Register(name string, factory ProviderFactory) {
	key := normalizeName(name)
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func RegisterEmbed(name string, factory EmbedProviderFactory) {
	key := normalizeName(name)
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	embedRegistry[key] = factory
	registryMu.Unlock()
}

func NewProvider(name string, args interface{}) (IAIProvider, error) {
	key := normalizeName(name)
	if key == "" {
		return nil, fmt.Errorf("ai provider type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported ai provider: %s", name)
	}
	return factory(args)
}

// NewEmbedProvider returns (nil, nil) for provider types without embedding support.
func NewEmbedProvider(name string, args interface{}) (IEmbedProvider, error) {
	key := normalizeName(name)
	registryMu.RLock()
	factory := embedRegistry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, nil
	}
	return factory(args)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("ai provider config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode ai provider config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode ai provider config: %w", err)
	}
	return nil
}
