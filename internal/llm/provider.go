package llm

import (
	"sort"
	"sync"

	"github.com/Harshitk-cp/beliefgraph/internal/domain"
)

const (
	ProviderGemini     domain.ProviderID = "gemini"
	ProviderOpenAI     domain.ProviderID = "openai"
	ProviderAnthropic  domain.ProviderID = "anthropic"
	ProviderCerebras   domain.ProviderID = "cerebras"
	ProviderOpenRouter domain.ProviderID = "openrouter"
	ProviderOllama     domain.ProviderID = "ollama"
	ProviderMock       domain.ProviderID = "mock"
)

// Strategy selects how raw adapter output is normalized.
type Strategy int

const (
	// StrategyExtract locates JSON inside free text before coercion.
	StrategyExtract Strategy = iota
	// StrategyCoerce trusts the payload to be JSON already and only coerces.
	StrategyCoerce
)

// Capability is one provider's entry in the dispatch table.
type Capability struct {
	Adapter  Adapter
	Images   ImageAdapter
	Video    VideoAdapter
	Strategy Strategy
	// Native providers get schema-constrained output and the tool loop.
	Native bool

	BaseURL    string
	Model      string
	ImageModel string
	VideoModel string
	EnvKey     string
	// Local providers need no credential.
	Local bool
}

type Registry struct {
	mu   sync.RWMutex
	caps map[domain.ProviderID]Capability
}

func NewRegistry() *Registry {
	return &Registry{caps: make(map[domain.ProviderID]Capability)}
}

func (r *Registry) Register(id domain.ProviderID, c Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caps[id] = c
}

func (r *Registry) Lookup(id domain.ProviderID) (Capability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caps[id]
	if !ok {
		return Capability{}, ErrUnsupportedProvider{Provider: id}
	}
	return c, nil
}

// IDs returns the registered provider ids in sorted order.
func (r *Registry) IDs() []domain.ProviderID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]domain.ProviderID, 0, len(r.caps))
	for id := range r.caps {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Override replaces the default base URL and model of a registered provider.
// Empty values leave the existing setting alone.
func (r *Registry) Override(id domain.ProviderID, baseURL, model string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.caps[id]
	if !ok {
		return ErrUnsupportedProvider{Provider: id}
	}
	if baseURL != "" {
		c.BaseURL = baseURL
	}
	if model != "" {
		c.Model = model
	}
	r.caps[id] = c
	return nil
}

// DefaultRegistry wires every known provider to its adapter.
func DefaultRegistry(chat *ChatAdapter, native *NativeAdapter, mock *MockAdapter) *Registry {
	r := NewRegistry()

	r.Register(ProviderGemini, Capability{
		Adapter:    native,
		Images:     native,
		Video:      native,
		Strategy:   StrategyCoerce,
		Native:     true,
		Model:      "gemini-2.5-flash",
		ImageModel: "imagen-4.0-generate-001",
		VideoModel: "veo-3.0-generate-001",
		EnvKey:     "GEMINI_API_KEY",
	})
	r.Register(ProviderOpenAI, Capability{
		Adapter:    chat,
		Images:     chat,
		BaseURL:    "https://api.openai.com/v1",
		Model:      "gpt-4o-mini",
		ImageModel: "gpt-image-1",
		EnvKey:     "OPENAI_API_KEY",
	})
	r.Register(ProviderAnthropic, Capability{
		Adapter: chat,
		BaseURL: "https://api.anthropic.com/v1",
		Model:   "claude-3-5-haiku-latest",
		EnvKey:  "ANTHROPIC_API_KEY",
	})
	r.Register(ProviderCerebras, Capability{
		Adapter: chat,
		BaseURL: "https://api.cerebras.ai/v1",
		Model:   "llama-3.3-70b",
		EnvKey:  "CEREBRAS_API_KEY",
	})
	r.Register(ProviderOpenRouter, Capability{
		Adapter:    chat,
		Images:     chat,
		BaseURL:    "https://openrouter.ai/api/v1",
		Model:      "openai/gpt-4o-mini",
		ImageModel: "openai/gpt-image-1",
		EnvKey:     "OPENROUTER_API_KEY",
	})
	r.Register(ProviderOllama, Capability{
		Adapter: chat,
		BaseURL: "http://localhost:11434/v1",
		Model:   "llama3.2",
		Local:   true,
	})
	r.Register(ProviderMock, Capability{
		Adapter: mock,
		Images:  mock,
		Video:   mock,
		Model:   "mock",
		Local:   true,
	})
	return r
}
