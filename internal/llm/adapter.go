package llm

import (
	"context"

	"github.com/Harshitk-cp/beliefgraph/internal/domain"
	"google.golang.org/genai"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Operation string

const (
	OpGraph          Operation = "generate-graph"
	OpClarifications Operation = "generate-clarifications"
	OpRefine         Operation = "refine-prompt"
	OpContent        Operation = "generate-content"
)

// Request is one wire-level exchange. Shape and Tools are honored only by
// adapters that support schema-constrained output.
type Request struct {
	Provider  domain.ProviderID
	Operation Operation
	BaseURL   string
	APIKey    string
	Model     string
	Messages  []Message
	Shape     *genai.Schema
	Tools     bool
}

type MediaRequest struct {
	Provider domain.ProviderID
	BaseURL  string
	APIKey   string
	Model    string
	Prompt   string
}

// Adapter sends a conversation and returns the raw response text.
type Adapter interface {
	Send(ctx context.Context, req Request) (string, error)
}

type ImageAdapter interface {
	GenerateImage(ctx context.Context, req MediaRequest) (domain.Media, error)
}

type VideoAdapter interface {
	GenerateVideo(ctx context.Context, req MediaRequest) (domain.Media, error)
}
