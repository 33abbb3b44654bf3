package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Harshitk-cp/beliefgraph/internal/buildconfig"
	"github.com/Harshitk-cp/beliefgraph/internal/domain"
	"google.golang.org/genai"
)

const (
	maxToolRounds       = 5
	defaultPollInterval = 5 * time.Second
)

type generativeModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateImages(ctx context.Context, model, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
	GenerateVideos(ctx context.Context, model, prompt string, image *genai.Image, config *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error)
}

type videoOperations interface {
	GetVideosOperation(ctx context.Context, op *genai.GenerateVideosOperation, config *genai.GetOperationConfig) (*genai.GenerateVideosOperation, error)
}

type genaiBackend struct {
	models     generativeModels
	operations videoOperations
}

type backendFactory func(ctx context.Context, apiKey, baseURL string) (*genaiBackend, error)

func newGenAIBackend(ctx context.Context, apiKey, baseURL string) (*genaiBackend, error) {
	headers := http.Header{}
	headers.Set("User-Agent", buildconfig.UserAgent())

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
			Headers: headers,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &genaiBackend{models: client.Models, operations: client.Operations}, nil
}

// NativeAdapter talks to Gemini through the genai SDK. It is the only adapter
// that supports response schemas, tool calls and video generation.
type NativeAdapter struct {
	newBackend   backendFactory
	tools        ToolTable
	pollInterval time.Duration

	mu       sync.Mutex
	backends map[string]*genaiBackend
}

func NewNativeAdapter() *NativeAdapter {
	return &NativeAdapter{
		newBackend:   newGenAIBackend,
		tools:        DefaultToolTable(),
		pollInterval: defaultPollInterval,
		backends:     make(map[string]*genaiBackend),
	}
}

func (a *NativeAdapter) backend(ctx context.Context, provider domain.ProviderID, apiKey, baseURL string) (*genaiBackend, error) {
	key := apiKey + "|" + baseURL

	a.mu.Lock()
	defer a.mu.Unlock()

	if b, ok := a.backends[key]; ok {
		return b, nil
	}
	b, err := a.newBackend(ctx, apiKey, baseURL)
	if err != nil {
		return nil, &TransportError{Provider: provider, Err: err}
	}
	a.backends[key] = b
	return b, nil
}

func (a *NativeAdapter) Send(ctx context.Context, req Request) (string, error) {
	b, err := a.backend(ctx, req.Provider, req.APIKey, req.BaseURL)
	if err != nil {
		return "", err
	}

	config := &genai.GenerateContentConfig{}
	var contents []*genai.Content
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			config.SystemInstruction = genai.NewContentFromText(m.Content, genai.RoleUser)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	if req.Shape != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = req.Shape
	}
	if req.Tools {
		config.Tools = []*genai.Tool{{FunctionDeclarations: a.tools.Declarations()}}
	}

	for round := 0; ; round++ {
		resp, err := b.models.GenerateContent(ctx, req.Model, contents, config)
		if err != nil {
			return "", classifyGenAIError(ctx, req.Provider, err)
		}

		calls := resp.FunctionCalls()
		if len(calls) == 0 || round >= maxToolRounds {
			return strings.TrimSpace(resp.Text()), nil
		}

		if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
			contents = append(contents, resp.Candidates[0].Content)
		}
		parts := make([]*genai.Part, 0, len(calls))
		for _, call := range calls {
			part := genai.NewPartFromFunctionResponse(call.Name, a.tools.Execute(call.Name, call.Args))
			part.FunctionResponse.ID = call.ID
			parts = append(parts, part)
		}
		contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))
	}
}

func (a *NativeAdapter) GenerateImage(ctx context.Context, req MediaRequest) (domain.Media, error) {
	b, err := a.backend(ctx, req.Provider, req.APIKey, req.BaseURL)
	if err != nil {
		return domain.Media{}, err
	}

	resp, err := b.models.GenerateImages(ctx, req.Model, req.Prompt, &genai.GenerateImagesConfig{NumberOfImages: 1})
	if err != nil {
		return domain.Media{}, classifyGenAIError(ctx, req.Provider, err)
	}
	for _, img := range resp.GeneratedImages {
		if img == nil || img.Image == nil {
			continue
		}
		mime := img.Image.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		return domain.Media{MIMEType: mime, Data: img.Image.ImageBytes, URI: img.Image.GCSURI}, nil
	}
	return domain.Media{}, fmt.Errorf("%s returned no images", req.Provider)
}

func (a *NativeAdapter) GenerateVideo(ctx context.Context, req MediaRequest) (domain.Media, error) {
	b, err := a.backend(ctx, req.Provider, req.APIKey, req.BaseURL)
	if err != nil {
		return domain.Media{}, err
	}

	op, err := b.models.GenerateVideos(ctx, req.Model, req.Prompt, nil, &genai.GenerateVideosConfig{NumberOfVideos: 1})
	if err != nil {
		return domain.Media{}, classifyGenAIError(ctx, req.Provider, err)
	}

	for !op.Done {
		if err := sleepContext(ctx, a.pollInterval); err != nil {
			return domain.Media{}, err
		}
		op, err = b.operations.GetVideosOperation(ctx, op, nil)
		if err != nil {
			return domain.Media{}, classifyGenAIError(ctx, req.Provider, err)
		}
	}

	if len(op.Error) > 0 {
		msg, _ := op.Error["message"].(string)
		return domain.Media{}, fmt.Errorf("%s video generation failed: %s", req.Provider, msg)
	}
	if op.Response != nil {
		for _, v := range op.Response.GeneratedVideos {
			if v == nil || v.Video == nil {
				continue
			}
			mime := v.Video.MIMEType
			if mime == "" {
				mime = "video/mp4"
			}
			return domain.Media{MIMEType: mime, Data: v.Video.VideoBytes, URI: v.Video.URI}, nil
		}
	}
	return domain.Media{}, fmt.Errorf("%s returned no videos", req.Provider)
}

func classifyGenAIError(ctx context.Context, provider domain.ProviderID, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return statusError(provider, apiErr.Code, apiErr.Status, apiErr.Message)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return statusError(provider, apiErrPtr.Code, apiErrPtr.Status, apiErrPtr.Message)
	}
	return &TransportError{Provider: provider, Err: err}
}
