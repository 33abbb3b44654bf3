package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Harshitk-cp/beliefgraph/internal/buildconfig"
	"github.com/Harshitk-cp/beliefgraph/internal/domain"
)

const defaultChatTimeout = 90 * time.Second

// ChatAdapter speaks the OpenAI-compatible chat-completion protocol. It
// serves every provider that exposes /chat/completions.
type ChatAdapter struct {
	httpClient *http.Client
}

func NewChatAdapter(httpClient *http.Client) *ChatAdapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultChatTimeout}
	}
	return &ChatAdapter{httpClient: httpClient}
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (a *ChatAdapter) Send(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:    req.Model,
		Messages: req.Messages,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	respBody, err := a.post(ctx, req.Provider, req.BaseURL+"/chat/completions", req.APIKey, body)
	if err != nil {
		return "", err
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("unmarshal chat response: %w", err)
	}

	if result.Error != nil {
		return "", fmt.Errorf("chat API error: %s", result.Error.Message)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("chat API returned no choices")
	}

	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	ResponseFormat string `json:"response_format"`
}

type imageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
		URL     string `json:"url"`
	} `json:"data"`
}

// GenerateImage calls /images/generations for a single image.
func (a *ChatAdapter) GenerateImage(ctx context.Context, req MediaRequest) (domain.Media, error) {
	body, err := json.Marshal(imageRequest{
		Model:          req.Model,
		Prompt:         req.Prompt,
		N:              1,
		ResponseFormat: "b64_json",
	})
	if err != nil {
		return domain.Media{}, fmt.Errorf("marshal image request: %w", err)
	}

	respBody, err := a.post(ctx, req.Provider, req.BaseURL+"/images/generations", req.APIKey, body)
	if err != nil {
		return domain.Media{}, err
	}

	var result imageResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return domain.Media{}, fmt.Errorf("unmarshal image response: %w", err)
	}
	if len(result.Data) == 0 {
		return domain.Media{}, fmt.Errorf("image API returned no data")
	}

	img := result.Data[0]
	if img.B64JSON == "" {
		return domain.Media{URI: img.URL}, nil
	}
	data, err := base64.StdEncoding.DecodeString(img.B64JSON)
	if err != nil {
		return domain.Media{}, fmt.Errorf("decode image payload: %w", err)
	}
	return domain.Media{MIMEType: "image/png", Data: data}, nil
}

func (a *ChatAdapter) post(ctx context.Context, provider domain.ProviderID, url, apiKey string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", buildconfig.UserAgent())
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransportError{Provider: provider, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Provider: provider, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(provider, resp.StatusCode, http.StatusText(resp.StatusCode), providerMessage(respBody))
	}
	return respBody, nil
}

// providerMessage pulls a human-readable message out of a JSON error body.
// Providers disagree on the shape, so several are tried.
func providerMessage(body []byte) string {
	var withObject struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &withObject); err == nil && withObject.Error.Message != "" {
		return withObject.Error.Message
	}

	var withString struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &withString); err == nil {
		if withString.Error != "" {
			return withString.Error
		}
		return withString.Message
	}
	return ""
}
