package vision

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

	"github.com/rotisserie/eris"

	"certflow/internal/config"
	"certflow/internal/tier"
)

const openAIURL = "https://api.openai.com/v1/chat/completions"

// OpenAIProvider calls the OpenAI Chat Completions API.
type OpenAIProvider struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewOpenAIProvider creates an OpenAI provider from a provider config.
func NewOpenAIProvider(cfg *config.VisionProviderConfig) *OpenAIProvider {
	return NewOpenAIProviderWithEndpoint(cfg, openAIURL)
}

// NewOpenAIProviderWithEndpoint points the provider at a custom endpoint.
func NewOpenAIProviderWithEndpoint(cfg *config.VisionProviderConfig, endpoint string) *OpenAIProvider {
	model := cfg.DefaultModel
	if model == "" {
		model = "gpt-4o"
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &OpenAIProvider{
		apiKey:   cfg.APIKey,
		model:    model,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(p.apiKey) == "" {
		return nil, tier.NewConfigError("openai", "api key is not set")
	}

	contentBlocks, err := openAIContentBlocks(req)
	if err != nil {
		return nil, err
	}

	reqBody := map[string]interface{}{
		"model":                 p.model,
		"max_completion_tokens": 4096,
		"messages": []map[string]interface{}{
			{"role": "user", "content": contentBlocks},
		},
		"response_format": map[string]interface{}{"type": "json_object"},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, eris.Wrap(err, "marshaling request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "creating request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, tier.NewTransientError("openai", eris.Wrap(err, "calling openai API"))
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, tier.NewTransientError("openai", eris.Wrap(err, "reading response"))
	}

	if resp.StatusCode != http.StatusOK {
		baseErr := fmt.Errorf("openai API error (status %d): %s", resp.StatusCode, truncate(string(respBody), 500))
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, tier.NewRateLimitError("openai", baseErr, tier.ParseRetryAfterHeader(resp.Header.Get("Retry-After")))
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, tier.NewConfigError("openai", "credentials rejected by API")
		case resp.StatusCode >= 500:
			return nil, tier.NewTransientError("openai", baseErr)
		}
		return nil, baseErr
	}

	var parsed struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int64 `json:"prompt_tokens"`
			CompletionTokens int64 `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, eris.Wrap(err, "unmarshaling response")
	}
	if len(parsed.Choices) == 0 {
		return nil, eris.New("empty response from API: no choices")
	}
	if parsed.Choices[0].FinishReason == "length" {
		return nil, eris.New("output truncated (finish_reason: length)")
	}

	model := parsed.Model
	if model == "" {
		model = p.model
	}
	return &Response{
		Text:         parsed.Choices[0].Message.Content,
		Model:        model,
		InputTokens:  parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
	}, nil
}

func openAIContentBlocks(req Request) ([]map[string]interface{}, error) {
	dataURI := fmt.Sprintf("data:%s;base64,%s", req.ContentType, base64.StdEncoding.EncodeToString(req.Content))
	var blocks []map[string]interface{}

	switch req.ContentType {
	case "application/pdf":
		blocks = append(blocks, map[string]interface{}{
			"type": "file",
			"file": map[string]interface{}{"filename": "certificate.pdf", "file_data": dataURI},
		})
	case "image/jpeg", "image/png":
		blocks = append(blocks, map[string]interface{}{
			"type":      "image_url",
			"image_url": map[string]interface{}{"url": dataURI},
		})
	default:
		return nil, eris.Errorf("unsupported content type for vision: %s", req.ContentType)
	}

	return append(blocks, map[string]interface{}{"type": "text", "text": req.Prompt}), nil
}
