package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"certflow/internal/config"
	"certflow/internal/tier"
)

const defaultClaudeModel = "claude-sonnet-4-20250514"

// ClaudeProvider calls the Anthropic Messages API through the official SDK.
type ClaudeProvider struct {
	client     sdk.Client
	model      string
	configured bool
}

// NewClaudeProvider creates a Claude provider from a provider config.
func NewClaudeProvider(cfg *config.VisionProviderConfig, opts ...option.RequestOption) *ClaudeProvider {
	model := cfg.DefaultModel
	if model == "" {
		model = defaultClaudeModel
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	base := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
		option.WithRequestTimeout(timeout),
	}
	return &ClaudeProvider{
		client:     sdk.NewClient(append(base, opts...)...),
		model:      model,
		configured: strings.TrimSpace(cfg.APIKey) != "",
	}
}

func (p *ClaudeProvider) Name() string { return "claude" }

func (p *ClaudeProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	if !p.configured {
		return nil, tier.NewConfigError("claude", "api key is not set")
	}

	docBlock, err := claudeDocumentBlock(req)
	if err != nil {
		return nil, err
	}

	msg, err := p.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(p.model),
		MaxTokens: 4096,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(docBlock, sdk.NewTextBlock(req.Prompt)),
		},
	})
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			switch apiErr.StatusCode {
			case http.StatusTooManyRequests:
				return nil, tier.NewRateLimitError("claude", err, 0)
			case http.StatusUnauthorized, http.StatusForbidden:
				return nil, tier.NewConfigError("claude", "credentials rejected by API")
			}
		}
		return nil, tier.NewTransientError("claude", eris.Wrap(err, "claude: create message"))
	}

	if msg.StopReason == sdk.StopReasonMaxTokens {
		return nil, eris.New("claude: output truncated (stop_reason: max_tokens)")
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, eris.New("claude: empty response")
	}

	return &Response{
		Text:         text.String(),
		Model:        string(msg.Model),
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	}, nil
}

func claudeDocumentBlock(req Request) (sdk.ContentBlockParamUnion, error) {
	encoded := base64.StdEncoding.EncodeToString(req.Content)
	switch req.ContentType {
	case "application/pdf":
		return sdk.NewDocumentBlock(sdk.Base64PDFSourceParam{Data: encoded}), nil
	case "image/jpeg", "image/png":
		return sdk.NewImageBlockBase64(req.ContentType, encoded), nil
	default:
		return sdk.ContentBlockParamUnion{}, eris.Errorf("unsupported content type for vision: %s", req.ContentType)
	}
}
