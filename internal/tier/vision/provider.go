// Package vision is the tier-2 adapter: a vision-capable language model reads
// the document image and returns schema fields with self-reported confidence.
package vision

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"certflow/internal/config"
)

// Request is a single model call.
type Request struct {
	Content     []byte
	ContentType string
	Prompt      string
}

// Response is the raw model reply and its token usage.
type Response struct {
	Text         string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// Provider is one model vendor.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
}

// ProviderFactory creates a Provider from its config.
type ProviderFactory func(cfg *config.VisionProviderConfig) (Provider, error)

// registry of provider factories, populated by RegisterProvider.
var providers = map[string]ProviderFactory{
	"claude": func(cfg *config.VisionProviderConfig) (Provider, error) { return NewClaudeProvider(cfg), nil },
	"openai": func(cfg *config.VisionProviderConfig) (Provider, error) { return NewOpenAIProvider(cfg), nil },
}

// RegisterProvider registers a provider factory by name.
func RegisterProvider(name string, factory ProviderFactory) {
	providers[name] = factory
}

// NewProvider creates a Provider using the registered factory for cfg.Provider.
func NewProvider(cfg *config.VisionProviderConfig) (Provider, error) {
	factory, ok := providers[strings.ToLower(cfg.Provider)]
	if !ok {
		return nil, eris.Errorf("unknown vision provider: %s", cfg.Provider)
	}
	return factory(cfg)
}

// Per 1M tokens, standard API pricing.
var pricing = []struct {
	prefix        string
	input, output float64
}{
	{"claude-opus", 15.00, 75.00},
	{"claude-sonnet", 3.00, 15.00},
	{"claude-3-5-haiku", 0.80, 4.00},
	{"claude-haiku", 1.00, 5.00},
	{"gpt-4o-mini", 0.15, 0.60},
	{"gpt-4o", 2.50, 10.00},
	{"gpt-4.1", 2.00, 8.00},
}

// EstimateCost prices a response's token usage. Unknown models use Sonnet pricing.
func EstimateCost(model string, inputTokens, outputTokens int64) float64 {
	in, out := 3.00, 15.00
	for _, p := range pricing {
		if strings.HasPrefix(model, p.prefix) {
			in, out = p.input, p.output
			break
		}
	}
	return float64(inputTokens)/1e6*in + float64(outputTokens)/1e6*out
}
