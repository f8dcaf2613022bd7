package vision

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"certflow/internal/port"
	"certflow/internal/tier"
)

// AdapterName identifies this adapter in the audit trail.
const AdapterName = "vision"

// Adapter implements port.TierAdapter over a Provider.
type Adapter struct {
	provider Provider
}

// NewAdapter creates the tier-2 adapter. A nil provider makes every attempt a
// configuration failure.
func NewAdapter(provider Provider) *Adapter {
	return &Adapter{provider: provider}
}

func (a *Adapter) Name() string {
	if a.provider == nil {
		return AdapterName
	}
	return AdapterName + ":" + a.provider.Name()
}

// Attempt asks the model to read the document. Settled fields from lower
// tiers are offered as hints and fill any field the model leaves out.
func (a *Adapter) Attempt(ctx context.Context, doc port.Document) (*port.TierResult, error) {
	if a.provider == nil {
		return nil, tier.NewConfigError(AdapterName, "no vision provider configured")
	}

	start := time.Now()
	settled := tier.Reusable(doc.Prior)
	resp, err := a.provider.Complete(ctx, Request{
		Content:     doc.Content,
		ContentType: doc.ContentType,
		Prompt:      BuildPrompt(doc.CertificateType, settled),
	})
	if err != nil {
		return nil, err
	}

	fields, confidence, err := ParseOutput(doc.CertificateType, resp.Text)
	if err != nil {
		return nil, tier.NewTransientError(a.Name(), eris.Wrap(err, "vision: decode output"))
	}
	for name, fv := range settled {
		if _, ok := fields[name]; !ok {
			fields[name] = fv
		}
	}

	cost := EstimateCost(resp.Model, resp.InputTokens, resp.OutputTokens)
	zap.L().Debug("vision.Attempt: model replied",
		zap.String("run_id", doc.RunID.String()),
		zap.String("model", resp.Model),
		zap.Float64("confidence", confidence),
		zap.Float64("cost", cost))

	return &port.TierResult{
		Confidence:     confidence,
		RawText:        resp.Text,
		Fields:         fields,
		ProcessingTime: time.Since(start),
		EstimatedCost:  cost,
		Model:          resp.Model,
	}, nil
}
