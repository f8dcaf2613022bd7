package layout

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"certflow/internal/certificate"
	"certflow/internal/config"
	"certflow/internal/domain"
	"certflow/internal/poll"
	"certflow/internal/port"
	"certflow/internal/tier"
)

// AdapterName identifies this adapter in the audit trail.
const AdapterName = "layout"

var errJobFailed = errors.New("analysis job failed")

// Adapter implements port.TierAdapter over an Analyzer.
type Adapter struct {
	cfg      config.LayoutConfig
	schedule poll.Schedule
	analyzer Analyzer
}

// NewAdapter creates the tier-1 adapter.
func NewAdapter(cfg config.LayoutConfig, schedule poll.Schedule, analyzer Analyzer) *Adapter {
	return &Adapter{cfg: cfg, schedule: schedule, analyzer: analyzer}
}

func (a *Adapter) Name() string { return AdapterName }

// Attempt submits the document, polls it to completion and normalizes the result.
func (a *Adapter) Attempt(ctx context.Context, doc port.Document) (*port.TierResult, error) {
	if strings.TrimSpace(a.cfg.Endpoint) == "" {
		return nil, tier.NewConfigError(AdapterName, "endpoint is not set")
	}
	if strings.TrimSpace(a.cfg.APIKey) == "" {
		return nil, tier.NewConfigError(AdapterName, "api key is not set")
	}

	start := time.Now()
	handle, err := a.analyzer.Submit(ctx, doc.Content, doc.ContentType)
	if err != nil {
		return nil, a.classify(err, "submit")
	}

	var op *Operation
	err = poll.Until(ctx, a.schedule, func(ctx context.Context) (bool, error) {
		o, err := a.analyzer.Poll(ctx, handle)
		if err != nil {
			var httpErr *HTTPError
			if errors.As(err, &httpErr) && !httpErr.Retryable() {
				return false, err
			}
			return false, poll.Retryable(err)
		}
		switch o.Status {
		case StatusSucceeded:
			op = o
			return true, nil
		case StatusFailed:
			msg := "no error detail"
			if o.Error != nil {
				msg = o.Error.Code + ": " + o.Error.Message
			}
			return false, eris.Wrap(errJobFailed, msg)
		default:
			return false, nil
		}
	})
	if err != nil {
		return nil, a.classify(err, "poll")
	}
	if op.AnalyzeResult == nil {
		return nil, tier.NewTransientError(AdapterName, eris.New("succeeded operation carried no result"))
	}

	result := Normalize(doc.CertificateType, op.AnalyzeResult)
	result.ProcessingTime = time.Since(start)
	result.EstimatedCost = float64(max(len(op.AnalyzeResult.Pages), 1)) * a.cfg.CostPerPage

	zap.L().Debug("layout.Attempt: analysis complete",
		zap.String("run_id", doc.RunID.String()),
		zap.Int("pages", len(op.AnalyzeResult.Pages)),
		zap.Float64("confidence", result.Confidence),
		zap.Int("fields", len(result.Fields)))
	return result, nil
}

func (a *Adapter) classify(err error, stage string) error {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) &&
		(httpErr.StatusCode == http.StatusUnauthorized || httpErr.StatusCode == http.StatusForbidden) {
		return tier.NewConfigError(AdapterName, "credentials rejected by service")
	}
	var rlErr *tier.RateLimitError
	if errors.As(err, &rlErr) {
		return err
	}
	return tier.NewTransientError(AdapterName, eris.Wrap(err, stage))
}

// Normalize converts a raw analysis result into a tier result. Document
// confidence is the mean of page confidences, where a page's confidence is the
// mean of its word confidences.
func Normalize(certType domain.CertificateType, res *AnalyzeResult) *port.TierResult {
	out := &port.TierResult{
		Confidence: DocumentConfidence(res.Pages),
		RawText:    res.Content,
		Fields:     domain.FieldSet{},
	}

	for _, t := range res.Tables {
		table := port.Table{Rows: t.RowCount, Columns: t.ColumnCount}
		for _, c := range t.Cells {
			table.Cells = append(table.Cells, port.TableCell{Row: c.RowIndex, Column: c.ColumnIndex, Content: c.Content})
		}
		out.Tables = append(out.Tables, table)
	}

	for _, kv := range res.KeyValuePairs {
		value := ""
		if kv.Value != nil {
			value = strings.TrimSpace(kv.Value.Content)
		}
		key := strings.TrimSpace(kv.Key.Content)
		out.KeyValues = append(out.KeyValues, port.KeyValue{Key: key, Value: value, Confidence: kv.Confidence})

		field, ok := certificate.MatchLabel(certType, key)
		if !ok || value == "" {
			continue
		}
		if existing, seen := out.Fields[field]; seen && existing.Confidence >= kv.Confidence {
			continue
		}
		out.Fields[field] = domain.FieldValue{Value: value, Confidence: kv.Confidence, Tier: 1}
	}
	return out
}

// DocumentConfidence averages per-page word confidence. Empty pages and empty
// documents use a divisor of 1.
func DocumentConfidence(pages []Page) float64 {
	var total float64
	for _, p := range pages {
		total += PageConfidence(p)
	}
	return total / float64(max(len(pages), 1))
}

// PageConfidence is the mean word confidence of a page.
func PageConfidence(p Page) float64 {
	var sum float64
	for _, w := range p.Words {
		sum += w.Confidence
	}
	return sum / float64(max(len(p.Words), 1))
}
