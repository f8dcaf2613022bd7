package vision

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"certflow/internal/certificate"
	"certflow/internal/domain"
)

type modelOutput struct {
	Fields map[string]struct {
		Value      any     `json:"value"`
		Confidence float64 `json:"confidence"`
	} `json:"fields"`
	OverallConfidence *float64 `json:"overall_confidence"`
}

// ParseOutput decodes the model's JSON reply into schema fields. Unknown field
// names are dropped. Confidence is the model's overall figure when present,
// otherwise the mean of the field confidences.
func ParseOutput(certType domain.CertificateType, text string) (domain.FieldSet, float64, error) {
	raw := stripFences(text)
	var out modelOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, 0, eris.Wrapf(err, "parsing model JSON output (raw: %s)", truncate(raw, 500))
	}

	fields := domain.FieldSet{}
	var sum float64
	for name, f := range out.Fields {
		if !certificate.HasField(certType, name) || f.Value == nil {
			continue
		}
		value := strings.TrimSpace(fmt.Sprint(f.Value))
		if value == "" {
			continue
		}
		conf := clamp01(f.Confidence)
		fields[name] = domain.FieldValue{Value: value, Confidence: conf, Tier: 2}
		sum += conf
	}

	var confidence float64
	switch {
	case out.OverallConfidence != nil:
		confidence = clamp01(*out.OverallConfidence)
	case len(fields) > 0:
		confidence = sum / float64(len(fields))
	}
	return fields, confidence, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
