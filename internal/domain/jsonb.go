package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// FieldValue is a single extracted field with the confidence of the tier that produced it.
type FieldValue struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Tier       int     `json:"tier,omitempty"`
}

// FieldSet maps schema field names to extracted values.
type FieldSet map[string]FieldValue

// Values flattens the set to plain strings.
func (f FieldSet) Values() map[string]string {
	out := make(map[string]string, len(f))
	for k, v := range f {
		out[k] = v.Value
	}
	return out
}

// Clone returns a shallow copy safe to mutate.
func (f FieldSet) Clone() FieldSet {
	out := make(FieldSet, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

func (f FieldSet) Value() (driver.Value, error) { return marshalJSONB(f) }
func (f *FieldSet) Scan(src any) error         { return scanJSONB(src, f) }

// StringList is a JSONB-backed list of strings.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return marshalJSONB(l)
}
func (l *StringList) Scan(src any) error { return scanJSONB(src, l) }

// Float64List is a JSONB-backed list of floats.
type Float64List []float64

func (l Float64List) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return marshalJSONB(l)
}
func (l *Float64List) Scan(src any) error { return scanJSONB(src, l) }

// RiskFactors is the per-factor breakdown of a statistical risk score, each in [0,100].
type RiskFactors struct {
	Expiry       float64 `json:"expiry"`
	Defect       float64 `json:"defect"`
	Asset        float64 `json:"asset"`
	CoverageGap  float64 `json:"coverage_gap"`
	External     float64 `json:"external"`
	Completeness float64 `json:"completeness"`
}

// Vector returns the five scored factors normalized to [0,1] in canonical order.
func (r RiskFactors) Vector() []float64 {
	return []float64{r.Expiry / 100, r.Defect / 100, r.Asset / 100, r.CoverageGap / 100, r.External / 100}
}

func (r RiskFactors) Value() (driver.Value, error) { return marshalJSONB(r) }
func (r *RiskFactors) Scan(src any) error         { return scanJSONB(src, r) }

// Hyperparameters controls a training run.
type Hyperparameters struct {
	LearningRate   float64   `json:"learning_rate"`
	Epochs         int       `json:"epochs"`
	BatchSize      int       `json:"batch_size"`
	FeatureWeights []float64 `json:"feature_weights,omitempty"`
}

func (h Hyperparameters) Value() (driver.Value, error) { return marshalJSONB(h) }
func (h *Hyperparameters) Scan(src any) error         { return scanJSONB(src, h) }

func marshalJSONB(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling jsonb: %w", err)
	}
	return b, nil
}

func scanJSONB(src, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
}
