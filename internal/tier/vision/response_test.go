package vision_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certflow/internal/domain"
	"certflow/internal/tier/vision"
)

const domainTransient = domain.ErrorCategoryTransient

func TestParseOutput_OverallConfidence(t *testing.T) {
	text := "```json\n" + `{"fields":{"c1_count":{"value":0,"confidence":0.95},"overall_assessment":{"value":"SATISFACTORY","confidence":0.9},"made_up":{"value":"x","confidence":1}},"overall_confidence":0.91}` + "\n```"

	fields, conf, err := vision.ParseOutput(domain.CertificateTypeEICR, text)

	require.NoError(t, err)
	assert.Equal(t, 0.91, conf)
	assert.Len(t, fields, 2)
	assert.Equal(t, "0", fields["c1_count"].Value)
	assert.Equal(t, 2, fields["c1_count"].Tier)
	assert.NotContains(t, fields, "made_up")
}

func TestParseOutput_MeanFieldConfidence(t *testing.T) {
	text := `{"fields":{"risk_level":{"value":"Moderate","confidence":0.8},"total_actions":{"value":"4","confidence":0.6}}}`

	_, conf, err := vision.ParseOutput(domain.CertificateTypeFireRisk, text)

	require.NoError(t, err)
	assert.InDelta(t, 0.7, conf, 1e-9)
}

func TestParseOutput_ClampsAndSkipsEmpty(t *testing.T) {
	text := `{"fields":{"result":{"value":"PASS","confidence":1.4},"gas_safe_number":{"value":"  ","confidence":0.9},"co_alarm_fitted":{"value":null,"confidence":0.9}},"overall_confidence":-1}`

	fields, conf, err := vision.ParseOutput(domain.CertificateTypeGasSafety, text)

	require.NoError(t, err)
	assert.Equal(t, 0.0, conf)
	assert.Equal(t, 1.0, fields["result"].Confidence)
	assert.NotContains(t, fields, "gas_safe_number")
	assert.NotContains(t, fields, "co_alarm_fitted")
}

func TestParseOutput_InvalidJSON(t *testing.T) {
	_, _, err := vision.ParseOutput(domain.CertificateTypeEICR, "I could not read this document")
	assert.Error(t, err)
}

func TestBuildPrompt_ListsSchemaAndSettledFields(t *testing.T) {
	prompt := vision.BuildPrompt(domain.CertificateTypeEICR, domain.FieldSet{
		"certificate_number": {Value: "EICR-1", Confidence: 0.97},
	})

	assert.Contains(t, prompt, "c2_count")
	assert.Contains(t, prompt, "overall_assessment")
	assert.Contains(t, prompt, `certificate_number: "EICR-1"`)
	assert.False(t, strings.Contains(prompt, "gas_safe_number"))
}

func TestEstimateCost(t *testing.T) {
	assert.InDelta(t, 3.0+15.0, vision.EstimateCost("claude-sonnet-4-5", 1_000_000, 1_000_000), 1e-9)
	assert.InDelta(t, 0.15, vision.EstimateCost("gpt-4o-mini", 1_000_000, 0), 1e-9)
	assert.InDelta(t, 3.0, vision.EstimateCost("unknown-model", 1_000_000, 0), 1e-9)
}
