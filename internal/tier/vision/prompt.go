package vision

import (
	"fmt"
	"sort"
	"strings"

	"certflow/internal/certificate"
	"certflow/internal/domain"
)

// BuildPrompt returns the extraction prompt for a certificate type. Settled
// fields from lower tiers are listed so the model can confirm rather than
// re-derive them.
func BuildPrompt(certType domain.CertificateType, settled domain.FieldSet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are extracting data from a UK %s compliance certificate.\n\n", humanType(certType))
	b.WriteString("Extract the following fields. Use the exact field names as JSON keys.\n")
	for _, fs := range certificate.Schema(certType) {
		fmt.Fprintf(&b, "- %s (%s): %s\n", fs.Name, fs.Kind, fs.Description)
	}

	b.WriteString(`
INSTRUCTIONS:
- Dates must be formatted DD/MM/YYYY.
- Counts must be plain integers.
- If a field is not present on the document, omit it. Never guess.
- For each field give your confidence between 0 and 1 that the value is exactly what is printed.
- Give an overall_confidence between 0 and 1 for the extraction as a whole.
`)

	if len(settled) > 0 {
		b.WriteString("\nAn earlier pass read these fields with high confidence. Keep them unless the document clearly shows otherwise:\n")
		names := make([]string, 0, len(settled))
		for name := range settled {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "- %s: %q\n", name, settled[name].Value)
		}
	}

	b.WriteString(`
Return ONLY valid JSON with no markdown formatting, in this shape:
{"fields": {"<field_name>": {"value": "<string>", "confidence": <number>}}, "overall_confidence": <number>}
`)
	return b.String()
}

func humanType(t domain.CertificateType) string {
	switch t {
	case domain.CertificateTypeGasSafety:
		return "landlord gas safety record (CP12)"
	case domain.CertificateTypeEICR:
		return "electrical installation condition report (EICR)"
	case domain.CertificateTypeFireRisk:
		return "fire risk assessment"
	case domain.CertificateTypeAsbestos:
		return "asbestos survey"
	default:
		return strings.ToLower(string(t))
	}
}
