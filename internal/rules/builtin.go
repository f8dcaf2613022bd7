package rules

import (
	_ "embed"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"certflow/internal/domain"
)

//go:embed builtin.yaml
var builtinYAML []byte

type builtinRule struct {
	Key             string                 `yaml:"key"`
	CertificateType domain.CertificateType `yaml:"certificate_type"`
	Name            string                 `yaml:"name"`
	Description     string                 `yaml:"description"`
	Kind            domain.RuleKind        `yaml:"kind"`
	Outcome         *domain.Outcome        `yaml:"outcome"`
	Priority        int                    `yaml:"priority"`
	Expression      string                 `yaml:"expression"`
}

func (r builtinRule) rule() domain.ValidationRule {
	return domain.ValidationRule{
		CertificateType: r.CertificateType,
		Name:            r.Name,
		Description:     r.Description,
		Kind:            r.Kind,
		Expression:      r.Expression,
		Outcome:         r.Outcome,
		Priority:        r.Priority,
		IsActive:        true,
	}
}

// BuiltinPack returns the rules seeded into every organization. The returned
// rules carry no ID or org.
func BuiltinPack() ([]domain.ValidationRule, error) {
	var raw []builtinRule
	if err := yaml.Unmarshal(builtinYAML, &raw); err != nil {
		return nil, eris.Wrap(err, "parsing builtin rule pack")
	}
	seen := make(map[string]bool, len(raw))
	out := make([]domain.ValidationRule, 0, len(raw))
	for _, r := range raw {
		if r.Key == "" || seen[r.Key] {
			return nil, eris.Errorf("builtin rule pack: missing or duplicate key %q", r.Key)
		}
		seen[r.Key] = true
		key := r.Key
		rule := r.rule()
		rule.IsBuiltin = true
		rule.BuiltinKey = &key
		out = append(out, rule)
	}
	return out, nil
}

// ParseRules reads organization rules in the builtin pack format. Keys are
// ignored; the rules are new and still need SaveRule's checks.
func ParseRules(data []byte, orgID uuid.UUID) ([]domain.ValidationRule, error) {
	var raw []builtinRule
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "parsing rule file")
	}
	out := make([]domain.ValidationRule, 0, len(raw))
	for _, r := range raw {
		rule := r.rule()
		rule.OrgID = orgID
		out = append(out, rule)
	}
	return out, nil
}
