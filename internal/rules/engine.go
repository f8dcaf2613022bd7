// Package rules evaluates certificate business rules. Rules are rows, not
// code: each is a CEL expression over the decoded certificate fields, so they
// can be edited per organization without a deploy.
package rules

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"certflow/internal/cache"
	"certflow/internal/certificate"
	"certflow/internal/domain"
	"certflow/internal/port"
)

// RuleResult is the verdict of one rule. For OUTCOME rules Passed means the
// classification matched.
type RuleResult struct {
	RuleID     uuid.UUID       `json:"rule_id"`
	Name       string          `json:"name"`
	Kind       domain.RuleKind `json:"kind"`
	Applicable bool            `json:"applicable"`
	Passed     bool            `json:"passed"`
	Error      string          `json:"error,omitempty"`
}

// Evaluation is the combined verdict for a record.
type Evaluation struct {
	Passed      bool           `json:"passed"`
	FailedRule  string         `json:"failed_rule,omitempty"`
	Outcome     domain.Outcome `json:"outcome"`
	OutcomeRule string         `json:"outcome_rule,omitempty"`
	Results     []RuleResult   `json:"results"`
}

var (
	dotRef   = regexp.MustCompile(`\bfields\.([A-Za-z_][A-Za-z0-9_]*)`)
	indexRef = regexp.MustCompile(`\bfields\[\s*["']([^"']+)["']\s*\]`)
)

// Engine loads, checks and evaluates rules.
type Engine struct {
	repo     port.ValidationRuleRepository
	cache    port.Cache
	ttl      time.Duration
	env      *cel.Env
	builtins []domain.ValidationRule

	mu       sync.RWMutex
	programs map[string]cel.Program
}

// NewEngine creates an engine. The builtin pack is checked here so a bad
// pack fails at startup rather than on first evaluation.
func NewEngine(repo port.ValidationRuleRepository, c port.Cache, ttl time.Duration) (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("fields", cel.MapType(cel.StringType, cel.DynType)),
		ext.Strings(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "creating CEL environment")
	}
	e := &Engine{repo: repo, cache: c, ttl: ttl, env: env, programs: map[string]cel.Program{}}

	builtins, err := BuiltinPack()
	if err != nil {
		return nil, err
	}
	for i := range builtins {
		if err := e.Check(&builtins[i]); err != nil {
			return nil, eris.Wrapf(err, "builtin rule %s", *builtins[i].BuiltinKey)
		}
	}
	e.builtins = builtins
	return e, nil
}

// Evaluate runs every active rule for the record's type, highest priority
// first. The first failing VALIDATION rule is reported as FailedRule and the
// first matching OUTCOME rule decides the outcome. A rule whose expression
// errors, typically because it reads a field the document did not provide,
// is not applicable.
func (e *Engine) Evaluate(ctx context.Context, orgID uuid.UUID, record certificate.Record) (*Evaluation, error) {
	rules, err := e.Rules(ctx, orgID, record.Type())
	if err != nil {
		return nil, err
	}

	vars := map[string]any{"fields": record.Fields()}
	ev := &Evaluation{Passed: true, Outcome: domain.OutcomeNeedsReview}
	for i := range rules {
		rule := &rules[i]
		res := RuleResult{RuleID: rule.ID, Name: rule.Name, Kind: rule.Kind}

		matched, err := e.eval(rule.Expression, vars)
		if err != nil {
			res.Error = err.Error()
			ev.Results = append(ev.Results, res)
			continue
		}
		res.Applicable = true
		res.Passed = matched
		ev.Results = append(ev.Results, res)

		switch rule.Kind {
		case domain.RuleKindValidation:
			if !matched && ev.Passed {
				ev.Passed = false
				ev.FailedRule = rule.Name
			}
		case domain.RuleKindOutcome:
			if matched && ev.OutcomeRule == "" && rule.Outcome != nil {
				ev.Outcome = *rule.Outcome
				ev.OutcomeRule = rule.Name
			}
		}
	}
	return ev, nil
}

func (e *Engine) eval(expr string, vars map[string]any) (bool, error) {
	prg, err := e.program(expr)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(vars)
	if err != nil {
		return false, err
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, eris.Errorf("expression returned %s, not bool", out.Type().TypeName())
	}
	return b, nil
}

// program returns the compiled program for expr, compiling it at most once.
func (e *Engine) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, ok := e.programs[expr]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, iss := e.env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, eris.Wrap(domain.ErrInvalidRule, iss.Err().Error())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, eris.Wrap(domain.ErrInvalidRule, err.Error())
	}

	e.mu.Lock()
	e.programs[expr] = prg
	e.mu.Unlock()
	return prg, nil
}

// Rules returns the active rules for an org and certificate type ordered by
// priority, highest first. The list is cached; builtin rules are seeded on a
// cache miss.
func (e *Engine) Rules(ctx context.Context, orgID uuid.UUID, certType domain.CertificateType) ([]domain.ValidationRule, error) {
	key := cacheKey(orgID, certType)
	if rules, ok, err := cache.GetJSON[[]domain.ValidationRule](ctx, e.cache, key); err != nil {
		zap.L().Warn("rules.Rules: cache read failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		return rules, nil
	}

	if err := e.EnsureBuiltinRules(ctx, orgID); err != nil {
		return nil, err
	}
	rules, err := e.repo.ListActive(ctx, orgID, certType)
	if err != nil {
		return nil, eris.Wrap(err, "loading rules")
	}
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}
		return rules[i].Name < rules[j].Name
	})

	if err := cache.SetJSON(ctx, e.cache, key, rules, e.ttl); err != nil {
		zap.L().Warn("rules.Rules: cache write failed", zap.String("key", key), zap.Error(err))
	}
	return rules, nil
}

// EnsureBuiltinRules seeds any builtin rule the organization does not have
// yet. Seeded rules the organization has since edited or deactivated are left
// alone.
func (e *Engine) EnsureBuiltinRules(ctx context.Context, orgID uuid.UUID) error {
	existing, err := e.repo.ListBuiltinKeys(ctx, orgID)
	if err != nil {
		return eris.Wrap(err, "listing existing builtin keys")
	}
	have := make(map[string]bool, len(existing))
	for _, k := range existing {
		have[k] = true
	}

	seeded := 0
	for _, tmpl := range e.builtins {
		if have[*tmpl.BuiltinKey] {
			continue
		}
		rule := tmpl
		key := *tmpl.BuiltinKey
		rule.ID = uuid.New()
		rule.OrgID = orgID
		rule.BuiltinKey = &key
		if err := e.repo.Create(ctx, &rule); err != nil {
			return eris.Wrapf(err, "seeding builtin rule %s", key)
		}
		seeded++
	}
	if seeded > 0 {
		zap.L().Info("rules.EnsureBuiltinRules: seeded builtin rules",
			zap.String("org_id", orgID.String()), zap.Int("count", seeded))
		e.invalidate(ctx, orgID)
	}
	return nil
}

// SaveRule checks and persists a rule, creating it when it has no ID.
func (e *Engine) SaveRule(ctx context.Context, rule *domain.ValidationRule) error {
	if err := e.Check(rule); err != nil {
		return err
	}
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
		if err := e.repo.Create(ctx, rule); err != nil {
			return eris.Wrap(err, "creating rule")
		}
	} else if err := e.repo.Update(ctx, rule); err != nil {
		return eris.Wrap(err, "updating rule")
	}
	e.invalidate(ctx, rule.OrgID)
	return nil
}

// Check validates a rule without saving it: the expression must compile and
// may only read fields that exist on the certificate type.
func (e *Engine) Check(rule *domain.ValidationRule) error {
	if !rule.CertificateType.Valid() {
		return eris.Wrapf(domain.ErrInvalidRule, "unknown certificate type %q", rule.CertificateType)
	}
	if rule.Name == "" {
		return eris.Wrap(domain.ErrInvalidRule, "name is required")
	}
	switch rule.Kind {
	case domain.RuleKindValidation:
	case domain.RuleKindOutcome:
		if rule.Outcome == nil {
			return eris.Wrap(domain.ErrInvalidRule, "outcome rules must name an outcome")
		}
	default:
		return eris.Wrapf(domain.ErrInvalidRule, "unknown rule kind %q", rule.Kind)
	}

	for _, name := range FieldRefs(rule.Expression) {
		if !certificate.HasField(rule.CertificateType, name) {
			return eris.Wrapf(domain.ErrInvalidRule, "field %q does not exist on %s certificates", name, rule.CertificateType)
		}
	}

	ast, iss := e.env.Compile(rule.Expression)
	if iss != nil && iss.Err() != nil {
		return eris.Wrap(domain.ErrInvalidRule, iss.Err().Error())
	}
	if t := ast.OutputType(); !t.IsExactType(cel.BoolType) && !t.IsExactType(cel.DynType) {
		return eris.Wrapf(domain.ErrInvalidRule, "expression must be boolean, got %s", t)
	}
	return nil
}

// FieldRefs lists the field names an expression reads, in order of first use.
func FieldRefs(expr string) []string {
	var out []string
	seen := map[string]bool{}
	for _, re := range []*regexp.Regexp{dotRef, indexRef} {
		for _, m := range re.FindAllStringSubmatch(expr, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				out = append(out, m[1])
			}
		}
	}
	return out
}

func (e *Engine) invalidate(ctx context.Context, orgID uuid.UUID) {
	keys := make([]string, 0, len(domain.AllCertificateTypes))
	for _, t := range domain.AllCertificateTypes {
		keys = append(keys, cacheKey(orgID, t))
	}
	if err := e.cache.Delete(ctx, keys...); err != nil {
		zap.L().Warn("rules.invalidate: cache delete failed", zap.String("org_id", orgID.String()), zap.Error(err))
	}
}

func cacheKey(orgID uuid.UUID, t domain.CertificateType) string {
	return fmt.Sprintf("rules:%s:%s", orgID, t)
}
