// Package risk scores properties for compliance breach risk. A deterministic
// statistical score is always produced; an organization's trained model, when
// one is active, is blended in by confidence.
package risk

import (
	"math"
	"sort"
	"time"

	"certflow/internal/config"
	"certflow/internal/domain"
)

// Category boundaries. A score is compared against these exactly.
const (
	MediumFrom   = 35.0
	HighFrom     = 55.0
	CriticalFrom = 75.0
)

// CategoryFor maps a score in [0,100] to its tier: LOW below 35, MEDIUM
// 35 to 54, HIGH 55 to 74 and CRITICAL from 75.
func CategoryFor(score float64) domain.RiskCategory {
	switch {
	case score >= CriticalFrom:
		return domain.RiskCategoryCritical
	case score >= HighFrom:
		return domain.RiskCategoryHigh
	case score >= MediumFrom:
		return domain.RiskCategoryMedium
	default:
		return domain.RiskCategoryLow
	}
}

// PropertyFeatures is everything the statistical scorer looks at.
type PropertyFeatures struct {
	Property     domain.Property
	Certificates []domain.Certificate
	Now          time.Time
}

// StatResult is a statistical score with its factor breakdown.
type StatResult struct {
	Score               float64
	Confidence          float64
	Category            domain.RiskCategory
	Factors             domain.RiskFactors
	PredictedBreachDate *time.Time
}

// Scorer is the weighted-sum statistical scorer.
type Scorer struct {
	weights [5]float64
}

// NewScorer creates a Scorer with factor weights from cfg. Weights need not
// sum to one; the score is normalized by their total.
func NewScorer(cfg config.RiskConfig) *Scorer {
	return &Scorer{weights: [5]float64{
		cfg.ExpiryWeight, cfg.DefectWeight, cfg.AssetWeight, cfg.CoverageWeight, cfg.ExternalWeight,
	}}
}

// RequiredTypes lists the certificate types a property must hold.
func RequiredTypes(p domain.Property) []domain.CertificateType {
	types := []domain.CertificateType{domain.CertificateTypeEICR}
	if p.HasGasSupply {
		types = append(types, domain.CertificateTypeGasSafety)
	}
	if p.Units > 1 || p.Storeys >= 3 {
		types = append(types, domain.CertificateTypeFireRisk)
	}
	if p.BuildYear > 0 && p.BuildYear < 2000 {
		types = append(types, domain.CertificateTypeAsbestos)
	}
	return types
}

// Score computes the statistical score for a property.
func (s *Scorer) Score(f PropertyFeatures) StatResult {
	latest := latestByType(f.Certificates)
	required := RequiredTypes(f.Property)

	var (
		expiry   float64
		defects  int
		failing  int
		missing  int
		known    int
		earliest *time.Time
	)
	for _, t := range required {
		c, ok := latest[t]
		if !ok {
			missing++
			continue
		}
		defects += c.DefectCount
		if c.Outcome != nil && isFailing(*c.Outcome) {
			failing++
		}
		if c.ExpiryDate == nil {
			missing++
			continue
		}
		known++
		expiry = math.Max(expiry, expiryRisk(f.Now, *c.ExpiryDate))
		if earliest == nil || c.ExpiryDate.Before(*earliest) {
			d := *c.ExpiryDate
			earliest = &d
		}
	}

	factors := domain.RiskFactors{
		Expiry:       expiry,
		Defect:       clamp(float64(defects)*20 + float64(failing)*40),
		Asset:        assetRisk(f.Property, f.Now),
		CoverageGap:  100 * float64(missing) / float64(len(required)),
		External:     clamp(f.Property.ExternalRisk),
		Completeness: 100 * float64(known) / float64(len(required)),
	}

	// A missing or undated certificate is a breach today.
	breach := earliest
	if missing > 0 {
		now := f.Now
		breach = &now
	}

	score := s.weighted(factors)
	return StatResult{
		Score:               score,
		Confidence:          0.5 + 0.5*factors.Completeness/100,
		Category:            CategoryFor(score),
		Factors:             factors,
		PredictedBreachDate: breach,
	}
}

func (s *Scorer) weighted(f domain.RiskFactors) float64 {
	values := [5]float64{f.Expiry, f.Defect, f.Asset, f.CoverageGap, f.External}
	var sum, total float64
	for i, w := range s.weights {
		sum += w * values[i]
		total += w
	}
	if total <= 0 {
		return 0
	}
	return round2(sum / total)
}

func latestByType(certs []domain.Certificate) map[domain.CertificateType]domain.Certificate {
	sorted := append([]domain.Certificate(nil), certs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.After(sorted[j].CreatedAt) })
	out := map[domain.CertificateType]domain.Certificate{}
	for _, c := range sorted {
		if c.DeletedAt != nil {
			continue
		}
		if _, ok := out[c.CertificateType]; !ok {
			out[c.CertificateType] = c
		}
	}
	return out
}

func expiryRisk(now, expiry time.Time) float64 {
	days := expiry.Sub(now).Hours() / 24
	switch {
	case days < 0:
		return 100
	case days <= 30:
		return 80
	case days <= 90:
		return 50
	case days <= 180:
		return 25
	default:
		return 0
	}
}

func assetRisk(p domain.Property, now time.Time) float64 {
	age := 25.0
	if p.BuildYear > 0 {
		age = clampTo(float64(now.Year()-p.BuildYear)/2, 0, 50)
	}
	height := 0.0
	switch {
	case p.Storeys >= 6:
		height = 30
	case p.Storeys >= 3:
		height = 15
	}
	units := clampTo(float64(p.Units)/2, 0, 20)
	return clamp(age + height + units)
}

func isFailing(o domain.Outcome) bool {
	return o == domain.OutcomeFail || o == domain.OutcomeUnsatisfactory || o == domain.OutcomeAtRisk
}

func clamp(v float64) float64 { return clampTo(v, 0, 100) }

func clampTo(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Blend combines the statistical score with an optional model score. With no
// model score, or a model confidence of zero, the statistical score and
// confidence pass through unchanged. Otherwise the score is the
// confidence-weighted average and the confidence is the mean of the two.
func Blend(statScore, statConf float64, mlScore, mlConf *float64) (score, confidence float64) {
	if mlScore == nil || mlConf == nil || *mlConf <= 0 || statConf+*mlConf <= 0 {
		return statScore, statConf
	}
	total := statConf + *mlConf
	score = statScore*(statConf/total) + *mlScore*(*mlConf/total)
	return score, (statConf + *mlConf) / 2
}
