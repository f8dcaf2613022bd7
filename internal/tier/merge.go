package tier

import (
	"strings"

	"certflow/internal/domain"
)

// ReuseThreshold is the field confidence at or above which a higher tier may
// take a lower tier's value as given.
const ReuseThreshold = 0.9

// MergeFields folds next into the best-so-far set. Agreement boosts
// confidence, a missing value is filled from the other side and a
// disagreement keeps the more confident value at reduced confidence, with
// ties going to next.
func MergeFields(best, next domain.FieldSet) domain.FieldSet {
	merged := best.Clone()
	for name, nv := range next {
		bv, ok := merged[name]
		nEmpty := strings.TrimSpace(nv.Value) == ""
		switch {
		case !ok || strings.TrimSpace(bv.Value) == "":
			if !nEmpty {
				merged[name] = nv
			}
		case nEmpty:
			// keep best
		case sameValue(bv.Value, nv.Value):
			winner := nv
			if bv.Confidence > nv.Confidence {
				winner = bv
			}
			winner.Confidence = boost(winner.Confidence)
			merged[name] = winner
		default:
			winner := nv
			if bv.Confidence > nv.Confidence {
				winner = bv
			}
			winner.Confidence *= 0.8
			merged[name] = winner
		}
	}
	return merged
}

// Reusable returns the fields confident enough to be handed to a higher
// tier as settled.
func Reusable(fields domain.FieldSet) domain.FieldSet {
	out := domain.FieldSet{}
	for name, fv := range fields {
		if fv.Confidence >= ReuseThreshold && strings.TrimSpace(fv.Value) != "" {
			out[name] = fv
		}
	}
	return out
}

func sameValue(a, b string) bool {
	return strings.EqualFold(strings.Join(strings.Fields(a), " "), strings.Join(strings.Fields(b), " "))
}

func boost(c float64) float64 {
	if c >= 1.0 {
		return 1.0
	}
	boosted := c + (1.0-c)*0.2
	if boosted > 1.0 {
		boosted = 1.0
	}
	return boosted
}
