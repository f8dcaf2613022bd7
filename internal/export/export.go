// Package export renders a run's golden thread as CSV or XLSX.
package export

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"certflow/internal/domain"
)

// Thread is a run and its attempts in the order they were made.
type Thread struct {
	Run      *domain.ExtractionRun
	Attempts []domain.TierAttempt
}

// attemptColumns defines the attempt header row.
var attemptColumns = []string{
	"Tier",
	"Adapter",
	"Succeeded",
	"Confidence",
	"Error Category",
	"Error Message",
	"Processing Time (ms)",
	"Estimated Cost",
	"Stale",
	"Fields",
	"Raw Text",
	"Attempted At",
}

var fieldColumns = []string{"Field", "Value", "Confidence", "Tier"}

func attemptRow(a *domain.TierAttempt) []string {
	return []string{
		strconv.Itoa(a.Tier),
		a.Adapter,
		formatBool(a.Succeeded),
		formatFloat(a.Confidence, 4),
		string(a.ErrorCategory),
		a.ErrorMessage,
		strconv.FormatInt(a.ProcessingTimeMs, 10),
		formatFloat(a.EstimatedCost, 4),
		formatBool(a.Stale),
		strconv.Itoa(len(a.StructuredFields)),
		a.RawTextRef,
		a.AttemptedAt.UTC().Format(time.RFC3339),
	}
}

// summaryRows are label/value pairs describing the run.
func summaryRows(run *domain.ExtractionRun) [][]string {
	outcome := ""
	if run.Outcome != nil {
		outcome = string(*run.Outcome)
	}
	return [][]string{
		{"Run ID", run.ID.String()},
		{"Certificate ID", run.CertificateID.String()},
		{"Certificate Version", strconv.Itoa(run.CertificateVersion)},
		{"Certificate Type", string(run.CertificateType)},
		{"Status", string(run.Status)},
		{"Final Tier", strconv.Itoa(run.FinalTier)},
		{"Confidence", formatFloat(run.Confidence, 4)},
		{"Validation Passed", formatBool(run.ValidationPassed)},
		{"Outcome", outcome},
		{"Failed Rule", run.FailedRule},
		{"Failure Reason", run.FailureReason},
		{"Created At", run.CreatedAt.UTC().Format(time.RFC3339)},
		{"Completed At", formatTime(run.CompletedAt)},
	}
}

// fieldRows lists the run's extracted fields sorted by name.
func fieldRows(fields domain.FieldSet) [][]string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := make([][]string, len(names))
	for i, name := range names {
		f := fields[name]
		rows[i] = []string{name, f.Value, formatFloat(f.Confidence, 4), strconv.Itoa(f.Tier)}
	}
	return rows
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func formatBool(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename replaces characters outside [a-zA-Z0-9_-] with _,
// collapses runs of underscores and truncates to 100 characters.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns {type}_{run id}_{YYYY-MM-DD}.{ext} for Content-Disposition.
func BuildFilename(run *domain.ExtractionRun, ext string) string {
	base := SanitizeFilename(strings.ToLower(string(run.CertificateType)) + "_" + run.ID.String())
	return fmt.Sprintf("%s_%s.%s", base, time.Now().Format("2006-01-02"), ext)
}
