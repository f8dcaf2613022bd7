package port

import (
	"context"
	"time"

	"github.com/google/uuid"

	"certflow/internal/domain"
)

// Document is the input handed to a tier adapter.
type Document struct {
	OrgID           uuid.UUID
	RunID           uuid.UUID
	CertificateID   uuid.UUID
	CertificateType domain.CertificateType
	Content         []byte
	ContentType     string
	// Prior holds the best-so-far fields from lower tiers.
	Prior domain.FieldSet
}

// TableCell is one cell of an extracted table.
type TableCell struct {
	Row     int    `json:"row"`
	Column  int    `json:"column"`
	Content string `json:"content"`
}

// Table is a table found in the document.
type Table struct {
	Rows    int         `json:"rows"`
	Columns int         `json:"columns"`
	Cells   []TableCell `json:"cells"`
}

// KeyValue is a printed label and its value with the analyzer's confidence.
type KeyValue struct {
	Key        string  `json:"key"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// TierResult is the normalized output of a successful tier attempt.
type TierResult struct {
	Confidence     float64
	RawText        string
	Fields         domain.FieldSet
	Tables         []Table
	KeyValues      []KeyValue
	ProcessingTime time.Duration
	EstimatedCost  float64
	Model          string
	// Pending is set by adapters whose result arrives asynchronously, such as
	// the human review queue.
	Pending bool
}

// TierAdapter is one extraction strategy. A nil error means the attempt
// succeeded; failures are reported through the error taxonomy in package tier.
type TierAdapter interface {
	Name() string
	Attempt(ctx context.Context, doc Document) (*TierResult, error)
}
