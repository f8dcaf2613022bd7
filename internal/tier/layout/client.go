// Package layout is the tier-1 adapter: an asynchronous layout analysis
// service that returns words, tables and key/value pairs with confidences.
package layout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"certflow/internal/config"
	"certflow/internal/tier"
)

// Operation statuses reported by the analysis service.
const (
	StatusNotStarted = "notStarted"
	StatusRunning    = "running"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
)

// Word is a recognized word with its confidence.
type Word struct {
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
}

// Page holds the words of one page.
type Page struct {
	PageNumber int    `json:"pageNumber"`
	Words      []Word `json:"words"`
}

// Cell is one table cell.
type Cell struct {
	RowIndex    int    `json:"rowIndex"`
	ColumnIndex int    `json:"columnIndex"`
	Content     string `json:"content"`
}

// Table is a detected table.
type Table struct {
	RowCount    int    `json:"rowCount"`
	ColumnCount int    `json:"columnCount"`
	Cells       []Cell `json:"cells"`
}

// KeyValuePair is a detected label/value pair.
type KeyValuePair struct {
	Key struct {
		Content string `json:"content"`
	} `json:"key"`
	Value *struct {
		Content string `json:"content"`
	} `json:"value"`
	Confidence float64 `json:"confidence"`
}

// AnalyzeResult is the payload of a succeeded operation.
type AnalyzeResult struct {
	Content       string         `json:"content"`
	Pages         []Page         `json:"pages"`
	Tables        []Table        `json:"tables"`
	KeyValuePairs []KeyValuePair `json:"keyValuePairs"`
}

// Operation is the poll response for a submitted job.
type Operation struct {
	Status        string         `json:"status"`
	AnalyzeResult *AnalyzeResult `json:"analyzeResult"`
	Error         *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Analyzer submits documents and polls job handles.
type Analyzer interface {
	Submit(ctx context.Context, content []byte, contentType string) (string, error)
	Poll(ctx context.Context, handle string) (*Operation, error)
}

// HTTPError is a non-success response from the service.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("layout service error (status %d): %s", e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed if repeated.
func (e *HTTPError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client is the HTTP implementation of Analyzer.
type Client struct {
	endpoint   string
	apiKey     string
	modelID    string
	apiVersion string
	client     *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a layout service client. Outbound requests are throttled
// to cfg.RequestsPerS.
func NewClient(cfg config.LayoutConfig) *Client {
	rps := cfg.RequestsPerS
	if rps <= 0 {
		rps = 10
	}
	return &Client{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		modelID:    cfg.ModelID,
		apiVersion: cfg.APIVersion,
		client:     &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Submit posts the document for analysis and returns the operation URL.
func (c *Client) Submit(ctx context.Context, content []byte, contentType string) (string, error) {
	url := fmt.Sprintf("%s/documentintelligence/documentModels/%s:analyze?api-version=%s",
		c.endpoint, c.modelID, c.apiVersion)

	resp, err := c.do(ctx, http.MethodPost, url, contentType, content)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return "", readHTTPError(resp)
	}
	handle := resp.Header.Get("Operation-Location")
	if handle == "" {
		return "", fmt.Errorf("layout service returned no Operation-Location header")
	}
	return handle, nil
}

// Poll fetches the current state of an operation.
func (c *Client) Poll(ctx context.Context, handle string) (*Operation, error) {
	resp, err := c.do(ctx, http.MethodGet, handle, "", nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, readHTTPError(resp)
	}
	var op Operation
	if err := json.NewDecoder(resp.Body).Decode(&op); err != nil {
		return nil, fmt.Errorf("decoding operation: %w", err)
	}
	return &op, nil
}

func (c *Client) do(ctx context.Context, method, url, contentType string, body []byte) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling layout service: %w", err)
	}
	return resp, nil
}

func readHTTPError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	httpErr := &HTTPError{StatusCode: resp.StatusCode, Body: string(b)}
	if resp.StatusCode == http.StatusTooManyRequests {
		return tier.NewRateLimitError("layout", httpErr, tier.ParseRetryAfterHeader(resp.Header.Get("Retry-After")))
	}
	return httpErr
}
