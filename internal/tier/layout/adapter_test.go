package layout_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"certflow/internal/config"
	"certflow/internal/domain"
	"certflow/internal/poll"
	"certflow/internal/port"
	"certflow/internal/tier"
	"certflow/internal/tier/layout"
)

type mockAnalyzer struct {
	mock.Mock
}

func (m *mockAnalyzer) Submit(ctx context.Context, content []byte, contentType string) (string, error) {
	args := m.Called(ctx, content, contentType)
	return args.String(0), args.Error(1)
}

func (m *mockAnalyzer) Poll(ctx context.Context, handle string) (*layout.Operation, error) {
	args := m.Called(ctx, handle)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*layout.Operation), args.Error(1)
}

var fastSchedule = poll.Schedule{Attempts: 5, Interval: time.Millisecond}

func configured() config.LayoutConfig {
	return config.LayoutConfig{Endpoint: "https://layout.example", APIKey: "key", CostPerPage: 0.01}
}

func testDoc() port.Document {
	return port.Document{
		RunID:           uuid.New(),
		CertificateType: domain.CertificateTypeEICR,
		Content:         []byte("%PDF"),
		ContentType:     "application/pdf",
	}
}

func succeededResult() *layout.AnalyzeResult {
	res := &layout.AnalyzeResult{
		Content: "EICR report",
		Pages: []layout.Page{
			{PageNumber: 1, Words: []layout.Word{{Content: "a", Confidence: 0.9}, {Content: "b", Confidence: 0.7}}},
			{PageNumber: 2, Words: []layout.Word{{Content: "c", Confidence: 1.0}}},
		},
		Tables: []layout.Table{{RowCount: 1, ColumnCount: 2, Cells: []layout.Cell{
			{RowIndex: 0, ColumnIndex: 0, Content: "C1"}, {RowIndex: 0, ColumnIndex: 1, Content: "0"},
		}}},
	}
	kv := layout.KeyValuePair{Confidence: 0.88}
	kv.Key.Content = "Date of inspection"
	kv.Value = &struct {
		Content string `json:"content"`
	}{Content: "12/03/2024"}
	res.KeyValuePairs = append(res.KeyValuePairs, kv)
	return res
}

func TestAdapter_NotConfigured_NoNetworkCall(t *testing.T) {
	analyzer := new(mockAnalyzer)
	adapter := layout.NewAdapter(config.LayoutConfig{}, fastSchedule, analyzer)

	result, err := adapter.Attempt(context.Background(), testDoc())

	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, tier.IsConfigError(err))
	assert.Equal(t, domain.ErrorCategoryConfiguration, tier.Category(err))
	analyzer.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
	analyzer.AssertNotCalled(t, "Poll", mock.Anything, mock.Anything)
}

func TestAdapter_PollsUntilSucceeded(t *testing.T) {
	analyzer := new(mockAnalyzer)
	analyzer.On("Submit", mock.Anything, []byte("%PDF"), "application/pdf").Return("https://op/1", nil)
	analyzer.On("Poll", mock.Anything, "https://op/1").Return(&layout.Operation{Status: layout.StatusNotStarted}, nil).Once()
	analyzer.On("Poll", mock.Anything, "https://op/1").Return(&layout.Operation{Status: layout.StatusRunning}, nil).Once()
	analyzer.On("Poll", mock.Anything, "https://op/1").Return(&layout.Operation{
		Status: layout.StatusSucceeded, AnalyzeResult: succeededResult(),
	}, nil).Once()

	adapter := layout.NewAdapter(configured(), fastSchedule, analyzer)
	result, err := adapter.Attempt(context.Background(), testDoc())

	require.NoError(t, err)
	// page 1 = 0.8, page 2 = 1.0
	assert.InDelta(t, 0.9, result.Confidence, 1e-9)
	assert.Equal(t, "12/03/2024", result.Fields["issue_date"].Value)
	assert.Equal(t, 0.88, result.Fields["issue_date"].Confidence)
	require.Len(t, result.Tables, 1)
	assert.Len(t, result.Tables[0].Cells, 2)
	assert.InDelta(t, 0.02, result.EstimatedCost, 1e-9)
	analyzer.AssertNumberOfCalls(t, "Poll", 3)
}

func TestAdapter_JobFailedIsTransient(t *testing.T) {
	analyzer := new(mockAnalyzer)
	analyzer.On("Submit", mock.Anything, mock.Anything, mock.Anything).Return("h", nil)
	analyzer.On("Poll", mock.Anything, "h").Return(&layout.Operation{Status: layout.StatusFailed}, nil)

	adapter := layout.NewAdapter(configured(), fastSchedule, analyzer)
	_, err := adapter.Attempt(context.Background(), testDoc())

	require.Error(t, err)
	assert.Equal(t, domain.ErrorCategoryTransient, tier.Category(err))
	analyzer.AssertNumberOfCalls(t, "Poll", 1)
}

func TestAdapter_PollCeiling(t *testing.T) {
	analyzer := new(mockAnalyzer)
	analyzer.On("Submit", mock.Anything, mock.Anything, mock.Anything).Return("h", nil)
	analyzer.On("Poll", mock.Anything, "h").Return(&layout.Operation{Status: layout.StatusRunning}, nil)

	adapter := layout.NewAdapter(configured(), fastSchedule, analyzer)
	_, err := adapter.Attempt(context.Background(), testDoc())

	require.Error(t, err)
	assert.True(t, errors.Is(err, poll.ErrExhausted))
	assert.Equal(t, domain.ErrorCategoryTransient, tier.Category(err))
	analyzer.AssertNumberOfCalls(t, "Poll", fastSchedule.Attempts)
}

func TestAdapter_RejectedCredentialsAreConfigErrors(t *testing.T) {
	analyzer := new(mockAnalyzer)
	analyzer.On("Submit", mock.Anything, mock.Anything, mock.Anything).
		Return("", &layout.HTTPError{StatusCode: 401, Body: "invalid subscription key"})

	adapter := layout.NewAdapter(configured(), fastSchedule, analyzer)
	_, err := adapter.Attempt(context.Background(), testDoc())

	assert.True(t, tier.IsConfigError(err))
}

func TestDocumentConfidence_ZeroWords(t *testing.T) {
	assert.Equal(t, 0.0, layout.DocumentConfidence(nil))
	assert.Equal(t, 0.0, layout.PageConfidence(layout.Page{}))
	pages := []layout.Page{{Words: []layout.Word{{Confidence: 0.6}}}, {}}
	assert.InDelta(t, 0.3, layout.DocumentConfidence(pages), 1e-9)
}
