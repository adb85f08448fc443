package analyst

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillm/rebalance-bot/internal/ai"
	"github.com/kirillm/rebalance-bot/internal/domain"
	"github.com/kirillm/rebalance-bot/internal/market"
)

type stubModel struct {
	text  string
	raw   string
	err   error
	calls int
}

func (m *stubModel) Respond(_ context.Context, _ ai.Request) (*ai.Response, error) {
	m.calls++
	if m.err != nil {
		if m.raw != "" {
			return &ai.Response{Raw: m.raw}, m.err
		}
		return nil, m.err
	}
	return &ai.Response{Raw: m.raw, Text: m.text}, nil
}

type stubSignals struct {
	tech      *market.TechnicalSnapshot
	book      *market.OrderBookSnapshot
	headlines []market.Headline
	err       error
}

func (s *stubSignals) Technical(_ context.Context, _ string) (*market.TechnicalSnapshot, error) {
	return s.tech, s.err
}

func (s *stubSignals) OrderBook(_ context.Context, _ string) (*market.OrderBookSnapshot, error) {
	return s.book, s.err
}

func (s *stubSignals) News(_ context.Context, _ string) ([]market.Headline, error) {
	return s.headlines, s.err
}

type stubOrders struct {
	domain.LimitOrderRepository
	closed []domain.LimitOrder
	err    error
}

func (s *stubOrders) GetRecentClosed(_ int64, _ int) ([]domain.LimitOrder, error) {
	return s.closed, s.err
}

type stubAudit struct {
	rows []domain.AnalysisLog
}

func (s *stubAudit) Save(row *domain.AnalysisLog) error {
	s.rows = append(s.rows, *row)
	return nil
}

func (s *stubAudit) GetByRun(runID string) ([]domain.AnalysisLog, error) {
	var rows []domain.AnalysisLog
	for _, r := range s.rows {
		if r.RunID == runID {
			rows = append(rows, r)
		}
	}
	return rows, nil
}

func testAgent() *domain.Agent {
	return &domain.Agent{
		ID:     7,
		UserID: 1,
		Model:  "gpt-test",
		Tokens: []domain.AgentToken{
			{Token: "BTC", MinAllocation: 20},
			{Token: "USDT", MinAllocation: 10},
		},
	}
}

func TestNews_Success(t *testing.T) {
	model := &stubModel{text: `{"comment":"bullish flow","score":8}`, raw: `{"ok":true}`}
	audit := &stubAudit{}
	a := New(model, &stubSignals{headlines: []market.Headline{{Title: "ETF inflows"}}}, &stubOrders{}, audit, zerolog.Nop())

	note := a.News(context.Background(), testAgent(), "run-1", "BTC")

	assert.Equal(t, "bullish flow", note.Comment)
	assert.Equal(t, 8.0, note.Score)
	require.Len(t, audit.rows, 1)
	row := audit.rows[0]
	assert.Equal(t, domain.AnalystNews, row.Analyst)
	assert.Equal(t, "BTC", row.Subject)
	require.NotNil(t, row.Comment)
	assert.Equal(t, "bullish flow", *row.Comment)
	assert.NotEmpty(t, row.Prompt)
	assert.Equal(t, `{"ok":true}`, row.Response)
}

func TestNews_PreCallFailureSkipsAudit(t *testing.T) {
	model := &stubModel{}
	audit := &stubAudit{}
	a := New(model, &stubSignals{err: errors.New("news feed down")}, &stubOrders{}, audit, zerolog.Nop())

	note := a.News(context.Background(), testAgent(), "run-1", "BTC")

	assert.Equal(t, FallbackNote(), note)
	assert.Zero(t, model.calls, "model must not be called when signal fetch fails")
	assert.Empty(t, audit.rows, "no audit row without a model request")
}

func TestTechnical_MalformedResponseAuditedAsFallback(t *testing.T) {
	model := &stubModel{text: `not json at all`, raw: `{"output":"garbage"}`}
	audit := &stubAudit{}
	a := New(model, &stubSignals{tech: &market.TechnicalSnapshot{Token: "BTC"}}, &stubOrders{}, audit, zerolog.Nop())

	note := a.Technical(context.Background(), testAgent(), "run-1", "BTC")

	assert.Equal(t, FallbackNote(), note)
	require.Len(t, audit.rows, 1, "audit row is written even on parse failure")
	assert.Nil(t, audit.rows[0].Comment)
	assert.Nil(t, audit.rows[0].Score)
	assert.Equal(t, `{"output":"garbage"}`, audit.rows[0].Response)
}

func TestNews_ProviderRejectionAudited(t *testing.T) {
	model := &stubModel{err: errors.New("status 429"), raw: `{"error":{"type":"rate_limit_exceeded"}}`}
	audit := &stubAudit{}
	a := New(model, &stubSignals{headlines: []market.Headline{{Title: "halving"}}}, &stubOrders{}, audit, zerolog.Nop())

	note := a.News(context.Background(), testAgent(), "run-1", "BTC")

	assert.Equal(t, FallbackNote(), note)
	rows, err := audit.GetByRun("run-1")
	require.NoError(t, err)
	require.Len(t, rows, 1, "rejected call still reached the model and is audited")
	assert.Nil(t, rows[0].Comment)
	assert.Contains(t, rows[0].Response, "rate_limit_exceeded")
}

func TestOrderBook_ModelErrorDegrades(t *testing.T) {
	model := &stubModel{err: errors.New("timeout")}
	audit := &stubAudit{}
	a := New(model, &stubSignals{book: &market.OrderBookSnapshot{Symbol: "BTCUSDT"}}, &stubOrders{}, audit, zerolog.Nop())

	note := a.OrderBook(context.Background(), testAgent(), "run-1", "BTCUSDT")

	assert.Equal(t, FallbackNote(), note)
	assert.Empty(t, audit.rows, "transport failure leaves no raw response to audit")
}

func TestPerformance_RunsWithRecentOrders(t *testing.T) {
	model := &stubModel{text: `{"comment":"steady","score":6}`, raw: `{}`}
	audit := &stubAudit{}
	orders := &stubOrders{closed: []domain.LimitOrder{{ID: 1, Status: domain.OrderStatusFilled}}}
	a := New(model, &stubSignals{}, orders, audit, zerolog.Nop())

	report := Report{"BTC": {Tech: &Note{Comment: "up", Score: 7}}}
	note := a.Performance(context.Background(), testAgent(), "run-1", report)

	assert.Equal(t, 6.0, note.Score)
	require.Len(t, audit.rows, 1)
	assert.Equal(t, domain.AnalystPerformance, audit.rows[0].Analyst)
	assert.Equal(t, "BTCUSDT", audit.rows[0].Subject)
}
