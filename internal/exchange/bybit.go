package exchange

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/kirillm/rebalance-bot/internal/domain"
)

const getRetryLimit = 3

// BybitClient подписанный REST-клиент Bybit V5
type BybitClient struct {
	apiKey     string
	apiSecret  string
	baseURL    string
	client     *http.Client
	limiter    *rate.Limiter
	recvWindow string
	log        zerolog.Logger
}

// NewBybitClient создает клиент биржи
func NewBybitClient(apiKey, apiSecret, baseURL string, ratePerSec float64, timeout time.Duration, log zerolog.Logger) *BybitClient {
	return &BybitClient{
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		baseURL:    baseURL,
		client:     &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), int(ratePerSec)+1),
		recvWindow: domain.BybitRecvWindow,
		log:        log.With().Str("component", "exchange").Logger(),
	}
}

// GetTicker получает текущие цены по паре
func (b *BybitClient) GetTicker(ctx context.Context, symbol string) (*Ticker, error) {
	params := fmt.Sprintf("category=%s&symbol=%s", domain.BybitCategorySpot, symbol)

	var resp tickerResponse
	if err := b.doGet(ctx, "/v5/market/tickers", params, false, &resp); err != nil {
		return nil, err
	}
	if resp.RetCode != 0 {
		return nil, &APIError{Code: resp.RetCode, Msg: resp.RetMsg}
	}
	if len(resp.Result.List) == 0 {
		return nil, fmt.Errorf("no ticker data for symbol %s", symbol)
	}

	row := resp.Result.List[0]
	last, err := strconv.ParseFloat(row.LastPrice, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse last price for %s: %w", symbol, err)
	}
	bid, _ := strconv.ParseFloat(row.Bid1Price, 64)
	ask, _ := strconv.ParseFloat(row.Ask1Price, 64)

	return &Ticker{Symbol: symbol, Last: last, Bid: bid, Ask: ask}, nil
}

// GetKlines получает исторические свечи, от старых к новым
func (b *BybitClient) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	params := fmt.Sprintf("category=%s&symbol=%s&interval=%s&limit=%d",
		domain.BybitCategorySpot, symbol, interval, limit)

	var resp klineResponse
	if err := b.doGet(ctx, "/v5/market/kline", params, false, &resp); err != nil {
		return nil, err
	}
	if resp.RetCode != 0 {
		return nil, &APIError{Code: resp.RetCode, Msg: resp.RetMsg}
	}

	// Bybit отдает свечи от новых к старым
	klines := make([]Kline, 0, len(resp.Result.List))
	for i := len(resp.Result.List) - 1; i >= 0; i-- {
		row := resp.Result.List[i]
		if len(row) < 6 {
			return nil, fmt.Errorf("malformed kline row for %s", symbol)
		}
		ms, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse kline time for %s: %w", symbol, err)
		}
		open, err1 := strconv.ParseFloat(row[1], 64)
		high, err2 := strconv.ParseFloat(row[2], 64)
		low, err3 := strconv.ParseFloat(row[3], 64)
		closePrice, err4 := strconv.ParseFloat(row[4], 64)
		volume, err5 := strconv.ParseFloat(row[5], 64)
		for _, err := range []error{err1, err2, err3, err4, err5} {
			if err != nil {
				return nil, fmt.Errorf("failed to parse kline for %s: %w", symbol, err)
			}
		}
		klines = append(klines, Kline{
			StartTime: time.UnixMilli(ms),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
		})
	}

	return klines, nil
}

// GetOrderBook получает снапшот стакана
func (b *BybitClient) GetOrderBook(ctx context.Context, symbol string, depth int) (*OrderBook, error) {
	params := fmt.Sprintf("category=%s&symbol=%s&limit=%d", domain.BybitCategorySpot, symbol, depth)

	var resp orderBookResponse
	if err := b.doGet(ctx, "/v5/market/orderbook", params, false, &resp); err != nil {
		return nil, err
	}
	if resp.RetCode != 0 {
		return nil, &APIError{Code: resp.RetCode, Msg: resp.RetMsg}
	}

	book := &OrderBook{Symbol: symbol}
	var err error
	if book.Bids, err = parseLevels(resp.Result.Bids); err != nil {
		return nil, fmt.Errorf("failed to parse bids for %s: %w", symbol, err)
	}
	if book.Asks, err = parseLevels(resp.Result.Asks); err != nil {
		return nil, fmt.Errorf("failed to parse asks for %s: %w", symbol, err)
	}
	return book, nil
}

func parseLevels(rows [][]string) ([]BookLevel, error) {
	levels := make([]BookLevel, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("malformed book level")
		}
		price, err := strconv.ParseFloat(row[0], 64)
		if err != nil {
			return nil, err
		}
		size, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, err
		}
		levels = append(levels, BookLevel{Price: price, Size: size})
	}
	return levels, nil
}

// GetInstrumentInfo получает метаданные пары: шаги и минимальный notional
func (b *BybitClient) GetInstrumentInfo(ctx context.Context, symbol string) (*InstrumentInfo, error) {
	params := fmt.Sprintf("category=%s&symbol=%s", domain.BybitCategorySpot, symbol)

	var resp instrumentsResponse
	if err := b.doGet(ctx, "/v5/market/instruments-info", params, false, &resp); err != nil {
		return nil, err
	}
	if resp.RetCode != 0 {
		return nil, &APIError{Code: resp.RetCode, Msg: resp.RetMsg}
	}
	if len(resp.Result.List) == 0 {
		return nil, fmt.Errorf("no instrument info for symbol %s", symbol)
	}

	row := resp.Result.List[0]
	minAmt := 0.0
	if row.LotSizeFilter.MinOrderAmt != "" {
		parsed, err := strconv.ParseFloat(row.LotSizeFilter.MinOrderAmt, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse minOrderAmt for %s: %w", symbol, err)
		}
		minAmt = parsed
	}

	return &InstrumentInfo{
		Symbol:      row.Symbol,
		QtyStep:     row.LotSizeFilter.BasePrecision,
		TickSize:    row.PriceFilter.TickSize,
		MinOrderAmt: minAmt,
	}, nil
}

// GetWalletBalances получает балансы всех монет единого аккаунта
func (b *BybitClient) GetWalletBalances(ctx context.Context) (map[string]float64, error) {
	params := fmt.Sprintf("accountType=%s", domain.BybitAccountUnified)

	var resp walletBalanceResponse
	if err := b.doGet(ctx, "/v5/account/wallet-balance", params, true, &resp); err != nil {
		return nil, err
	}
	if resp.RetCode != 0 {
		return nil, &APIError{Code: resp.RetCode, Msg: resp.RetMsg}
	}

	balances := make(map[string]float64)
	if len(resp.Result.List) == 0 {
		return balances, nil
	}
	for _, coin := range resp.Result.List[0].Coin {
		if coin.WalletBalance == "" {
			continue
		}
		qty, err := strconv.ParseFloat(coin.WalletBalance, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse balance for %s: %w", coin.Coin, err)
		}
		balances[coin.Coin] = qty
	}

	return balances, nil
}

// GetOpenOrders получает открытые ордера по паре
func (b *BybitClient) GetOpenOrders(ctx context.Context, symbol string) ([]OpenOrder, error) {
	params := fmt.Sprintf("category=%s&symbol=%s&openOnly=0", domain.BybitCategorySpot, symbol)

	var resp openOrdersResponse
	if err := b.doGet(ctx, "/v5/order/realtime", params, true, &resp); err != nil {
		return nil, err
	}
	if resp.RetCode != 0 {
		return nil, &APIError{Code: resp.RetCode, Msg: resp.RetMsg}
	}

	orders := make([]OpenOrder, 0, len(resp.Result.List))
	for _, row := range resp.Result.List {
		price, _ := strconv.ParseFloat(row.Price, 64)
		qty, _ := strconv.ParseFloat(row.Qty, 64)
		created := time.Time{}
		if ms, err := strconv.ParseInt(row.CreatedTime, 10, 64); err == nil {
			created = time.UnixMilli(ms)
		}
		orders = append(orders, OpenOrder{
			OrderID:   row.OrderID,
			Symbol:    row.Symbol,
			Side:      row.Side,
			Price:     price,
			Quantity:  qty,
			CreatedAt: created,
		})
	}

	return orders, nil
}

// PlaceLimitOrder размещает лимитный ордер и возвращает exchange order id.
// Количество и цена должны быть уже округлены к сетке биржи.
func (b *BybitClient) PlaceLimitOrder(ctx context.Context, symbol, side string, quantity, price string) (string, error) {
	body := map[string]any{
		"category":    domain.BybitCategorySpot,
		"symbol":      symbol,
		"side":        side,
		"orderType":   domain.OrderTypeLimit,
		"qty":         quantity,
		"price":       price,
		"timeInForce": "GTC",
	}

	var resp orderResponse
	if err := b.doPost(ctx, "/v5/order/create", body, &resp); err != nil {
		return "", err
	}
	if resp.RetCode != 0 {
		return "", &APIError{Code: resp.RetCode, Msg: resp.RetMsg}
	}
	if resp.Result.OrderID == "" {
		return "", fmt.Errorf("%w: empty order id in create response", domain.ErrExchangeAPI)
	}

	b.log.Info().
		Str("symbol", symbol).
		Str("side", side).
		Str("qty", quantity).
		Str("price", price).
		Str("order_id", resp.Result.OrderID).
		Msg("📝 Limit order placed")

	return resp.Result.OrderID, nil
}

// CancelOrder отменяет ордер по exchange order id
func (b *BybitClient) CancelOrder(ctx context.Context, symbol, orderID string) error {
	body := map[string]any{
		"category": domain.BybitCategorySpot,
		"symbol":   symbol,
		"orderId":  orderID,
	}

	var resp orderResponse
	if err := b.doPost(ctx, "/v5/order/cancel", body, &resp); err != nil {
		return err
	}
	if resp.RetCode != 0 {
		return &APIError{Code: resp.RetCode, Msg: resp.RetMsg}
	}

	b.log.Info().Str("symbol", symbol).Str("order_id", orderID).Msg("🗑 Order canceled")
	return nil
}

// doGet выполняет GET с ретраями на транзиентных сбоях.
// Ретраится только транспортный уровень; create/cancel никогда не ретраятся.
func (b *BybitClient) doGet(ctx context.Context, endpoint, params string, signed bool, out any) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < getRetryLimit; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(bo.NextBackOff()):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = b.doGetOnce(ctx, endpoint, params, signed, out)
		if lastErr == nil || !isTransient(lastErr) {
			return lastErr
		}
		b.log.Warn().Err(lastErr).Str("endpoint", endpoint).Int("attempt", attempt+1).Msg("Transient exchange error, retrying")
	}

	return lastErr
}

func (b *BybitClient) doGetOnce(ctx context.Context, endpoint, params string, signed bool, out any) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}

	url := fmt.Sprintf("%s%s?%s", b.baseURL, endpoint, params)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if signed {
		timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
		b.setAuthHeaders(req, timestamp, b.generateSignature(timestamp, params))
	}

	return b.execute(req, out)
}

func (b *BybitClient) doPost(ctx context.Context, endpoint string, body map[string]any, out any) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}

	url := fmt.Sprintf("%s%s", b.baseURL, endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	b.setAuthHeaders(req, timestamp, b.generateSignature(timestamp, string(jsonData)))

	return b.execute(req, out)
}

func (b *BybitClient) execute(req *http.Request, out any) error {
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return &transientError{status: resp.StatusCode}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

type transientError struct {
	status int
}

func (e *transientError) Error() string {
	return fmt.Sprintf("exchange returned status %d", e.status)
}

func isTransient(err error) bool {
	var te *transientError
	if errors.As(err, &te) {
		return true
	}
	// сетевые сбои транспорта тоже считаем транзиентными
	var netErr net.Error
	return errors.As(err, &netErr)
}

// generateSignature генерирует подпись для запросов (GET и POST)
func (b *BybitClient) generateSignature(timestamp, payload string) string {
	message := timestamp + b.apiKey + b.recvWindow + payload
	h := hmac.New(sha256.New, []byte(b.apiSecret))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

// setAuthHeaders устанавливает заголовки авторизации для запроса
func (b *BybitClient) setAuthHeaders(req *http.Request, timestamp, signature string) {
	req.Header.Set("X-BAPI-API-KEY", b.apiKey)
	req.Header.Set("X-BAPI-SIGN", signature)
	req.Header.Set("X-BAPI-TIMESTAMP", timestamp)
	req.Header.Set("X-BAPI-RECV-WINDOW", b.recvWindow)
}
