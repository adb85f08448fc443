package market

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/kirillm/rebalance-bot/internal/cache"
	"github.com/kirillm/rebalance-bot/internal/domain"
	"github.com/kirillm/rebalance-bot/internal/exchange"
)

// btcReference пара-ориентир для кросс-корреляции индикаторов
const btcReference = "BTCUSDT"

// ExchangeData подмножество биржевого клиента, нужное провайдерам сигналов
type ExchangeData interface {
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]exchange.Kline, error)
	GetOrderBook(ctx context.Context, symbol string, depth int) (*exchange.OrderBook, error)
}

// NewsSource источник новостных заголовков
type NewsSource interface {
	Latest(ctx context.Context, token string, limit int) ([]Headline, error)
}

// Options параметры выборки сырых данных
type Options struct {
	KlineInterval  string
	KlineLimit     int
	OrderBookDepth int
	NewsLimit      int
	TTL            time.Duration
}

// Providers выдает нормализованные снимки сигналов по токену/паре.
// Все вызовы обернуты коалесинг-кешем: N конкурентных агентов с
// пересекающимися токенами делают не больше одного upstream-запроса
// на ключ за TTL-окно.
type Providers struct {
	exchange ExchangeData
	news     NewsSource
	cache    *cache.Cache
	opts     Options
	log      zerolog.Logger
}

// NewProviders создает провайдеры сигналов
func NewProviders(ex ExchangeData, news NewsSource, c *cache.Cache, opts Options, log zerolog.Logger) *Providers {
	return &Providers{
		exchange: ex,
		news:     news,
		cache:    c,
		opts:     opts,
		log:      log.With().Str("component", "market").Logger(),
	}
}

// Technical возвращает кешированный снимок технических индикаторов токена.
// Свечи берутся из референсной USD-пары токена, чтобы индикаторы не зависели
// от котировочной ноги конкретного агента.
func (p *Providers) Technical(ctx context.Context, token string) (*TechnicalSnapshot, error) {
	key := cache.Key("tech", token)
	return cache.Fetch(ctx, p.cache, key, p.opts.TTL, func(ctx context.Context) (*TechnicalSnapshot, error) {
		klines, err := p.exchange.GetKlines(ctx, domain.USDReferenceSymbol(token), p.opts.KlineInterval, p.opts.KlineLimit)
		if err != nil {
			return nil, err
		}
		btcCloses, err := p.btcCloses(ctx)
		if err != nil {
			// без BTC-серии считаем остальное, корреляция будет нулевой
			p.log.Warn().Err(err).Msg("BTC reference series unavailable")
			btcCloses = nil
		}
		return ComputeSnapshot(token, klines, btcCloses)
	})
}

// OrderBook возвращает кешированный снимок стакана пары
func (p *Providers) OrderBook(ctx context.Context, symbol string) (*OrderBookSnapshot, error) {
	key := cache.Key("orderbook", symbol)
	return cache.Fetch(ctx, p.cache, key, p.opts.TTL, func(ctx context.Context) (*OrderBookSnapshot, error) {
		book, err := p.exchange.GetOrderBook(ctx, symbol, p.opts.OrderBookDepth)
		if err != nil {
			return nil, err
		}
		return BuildOrderBookSnapshot(book)
	})
}

// News возвращает кешированные свежие заголовки по токену
func (p *Providers) News(ctx context.Context, token string) ([]Headline, error) {
	key := cache.Key("news", token)
	return cache.Fetch(ctx, p.cache, key, p.opts.TTL, func(ctx context.Context) ([]Headline, error) {
		return p.news.Latest(ctx, token, p.opts.NewsLimit)
	})
}

// btcCloses кешированная серия закрытий BTC для кросс-корреляции
func (p *Providers) btcCloses(ctx context.Context) ([]float64, error) {
	key := cache.Key("closes", btcReference)
	return cache.Fetch(ctx, p.cache, key, p.opts.TTL, func(ctx context.Context) ([]float64, error) {
		klines, err := p.exchange.GetKlines(ctx, btcReference, p.opts.KlineInterval, p.opts.KlineLimit)
		if err != nil {
			return nil, err
		}
		closes := make([]float64, len(klines))
		for i, k := range klines {
			closes[i] = k.Close
		}
		return closes, nil
	})
}
