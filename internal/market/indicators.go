package market

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"

	"github.com/kirillm/rebalance-bot/internal/exchange"
)

// minKlines минимум часовых свечей для расчета всех индикаторов (EMA200 + запас)
const minKlines = 210

// TechnicalSnapshot нормализованный снимок технических индикаторов по токену.
// Чисто числовой, детерминированный для одной и той же истории цен.
type TechnicalSnapshot struct {
	Token     string  `json:"token"`
	LastPrice float64 `json:"last_price"`

	// Доходности по нескольким горизонтам, %
	Return1h  float64 `json:"return_1h"`
	Return24h float64 `json:"return_24h"`
	Return7d  float64 `json:"return_7d"`

	// Расстояние цены от SMA50, %
	MADistance float64 `json:"ma_distance"`

	// Последнее значение гистограммы MACD(12,26,9)
	MACDHistogram float64 `json:"macd_histogram"`

	// Реализованная волатильность часовых лог-доходностей за 7 дней, % годовых
	RealizedVol float64 `json:"realized_vol"`

	// ATR(14) в процентах от цены
	ATRPercent float64 `json:"atr_percent"`

	// Ширина полос Боллинджера (20, 2): (upper-lower)/middle
	BollingerBandwidth float64 `json:"bollinger_bandwidth"`

	// Диапазон Дончиана(20) в процентах от цены
	DonchianRange float64 `json:"donchian_range"`

	// Z-score объема последней свечи против 24-часового окна
	VolumeZScore float64 `json:"volume_zscore"`

	RSI14 float64 `json:"rsi_14"`

	// Стохастик %K (14,3,3)
	StochasticK float64 `json:"stochastic_k"`

	// Корреляция часовых доходностей с BTC за 7 дней; 1.0 для самого BTC
	BTCCorrelation float64 `json:"btc_correlation"`

	// Упрощенный классификатор режима: trending_up, trending_down, ranging, volatile
	Regime string `json:"regime"`
}

// ComputeSnapshot считает снимок индикаторов по историческим свечам.
// Функция чистая: без сети и без побочных эффектов.
func ComputeSnapshot(token string, klines []exchange.Kline, btcCloses []float64) (*TechnicalSnapshot, error) {
	if len(klines) < minKlines {
		return nil, fmt.Errorf("not enough klines for %s: have %d, need %d", token, len(klines), minKlines)
	}

	n := len(klines)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i, k := range klines {
		closes[i] = k.Close
		highs[i] = k.High
		lows[i] = k.Low
		volumes[i] = k.Volume
	}

	last := closes[n-1]
	if last <= 0 {
		return nil, fmt.Errorf("non-positive close price for %s", token)
	}

	snap := &TechnicalSnapshot{
		Token:     token,
		LastPrice: last,
		Return1h:  pctChange(closes[n-2], last),
		Return24h: pctChange(closes[n-25], last),
		Return7d:  pctChange(closes[n-169], last),
	}

	sma50 := talib.Sma(closes, 50)
	snap.MADistance = pctChange(sma50[n-1], last)

	_, _, hist := talib.Macd(closes, 12, 26, 9)
	snap.MACDHistogram = hist[n-1]

	returns := logReturns(closes[n-169:])
	// sqrt(24*365) переводит часовую сигму в годовую
	snap.RealizedVol = stat.StdDev(returns, nil) * math.Sqrt(24*365) * 100

	atr := talib.Atr(highs, lows, closes, 14)
	snap.ATRPercent = atr[n-1] / last * 100

	upper, middle, lower := talib.BBands(closes, 20, 2, 2, talib.SMA)
	if middle[n-1] != 0 {
		snap.BollingerBandwidth = (upper[n-1] - lower[n-1]) / middle[n-1]
	}

	donchianHigh := talib.Max(highs, 20)
	donchianLow := talib.Min(lows, 20)
	snap.DonchianRange = (donchianHigh[n-1] - donchianLow[n-1]) / last * 100

	volWindow := volumes[n-24:]
	volMean := stat.Mean(volWindow, nil)
	volStd := stat.StdDev(volWindow, nil)
	if volStd > 0 {
		snap.VolumeZScore = (volumes[n-1] - volMean) / volStd
	}

	rsi := talib.Rsi(closes, 14)
	snap.RSI14 = rsi[n-1]

	slowK, _ := talib.Stoch(highs, lows, closes, 14, 3, talib.SMA, 3, talib.SMA)
	snap.StochasticK = slowK[n-1]

	snap.BTCCorrelation = btcCorrelation(closes, btcCloses)

	ema50 := talib.Ema(closes, 50)
	ema200 := talib.Ema(closes, 200)
	snap.Regime = classifyRegime(last, ema50[n-1], ema200[n-1], snap.BollingerBandwidth)

	return snap, nil
}

// pctChange процентное изменение от from к to
func pctChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from * 100
}

func logReturns(closes []float64) []float64 {
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, math.Log(closes[i]/closes[i-1]))
	}
	return returns
}

// btcCorrelation корреляция часовых доходностей токена и BTC за общее окно
func btcCorrelation(closes, btcCloses []float64) float64 {
	window := 169
	if len(btcCloses) < window || len(closes) < window {
		return 0
	}
	a := logReturns(closes[len(closes)-window:])
	b := logReturns(btcCloses[len(btcCloses)-window:])
	corr := stat.Correlation(a, b, nil)
	if math.IsNaN(corr) {
		return 0
	}
	return corr
}

// classifyRegime упрощенный классификатор рыночного режима
func classifyRegime(price, ema50, ema200, bandwidth float64) string {
	switch {
	case price > ema50 && ema50 > ema200:
		return "trending_up"
	case price < ema50 && ema50 < ema200:
		return "trending_down"
	case bandwidth > 0.15:
		return "volatile"
	default:
		return "ranging"
	}
}
