package exchange

import "time"

// Ticker текущие цены по паре
type Ticker struct {
	Symbol string
	Last   float64
	Bid    float64
	Ask    float64
}

// Mid возвращает midpoint между лучшим bid и ask.
// Если стакан пуст, используется последняя цена.
func (t Ticker) Mid() float64 {
	if t.Bid > 0 && t.Ask > 0 {
		return (t.Bid + t.Ask) / 2
	}
	return t.Last
}

// Kline одна свеча исторической серии
type Kline struct {
	StartTime time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// BookLevel уровень стакана
type BookLevel struct {
	Price float64
	Size  float64
}

// OrderBook снапшот стакана
type OrderBook struct {
	Symbol string
	Bids   []BookLevel // по убыванию цены
	Asks   []BookLevel // по возрастанию цены
}

// OpenOrder открытый ордер по данным биржи
type OpenOrder struct {
	OrderID   string
	Symbol    string
	Side      string
	Price     float64
	Quantity  float64
	CreatedAt time.Time
}

// InstrumentInfo метаданные торговой пары: шаги цены/количества и минимальный notional
type InstrumentInfo struct {
	Symbol      string
	QtyStep     string // basePrecision из lotSizeFilter
	TickSize    string // tickSize из priceFilter
	MinOrderAmt float64
}

// ==================== Bybit V5 envelopes ====================

type tickerResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List []struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
			Bid1Price string `json:"bid1Price"`
			Ask1Price string `json:"ask1Price"`
		} `json:"list"`
	} `json:"result"`
}

type klineResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List [][]string `json:"list"`
	} `json:"result"`
}

type orderBookResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		Symbol string     `json:"s"`
		Bids   [][]string `json:"b"`
		Asks   [][]string `json:"a"`
	} `json:"result"`
}

type instrumentsResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List []struct {
			Symbol        string `json:"symbol"`
			LotSizeFilter struct {
				BasePrecision string `json:"basePrecision"`
				MinOrderQty   string `json:"minOrderQty"`
				MinOrderAmt   string `json:"minOrderAmt"`
			} `json:"lotSizeFilter"`
			PriceFilter struct {
				TickSize string `json:"tickSize"`
			} `json:"priceFilter"`
		} `json:"list"`
	} `json:"result"`
}

type walletBalanceResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List []struct {
			Coin []struct {
				Coin          string `json:"coin"`
				WalletBalance string `json:"walletBalance"`
			} `json:"coin"`
		} `json:"list"`
	} `json:"result"`
}

type openOrdersResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List []struct {
			OrderID     string `json:"orderId"`
			Symbol      string `json:"symbol"`
			Side        string `json:"side"`
			Price       string `json:"price"`
			Qty         string `json:"qty"`
			CreatedTime string `json:"createdTime"`
		} `json:"list"`
	} `json:"result"`
}

type orderResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		OrderID     string `json:"orderId"`
		OrderLinkID string `json:"orderLinkId"`
	} `json:"result"`
}
