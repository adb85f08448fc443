package exchange

import (
	"strconv"
	"testing"
)

func newTestFilters(t *testing.T, qtyStep, tickSize string, minAmt float64) *SymbolFilters {
	t.Helper()
	f, err := NewSymbolFilters(&InstrumentInfo{
		Symbol:      "BTCUSDT",
		QtyStep:     qtyStep,
		TickSize:    tickSize,
		MinOrderAmt: minAmt,
	})
	if err != nil {
		t.Fatalf("NewSymbolFilters() error = %v", err)
	}
	return f
}

func TestRoundQty(t *testing.T) {
	tests := []struct {
		name    string
		qtyStep string
		qty     float64
		want    string
	}{
		{"rounds down to step", "0.000001", 0.0123456789, "0.012345"},
		{"on grid unchanged", "0.000001", 0.012345, "0.012345"},
		{"coarse step", "0.01", 1.2399, "1.23"},
		{"below one step", "0.01", 0.0099, "0"},
		{"integer step", "1", 7.99, "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestFilters(t, tt.qtyStep, "0.01", 10)
			if got := f.RoundQty(tt.qty); got != tt.want {
				t.Errorf("RoundQty(%v) = %v, want %v", tt.qty, got, tt.want)
			}
		})
	}
}

func TestRoundPrice(t *testing.T) {
	tests := []struct {
		name     string
		tickSize string
		price    float64
		side     string
		want     string
	}{
		{"buy rounds down", "0.01", 64123.4567, "BUY", "64123.45"},
		{"sell rounds up", "0.01", 64123.4511, "SELL", "64123.46"},
		{"buy on grid unchanged", "0.01", 64123.45, "BUY", "64123.45"},
		{"sell on grid unchanged", "0.01", 64123.45, "SELL", "64123.45"},
		{"coarse tick buy", "0.5", 100.74, "BUY", "100.5"},
		{"coarse tick sell", "0.5", 100.26, "SELL", "100.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestFilters(t, "0.000001", tt.tickSize, 10)
			if got := f.RoundPrice(tt.price, tt.side); got != tt.want {
				t.Errorf("RoundPrice(%v, %s) = %v, want %v", tt.price, tt.side, got, tt.want)
			}
		})
	}
}

// Повторное округление уже округленного значения ничего не меняет
func TestRounding_Idempotent(t *testing.T) {
	f := newTestFilters(t, "0.0001", "0.05", 10)

	qty := f.RoundQty(0.123456789)
	qtyF, err := strconv.ParseFloat(qty, 64)
	if err != nil {
		t.Fatalf("ParseFloat(%q) error = %v", qty, err)
	}
	if again := f.RoundQty(qtyF); again != qty {
		t.Errorf("RoundQty not idempotent: %v -> %v", qty, again)
	}

	for _, side := range []string{"BUY", "SELL"} {
		price := f.RoundPrice(64123.4567, side)
		priceF, err := strconv.ParseFloat(price, 64)
		if err != nil {
			t.Fatalf("ParseFloat(%q) error = %v", price, err)
		}
		if again := f.RoundPrice(priceF, side); again != price {
			t.Errorf("RoundPrice(%s) not idempotent: %v -> %v", side, price, again)
		}
	}
}

func TestMinNotional_Fallback(t *testing.T) {
	f := newTestFilters(t, "0.01", "0.01", 0)
	if got := f.MinNotional(); got != 10.0 {
		t.Errorf("MinNotional() = %v, want default 10", got)
	}

	f = newTestFilters(t, "0.01", "0.01", 5)
	if got := f.MinNotional(); got != 5.0 {
		t.Errorf("MinNotional() = %v, want 5", got)
	}
}
