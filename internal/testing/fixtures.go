package testing

import (
	"fmt"
	"time"

	"github.com/aristath/regret/internal/domain"
	"github.com/aristath/regret/internal/marketdata"
)

// MustDate parses a YYYY-MM-DD string, panicking on bad input. Test-only.
func MustDate(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(fmt.Sprintf("bad fixture date %q: %v", s, err))
	}
	return d
}

// Buy builds a BUY transaction fixture.
func Buy(symbol, date string, qty, price, fee float64) domain.Transaction {
	return domain.Transaction{
		ID:        fmt.Sprintf("buy-%s-%s", symbol, date),
		Symbol:    symbol,
		Type:      domain.TransactionBuy,
		Currency:  domain.CurrencyEUR,
		Timestamp: MustDate(date),
		Quantity:  qty,
		Price:     price,
		Fee:       fee,
	}
}

// Sell builds a SELL transaction fixture.
func Sell(symbol, date string, qty, price, fee float64) domain.Transaction {
	return domain.Transaction{
		ID:        fmt.Sprintf("sell-%s-%s", symbol, date),
		Symbol:    symbol,
		Type:      domain.TransactionSell,
		Currency:  domain.CurrencyEUR,
		Timestamp: MustDate(date),
		Quantity:  qty,
		Price:     price,
		Fee:       fee,
	}
}

// Bar builds a flat daily price bar (all OHLC fields equal).
func Bar(symbol, date string, price float64) marketdata.PriceBar {
	return marketdata.PriceBar{
		Date:     MustDate(date),
		Symbol:   symbol,
		Open:     price,
		High:     price,
		Low:      price,
		Close:    price,
		AdjClose: price,
		Currency: domain.CurrencyEUR,
	}
}
