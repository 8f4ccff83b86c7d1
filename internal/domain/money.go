package domain

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// FormatPrice renders an amount with the currency symbol, e.g. "$ 25.00".
func FormatPrice(amount decimal.Decimal, unit currency.Unit) string {
	p := message.NewPrinter(language.English)
	return p.Sprint(currency.Symbol(unit.Amount(amount.Round(2).InexactFloat64())))
}
