package events

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var printer = message.NewPrinter(language.English)

// FormatAmount renders amount with the currency symbol and digit grouping,
// e.g. "₹ 1,234.50". Unknown codes fall back to the plain decimal.
func FormatAmount(amount decimal.Decimal, code string) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return amount.StringFixed(2) + " " + code
	}
	f, _ := amount.Round(2).Float64()
	return printer.Sprintf("%v %v", currency.Symbol(unit), number.Decimal(f, number.Scale(2)))
}

// OrderSummary is the one-line text carried by order notifications.
func OrderSummary(orderNumber string, items int, total decimal.Decimal, code string) string {
	return printer.Sprintf("Order %s placed: %d item(s), total %s", orderNumber, items, FormatAmount(total, code))
}
