package notification

import (
	"strings"

	"github.com/dustin/go-humanize"
)

const DefaultCurrency = "USD"

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
}

// FormatAmount renders amount with its currency symbol (or "<CODE> " when unknown),
// thousands separators and exactly two decimals, eg. €1,234.50.
func FormatAmount(amount float64, currency string) string {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		code = DefaultCurrency
	}
	symbol, ok := currencySymbols[code]
	if !ok {
		symbol = code + " "
	}
	return symbol + humanize.FormatFloat("#,###.##", amount)
}
