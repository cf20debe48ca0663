package http

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"mileage/internal/core"
)

// formatter renders money and distances for display. Values are already
// rounded by the domain; formatting only adds grouping and the currency
// symbol.
type formatter struct {
	symbol  string
	printer *message.Printer
}

func newFormatter(symbol string) formatter {
	return formatter{symbol: symbol, printer: message.NewPrinter(language.BritishEnglish)}
}

// Money formats an amount as "£1,234.56".
func (f formatter) Money(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	v, _ := d.Round(core.MoneyPlaces).Float64()
	return sign + f.symbol + f.printer.Sprintf("%.2f", v)
}

// Miles formats a distance with one decimal place.
func (f formatter) Miles(d decimal.Decimal) string {
	v, _ := d.Round(core.MilesPlaces).Float64()
	return f.printer.Sprintf("%.1f", v)
}

// Rate formats a per-mile rate. Rates are shown with at least two decimal
// places and never lose precision.
func (f formatter) Rate(d decimal.Decimal) string {
	if d.Exponent() >= -core.MoneyPlaces {
		return f.symbol + d.StringFixed(core.MoneyPlaces)
	}
	return f.symbol + d.String()
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// isHTMX reports whether the request was issued by htmx.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
