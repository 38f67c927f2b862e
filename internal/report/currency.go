package report

import (
	"math/big"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// CurrencyFormatter renders amounts with a symbol, locale digit grouping and
// two decimals, e.g. £1,234.50.
type CurrencyFormatter struct {
	Symbol  string
	printer *message.Printer
}

// NewCurrencyFormatter creates a formatter for symbol using the grouping
// rules of lang.
func NewCurrencyFormatter(symbol string, lang language.Tag) *CurrencyFormatter {
	return &CurrencyFormatter{Symbol: symbol, printer: message.NewPrinter(lang)}
}

// Format renders v. Values that are not numeric are returned unchanged and
// ok is false.
func (c *CurrencyFormatter) Format(v any) (string, bool) {
	f, ok := toFloat(v)
	if !ok {
		return "", false
	}
	return c.Symbol + c.printer.Sprint(number.Decimal(f, number.MinFractionDigits(2), number.MaxFractionDigits(2))), true
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case int:
		return float64(x), true
	case *big.Rat:
		if x == nil {
			return 0, false
		}
		f, _ := x.Float64()
		return f, true
	case *big.Int:
		if x == nil {
			return 0, false
		}
		f, _ := new(big.Float).SetInt(x).Float64()
		return f, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
