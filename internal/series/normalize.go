package series

import "github.com/shopspring/decimal"

// Canonical field names of a PriceBar.
const (
	FieldOpen   = "open_price"
	FieldHigh   = "high_price"
	FieldLow    = "low_price"
	FieldClose  = "close_price"
	FieldVolume = "volume"
)

// columnAliases lists, per canonical field, the raw column names providers
// use for it. Earlier names win when a row carries more than one.
var columnAliases = []struct {
	field string
	names []string
}{
	{FieldOpen, []string{"Open", "open", "OPEN", "o"}},
	{FieldHigh, []string{"High", "high", "HIGH", "h"}},
	{FieldLow, []string{"Low", "low", "LOW", "l"}},
	{FieldClose, []string{"Close", "close", "CLOSE", "c"}},
	{FieldVolume, []string{"Volume", "volume", "VOLUME", "v"}},
}

// Normalize converts a raw provider table into PriceBars ordered oldest to
// newest. Unknown columns are dropped and missing ones left nil. An empty
// table yields an empty, non-nil slice.
func Normalize(t Table) []PriceBar {
	out := make([]PriceBar, 0, len(t.Rows))
	if t.Empty() {
		return out
	}
	rows := Table{Rows: append([]Row(nil), t.Rows...)}
	rows.SortByDate()

	for _, r := range rows.Rows {
		bar := PriceBar{TradeDate: r.Date.Format(DateLayout)}
		for _, a := range columnAliases {
			v, ok := lookup(r.Values, a.names)
			if !ok {
				continue
			}
			switch a.field {
			case FieldVolume:
				n := v.IntPart()
				bar.Volume = &n
			default:
				f := v.InexactFloat64()
				switch a.field {
				case FieldOpen:
					bar.OpenPrice = &f
				case FieldHigh:
					bar.HighPrice = &f
				case FieldLow:
					bar.LowPrice = &f
				case FieldClose:
					bar.ClosePrice = &f
				}
			}
		}
		out = append(out, bar)
	}
	return out
}

func lookup(values map[string]decimal.Decimal, names []string) (decimal.Decimal, bool) {
	for _, n := range names {
		if v, ok := values[n]; ok {
			return v, true
		}
	}
	return decimal.Decimal{}, false
}
