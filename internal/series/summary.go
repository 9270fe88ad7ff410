package series

import "github.com/shopspring/decimal"

// SparklineLength is the number of most recent closes kept in a summary.
const SparklineLength = 30

// SparkPoint is one sparkline sample.
type SparkPoint struct {
	Value float64 `json:"value"`
}

// Summary is the latest price, its day-over-day change and a sparkline of
// recent closes.
type Summary struct {
	Price         float64      `json:"price"`
	Change        float64      `json:"change"`
	SparklineData []SparkPoint `json:"sparkline_data"`
}

// Summarize derives a Summary from bars ordered oldest to newest. Bars
// without a close are ignored. It returns ErrNoData when no close is left.
func Summarize(bars []PriceBar) (Summary, error) {
	closes := make([]decimal.Decimal, 0, len(bars))
	for _, b := range bars {
		if b.ClosePrice != nil {
			closes = append(closes, decimal.NewFromFloat(*b.ClosePrice))
		}
	}
	return SummarizeCloses(closes)
}

// SummarizeCloses is Summarize over a bare close series.
func SummarizeCloses(closes []decimal.Decimal) (Summary, error) {
	if len(closes) == 0 {
		return Summary{}, ErrNoData
	}
	last := closes[len(closes)-1]
	s := Summary{Price: round2(last)}
	if len(closes) >= 2 {
		s.Change = round2(last.Sub(closes[len(closes)-2]))
	}

	recent := closes
	if len(recent) > SparklineLength {
		recent = recent[len(recent)-SparklineLength:]
	}
	s.SparklineData = make([]SparkPoint, len(recent))
	for i, c := range recent {
		s.SparklineData[i] = SparkPoint{Value: round2(c)}
	}
	return s, nil
}

func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
