package aggregator

import "math"

// Derived holds the ratio metrics computed from raw totals.
type Derived struct {
	CAL            float64
	CAV            float64
	ROAS           float64
	ConversionRate float64
}

// Derive computes cost-per-lead, cost-per-sale, return on ad spend and
// conversion rate. A zero denominator yields 0.
func Derive(spend float64, leads, sales int64, revenue float64) Derived {
	return Derived{
		CAL:            ratio(spend, float64(leads)),
		CAV:            ratio(spend, float64(sales)),
		ROAS:           ratio(revenue, spend),
		ConversionRate: ratio(float64(sales), float64(leads)) * 100,
	}
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	r := num / den
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}
