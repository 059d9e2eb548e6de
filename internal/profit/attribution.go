package profit

import "time"

// AttributionPoint is one day of the input series for the windowed calculator:
// same-day ad spend, the full cost chain, business-truth revenue and the
// platform-attributed (tracked) revenue.
type AttributionPoint struct {
	Date           time.Time
	Spend          float64
	TotalCost      float64
	Revenue        float64
	TrackedRevenue float64
}

// AttributionWindowPoint compares a day's spend against the revenue that
// arrived within the following window, visualising attribution lag.
type AttributionWindowPoint struct {
	Date  time.Time `json:"date"`
	Spend float64   `json:"spend"`
	// ROASW is tracked revenue summed over [d, d+w) divided by day-d spend.
	ROASW float64 `json:"roas_w"`
	// MERW is business revenue over the window divided by total cost over it.
	MERW float64 `json:"mer_w"`
}

// ForwardWindows computes the rolling forward sums for the first visibleDays
// entries of series, which must be contiguous and date-ascending and extend
// window−1 days past the visible range (missing tail days count as zero).
// Prefix sums make this O(n) regardless of window length.
func ForwardWindows(series []AttributionPoint, window, visibleDays int) []AttributionWindowPoint {
	if window < 1 {
		window = 1
	}
	if visibleDays > len(series) {
		visibleDays = len(series)
	}
	if visibleDays <= 0 {
		return nil
	}

	n := len(series)
	prefixCost := make([]float64, n+1)
	prefixRevenue := make([]float64, n+1)
	prefixTracked := make([]float64, n+1)
	for i, p := range series {
		prefixCost[i+1] = prefixCost[i] + sanitize(p.TotalCost)
		prefixRevenue[i+1] = prefixRevenue[i] + sanitize(p.Revenue)
		prefixTracked[i+1] = prefixTracked[i] + sanitize(p.TrackedRevenue)
	}

	out := make([]AttributionWindowPoint, visibleDays)
	for i := 0; i < visibleDays; i++ {
		hi := i + window
		if hi > n {
			hi = n
		}
		spend := sanitize(series[i].Spend)
		out[i] = AttributionWindowPoint{
			Date:  series[i].Date,
			Spend: round2(spend),
			ROASW: ratio(prefixTracked[hi]-prefixTracked[i], spend),
			MERW:  ratio(prefixRevenue[hi]-prefixRevenue[i], prefixCost[hi]-prefixCost[i]),
		}
	}
	return out
}
