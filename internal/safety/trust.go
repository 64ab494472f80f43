package safety

import "github.com/tolmol-io/tolmol/pkg/protocol"

// TrustUpdate applies the post-call stats update for one completed call and
// returns the new stats. A call counts only when it was answered; pure
// dial failures never reach this function. The returned trust score is
// bounded in [0, 0.95].
func TrustUpdate(s protocol.VendorStats, success bool, discountPct float64) protocol.VendorStats {
	s.TotalCalls++
	if success {
		s.SuccessfulDeals++
	} else {
		discountPct = 0
	}

	n := float64(s.TotalCalls)
	s.AvgDiscountPct = (s.AvgDiscountPct*(n-1) + discountPct) / n

	if s.SuccessfulDeals == 0 {
		s.TrustScore = 0.7
	} else {
		s.TrustScore = min(0.95, 0.5+float64(s.SuccessfulDeals)/n)
	}
	return s
}
