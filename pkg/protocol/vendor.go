package protocol

import "time"

// VendorCategory is the kind of service a vendor provides.
type VendorCategory string

const (
	CategoryTaxi       VendorCategory = "taxi"
	CategoryHomestay   VendorCategory = "homestay"
	CategoryGuide      VendorCategory = "guide"
	CategoryActivity   VendorCategory = "activity"
	CategoryRestaurant VendorCategory = "restaurant"
)

// Candidate is a raw vendor listing as returned by one discovery source,
// before phone normalization and dedup. It lives only for the duration of
// one trip run.
type Candidate struct {
	Phone       string         `json:"phone"` // raw, as listed
	Name        string         `json:"name"`
	Category    VendorCategory `json:"category"`
	Location    string         `json:"location"`
	Source      string         `json:"source"`
	Rating      float64        `json:"rating,omitempty"`       // 0 = unrated, otherwise 1..5
	QuotedPrice float64        `json:"quoted_price,omitempty"` // 0 = no quote listed
	LastSeen    time.Time      `json:"last_seen,omitempty"`    // zero = fetched live this run
}

// VendorStats holds a vendor's cumulative call history. TotalCalls counts
// only fully answered calls; pure dial failures are excluded.
type VendorStats struct {
	TotalCalls      int     `json:"total_calls"`
	SuccessfulDeals int     `json:"successful_deals"`
	AvgDiscountPct  float64 `json:"avg_discount_pct"`
	TrustScore      float64 `json:"trust_score"`
}

// SuccessRate returns successful deals over total calls, or 0 with no calls.
func (s VendorStats) SuccessRate() float64 {
	if s.TotalCalls == 0 {
		return 0
	}
	return float64(s.SuccessfulDeals) / float64(s.TotalCalls)
}

// Vendor is the durable record for one canonical phone number. Created on
// first sighting, updated after every completed call, never deleted —
// only blacklisted.
type Vendor struct {
	Phone           string         `json:"phone"` // canonical, unique
	Name            string         `json:"name"`
	Category        VendorCategory `json:"category"`
	Location        string         `json:"location"`
	Stats           VendorStats    `json:"stats"`
	Blacklisted     bool           `json:"blacklisted"`
	BlacklistReason string         `json:"blacklist_reason,omitempty"`
	FirstSeen       time.Time      `json:"first_seen"`
	LastSeen        time.Time      `json:"last_seen"`
}

// RiskLevel is the tri-level safety classification of a vendor.
type RiskLevel string

const (
	RiskGreen  RiskLevel = "GREEN"
	RiskYellow RiskLevel = "YELLOW"
	RiskRed    RiskLevel = "RED"
)

// RiskAssessment is the outcome of the pre-call vetting of one vendor.
// It is recomputed per trip and kept only as an audit event.
type RiskAssessment struct {
	VendorPhone string    `json:"vendor_phone"`
	Level       RiskLevel `json:"level"`
	Signals     []string  `json:"signals,omitempty"`
}
