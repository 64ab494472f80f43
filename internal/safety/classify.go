// Package safety implements vendor risk classification, streaming fraud
// detection over call transcripts, and the post-call trust score update.
// Everything here is a pure function over explicit structs so it can be
// unit-tested without the state machines that invoke it.
package safety

import (
	"fmt"

	"github.com/tolmol-io/tolmol/pkg/protocol"
)

// Classifier assigns a tri-level risk classification from a vendor's
// historical stats. Zero values fall back to the defaults below.
type Classifier struct {
	MinSample       int     // calls needed before success rate is trusted
	LowSuccessRate  float64 // below this over MinSample → RED
	FairSuccessRate float64 // [Low, Fair) → YELLOW
}

const (
	defaultMinSample       = 5
	defaultLowSuccessRate  = 0.4
	defaultFairSuccessRate = 0.7
)

func (c Classifier) minSample() int {
	if c.MinSample > 0 {
		return c.MinSample
	}
	return defaultMinSample
}

func (c Classifier) lowRate() float64 {
	if c.LowSuccessRate > 0 {
		return c.LowSuccessRate
	}
	return defaultLowSuccessRate
}

func (c Classifier) fairRate() float64 {
	if c.FairSuccessRate > 0 {
		return c.FairSuccessRate
	}
	return defaultFairSuccessRate
}

// Classify computes the pre-call risk assessment for one vendor.
// RED vendors must be excluded before any call is placed.
func (c Classifier) Classify(v protocol.Vendor) protocol.RiskAssessment {
	a := protocol.RiskAssessment{VendorPhone: v.Phone}

	if v.Blacklisted {
		a.Level = protocol.RiskRed
		a.Signals = append(a.Signals, "blacklisted: "+v.BlacklistReason)
		return a
	}

	if v.Stats.TotalCalls < c.minSample() {
		a.Level = protocol.RiskYellow
		a.Signals = append(a.Signals, fmt.Sprintf("insufficient history (%d calls)", v.Stats.TotalCalls))
		return a
	}

	rate := v.Stats.SuccessRate()
	switch {
	case rate < c.lowRate():
		a.Level = protocol.RiskRed
		a.Signals = append(a.Signals, fmt.Sprintf("success rate %.2f below %.2f", rate, c.lowRate()))
	case rate < c.fairRate():
		a.Level = protocol.RiskYellow
		a.Signals = append(a.Signals, fmt.Sprintf("success rate %.2f in caution band", rate))
	default:
		a.Level = protocol.RiskGreen
	}
	return a
}
