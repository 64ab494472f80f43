package safety

import "regexp"

// Severity grades an in-call fraud signal.
type Severity string

const (
	// SeverityCritical terminates the session immediately and blacklists
	// the vendor.
	SeverityCritical Severity = "CRITICAL"
	// SeverityWarning flags the session and continues.
	SeverityWarning Severity = "WARNING"
	// SeverityLogOnly records the flag silently.
	SeverityLogOnly Severity = "LOG_ONLY"
)

// Match is one fraud signal found in an utterance.
type Match struct {
	Name     string
	Severity Severity
}

type pattern struct {
	name     string
	severity Severity
	re       *regexp.Regexp
}

// fraudPatterns is scanned against every inbound utterance regardless of
// negotiation phase. Trigger phrases follow the vocabulary actually heard
// on Indian vendor calls.
var fraudPatterns = []pattern{
	{"otp_request", SeverityCritical,
		regexp.MustCompile(`(?i)\b(otp|one[ -]?time (code|password)|verification code|code bhejo)\b`)},
	{"advance_transfer", SeverityCritical,
		regexp.MustCompile(`(?i)(advance|pehle|first).{0,30}(paisa|money|payment|amount).{0,40}(transfer|bhej|send|account|upi)`)},
	{"unverifiable_account", SeverityCritical,
		regexp.MustCompile(`(?i)(personal|friend|dusra|different).{0,30}(account|upi|number).{0,30}(bhej|transfer|send|pay)`)},
	{"upi_pressure", SeverityWarning,
		regexp.MustCompile(`(?i)\b(gpay|paytm|phonepe|upi)\b.{0,40}\b(abhi|now|immediately|turant)\b`)},
	{"full_payment_upfront", SeverityWarning,
		regexp.MustCompile(`(?i)(full|pura|100%).{0,30}(payment|paisa).{0,30}(pehle|advance|before)`)},
	{"urgency_pressure", SeverityLogOnly,
		regexp.MustCompile(`(?i)(last chance|offer (khatam|expires)|abhi book|only today|sirf aaj)`)},
}

// ScanUtterance checks one inbound utterance against the fraud signal
// table and returns every match. Callers act on the highest severity.
func ScanUtterance(text string) []Match {
	var matches []Match
	for _, p := range fraudPatterns {
		if p.re.MatchString(text) {
			matches = append(matches, Match{Name: p.name, Severity: p.severity})
		}
	}
	return matches
}

// Critical reports whether any match demands immediate termination.
func Critical(matches []Match) bool {
	for _, m := range matches {
		if m.Severity == SeverityCritical {
			return true
		}
	}
	return false
}
