package negotiation

import (
	"regexp"
	"strconv"
	"strings"
)

// Vendor speech reaches the engine as transcribed text with numerals
// normalized to digits by the speech layer. The helpers below pull the
// structured signal out of it; everything else about the wording is
// ignored.

var priceRe = regexp.MustCompile(`(\d[\d,]*)(?:\.\d+)?`)

// minPlausiblePrice filters counts ("2 people", "3 nights") out of price
// extraction.
const minPlausiblePrice = 100

// ParsePrice returns the first plausible price mentioned in the utterance.
// Fractional paise are ignored.
func ParsePrice(text string) (float64, bool) {
	for _, m := range priceRe.FindAllStringSubmatch(text, -1) {
		digits := strings.ReplaceAll(m[1], ",", "")
		v, err := strconv.ParseFloat(digits, 64)
		if err != nil {
			continue
		}
		if v >= minPlausiblePrice {
			return v, true
		}
	}
	return 0, false
}

var declineMarkers = []string{
	"not available", "unavailable", "no rooms", "fully booked", "all booked",
	"nahi hai", "nahi milega", "band hai", "khatam", "sold out", "cannot", "can't do",
}

// IsDecline reports whether the vendor is declining availability. Only
// meaningful in the greeting/qualifying phases; during bargaining a "nahi"
// is a counter, not a decline.
func IsDecline(text string) bool {
	t := strings.ToLower(text)
	for _, m := range declineMarkers {
		if strings.Contains(t, m) {
			return true
		}
	}
	return false
}

var affirmativeMarkers = []string{
	"haan", "yes", "ok", "okay", "theek", "thik", "done", "pakka", "confirm", "ji ", "sure", "deal",
}

// IsAffirmative reports whether the vendor is agreeing.
func IsAffirmative(text string) bool {
	t := " " + strings.ToLower(text) + " "
	for _, m := range affirmativeMarkers {
		if strings.Contains(t, m) {
			return true
		}
	}
	return false
}
