package notify

import (
	"strings"
	"testing"

	"github.com/tolmol-io/tolmol/pkg/protocol"
)

func TestFormatTripComplete(t *testing.T) {
	trip := &protocol.TripState{
		ID:      "trip-1",
		Request: protocol.TripRequest{Destination: "Manali", Category: protocol.CategoryTaxi},
		Phase:   protocol.TripComplete,
		Deal: &protocol.Deal{
			VendorPhone: "+919876500000",
			VendorName:  "Manali Travels",
			FinalPrice:  2750,
		},
	}

	got := FormatTrip(trip)
	for _, want := range []string{"Deal closed", "Manali", "₹2750", "Manali Travels", "+919876500000"} {
		if !strings.Contains(got, want) {
			t.Errorf("message %q missing %q", got, want)
		}
	}
	if strings.Contains(got, "stretch") {
		t.Errorf("unflagged deal mentions stretch: %q", got)
	}
}

func TestFormatTripStretchNote(t *testing.T) {
	trip := &protocol.TripState{
		Request: protocol.TripRequest{Destination: "Manali", Category: protocol.CategoryTaxi},
		Phase:   protocol.TripComplete,
		Deal:    &protocol.Deal{VendorPhone: "+919876500000", FinalPrice: 2900, StretchFlag: true},
	}
	if got := FormatTrip(trip); !strings.Contains(got, "stretch") {
		t.Errorf("stretch deal not flagged in message: %q", got)
	}
}

func TestFormatTripFailed(t *testing.T) {
	trip := &protocol.TripState{
		Request:       protocol.TripRequest{Destination: "Manali", Category: protocol.CategoryTaxi},
		Phase:         protocol.TripFailed,
		FailureReason: "no vendors found",
	}
	got := FormatTrip(trip)
	if !strings.Contains(got, "failed") || !strings.Contains(got, "no vendors found") {
		t.Errorf("message = %q", got)
	}
}

func TestFormatTripNonTerminal(t *testing.T) {
	trip := &protocol.TripState{Phase: protocol.TripNegotiating}
	if got := FormatTrip(trip); got != "" {
		t.Errorf("non-terminal trip rendered %q, want empty", got)
	}
}

func TestStripTags(t *testing.T) {
	if got := stripTags("<b>Deal closed</b> at ₹2750"); got != "Deal closed at ₹2750" {
		t.Errorf("stripTags = %q", got)
	}
}
