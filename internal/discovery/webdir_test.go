package discovery

import (
	"testing"

	"github.com/tolmol-io/tolmol/pkg/protocol"
)

func TestWebDirectoryExtract(t *testing.T) {
	w := &WebDirectory{SourceName: "webdir"}
	text := "Best taxis in Manali\n" +
		"Manali Travels - +91 9876543210\n" +
		"HP Taxi Union: 09876543211\n" +
		"Some paragraph without a number.\n" +
		"9812000001\n"

	cands := w.extract(text, protocol.CategoryTaxi, "Manali")

	if len(cands) != 3 {
		t.Fatalf("got %d candidates: %+v", len(cands), cands)
	}
	if cands[0].Name != "Manali Travels" {
		t.Errorf("name = %q", cands[0].Name)
	}
	if cands[1].Name != "HP Taxi Union" {
		t.Errorf("name = %q", cands[1].Name)
	}
	if cands[2].Name != "" {
		t.Errorf("bare number should have empty name, got %q", cands[2].Name)
	}
	for _, c := range cands {
		if c.Source != "webdir" || c.Category != protocol.CategoryTaxi {
			t.Errorf("candidate fields wrong: %+v", c)
		}
	}
}
