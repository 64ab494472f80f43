package discovery

import (
	"context"
	"strings"

	"github.com/tolmol-io/tolmol/pkg/protocol"
)

// Directory is a fixed-data listing source. It stands in for commercial
// directories (JustDial, IndiaMart style) in development and tests, and
// doubles as the in-memory source for pre-seeded vendor data.
type Directory struct {
	SourceName string
	Listings   []protocol.Candidate
}

func (d *Directory) Name() string { return d.SourceName }

// Search filters the fixed listings by category and a case-insensitive
// location substring match.
func (d *Directory) Search(_ context.Context, category protocol.VendorCategory, location string) ([]protocol.Candidate, error) {
	loc := strings.ToLower(location)
	var out []protocol.Candidate
	for _, c := range d.Listings {
		if c.Category != category {
			continue
		}
		if loc != "" && !strings.Contains(strings.ToLower(c.Location), loc) {
			continue
		}
		c.Source = d.SourceName
		out = append(out, c)
	}
	return out, nil
}

// SimulatedSources returns the built-in directory pair used when no live
// sources are configured.
func SimulatedSources() []Source {
	return []Source{
		&Directory{
			SourceName: "justdial",
			Listings: []protocol.Candidate{
				{Phone: "+919876543210", Name: "Manali Travels", Category: protocol.CategoryTaxi, Location: "Manali", Rating: 4.2, QuotedPrice: 3500},
				{Phone: "+919876543212", Name: "Himalayan Cabs", Category: protocol.CategoryTaxi, Location: "Manali", Rating: 3.9, QuotedPrice: 3200},
				{Phone: "+919812000001", Name: "Snowview Homestay", Category: protocol.CategoryHomestay, Location: "Manali", Rating: 4.5, QuotedPrice: 1800},
			},
		},
		&Directory{
			SourceName: "indiamart",
			Listings: []protocol.Candidate{
				{Phone: "09876543211", Name: "HP Taxi Union", Category: protocol.CategoryTaxi, Location: "Manali", Rating: 4.0, QuotedPrice: 3400},
				{Phone: "09876543210", Name: "Manali Travels Pvt Ltd", Category: protocol.CategoryTaxi, Location: "Manali", QuotedPrice: 3600},
				{Phone: "+919812000002", Name: "Old Manali Homestay", Category: protocol.CategoryHomestay, Location: "Manali", Rating: 4.1},
			},
		},
	}
}
