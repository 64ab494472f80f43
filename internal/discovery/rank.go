package discovery

import (
	"sort"
	"time"

	"github.com/tolmol-io/tolmol/internal/phone"
	"github.com/tolmol-io/tolmol/pkg/protocol"
)

// Scoring weights. They sum to 1.0.
const (
	weightTrust   = 0.4
	weightRating  = 0.2
	weightSource  = 0.2
	weightRecency = 0.2
)

// defaultTrust is assumed for vendors with no history.
const defaultTrust = 0.5

// sourceQuality is the fixed per-source ranking table. Unknown sources get
// sourceQualityOther.
var sourceQuality = map[string]float64{
	"justdial":  0.9,
	"indiamart": 0.8,
	"maps":      0.85,
	"webdir":    0.6,
}

const sourceQualityOther = 0.5

// Ranked is one deduplicated vendor with its merged fields and score.
type Ranked struct {
	Phone       string // canonical
	Name        string
	Category    protocol.VendorCategory
	Location    string
	Rating      float64
	Quotes      []float64 // union of quoted prices across duplicates
	Sources     []string  // first-seen order
	Score       float64
	firstSeenAt int       // position of first sighting in the input, for tie-breaks
	live        bool      // at least one sighting was fetched live this run
	lastSeen    time.Time // freshest non-live sighting
}

// TrustLookup resolves historical trust scores by canonical phone. Vendors
// absent from history return ok=false.
type TrustLookup func(canonicalPhone string) (trust float64, ok bool)

// Result is the outcome of ranking one candidate set.
type Result struct {
	Vendors []Ranked
	// MarketRate is the median of all quoted prices; valid only when
	// HasMarketRate is set. Downstream must not invent one.
	MarketRate    float64
	HasMarketRate bool
	// Dropped counts candidates discarded for unparseable phone numbers.
	Dropped int
}

// Rank normalizes, deduplicates, merges, scores and orders the raw
// candidate union. Output order is deterministic for identical input:
// score descending, then rating descending, then earliest first sighting.
func Rank(candidates []protocol.Candidate, norm phone.Normalizer, trust TrustLookup) Result {
	groups := make(map[string]*Ranked)
	var order []string
	dropped := 0

	for i, c := range candidates {
		key, err := norm.Normalize(c.Phone)
		if err != nil {
			dropped++
			continue
		}

		g, ok := groups[key]
		if !ok {
			g = &Ranked{Phone: key, Category: c.Category, firstSeenAt: i}
			groups[key] = g
			order = append(order, key)
		}
		merge(g, c)
	}

	var allQuotes []float64
	vendors := make([]Ranked, 0, len(order))
	for _, key := range order {
		g := groups[key]
		g.Score = score(*g, trust)
		allQuotes = append(allQuotes, g.Quotes...)
		vendors = append(vendors, *g)
	}

	sort.SliceStable(vendors, func(i, j int) bool {
		if vendors[i].Score != vendors[j].Score {
			return vendors[i].Score > vendors[j].Score
		}
		if vendors[i].Rating != vendors[j].Rating {
			return vendors[i].Rating > vendors[j].Rating
		}
		return vendors[i].firstSeenAt < vendors[j].firstSeenAt
	})

	res := Result{Vendors: vendors, Dropped: dropped}
	if len(allQuotes) > 0 {
		res.MarketRate = median(allQuotes)
		res.HasMarketRate = true
	}
	return res
}

// merge folds one raw candidate into its group: most informative wins,
// quotes accumulate.
func merge(g *Ranked, c protocol.Candidate) {
	if g.Name == "" {
		g.Name = c.Name
	}
	if g.Location == "" {
		g.Location = c.Location
	}
	if c.Rating > g.Rating {
		g.Rating = c.Rating
	}
	if c.QuotedPrice > 0 {
		g.Quotes = append(g.Quotes, c.QuotedPrice)
	}
	if c.LastSeen.IsZero() {
		g.live = true
	} else if c.LastSeen.After(g.lastSeen) {
		g.lastSeen = c.LastSeen
	}
	g.Sources = append(g.Sources, c.Source)
}

func score(g Ranked, trust TrustLookup) float64 {
	t := defaultTrust
	if trust != nil {
		if v, ok := trust(g.Phone); ok {
			t = v
		}
	}

	// Best source quality across all sightings.
	sq := 0.0
	for _, s := range g.Sources {
		q, ok := sourceQuality[s]
		if !ok {
			q = sourceQualityOther
		}
		if q > sq {
			sq = q
		}
	}

	return weightTrust*t +
		weightRating*(g.Rating/5.0) +
		weightSource*sq +
		weightRecency*recencyWeight(g)
}

// recencyWeight decays with the age of the freshest sighting over a 30 day
// window. Live fetches carry a zero LastSeen on the candidate and weigh 1.0.
func recencyWeight(g Ranked) float64 {
	if g.live || g.lastSeen.IsZero() {
		return 1.0
	}
	age := time.Since(g.lastSeen)
	w := 1.0 - age.Hours()/(30*24)
	if w < 0 {
		return 0
	}
	return w
}

func median(v []float64) float64 {
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
