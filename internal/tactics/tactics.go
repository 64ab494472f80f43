// Package tactics retrieves negotiation tactic snippets for a short context
// description. A semantic store can be plugged in behind Retriever; the
// built-in retriever is a small fixed set scored by keyword overlap, used
// when nothing is configured.
package tactics

import (
	"context"
	"sort"
	"strings"
)

// Snippet is one retrievable piece of negotiation advice.
type Snippet struct {
	Name     string   `json:"name"`
	Advice   string   `json:"advice"`
	Keywords []string `json:"keywords"`
}

// Retriever returns tactic snippets ranked by relevance to the context
// description.
type Retriever interface {
	Query(ctx context.Context, contextDesc string) ([]Snippet, error)
}

// Builtin is the mock-mode retriever with a fixed snippet set.
type Builtin struct {
	snippets []Snippet
}

// NewBuiltin returns the default retriever.
func NewBuiltin() *Builtin {
	return &Builtin{snippets: builtinSnippets}
}

var builtinSnippets = []Snippet{
	{
		Name:     "anchor_low",
		Advice:   "Quote well above market rate calls for a firm anchor below it; name the market rate out loud.",
		Keywords: []string{"overpriced", "high", "anchor", "market", "expensive"},
	},
	{
		Name:     "walk_away",
		Advice:   "A price repeated twice means the vendor is testing resolve; hold your number and signal you can leave.",
		Keywords: []string{"repeated", "stuck", "firm", "walk", "unchanged"},
	},
	{
		Name:     "split_difference",
		Advice:   "When the gap is small, propose the midpoint and frame it as meeting half way.",
		Keywords: []string{"midpoint", "close", "gap", "split", "counter"},
	},
	{
		Name:     "relationship",
		Advice:   "Mention repeat business and referrals; local vendors price regulars differently.",
		Keywords: []string{"regular", "repeat", "relationship", "friendly", "polite"},
	},
	{
		Name:     "bundle",
		Advice:   "For groups, trade volume for rate: more seats or nights at a lower per-head price.",
		Keywords: []string{"group", "party", "bulk", "volume", "nights"},
	},
}

// Query ranks the built-in snippets by keyword overlap with the context
// description. Ordering is deterministic: score descending, then name.
func (b *Builtin) Query(_ context.Context, contextDesc string) ([]Snippet, error) {
	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(contextDesc)) {
		words[strings.Trim(w, ".,!?")] = true
	}

	type scored struct {
		s     Snippet
		score int
	}
	ranked := make([]scored, 0, len(b.snippets))
	for _, s := range b.snippets {
		sc := 0
		for _, k := range s.Keywords {
			if words[k] {
				sc++
			}
		}
		ranked = append(ranked, scored{s, sc})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].s.Name < ranked[j].s.Name
	})

	out := make([]Snippet, len(ranked))
	for i, r := range ranked {
		out[i] = r.s
	}
	return out, nil
}
