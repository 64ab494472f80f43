package negotiation

import "testing"

func TestDecideThreeRoundHaggle(t *testing.T) {
	// budget 2000/2800/3200, market 2800, vendor opens at 3500, 3 rounds.
	const (
		budgetMax     = 2800
		budgetStretch = 3200
		market        = 2800
		maxRounds     = 3
	)

	// Round 1: opening counter anchors at min(2800, 3500*0.85) = 2800.
	d := Decide(Bargain{Round: 1, MaxRounds: maxRounds, MarketRate: market,
		VendorPrice: 3500, BudgetMax: budgetMax, BudgetStretch: budgetStretch})
	if d.Action != ActionCounter || d.Price != 2800 {
		t.Fatalf("round 1: %+v, want counter at 2800", d)
	}

	// Round 2: vendor replies 3000, still above budget max → continue.
	d = Decide(Bargain{Round: 2, MaxRounds: maxRounds, MarketRate: market,
		VendorPrice: 3000, AgentPrice: 2800, BudgetMax: budgetMax, BudgetStretch: budgetStretch})
	if d.Action != ActionCounter {
		t.Fatalf("round 2: %+v, want counter", d)
	}
	if d.Price != 2900 {
		t.Errorf("round 2 counter = %v, want midpoint 2900", d.Price)
	}

	// Round 3 (final): vendor at 2900 ≤ stretch → accepted with flag.
	d = Decide(Bargain{Round: 3, MaxRounds: maxRounds, MarketRate: market,
		VendorPrice: 2900, AgentPrice: 2900, BudgetMax: budgetMax, BudgetStretch: budgetStretch})
	if d.Action != ActionAccept || !d.StretchFlag || d.Price != 2900 {
		t.Errorf("round 3: %+v, want flagged accept at 2900", d)
	}
}

func TestDecideAcceptsWithinBudgetImmediately(t *testing.T) {
	d := Decide(Bargain{Round: 1, MaxRounds: 6, VendorPrice: 2500,
		BudgetMax: 2800, BudgetStretch: 3200})
	if d.Action != ActionAccept || d.StretchFlag {
		t.Errorf("got %+v, want unflagged accept on round 1", d)
	}
}

func TestDecideStretchOnlyOnFinalRound(t *testing.T) {
	b := Bargain{Round: 2, MaxRounds: 6, VendorPrice: 3000, AgentPrice: 2800,
		BudgetMax: 2800, BudgetStretch: 3200}
	if d := Decide(b); d.Action == ActionAccept {
		t.Errorf("stretch-band price accepted before the final round: %+v", d)
	}
	b.Round = 6
	if d := Decide(b); d.Action != ActionAccept || !d.StretchFlag {
		t.Errorf("final round stretch price not accepted: %+v", Decide(b))
	}
}

func TestDecideRejectsAboveStretchOnFinalRound(t *testing.T) {
	d := Decide(Bargain{Round: 6, MaxRounds: 6, VendorPrice: 4000,
		AgentPrice: 2800, BudgetMax: 2800, BudgetStretch: 3200})
	if d.Action != ActionReject {
		t.Errorf("got %+v, want reject", d)
	}
}

func TestDecideWalkAwayOnRepeatedPrice(t *testing.T) {
	d := Decide(Bargain{Round: 3, MaxRounds: 6, VendorPrice: 3400,
		AgentPrice: 2800, PriceRepeats: 2, BudgetMax: 2800, BudgetStretch: 3200})
	if d.Action != ActionHold {
		t.Fatalf("got %+v, want hold", d)
	}
	if d.Price != 2800 {
		t.Errorf("hold price = %v, want the flat previous offer", d.Price)
	}
}

func TestDecideAnchorsFarAboveMarket(t *testing.T) {
	// 5000 > 1.3 * 3000: anchor at min(3000, 4250) even mid-loop.
	d := Decide(Bargain{Round: 2, MaxRounds: 6, MarketRate: 3000,
		VendorPrice: 5000, AgentPrice: 2500, BudgetMax: 3500, BudgetStretch: 4000})
	if d.Action != ActionCounter || d.Price != 3000 {
		t.Errorf("got %+v, want anchor at market 3000", d)
	}
}

func TestDecideCounterNeverExceedsStretch(t *testing.T) {
	for vendor := 3000.0; vendor <= 10000; vendor += 500 {
		d := Decide(Bargain{Round: 2, MaxRounds: 6, VendorPrice: vendor,
			AgentPrice: 3100, BudgetMax: 2800, BudgetStretch: 3200})
		if d.Action == ActionCounter && d.Price > 3200 {
			t.Fatalf("vendor %v: counter %v exceeds stretch", vendor, d.Price)
		}
	}
}

func TestDecideNoMarketRateNeverInventsOne(t *testing.T) {
	// Without a market rate the opening counter starts from budget max,
	// not from a fabricated estimate.
	d := Decide(Bargain{Round: 1, MaxRounds: 6, VendorPrice: 4000,
		BudgetMax: 2800, BudgetStretch: 3200})
	if d.Action != ActionCounter {
		t.Fatalf("got %+v", d)
	}
	if want := (2800 + 4000) / 2.0; d.Price != min(want, 3200) {
		t.Errorf("counter = %v, want clamped midpoint %v", d.Price, min(want, 3200))
	}
}
