package negotiation

import "testing"

func TestParsePrice(t *testing.T) {
	cases := []struct {
		text string
		want float64
		ok   bool
	}{
		{"3500 rupees, not less", 3500, true},
		{"we charge 3,500 per day", 3500, true},
		{"for 2 people it is 2800", 2800, true},
		{"haan bhaiya bilkul", 0, false},
		{"2 people, 3 nights", 0, false},
		{"final 2999.50", 2999, true},
	}
	for _, c := range cases {
		got, ok := ParsePrice(c.text)
		if ok != c.ok || (ok && got != c.want) {
			t.Errorf("ParsePrice(%q) = %v, %v; want %v, %v", c.text, got, ok, c.want, c.ok)
		}
	}
}

func TestIsDecline(t *testing.T) {
	if !IsDecline("sorry sir, fully booked that week") {
		t.Error("booked not detected")
	}
	if !IsDecline("abhi rooms nahi hai") {
		t.Error("nahi hai not detected")
	}
	if IsDecline("3000 se kam me nahi dunga") {
		t.Error("a price counter is not a decline")
	}
}

func TestIsAffirmative(t *testing.T) {
	if !IsAffirmative("haan theek hai, done") {
		t.Error("agreement not detected")
	}
	if IsAffirmative("bahut kam bol rahe ho") {
		t.Error("refusal detected as agreement")
	}
}
