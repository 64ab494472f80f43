package phone

import (
	"errors"
	"testing"

	"github.com/tolmol-io/tolmol/pkg/protocol"
)

func TestNormalizeVariants(t *testing.T) {
	n := Normalizer{}

	cases := []struct {
		raw  string
		want string
	}{
		{"+919876500000", "+919876500000"},
		{"09876500000", "+919876500000"},
		{"9876500000", "+919876500000"},
		{"00919876500000", "+919876500000"},
		{"+91 98765 00000", "+919876500000"},
		{"+91-98765-00000", "+919876500000"},
		{"(0) 98765.00000", "+919876500000"},
		{" +919876500000 ", "+919876500000"},
	}

	for _, c := range cases {
		got, err := n.Normalize(c.raw)
		if err != nil {
			t.Errorf("Normalize(%q): %v", c.raw, err)
			continue
		}
		if got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.raw, got, c.want)
		}
	}
}

func TestNormalizeSameVendor(t *testing.T) {
	n := Normalizer{}
	a, err := n.Normalize("+919876500000")
	if err != nil {
		t.Fatal(err)
	}
	b, err := n.Normalize("09876500000")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("variants normalized differently: %q vs %q", a, b)
	}
}

func TestNormalizeInvalid(t *testing.T) {
	n := Normalizer{}

	// "98765432" and "098765432" are short national fragments: the default
	// country code must not pad them into a dialable length.
	for _, raw := range []string{"", "   ", "12345", "+91", "98-76-50", "call-me-maybe", "+91abc7650000", "98765432", "098765432"} {
		_, err := n.Normalize(raw)
		if err == nil {
			t.Errorf("Normalize(%q): expected error", raw)
			continue
		}
		if !errors.Is(err, protocol.ErrInvalidPhoneFormat) {
			t.Errorf("Normalize(%q): error %v is not ErrInvalidPhoneFormat", raw, err)
		}
	}
}

func TestNormalizeCustomCountryCode(t *testing.T) {
	n := Normalizer{CountryCode: "44"}
	got, err := n.Normalize("07911123456")
	if err != nil {
		t.Fatal(err)
	}
	if got != "+447911123456" {
		t.Errorf("got %q", got)
	}
}
