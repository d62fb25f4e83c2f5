package handlers

import "testing"

func TestMatchesExpected(t *testing.T) {
	cases := []struct {
		name     string
		amount   float64
		total    float64
		expected float64
		match    bool
	}{
		{"exact total", 35000, 35000, 35042, true},
		{"total plus code", 35042, 35000, 35042, true},
		{"rounding noise", 35000.004, 35000, 35042, true},
		{"short", 34000, 35000, 35042, false},
		{"over", 36000, 35000, 35042, false},
		{"wrong code", 35041, 35000, 35042, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := matchesExpected(tc.amount, tc.total, tc.expected); got != tc.match {
				t.Fatalf("matchesExpected(%v, %v, %v) = %v, want %v", tc.amount, tc.total, tc.expected, got, tc.match)
			}
		})
	}
}

func TestValidPin(t *testing.T) {
	cases := []struct {
		pin   string
		valid bool
	}{
		{"1234", true},
		{"00000000", true},
		{"123", false},
		{"123456789", false},
		{"12a4", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := validPin(tc.pin); got != tc.valid {
			t.Fatalf("validPin(%q) = %v, want %v", tc.pin, got, tc.valid)
		}
	}
}
