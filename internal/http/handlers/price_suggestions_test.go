package handlers

import "testing"

func floatPtr(v float64) *float64 {
	return &v
}

func TestResolveSuggestionParams(t *testing.T) {
	const (
		defaultMargin = 0.6
		defaultStep   = 500.0
	)

	cases := []struct {
		name         string
		body         priceSuggestionRequest
		wantOverhead float64
		wantMargin   float64
		wantStep     float64
		wantErr      bool
	}{
		{
			name:         "empty body uses defaults",
			body:         priceSuggestionRequest{},
			wantOverhead: 0,
			wantMargin:   defaultMargin,
			wantStep:     defaultStep,
		},
		{
			name:         "rounding step override",
			body:         priceSuggestionRequest{RoundingStep: floatPtr(1000)},
			wantOverhead: 0,
			wantMargin:   defaultMargin,
			wantStep:     1000,
		},
		{
			name:         "zero step disables rounding",
			body:         priceSuggestionRequest{RoundingStep: floatPtr(0)},
			wantOverhead: 0,
			wantMargin:   defaultMargin,
			wantStep:     0,
		},
		{
			name: "all overrides",
			body: priceSuggestionRequest{
				OverheadPct:  floatPtr(0.15),
				TargetMargin: floatPtr(0.5),
				RoundingStep: floatPtr(100),
			},
			wantOverhead: 0.15,
			wantMargin:   0.5,
			wantStep:     100,
		},
		{
			name:    "negative rounding step rejected",
			body:    priceSuggestionRequest{RoundingStep: floatPtr(-500)},
			wantErr: true,
		},
		{
			name:    "overhead above one rejected",
			body:    priceSuggestionRequest{OverheadPct: floatPtr(1.5)},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			overhead, margin, step, err := resolveSuggestionParams(tc.body, defaultMargin, defaultStep)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got overhead=%v margin=%v step=%v", overhead, margin, step)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if overhead != tc.wantOverhead {
				t.Fatalf("overhead = %v, want %v", overhead, tc.wantOverhead)
			}
			if margin != tc.wantMargin {
				t.Fatalf("margin = %v, want %v", margin, tc.wantMargin)
			}
			if step != tc.wantStep {
				t.Fatalf("step = %v, want %v", step, tc.wantStep)
			}
		})
	}
}
