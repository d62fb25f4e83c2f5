package pricing

import (
	"errors"
	"testing"
)

func TestConvertUnit(t *testing.T) {
	cases := []struct {
		name     string
		quantity float64
		from     string
		to       string
		expected float64
		wantErr  bool
	}{
		{name: "grams to kilograms", quantity: 250, from: "g", to: "kg", expected: 0.25},
		{name: "kilograms to grams", quantity: 1.5, from: "kg", to: "g", expected: 1500},
		{name: "millilitres to litres", quantity: 150, from: "ml", to: "l", expected: 0.15},
		{name: "same unit", quantity: 3, from: "pcs", to: "pcs", expected: 3},
		{name: "case and whitespace", quantity: 100, from: " G ", to: "KG", expected: 0.1},
		{name: "cross family", quantity: 1, from: "g", to: "ml", wantErr: true},
		{name: "unknown unit", quantity: 1, from: "oz", to: "g", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ConvertUnit(tc.quantity, tc.from, tc.to)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.expected {
				t.Fatalf("expected %v, got %v", tc.expected, got)
			}
		})
	}
}

func latteRecipe() []RecipeLine {
	return []RecipeLine{
		{IngredientID: 1, Name: "Arabica beans", Quantity: 18, RecipeUnit: "g", PurchaseUnit: "kg", UnitCost: 200000},
		{IngredientID: 2, Name: "Fresh milk", Quantity: 200, RecipeUnit: "ml", PurchaseUnit: "l", UnitCost: 18000},
		{IngredientID: 3, Name: "Cup", Quantity: 1, RecipeUnit: "pcs", PurchaseUnit: "pcs", UnitCost: 800},
	}
}

func TestRecipeCost(t *testing.T) {
	total, breakdown, err := RecipeCost(latteRecipe())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 18g of 200k/kg beans = 3600, 200ml of 18k/l milk = 3600, cup = 800.
	if total != 8000 {
		t.Fatalf("expected total 8000, got %v", total)
	}
	if len(breakdown) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(breakdown))
	}
	if breakdown[0].Cost != 3600 {
		t.Fatalf("expected bean cost 3600, got %v", breakdown[0].Cost)
	}
}

func TestRecipeCostBrokenRecipe(t *testing.T) {
	lines := []RecipeLine{
		{Name: "Mystery", Quantity: 1, RecipeUnit: "g", PurchaseUnit: "l", UnitCost: 100},
	}
	if _, _, err := RecipeCost(lines); err == nil {
		t.Fatalf("expected error for cross-family units")
	}

	negative := []RecipeLine{
		{Name: "Beans", Quantity: -1, RecipeUnit: "g", PurchaseUnit: "kg", UnitCost: 100},
	}
	if _, _, err := RecipeCost(negative); err == nil {
		t.Fatalf("expected error for negative quantity")
	}
}

func TestSuggest(t *testing.T) {
	s, err := Suggest(latteRecipe(), 0.25, 0.6, 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.IngredientCost != 8000 {
		t.Fatalf("expected ingredient cost 8000, got %v", s.IngredientCost)
	}
	if s.OverheadCost != 2000 {
		t.Fatalf("expected overhead 2000, got %v", s.OverheadCost)
	}
	if s.TotalUnitCost != 10000 {
		t.Fatalf("expected total cost 10000, got %v", s.TotalUnitCost)
	}
	// 10000 / 0.4 = 25000, already on the step.
	if s.SuggestedPrice != 25000 {
		t.Fatalf("expected suggested price 25000, got %v", s.SuggestedPrice)
	}
}

func TestSuggestRoundsUp(t *testing.T) {
	lines := []RecipeLine{
		{Name: "Beans", Quantity: 20, RecipeUnit: "g", PurchaseUnit: "kg", UnitCost: 201000},
	}
	// Cost 4020, margin 50% -> 8040, rounds up to 8500.
	s, err := Suggest(lines, 0, 0.5, 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.SuggestedPrice != 8500 {
		t.Fatalf("expected 8500, got %v", s.SuggestedPrice)
	}

	// Step 0 disables rounding.
	s, err = Suggest(lines, 0, 0.5, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.SuggestedPrice != 8040 {
		t.Fatalf("expected 8040 without rounding, got %v", s.SuggestedPrice)
	}
}

func TestSuggestInvalidMargin(t *testing.T) {
	for _, margin := range []float64{0, -0.1, 0.96, 1} {
		if _, err := Suggest(latteRecipe(), 0, margin, 500); !errors.Is(err, ErrInvalidMargin) {
			t.Fatalf("margin %v: expected ErrInvalidMargin, got %v", margin, err)
		}
	}
}

func TestReview(t *testing.T) {
	report := Review(10000, 25000)
	if report.ProfitPerServing != 15000 {
		t.Fatalf("expected profit 15000, got %v", report.ProfitPerServing)
	}
	if report.GrossMarginPct != 60 {
		t.Fatalf("expected 60%% margin, got %v", report.GrossMarginPct)
	}
	if report.MarkupPct != 150 {
		t.Fatalf("expected 150%% markup, got %v", report.MarkupPct)
	}
	if report.BelowCost {
		t.Fatalf("expected not below cost")
	}

	below := Review(10000, 8000)
	if !below.BelowCost {
		t.Fatalf("expected below-cost flag")
	}
	if below.ProfitPerServing != -2000 {
		t.Fatalf("expected negative profit, got %v", below.ProfitPerServing)
	}

	free := Review(0, 0)
	if free.GrossMarginPct != 0 || free.MarkupPct != 0 {
		t.Fatalf("expected zero percentages for zero price, got %v / %v", free.GrossMarginPct, free.MarkupPct)
	}
}
