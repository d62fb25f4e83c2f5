package pricing

import (
	"errors"
	"math"
)

var ErrInvalidMargin = errors.New("target margin must be in (0, 0.95]")

// Suggestion is the price calculator output for one menu item.
type Suggestion struct {
	IngredientCost float64    `json:"ingredientCost"`
	OverheadCost   float64    `json:"overheadCost"`
	TotalUnitCost  float64    `json:"totalUnitCost"`
	TargetMargin   float64    `json:"targetMargin"`
	RawPrice       float64    `json:"rawPrice"`
	SuggestedPrice float64    `json:"suggestedPrice"`
	Breakdown      []LineCost `json:"breakdown"`
}

// Suggest computes a selling price covering ingredient cost plus an
// overhead percentage at the target gross margin, rounded up to the
// rounding step. overheadPct is a fraction of ingredient cost (0.15 adds
// 15%); roundingStep <= 0 disables rounding.
func Suggest(lines []RecipeLine, overheadPct, targetMargin, roundingStep float64) (Suggestion, error) {
	if targetMargin <= 0 || targetMargin > 0.95 {
		return Suggestion{}, ErrInvalidMargin
	}
	if overheadPct < 0 {
		overheadPct = 0
	}

	ingredientCost, breakdown, err := RecipeCost(lines)
	if err != nil {
		return Suggestion{}, err
	}

	overhead := round2(ingredientCost * overheadPct)
	totalCost := round2(ingredientCost + overhead)
	raw := totalCost / (1 - targetMargin)

	return Suggestion{
		IngredientCost: ingredientCost,
		OverheadCost:   overhead,
		TotalUnitCost:  totalCost,
		TargetMargin:   targetMargin,
		RawPrice:       round2(raw),
		SuggestedPrice: RoundUpToStep(raw, roundingStep),
		Breakdown:      breakdown,
	}, nil
}

// RoundUpToStep rounds a price up to the nearest multiple of step.
func RoundUpToStep(price, step float64) float64 {
	if step <= 0 {
		return round2(price)
	}
	return math.Ceil(price/step) * step
}

// MarginReport describes how an existing price performs against cost.
type MarginReport struct {
	UnitCost         float64 `json:"unitCost"`
	Price            float64 `json:"price"`
	ProfitPerServing float64 `json:"profitPerServing"`
	GrossMarginPct   float64 `json:"grossMarginPct"`
	MarkupPct        float64 `json:"markupPct"`
	BelowCost        bool    `json:"belowCost"`
}

// Review reports margin and markup for a priced menu item.
func Review(unitCost, price float64) MarginReport {
	report := MarginReport{
		UnitCost:         round2(unitCost),
		Price:            round2(price),
		ProfitPerServing: round2(price - unitCost),
		BelowCost:        price < unitCost,
	}
	if price > 0 {
		report.GrossMarginPct = round2((price - unitCost) / price * 100)
	}
	if unitCost > 0 {
		report.MarkupPct = round2((price - unitCost) / unitCost * 100)
	}
	return report
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
