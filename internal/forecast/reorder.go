package forecast

import (
	"math"
	"sort"
)

// Item carries the per-ingredient purchasing parameters the reorder engine
// needs alongside a Prediction.
type Item struct {
	IngredientID int64
	Name         string
	Unit         string
	PackSize     float64
	CurrentStock float64
	LeadTimeDays int
	SafetyDays   int
	CoverageDays int
	MinSafety    float64
}

// Recommendation is the reorder engine output for one ingredient.
type Recommendation struct {
	IngredientID        int64     `json:"ingredientId"`
	Name                string    `json:"name"`
	Unit                string    `json:"unit"`
	Reorder             bool      `json:"reorder"`
	ReorderPoint        float64   `json:"reorderPoint"`
	SafetyStock         float64   `json:"safetyStock"`
	ProjectedAtDelivery float64   `json:"projectedAtDelivery"`
	RecommendedQty      float64   `json:"recommendedQty"`
	Packs               int       `json:"packs"`
	DaysUntilStockout   int       `json:"daysUntilStockout"`
	Risk                RiskLevel `json:"risk"`
	Confidence          float64   `json:"confidence"`
}

// Recommend computes the reorder point and order quantity for one
// ingredient from its prediction.
//
// Reorder point = rate x lead time + safety stock, where safety stock is
// rate x safety days floored at the configured minimum. A reorder is
// recommended when the stock projected to remain at delivery falls at or
// below the reorder point, or when the risk is already CRITICAL or HIGH.
func Recommend(item Item, pred Prediction) Recommendation {
	rec := Recommendation{
		IngredientID:      item.IngredientID,
		Name:              item.Name,
		Unit:              item.Unit,
		DaysUntilStockout: pred.DaysUntilStockout,
		Risk:              pred.Risk,
		Confidence:        pred.Confidence,
	}

	rate := pred.DailyRate
	leadTime := item.LeadTimeDays
	if leadTime < 0 {
		leadTime = 0
	}
	safetyDays := item.SafetyDays
	if safetyDays < 0 {
		safetyDays = 0
	}
	coverage := item.CoverageDays
	if coverage <= 0 {
		coverage = defaultHorizonDays
	}

	safetyStock := rate * float64(safetyDays)
	if safetyStock < item.MinSafety {
		safetyStock = item.MinSafety
	}
	rec.SafetyStock = round2(safetyStock)
	rec.ReorderPoint = round2(rate*float64(leadTime) + safetyStock)

	projected := item.CurrentStock - rate*float64(leadTime)
	if projected < 0 {
		projected = 0
	}
	rec.ProjectedAtDelivery = round2(projected)

	rec.Reorder = projected <= rec.ReorderPoint && rate > 0
	if pred.Risk == RiskCritical || pred.Risk == RiskHigh {
		rec.Reorder = true
	}
	if rate <= 0 {
		rec.Reorder = false
	}
	if !rec.Reorder {
		return rec
	}

	need := rate*float64(coverage) - projected + safetyStock
	if need <= 0 {
		need = rate
	}

	if item.PackSize > 0 {
		packs := int(math.Ceil(need / item.PackSize))
		if packs < 1 {
			packs = 1
		}
		rec.Packs = packs
		rec.RecommendedQty = round2(float64(packs) * item.PackSize)
	} else {
		rec.RecommendedQty = round2(need)
	}

	return rec
}

var riskOrder = map[RiskLevel]int{
	RiskCritical: 0,
	RiskHigh:     1,
	RiskMedium:   2,
	RiskLow:      3,
}

// SortRecommendations orders by risk severity, then soonest stockout, then
// name for a stable listing.
func SortRecommendations(recs []Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		ri, rj := riskOrder[recs[i].Risk], riskOrder[recs[j].Risk]
		if ri != rj {
			return ri < rj
		}
		di, dj := recs[i].DaysUntilStockout, recs[j].DaysUntilStockout
		if di != dj {
			if di < 0 {
				return false
			}
			if dj < 0 {
				return true
			}
			return di < dj
		}
		return recs[i].Name < recs[j].Name
	})
}
