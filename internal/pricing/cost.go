package pricing

import (
	"fmt"
	"strings"
)

// RecipeLine is one ingredient in a menu item recipe. Quantity is in the
// recipe unit; UnitCost is the ingredient's cost per purchase unit.
type RecipeLine struct {
	IngredientID int64
	Name         string
	Quantity     float64
	RecipeUnit   string
	PurchaseUnit string
	UnitCost     float64
}

// LineCost is the cost contribution of one recipe line.
type LineCost struct {
	IngredientID int64   `json:"ingredientId"`
	Name         string  `json:"name"`
	Quantity     float64 `json:"quantity"`
	Unit         string  `json:"unit"`
	Cost         float64 `json:"cost"`
}

// unitFactors maps a unit to its size in the base unit of its family
// (grams for mass, millilitres for volume, pieces for count).
var unitFactors = map[string]float64{
	"g":   1,
	"kg":  1000,
	"ml":  1,
	"l":   1000,
	"pcs": 1,
}

var unitFamilies = map[string]string{
	"g":   "mass",
	"kg":  "mass",
	"ml":  "volume",
	"l":   "volume",
	"pcs": "count",
}

// ConvertUnit converts a quantity between two units of the same family.
func ConvertUnit(quantity float64, from, to string) (float64, error) {
	from = strings.ToLower(strings.TrimSpace(from))
	to = strings.ToLower(strings.TrimSpace(to))

	fromFamily, ok := unitFamilies[from]
	if !ok {
		return 0, fmt.Errorf("unknown unit %q", from)
	}
	toFamily, ok := unitFamilies[to]
	if !ok {
		return 0, fmt.Errorf("unknown unit %q", to)
	}
	if fromFamily != toFamily {
		return 0, fmt.Errorf("cannot convert %s to %s", from, to)
	}

	return quantity * unitFactors[from] / unitFactors[to], nil
}

// RecipeCost rolls the per-serving ingredient cost up from the recipe
// lines, converting each line quantity into the ingredient's purchase unit
// before applying the unit cost. Lines with unknown or mismatched units fail
// the whole rollup; a menu item with a broken recipe should not get a price.
func RecipeCost(lines []RecipeLine) (float64, []LineCost, error) {
	total := 0.0
	breakdown := make([]LineCost, 0, len(lines))

	for _, line := range lines {
		if line.Quantity < 0 {
			return 0, nil, fmt.Errorf("ingredient %s: negative quantity", line.Name)
		}
		inPurchaseUnit, err := ConvertUnit(line.Quantity, line.RecipeUnit, line.PurchaseUnit)
		if err != nil {
			return 0, nil, fmt.Errorf("ingredient %s: %w", line.Name, err)
		}
		cost := inPurchaseUnit * line.UnitCost
		total += cost
		breakdown = append(breakdown, LineCost{
			IngredientID: line.IngredientID,
			Name:         line.Name,
			Quantity:     line.Quantity,
			Unit:         line.RecipeUnit,
			Cost:         round2(cost),
		})
	}

	return round2(total), breakdown, nil
}
