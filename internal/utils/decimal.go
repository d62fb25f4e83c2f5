package utils

import "github.com/jackc/pgx/v5/pgtype"

// NumericToFloat64 collapses a Postgres numeric into a float64. Invalid
// (NULL) values and values outside float range read as 0.
func NumericToFloat64(value pgtype.Numeric) float64 {
	if !value.Valid {
		return 0
	}
	f, err := value.Float64Value()
	if err != nil || !f.Valid {
		return 0
	}
	return f.Float64
}
