package handlers

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

func nullableText(v pgtype.Text) any {
	if v.Valid {
		return v.String
	}
	return nil
}

func nullableTime(v pgtype.Timestamptz) any {
	if v.Valid {
		return v.Time
	}
	return nil
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func timePtr(v pgtype.Timestamptz) *time.Time {
	if v.Valid {
		return &v.Time
	}
	return nil
}

func int8Ptr(v pgtype.Int8) *int64 {
	if v.Valid {
		return &v.Int64
	}
	return nil
}
