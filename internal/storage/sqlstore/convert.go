package sqlstore

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/bobmcallan/simtrade/internal/models"
)

const timestampLayout = time.RFC3339Nano

// nullFloat stores missing values as NULL.
func nullFloat(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func fromNullFloat(n sql.NullFloat64) float64 {
	if !n.Valid {
		return models.Missing
	}
	return n.Float64
}

func nullDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return models.DateKey(t)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored date %q: %w", s, err)
	}
	return t, nil
}

func parseNullDate(n sql.NullString) (time.Time, error) {
	if !n.Valid || n.String == "" {
		return time.Time{}, nil
	}
	return parseDate(n.String)
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
