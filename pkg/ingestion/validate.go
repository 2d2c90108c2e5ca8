package ingestion

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RowError is a single row-level validation failure, reported with the
// 1-indexed file line number including the header line.
type RowError struct {
	Line   int
	Reason string
}

func (e RowError) String() string {
	return fmt.Sprintf("Row %d: %s", e.Line, e.Reason)
}

// fieldBounds declares the accepted length range for a trimmed string
// field.
type fieldBounds struct {
	min, max int
}

func requireField(row Row, field string) (string, string) {
	v, ok := row[field]
	if !ok || v == "" {
		return "", fmt.Sprintf("empty:%s", field)
	}
	return v, ""
}

func validateLength(field, value string, bounds fieldBounds) string {
	if len(value) < bounds.min || len(value) > bounds.max {
		return fmt.Sprintf("length:%s", field)
	}
	return ""
}

func parseDecimal(field, value string) (float64, string) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Sprintf("number:%s", field)
	}
	return f, ""
}

func parseInteger(field, value string) (int, string) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Sprintf("number:%s", field)
	}
	return n, ""
}

// parseStrictDate requires the exact YYYY-MM-DD layout; any other format,
// including otherwise-valid variants like "2026-7-1", is rejected.
func parseStrictDate(field, value string) (time.Time, string) {
	if len(value) != 10 || value[4] != '-' || value[7] != '-' {
		return time.Time{}, fmt.Sprintf("date:%s", field)
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Sprintf("date:%s", field)
	}
	return t, ""
}

func upper(v string) string {
	return strings.ToUpper(v)
}
