// Package dates renders free-form invoice date strings canonically.
package dates

import (
	"log/slog"
	"strings"

	"github.com/araddon/dateparse"
)

// Layout is the canonical form written into the workbook.
const Layout = "02/01/2006" // DD/MM/YYYY

// Normalize parses a date string of unknown format and renders it as
// DD/MM/YYYY. Ambiguous orderings are read month-first, matching the source
// documents' habit of US-ordered dates. On any parse failure the input is
// returned unchanged, so downstream consumers always see a string and never
// an error.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return raw
	}
	t, err := dateparse.ParseAny(s, dateparse.PreferMonthFirst(true))
	if err != nil {
		slog.Debug("dates.parse_failed", "raw", raw, "error", err)
		return raw
	}
	return t.Format(Layout)
}
