// Package sheets maps company names to stable worksheet titles.
package sheets

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxSheetNameLen is the XLSX format limit for sheet titles.
const MaxSheetNameLen = 31

// Characters excelize rejects in sheet titles, plus comma which breaks
// downstream range references.
const illegalChars = `:/\?*[],`

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Sanitize turns a company name into a legal new sheet title: illegal
// characters removed, uppercased, capped at 31 runes.
func Sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		if strings.ContainsRune(illegalChars, r) {
			continue
		}
		b.WriteRune(r)
	}
	s := strings.ToUpper(strings.TrimSpace(b.String()))
	rs := []rune(s)
	if len(rs) > MaxSheetNameLen {
		s = string(rs[:MaxSheetNameLen])
	}
	return s
}

// NormalizeKey reduces a company name to its matching key: diacritics
// dropped, lowercased, everything but ASCII letters and digits removed.
// Two names that normalize identically must land on the same worksheet,
// whatever their display forms look like.
func NormalizeKey(name string) string {
	s, _, err := transform.String(stripMarks, name)
	if err != nil {
		s = name
	}
	s = strings.ToLower(s)
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Resolver maintains the normalized-key to sheet-title mapping for one
// workbook, seeded from its existing sheet list and extended as new sheets
// are created during the run.
type Resolver struct {
	titles map[string]string
	used   map[string]struct{}
}

// NewResolver seeds a resolver from the workbook's existing sheet titles.
func NewResolver(existing []string) *Resolver {
	r := &Resolver{
		titles: make(map[string]string, len(existing)),
		used:   make(map[string]struct{}, len(existing)),
	}
	for _, t := range existing {
		r.used[t] = struct{}{}
		key := NormalizeKey(t)
		if key == "" {
			continue
		}
		if _, ok := r.titles[key]; !ok {
			r.titles[key] = t
		}
	}
	return r
}

// Resolve returns the worksheet title for a company name and whether that
// sheet already existed. New titles are registered so later invoices for
// the same normalized company reuse them. Distinct companies whose
// sanitized forms collide get a numeric suffix.
func (r *Resolver) Resolve(company string) (title string, existed bool) {
	key := NormalizeKey(company)
	if key == "" {
		key = "unknown"
	}
	if t, ok := r.titles[key]; ok {
		return t, true
	}
	t := Sanitize(company)
	if t == "" {
		t = "UNKNOWN"
	}
	t = r.dedupe(t)
	r.titles[key] = t
	r.used[t] = struct{}{}
	return t, false
}

func (r *Resolver) dedupe(t string) string {
	if _, taken := r.used[t]; !taken {
		return t
	}
	for i := 2; ; i++ {
		suffix := " " + strconv.Itoa(i)
		base := []rune(t)
		if len(base)+len(suffix) > MaxSheetNameLen {
			base = base[:MaxSheetNameLen-len(suffix)]
		}
		candidate := string(base) + suffix
		if _, taken := r.used[candidate]; !taken {
			return candidate
		}
	}
}
