// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package consolidate

import (
	"regexp"
	"strings"
	"time"

	"github.com/pdiddy/sanctions-engine/pkg/types"
)

var (
	leadingDigits = regexp.MustCompile(`^(\d+)`)
	euCode        = regexp.MustCompile(`\d{4}/\d+`)
	djPattern     = regexp.MustCompile(`^\d{1,2}\s+[A-Za-z]{3}\s+\d{4}`)
)

// WatchlistForSource decides the watchlist label of a record from where it
// came from and the value it already carries. UN sources are always UN;
// an OFAC label becomes OFAC; any other non-empty value is kept; PDF
// records without one get the EU regulation code from the file name.
func WatchlistForSource(src Source, current string) string {
	if src.Kind == KindUN {
		return types.WatchlistUN
	}
	cur := strings.TrimSpace(current)
	lower := strings.ToLower(cur)
	if strings.Contains(lower, "ofac") || strings.Contains(lower, "specially designated") {
		return types.WatchlistOFAC
	}
	if cur != "" {
		return cur
	}
	if src.Kind == KindPDF {
		if m := leadingDigits.FindString(src.Name); m != "" {
			return EUWatchlistFromNumber(m)
		}
		return types.WatchlistEU
	}
	return types.WatchlistUnknown
}

// EUWatchlistFromNumber converts an EU publication number such as
// 202501578 into its regulation code 2025/1578. Numbers shorter than 8
// digits, or with nothing after the year, yield EU.
func EUWatchlistFromNumber(number string) string {
	if len(number) < 8 {
		return types.WatchlistEU
	}
	for _, r := range number {
		if r < '0' || r > '9' {
			return types.WatchlistEU
		}
	}
	year := number[:4]
	rest := strings.TrimLeft(number[4:], "0")
	if rest == "" {
		return types.WatchlistEU
	}
	return year + "/" + rest
}

// StandardizeWatchlist maps free-text watchlist labels to UN, OFAC, an EU
// regulation code, EU, or Unknown. Unrecognized labels are kept.
func StandardizeWatchlist(value string) string {
	v := strings.TrimSpace(value)
	if v == "" || strings.EqualFold(v, "nan") || strings.EqualFold(v, "none") {
		return types.WatchlistUnknown
	}
	lower := strings.ToLower(v)
	words := wordSet(lower)

	if words["un"] || strings.Contains(lower, "united nations") || strings.Contains(lower, "security council") {
		return types.WatchlistUN
	}
	if strings.Contains(lower, "ofac") || strings.Contains(lower, "specially designated") || strings.Contains(lower, "treasury") {
		return types.WatchlistOFAC
	}
	if euCode.MatchString(v) {
		return v
	}
	if words["eu"] || strings.Contains(lower, "european union") {
		return types.WatchlistEU
	}
	return v
}

func wordSet(s string) map[string]bool {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

var dobLayouts = []string{
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"2006-1-2",
	"2006/1/2",
	"1/2/2006",
	"2 1 2006",
}

// StandardizeDOB rewrites a DOB_DJ value as "02 Jan 2006". Values already
// in day-month-name-year form, bare years, and unparseable values are kept.
func StandardizeDOB(value string) string {
	v := strings.TrimSpace(value)
	if v == "" || djPattern.MatchString(v) {
		return v
	}
	for _, layout := range dobLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format("02 Jan 2006")
		}
	}
	return v
}
