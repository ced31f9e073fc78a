package sites

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Date handling for the boards' heterogeneous date formats: absolute layouts
// tried in priority order, then the relative French phrases some boards use
// ("nouveau", "publié il y a 2 semaines"). Parse failures fall back to now
// rather than failing the item.

var absoluteLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"02.01.2006",
	"2006-01-02",
	"02/01/2006",
	"2 Jan 2006",
	"02 Jan 2006",
}

var relativePattern = regexp.MustCompile(`il y a\s+(\d+)\s+(jours?|semaines?|mois)`)

// ClosingDatePattern locates an inline "Closing date: 12 Mar 2025" mention
// inside a detail body.
var ClosingDatePattern = regexp.MustCompile(`Closing date:\s*(\d{1,2}\s+\w+\s+\d{4})`)

// ParseDate normalizes an absolute or relative date representation into a
// single instant. Unparsable input yields now.
func ParseDate(raw string, now time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now
	}

	for _, layout := range absoluteLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}

	if t, ok := parseRelativeFrench(raw, now); ok {
		return t
	}

	return now
}

// parseRelativeFrench handles "nouveau" and "publié il y a N jours/semaines/mois".
// A month is approximated as 30 days.
func parseRelativeFrench(raw string, now time.Time) (time.Time, bool) {
	lowered := strings.ToLower(raw)

	if strings.Contains(lowered, "nouveau") {
		return now, true
	}

	m := relativePattern.FindStringSubmatch(lowered)
	if m == nil {
		return time.Time{}, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false
	}

	switch {
	case strings.HasPrefix(m[2], "jour"):
		return now.AddDate(0, 0, -n), true
	case strings.HasPrefix(m[2], "semaine"):
		return now.AddDate(0, 0, -7*n), true
	case strings.HasPrefix(m[2], "mois"):
		return now.AddDate(0, 0, -30*n), true
	}
	return time.Time{}, false
}

// ParseClosingDate parses a "12 Mar 2025" style closing date.
func ParseClosingDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{"2 Jan 2006", "02 Jan 2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DefaultClosing derives the expiry used when a board publishes one of the
// two dates but not the other.
func DefaultClosing(published time.Time) time.Time {
	return published.AddDate(0, 0, 30)
}
