// Package dates converts between the local display format used by the bulk
// edit form and the zone-aware timestamps the Canvas API expects.
package dates

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// DefaultLayout matches the form's "MM/DD/YYYY hh:mm AM/PM" display format.
const DefaultLayout = "01/02/2006 03:04 PM"

// lenientLayouts are tried after the configured layout. They accept
// unpadded month, day, hour and minute; input is upper-cased first so a
// lowercase am/pm marker parses too.
var lenientLayouts = []string{"1/2/2006 3:4 PM"}

type Normalizer struct {
	loc    *time.Location
	layout string
}

// NewNormalizer loads the named IANA zone. layout is a Go time layout; an
// empty layout selects DefaultLayout.
func NewNormalizer(zone, layout string) (*Normalizer, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", zone, err)
	}
	if layout == "" {
		layout = DefaultLayout
	}
	return &Normalizer{loc: loc, layout: layout}, nil
}

// Normalize interprets raw as a wall-clock time in the configured zone and
// returns it as RFC 3339 with the zone's UTC offset.
//
// Any value that does not parse, including the empty string, yields "".
// Callers treat "" as "no date" rather than as an error; date fields on the
// form are optional and a bad value must not abort a bulk edit.
func (n *Normalizer) Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if t, err := time.ParseInLocation(n.layout, raw, n.loc); err == nil {
		return t.Format(time.RFC3339)
	}
	upper := strings.ToUpper(raw)
	for _, layout := range lenientLayouts {
		if t, err := time.ParseInLocation(layout, upper, n.loc); err == nil {
			return t.Format(time.RFC3339)
		}
	}
	return ""
}

// Localize projects t into the configured zone using the display layout.
// A nil time renders as "".
func (n *Normalizer) Localize(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.In(n.loc).Format(n.layout)
}

// Location returns the configured zone.
func (n *Normalizer) Location() *time.Location {
	return n.loc
}
