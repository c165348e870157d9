package profiles

import (
	"errors"
	"strings"
	"time"

	dps "github.com/markusmobius/go-dateparser"
)

var errUnparseableDate = errors.New("unparseable date")

var dateConfig = &dps.Configuration{
	Languages:           []string{"en"},
	DefaultTimezone:     time.UTC,
	PreferredDayOfMonth: dps.First,
}

var isoLayouts = []string{time.RFC3339Nano, "2006-01-02", "2006-01"}

// ParseDate accepts the ISO forms a date picker sends as well as free text
// such as "June 2019". Results are UTC.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errUnparseableDate
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}

	parsed, err := dps.Parse(dateConfig, value)
	if err != nil || parsed.Time.IsZero() {
		return time.Time{}, errUnparseableDate
	}
	return parsed.Time.UTC(), nil
}
