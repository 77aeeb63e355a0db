// Package timefmt renders stored UTC instants in a viewer-supplied timezone.
package timefmt

import (
	"errors"
	"time"
)

const layout = "2006-01-02 15:04:05 MST"

var ErrUnknownTimezone = errors.New("unknown timezone")

// Format converts a UTC instant into a local-time string for the given IANA
// zone name. The same (instant, zone) pair always formats identically.
func Format(instant time.Time, zone string) (string, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return "", ErrUnknownTimezone
	}
	return instant.In(loc).Format(layout), nil
}

// FormatOrUTC is the lenient variant used on read paths: the zone comes from
// untrusted client data, so an unresolvable zone falls back to UTC instead
// of failing the request.
func FormatOrUTC(instant time.Time, zone string) string {
	formatted, err := Format(instant, zone)
	if err != nil {
		return instant.UTC().Format(layout)
	}
	return formatted
}
