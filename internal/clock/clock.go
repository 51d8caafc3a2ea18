// Package clock resolves "now" and "today" in the household's configured time zone.
//
// All calendar decisions (which hour window applies, which day a chore completion
// or scheduled action belongs to) are taken in that zone, never in UTC or in the
// host's local zone. The underlying time source is a clockwork.Clock so tests can
// supply fixed instants with clockwork.NewFakeClockAt.
package clock

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// DateLayout is the ISO calendar date format used in state files and API queries.
const DateLayout = "2006-01-02"

// Clock is a zone-aware time provider.
type Clock struct {
	source   clockwork.Clock
	location *time.Location
}

// New returns a Clock reading from source and reporting times in loc.
func New(source clockwork.Clock, loc *time.Location) *Clock {
	if source == nil {
		source = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{source: source, location: loc}
}

// NewInZone loads the named IANA zone and returns a real-time Clock for it.
func NewInZone(zone string) (*Clock, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", zone, err)
	}
	return New(clockwork.NewRealClock(), loc), nil
}

// Now returns the current instant in the configured zone.
func (c *Clock) Now() time.Time {
	return c.source.Now().In(c.location)
}

// Today returns the current calendar date in the configured zone.
func (c *Clock) Today() string {
	return DateOf(c.Now())
}

// Location returns the configured zone.
func (c *Clock) Location() *time.Location {
	return c.location
}

// Source exposes the underlying time source (used to drive gocron in daemon mode).
func (c *Clock) Source() clockwork.Clock {
	return c.source
}

// DateOf formats t as an ISO calendar date in t's own location.
func DateOf(t time.Time) string {
	return t.Format(DateLayout)
}
