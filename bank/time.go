package bank

import (
	"fmt"
	"time"
)

// =============================================================================
// DAY - Calendar day in the reference timezone
// =============================================================================

const dayLayout = "2006-01-02"

// Day is a calendar date ("2006-01-02") in the economy's reference timezone.
// Quotas reset and streaks are counted on Day boundaries.
type Day string

// ParseDay validates and returns a Day.
func ParseDay(s string) (Day, error) {
	if _, err := time.Parse(dayLayout, s); err != nil {
		return "", Invalidf("day %q: %v", s, err)
	}
	return Day(s), nil
}

// Time returns midnight of the day in UTC. Only used for day arithmetic.
func (d Day) Time() time.Time {
	t, _ := time.Parse(dayLayout, string(d))
	return t
}

func (d Day) AddDays(n int) Day { return Day(d.Time().AddDate(0, 0, n).Format(dayLayout)) }
func (d Day) Before(o Day) bool  { return d < o }
func (d Day) String() string     { return string(d) }

// =============================================================================
// CLOCK
// =============================================================================

// Clock supplies the current time. Tests replace it with a fixed clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns T. Set T to move time.
type FixedClock struct {
	T time.Time
}

func (c *FixedClock) Now() time.Time { return c.T }

// Advance moves the clock forward.
func (c *FixedClock) Advance(d time.Duration) { c.T = c.T.Add(d) }

// =============================================================================
// CALENDAR - Maps instants to reference-timezone days
// =============================================================================

// Calendar converts instants to Days in a fixed reference timezone so that
// "today" is the same for every member regardless of where they are.
type Calendar struct {
	Clock    Clock
	Location *time.Location
}

// NewCalendar loads the named IANA zone. An empty name means UTC.
func NewCalendar(clock Clock, zone string) (Calendar, error) {
	if clock == nil {
		clock = SystemClock{}
	}
	if zone == "" {
		return Calendar{Clock: clock, Location: time.UTC}, nil
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return Calendar{}, fmt.Errorf("load timezone %q: %w", zone, err)
	}
	return Calendar{Clock: clock, Location: loc}, nil
}

// Now returns the current instant.
func (c Calendar) Now() time.Time {
	if c.Clock == nil {
		return time.Now().UTC()
	}
	return c.Clock.Now()
}

// Today returns the current day in the reference timezone.
func (c Calendar) Today() Day {
	return c.DayOf(c.Now())
}

// DayOf returns the reference-timezone day containing t.
func (c Calendar) DayOf(t time.Time) Day {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return Day(t.In(loc).Format(dayLayout))
}
