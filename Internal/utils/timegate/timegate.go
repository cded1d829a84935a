package timegate

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock is a wall-clock time of day expressed in minutes after midnight.
type Clock int

func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock %q, want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return Clock(h*60 + m), nil
}

func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// On returns the instant of c on the calendar day of t, in t's location.
func (c Clock) On(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, int(c)/60, int(c)%60, 0, 0, t.Location())
}

// Window is a time-of-day range. Both ends are inclusive at minute resolution.
type Window struct {
	Start Clock
	End   Clock
}

func NewWindow(start, end string) (Window, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Window{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Window{}, err
	}
	if e < s {
		return Window{}, fmt.Errorf("window %s-%s ends before it starts", start, end)
	}
	return Window{Start: s, End: e}, nil
}

func (w Window) Contains(t time.Time) bool {
	c := ClockOf(t)
	return c >= w.Start && c <= w.End
}

func (w Window) String() string {
	return w.Start.String() + "-" + w.End.String()
}

// Profile describes the trading windows of one market in the operator's time zone.
// Gaps between windows are blackout periods.
type Profile struct {
	Name     string
	Location *time.Location
	Windows  []Window
}

func NewProfile(name string, loc *time.Location, windows ...Window) (Profile, error) {
	if loc == nil {
		loc = time.UTC
	}
	if len(windows) == 0 {
		return Profile{}, fmt.Errorf("market %s: at least one session window required", name)
	}
	for i := 1; i < len(windows); i++ {
		if windows[i].Start <= windows[i-1].End {
			return Profile{}, fmt.Errorf("market %s: window %s overlaps or precedes %s",
				name, windows[i], windows[i-1])
		}
	}
	return Profile{Name: name, Location: loc, Windows: windows}, nil
}

// InSession reports whether now falls inside one of the profile's windows.
func InSession(p Profile, now time.Time) bool {
	if p.Location != nil {
		now = now.In(p.Location)
	}
	for _, w := range p.Windows {
		if w.Contains(now) {
			return true
		}
	}
	return false
}

// InSession is the method form of the package function.
func (p Profile) InSession(now time.Time) bool {
	return InSession(p, now)
}
