// Package solar computes the daylight window the Day Planner's Phase 2
// uses to distribute the solar forecast across blocks. When a site's
// coordinates are known, it asks github.com/sixdouglas/suncalc for the
// real sunrise/sunset of the horizon's date rather than relying on a
// hardcoded hour range; the Parameter Resolver's high/low-solar widening
// rules (spec §4.2) then adjust that astronomical baseline the same way
// they would adjust a configured one.
package solar

import (
	"time"

	"github.com/sixdouglas/suncalc"
)

// Window is an [StartHour, EndHour) daylight range, in local hours of the
// given date.
type Window struct {
	StartHour int
	EndHour   int
}

// WindowFor returns the daylight window for date at (lat, lng), derived
// from suncalc's sunrise/sunset. Hours are floored/ceiled outward so a
// sunrise at 6:40 widens the window to start at hour 6, matching the
// planner's block-granularity daylight test (block hour ∈ [start, end)).
func WindowFor(date time.Time, lat, lng float64) Window {
	times := suncalc.GetTimes(date, lat, lng)
	sunrise, hasSunrise := times["sunrise"]
	sunset, hasSunset := times["sunset"]

	if !hasSunrise || !hasSunset || sunrise.IsZero() || sunset.IsZero() {
		// polar day/night or a suncalc edge case: fall back to a
		// conservative default rather than propagating a zero window that
		// would make Phase 2 divide solar across zero blocks.
		return Window{StartHour: 6, EndHour: 19}
	}

	local := date.Location()
	start := sunrise.In(local).Hour()
	end := sunset.In(local).Hour() + 1
	if end <= start {
		end = start + 1
	}
	return Window{StartHour: start, EndHour: end}
}
