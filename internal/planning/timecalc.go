package planning

import "time"

// ComputeFireAt returns the absolute UTC instant of a query.
//
// base and tod form a wall-clock timestamp in loc, which is converted to UTC
// first; delayHours is then added as an absolute duration, so a delay that
// spans a DST change still lands exactly delayHours after the base instant.
// A nil loc means UTC, where the result is the naive timestamp plus the delay.
// Wall-clock times that fall in a DST gap are normalized by time.Date.
func ComputeFireAt(base Date, tod TimeOfDay, delayHours int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := time.Date(base.Year, base.Month, base.Day, tod.Hour, tod.Minute, tod.Second, 0, loc)
	return local.UTC().Add(time.Duration(delayHours) * time.Hour)
}
