// Package cron matches the small subset of crontab syntax the
// scheduler needs against a wall-clock minute, and invokes the HTTP
// endpoint bound to a pattern when it fires.
package cron

import (
	"strconv"
	"strings"
	"time"
)

// Matches reports whether pattern fires at t, truncated to the
// minute. Supported forms:
//
//	"* * * * *"     every minute
//	"*/N * * * *"   every N minutes, on minute-of-hour multiples of N
//	"M * * * *"     exact minute-of-hour M, every hour
//
// Anything else -- an hour/day/month/weekday field other than "*", a
// malformed step, a field count other than 5 -- never fires. This
// engine's schedules only ever need minute-granularity control; a
// fuller crontab grammar would be unused surface.
func Matches(pattern string, t time.Time) bool {
	fields := strings.Fields(pattern)
	if len(fields) != 5 {
		return false
	}
	minuteField := fields[0]
	for _, f := range fields[1:] {
		if f != "*" {
			return false
		}
	}

	minute := t.Minute()

	if minuteField == "*" {
		return true
	}

	if strings.HasPrefix(minuteField, "*/") {
		step, err := strconv.Atoi(minuteField[2:])
		if err != nil || step <= 0 {
			return false
		}
		return minute%step == 0
	}

	exact, err := strconv.Atoi(minuteField)
	if err != nil || exact < 0 || exact > 59 {
		return false
	}
	return minute == exact
}
