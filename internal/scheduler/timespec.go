// Package scheduler provides time-spec parsing, trigger construction and a
// job store with a timer loop for deferred shade commands.
package scheduler

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// SolarTimes supplies sunrise/sunset anchors for a calendar date
type SolarTimes interface {
	SunriseSunset(ctx context.Context, date time.Time) (time.Time, time.Time, error)
}

var (
	clockPattern    = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	meridiemPattern = regexp.MustCompile(`^(\d{1,2})\s*([ap]m)$`)
	offsetPattern   = regexp.MustCompile(`^(.+?)\s*([+-])\s*(\d+)([hm])$`)
)

// TimeResolver parses time specifications into a concrete hour and minute.
// Solar anchors ("sunrise", "sunset") are resolved through the solar engine
// for the reference day; a nil engine falls back to 06:00/18:00. "now" and
// offset expressions resolve against the reference time.
type TimeResolver struct {
	solar SolarTimes
}

// NewTimeResolver creates a time resolver
func NewTimeResolver(solar SolarTimes) *TimeResolver {
	return &TimeResolver{solar: solar}
}

// ResolveTime parses a time spec relative to now. Unparseable specs fall
// back to now's own hour and minute; ok reports whether the spec itself was
// understood, so callers can observe the guess.
func (r *TimeResolver) ResolveTime(ctx context.Context, spec string, now time.Time) (hour, minute int, ok bool) {
	spec = strings.ToLower(strings.TrimSpace(spec))

	if spec == "" {
		return now.Hour(), now.Minute(), false
	}

	if h, m, ok := r.resolve(ctx, spec, now); ok {
		return h, m, true
	}

	log.Warn().Str("spec", spec).Msg("Unparseable time spec, falling back to current time")
	return now.Hour(), now.Minute(), false
}

func (r *TimeResolver) resolve(ctx context.Context, spec string, now time.Time) (int, int, bool) {
	// Clock time: "14:30", "9:00"
	if m := clockPattern.FindStringSubmatch(spec); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour > 23 || minute > 59 {
			return 0, 0, false
		}
		return hour, minute, true
	}

	// 12-hour time: "9pm", "2 am"
	if m := meridiemPattern.FindStringSubmatch(spec); m != nil {
		hour, _ := strconv.Atoi(m[1])
		if hour < 1 || hour > 12 {
			return 0, 0, false
		}
		if m[2] == "pm" && hour != 12 {
			hour += 12
		} else if m[2] == "am" && hour == 12 {
			hour = 0
		}
		return hour, 0, true
	}

	// Solar anchors
	if spec == "sunrise" || spec == "sunset" {
		h, m := r.solarTime(ctx, spec, now)
		return h, m, true
	}

	// Relative anchor: the reference time itself
	if spec == "now" {
		return now.Hour(), now.Minute(), true
	}

	// Offset expressions: "now+30m", "sunset+15m", "sunrise - 30m", "21:00+1h"
	if m := offsetPattern.FindStringSubmatch(spec); m != nil {
		baseHour, baseMin, ok := r.resolve(ctx, strings.TrimSpace(m[1]), now)
		if !ok {
			// An unresolvable base anchors at the reference time, so the
			// offset still lands relative to now instead of being dropped
			baseHour, baseMin = now.Hour(), now.Minute()
		}

		amount, _ := strconv.Atoi(m[3])
		offsetMinutes := amount
		if m[4] == "h" {
			offsetMinutes = amount * 60
		}
		if m[2] == "-" {
			offsetMinutes = -offsetMinutes
		}

		total := baseHour*60 + baseMin + offsetMinutes
		// Wrap modulo 24h; minute underflow wraps the hour
		total = ((total % 1440) + 1440) % 1440
		return total / 60, total % 60, true
	}

	return 0, 0, false
}

// solarTime resolves a sunrise/sunset anchor for the reference day.
// Solar failures degrade to conventional 06:00/18:00 defaults.
func (r *TimeResolver) solarTime(ctx context.Context, anchor string, now time.Time) (int, int) {
	if r.solar == nil {
		return solarDefault(anchor)
	}

	sunrise, sunset, err := r.solar.SunriseSunset(ctx, now)
	if err != nil {
		log.Warn().Err(err).Str("anchor", anchor).Msg("Solar time unavailable, using default")
		return solarDefault(anchor)
	}

	t := sunrise
	if anchor == "sunset" {
		t = sunset
	}
	if t.IsZero() {
		// Polar day/night: no event for this date
		log.Warn().Str("anchor", anchor).Msg("No solar event for date, using default")
		return solarDefault(anchor)
	}

	return t.Hour(), t.Minute()
}

func solarDefault(anchor string) (int, int) {
	if anchor == "sunrise" {
		return 6, 0
	}
	return 18, 0
}
