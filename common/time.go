package common

import (
	"errors"
	"regexp"
	"strconv"
	"time"
)

// Time handling for the replay session.  All record times are float64 seconds since the Unix epoch
// (that is the wire representation); CLI inputs are parsed into that form here.

// Parse a time specification and return float epoch seconds in UTC.  The format is one of:
//
//  YYYY-MM-DD           start of that day, UTC
//  Nd                   N days before `now`
//  Nw                   N weeks before `now`
//  RFC3339              an exact instant
//  <float>              raw epoch seconds
//
// Relative forms are against `now` so there can be no records later than the result.

func ParseWhen(now time.Time, s string) (float64, error) {
	now = now.UTC()
	if probe := daysRe.FindStringSubmatch(s); probe != nil {
		days, _ := strconv.ParseUint(probe[1], 10, 32)
		return float64(now.AddDate(0, 0, -int(days)).Unix()), nil
	}
	if probe := weeksRe.FindStringSubmatch(s); probe != nil {
		weeks, _ := strconv.ParseUint(probe[1], 10, 32)
		return float64(now.AddDate(0, 0, -int(weeks)*7).Unix()), nil
	}
	if probe := dateRe.FindStringSubmatch(s); probe != nil {
		yyyy, _ := strconv.ParseUint(probe[1], 10, 32)
		mm, _ := strconv.ParseUint(probe[2], 10, 32)
		dd, _ := strconv.ParseUint(probe[3], 10, 32)
		return float64(time.Date(int(yyyy), time.Month(mm), int(dd), 0, 0, 0, 0, time.UTC).Unix()), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return float64(t.Unix()), nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil && secs > 0 {
		return secs, nil
	}
	return 0, errors.New("Bad time specification")
}

var dateRe = regexp.MustCompile(`^(\d\d\d\d)-(\d\d)-(\d\d)$`)
var daysRe = regexp.MustCompile(`^(\d+)d$`)
var weeksRe = regexp.MustCompile(`^(\d+)w$`)

// Duration parsing.  The format is WwDdHhMm for weeks/days/hours/minutes, all parts are optional
// and the default value is zero.  We return seconds because that's what everyone wants.

var durationRe = regexp.MustCompile(`^(?:(\d+)w)?(?:(\d+)d)?(?:(\d+)h)?(?:(\d+)m)?$`)

func DurationToSeconds(option, s string) (int64, error) {
	if matches := durationRe.FindStringSubmatch(s); matches != nil {
		var weeks, days, hours, minutes int64
		var x1, x2, x3, x4 error
		if matches[1] != "" {
			weeks, x1 = strconv.ParseInt(matches[1], 10, 64)
		}
		if matches[2] != "" {
			days, x2 = strconv.ParseInt(matches[2], 10, 64)
		}
		if matches[3] != "" {
			hours, x3 = strconv.ParseInt(matches[3], 10, 64)
		}
		if matches[4] != "" {
			minutes, x4 = strconv.ParseInt(matches[4], 10, 64)
		}
		if x1 != nil || x2 != nil || x3 != nil || x4 != nil {
			return 0, errors.New("Bad duration specification for " + option)
		}
		return ((weeks*7+days)*24+hours)*60*60 + minutes*60, nil
	}
	return 0, errors.New("Bad duration specification for " + option)
}

func FormatEpoch(t float64) string {
	return time.Unix(int64(t), 0).UTC().Format("2006-01-02 15:04:05")
}
