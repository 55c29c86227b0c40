// Package recurrence parses a restricted RFC-5545 RRULE subset and
// answers whether a rule produces an occurrence on a single calendar day.
//
// Supported: FREQ=DAILY|WEEKLY|MONTHLY, BYDAY (weekly), BYMONTHDAY
// (monthly). The matcher is timezone-agnostic: callers pass a date
// already bucketed in the relevant zone.
package recurrence

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"questlog/pkg/civil"
)

type Freq int

const (
	Daily Freq = iota
	Weekly
	Monthly
)

var freqFromName = map[string]Freq{
	"DAILY":   Daily,
	"WEEKLY":  Weekly,
	"MONTHLY": Monthly,
}

var dayFromAbbrev = map[string]time.Weekday{
	"SU": time.Sunday,
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
}

type Rule struct {
	Freq       Freq
	ByDay      []time.Weekday // WEEKLY: which weekdays
	ByMonthDay int            // MONTHLY: day of month
}

// Parse parses a rule string like "FREQ=WEEKLY;BYDAY=MO,WE,FR".
func Parse(rule string) (Rule, error) {
	if rule == "" {
		return Rule{}, fmt.Errorf("empty rule")
	}

	var r Rule
	var hasFreq bool

	for _, part := range strings.Split(rule, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return Rule{}, fmt.Errorf("invalid rule part: %q", part)
		}
		key, val := kv[0], kv[1]

		switch key {
		case "FREQ":
			f, ok := freqFromName[val]
			if !ok {
				return Rule{}, fmt.Errorf("unknown frequency: %q", val)
			}
			r.Freq = f
			hasFreq = true

		case "BYDAY":
			for _, d := range strings.Split(val, ",") {
				wd, ok := dayFromAbbrev[strings.TrimSpace(d)]
				if !ok {
					return Rule{}, fmt.Errorf("unknown day: %q", d)
				}
				r.ByDay = append(r.ByDay, wd)
			}

		case "BYMONTHDAY":
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 || n > 31 {
				return Rule{}, fmt.Errorf("invalid BYMONTHDAY: %q", val)
			}
			r.ByMonthDay = n

		default:
			return Rule{}, fmt.Errorf("unsupported rule key: %q", key)
		}
	}

	if !hasFreq {
		return Rule{}, fmt.Errorf("FREQ is required")
	}
	if r.Freq == Weekly && len(r.ByDay) == 0 {
		return Rule{}, fmt.Errorf("FREQ=WEEKLY requires BYDAY")
	}
	if r.Freq == Monthly && r.ByMonthDay == 0 {
		return Rule{}, fmt.Errorf("FREQ=MONTHLY requires BYMONTHDAY")
	}
	if r.Freq != Weekly && len(r.ByDay) > 0 {
		return Rule{}, fmt.Errorf("BYDAY is only valid with FREQ=WEEKLY")
	}
	if r.Freq != Monthly && r.ByMonthDay != 0 {
		return Rule{}, fmt.Errorf("BYMONTHDAY is only valid with FREQ=MONTHLY")
	}

	return r, nil
}

// Validate reports whether rule is a well-formed expression. Templates
// are checked at creation time so the matcher never sees garbage under
// normal operation.
func Validate(rule string) bool {
	_, err := Parse(rule)
	return err == nil
}

// Matches reports whether the rule produces an occurrence on date.
func (r Rule) Matches(date civil.Date) bool {
	switch r.Freq {
	case Daily:
		return true
	case Weekly:
		wd := date.Weekday()
		for _, d := range r.ByDay {
			if d == wd {
				return true
			}
		}
		return false
	case Monthly:
		return date.Day() == r.ByMonthDay
	}
	return false
}
