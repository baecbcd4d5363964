package poller

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jpalmerr/uptrends/internal/registry"
)

// Kind is the type of schedule driving the poller.
type Kind string

const (
	// KindCron fires at instants matching a cron expression.
	KindCron Kind = "cron"
	// KindEvery fires repeatedly at a fixed interval, starting immediately.
	KindEvery Kind = "every"
	// KindAt fires once at an absolute time.
	KindAt Kind = "at"
	// KindIn fires once after a delay.
	KindIn Kind = "in"
)

// Kinds lists the recognized schedule keys.
var Kinds = []Kind{KindCron, KindEvery, KindAt, KindIn}

// firstEveryDelay is how long a fixed interval schedule waits before its
// first cycle.
const firstEveryDelay = 10 * time.Millisecond

// ErrScheduleInPast is returned when an "at" schedule has already passed.
var ErrScheduleInPast = errors.New("schedule time is in the past")

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Trigger computes activation times for one schedule.
type Trigger struct {
	kind     Kind
	value    string
	cron     cron.Schedule
	interval time.Duration
	at       time.Time
}

// Kind returns the schedule kind.
func (t Trigger) Kind() Kind { return t.kind }

// Value returns the raw schedule value.
func (t Trigger) Value() string { return t.value }

// String renders the trigger like its configuration, e.g. "every 1h".
func (t Trigger) String() string { return string(t.kind) + " " + t.value }

// Recurring reports whether the trigger fires more than once.
func (t Trigger) Recurring() bool {
	return t.kind == KindCron || t.kind == KindEvery
}

// TriggerFromMap parses a schedule mapping that must contain exactly one of
// the keys in [Kinds].
func TriggerFromMap(m map[string]string) (Trigger, error) {
	if len(m) != 1 {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return Trigger{}, fmt.Errorf("%w: schedule must contain exactly one of cron, every, at or in (got %v)",
			registry.ErrInvalidConfig, keys)
	}
	var kind, value string
	for k, v := range m {
		kind, value = k, v
	}
	return ParseTrigger(Kind(kind), value)
}

// ParseTrigger validates a schedule value for the given kind.
func ParseTrigger(kind Kind, value string) (Trigger, error) {
	value = strings.TrimSpace(value)
	t := Trigger{kind: kind, value: value}

	switch kind {
	case KindCron:
		sched, err := cronParser.Parse(cronWithZone(value))
		if err != nil {
			return Trigger{}, fmt.Errorf("%w: schedule cron %q: %s", registry.ErrInvalidConfig, value, err)
		}
		t.cron = sched
	case KindEvery, KindIn:
		d, err := ParseDuration(value)
		if err != nil {
			return Trigger{}, fmt.Errorf("%w: schedule %s %q: %s", registry.ErrInvalidConfig, kind, value, err)
		}
		if d <= 0 {
			return Trigger{}, fmt.Errorf("%w: schedule %s must be positive, got %q", registry.ErrInvalidConfig, kind, value)
		}
		t.interval = d
	case KindAt:
		at, err := parseTime(value)
		if err != nil {
			return Trigger{}, fmt.Errorf("%w: schedule at %q: %s", registry.ErrInvalidConfig, value, err)
		}
		t.at = at
	default:
		return Trigger{}, fmt.Errorf("%w: unknown schedule type %q (expected cron, every, at or in)", registry.ErrInvalidConfig, kind)
	}
	return t, nil
}

// First returns the first activation time for a driver started at now.
func (t Trigger) First(now time.Time) (time.Time, error) {
	switch t.kind {
	case KindCron:
		return t.cron.Next(now), nil
	case KindEvery:
		return now.Add(firstEveryDelay), nil
	case KindIn:
		return now.Add(t.interval), nil
	case KindAt:
		if t.at.Before(now) {
			return time.Time{}, fmt.Errorf("%w: %s", ErrScheduleInPast, t.at.Format(time.RFC3339))
		}
		return t.at, nil
	default:
		return time.Time{}, fmt.Errorf("unknown schedule type %q", t.kind)
	}
}

// Next returns the activation after prev, given that the previous cycle
// finished at now. Activations missed while a cycle was running collapse
// into a single activation at now. ok is false for one-shot triggers.
func (t Trigger) Next(prev, now time.Time) (next time.Time, ok bool) {
	switch t.kind {
	case KindCron:
		next = t.cron.Next(prev)
	case KindEvery:
		next = prev.Add(t.interval)
	default:
		return time.Time{}, false
	}
	if next.Before(now) {
		next = now
	}
	return next, true
}

// cronWithZone turns a trailing IANA zone ("0 * * * * UTC") into the
// CRON_TZ prefix understood by the parser.
func cronWithZone(expr string) string {
	if strings.HasPrefix(expr, "CRON_TZ=") || strings.HasPrefix(expr, "TZ=") || strings.HasPrefix(expr, "@") {
		return expr
	}
	fields := strings.Fields(expr)
	if len(fields) < 6 {
		return expr
	}
	last := fields[len(fields)-1]
	if !strings.ContainsAny(last, "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz") {
		return expr
	}
	if _, err := time.LoadLocation(last); err != nil {
		return expr
	}
	return "CRON_TZ=" + last + " " + strings.Join(fields[:len(fields)-1], " ")
}

var bareNumber = regexp.MustCompile(`\A\d+(\.\d+)?\z`)

var durationPart = regexp.MustCompile(`(\d+(?:\.\d+)?)(ns|us|µs|ms|s|m|h|d|w)`)

// ParseDuration accepts Go durations plus day ("d") and week ("w") units,
// e.g. "1d12h" or "2w". A bare number is taken as seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty duration")
	}
	if bareNumber.MatchString(s) {
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(n * float64(time.Second)), nil
	}

	matches := durationPart.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}

	var total time.Duration
	pos := 0
	for _, m := range matches {
		if m[0] != pos {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		pos = m[1]

		num, unit := s[m[2]:m[3]], s[m[4]:m[5]]
		switch unit {
		case "d", "w":
			n, err := strconv.ParseFloat(num, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid duration %q", s)
			}
			day := 24 * time.Hour
			if unit == "w" {
				day *= 7
			}
			total += time.Duration(n * float64(day))
		default:
			d, err := time.ParseDuration(num + unit)
			if err != nil {
				return 0, fmt.Errorf("invalid duration %q: %w", s, err)
			}
			total += d
		}
	}
	if pos != len(s) {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return total, nil
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// parseTime accepts RFC3339 or a "2006-01-02 15:04:05" local time.
func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("expected RFC3339 or \"2006-01-02 15:04:05\"")
}
