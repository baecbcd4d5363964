package uptrends

import (
	"fmt"
	"time"

	"github.com/jpalmerr/uptrends/internal/poller"
)

// Schedule decides when polling cycles run. Create one with [Cron],
// [Every], [At], [In] or [ParseSchedule].
type Schedule struct {
	trigger poller.Trigger
	err     error
}

// Kind returns "cron", "every", "at" or "in".
func (s Schedule) Kind() string { return string(s.trigger.Kind()) }

// String renders the schedule like its configuration, e.g. "every 1h".
func (s Schedule) String() string { return s.trigger.String() }

// Recurring reports whether the schedule fires more than once.
func (s Schedule) Recurring() bool { return s.trigger.Recurring() }

// Cron fires at every instant matching a cron expression. Five fields, six
// fields with leading seconds, and descriptors such as "@hourly" are
// accepted. A trailing IANA zone ("0 9 * * * Europe/Amsterdam") selects
// the zone the expression is evaluated in.
func Cron(expr string) Schedule {
	return schedule(poller.KindCron, expr)
}

// Every fires right after start and then at a fixed interval.
func Every(d time.Duration) Schedule {
	if d <= 0 {
		return Schedule{err: fmt.Errorf("%w: every interval must be positive, got %s", ErrInvalidConfig, d)}
	}
	return schedule(poller.KindEvery, d.String())
}

// At fires once at t. Running a poller whose time has passed fails.
func At(t time.Time) Schedule {
	return schedule(poller.KindAt, t.Format(time.RFC3339))
}

// In fires once, d after the poller starts.
func In(d time.Duration) Schedule {
	if d <= 0 {
		return Schedule{err: fmt.Errorf("%w: in delay must be positive, got %s", ErrInvalidConfig, d)}
	}
	return schedule(poller.KindIn, d.String())
}

// ParseSchedule parses a configuration mapping holding exactly one of the
// keys "cron", "every", "at" or "in". Durations accept Go syntax plus day
// ("d") and week ("w") units; "at" accepts RFC3339 or "2006-01-02 15:04:05".
//
// Returns an error wrapping [ErrInvalidConfig] for zero or several keys, an
// unknown key, or an invalid value.
func ParseSchedule(m map[string]string) (Schedule, error) {
	trig, err := poller.TriggerFromMap(m)
	if err != nil {
		return Schedule{}, err
	}
	return Schedule{trigger: trig}, nil
}

func schedule(kind poller.Kind, value string) Schedule {
	trig, err := poller.ParseTrigger(kind, value)
	if err != nil {
		return Schedule{err: err}
	}
	return Schedule{trigger: trig}
}

func (s Schedule) valid() error {
	if s.err != nil {
		return s.err
	}
	if s.trigger.Kind() == "" {
		return fmt.Errorf("%w: schedule is required", ErrInvalidConfig)
	}
	return nil
}
