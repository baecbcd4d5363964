package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a [Driver].
type State int32

const (
	// StateIdle means the driver is waiting for its next activation.
	StateIdle State = iota
	// StateTriggered means a cycle is running.
	StateTriggered
	// StateStopped is terminal.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTriggered:
		return "triggered"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ErrAlreadyRunning is returned by a second call to [Driver.Run].
var ErrAlreadyRunning = errors.New("driver already running")

// CycleFunc runs one full cycle. Its context is not cancelled when the
// driver stops, so an in-flight cycle always completes.
type CycleFunc func(ctx context.Context)

// Driver fires cycles according to a [Trigger] on a single goroutine, so
// two cycles never overlap.
//
// The lifecycle is Idle -> Triggered -> Idle, repeating, until Stop is
// called, the context passed to Run is cancelled, or a one-shot trigger has
// fired. Stopping never interrupts a running cycle.
type Driver struct {
	trigger Trigger
	cycle   CycleFunc
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	state    State
	running  bool
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewDriver creates a [Driver]. The driver does nothing until [Driver.Run].
func NewDriver(trigger Trigger, cycle CycleFunc, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		trigger: trigger,
		cycle:   cycle,
		logger:  logger,
		now:     time.Now,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Driver) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// Done is closed once Run has returned.
func (d *Driver) Done() <-chan struct{} {
	return d.done
}

// Stop asks the driver to schedule no further cycles. It does not wait;
// use [Driver.Done] to wait for an in-flight cycle to finish. Stop is
// idempotent and safe to call before Run or from within a cycle.
func (d *Driver) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
}

func (d *Driver) stopped() bool {
	select {
	case <-d.stopCh:
		return true
	default:
		return false
	}
}

// Run blocks, firing cycles until the driver is stopped, ctx is cancelled
// or a one-shot trigger has fired. It returns an error only if the trigger
// cannot be scheduled at all.
func (d *Driver) Run(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return ErrAlreadyRunning
	}
	d.running = true
	d.mu.Unlock()

	defer close(d.done)
	defer d.setState(StateStopped)

	next, err := d.trigger.First(d.now())
	if err != nil {
		return err
	}
	d.logger.Info("schedule started", "schedule", d.trigger.String(), "first_run", next.Format(time.RFC3339))

	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("schedule stopped", "reason", "context cancelled")
			return nil
		case <-d.stopCh:
			d.logger.Info("schedule stopped", "reason", "stop requested")
			return nil
		case <-timer.C:
		}

		// a stop that raced with the timer wins
		if d.stopped() || ctx.Err() != nil {
			d.logger.Info("schedule stopped", "reason", "stop requested")
			return nil
		}

		d.setState(StateTriggered)
		d.runCycle(context.WithoutCancel(ctx))
		d.setState(StateIdle)

		var ok bool
		next, ok = d.trigger.Next(next, d.now())
		if !ok {
			d.logger.Info("schedule completed", "schedule", d.trigger.String())
			return nil
		}
		timer.Reset(time.Until(next))
	}
}

// runCycle calls the cycle with panic recovery so one bad cycle cannot
// take the driver down. The stack is logged with a correlation id.
func (d *Driver) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("cycle panicked",
				"correlation_id", uuid.NewString(),
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	d.cycle(ctx)
}
