package lock

import (
	"log"
	"sync"
	"time"
)

// State is the logical door-lock state.  It reflects the intended position —
// there is no physical feedback sensor, so an actuator failure is reported
// to the caller but the logical state still advances.
type State string

const (
	StateLocked         State = "locked"
	StateUnlocked       State = "unlocked"
	StateUnlockingTimer State = "unlocking_timer"
)

// Status is a point-in-time snapshot of the controller.  Remaining is the
// time until auto-relock and is zero unless State is StateUnlockingTimer.
type Status struct {
	State     State
	Remaining time.Duration
}

// Controller drives the door actuator through a three-state machine with a
// cancellable auto-relock timer.  All state mutation is serialized on one
// mutex across the polling loop's unlocks, the pending timer's relock, and
// external manual commands; the latest command always wins over a previously
// scheduled timer.
type Controller struct {
	mu       sync.Mutex
	actuator Actuator
	logger   *log.Logger

	state    State
	deadline time.Time
	timer    *time.Timer
	gen      uint64 // bumped on every command; stale timers check it
}

// NewController returns a controller in the Locked state.  The actuator is
// driven to the locked position so logical and physical state start aligned.
func NewController(act Actuator, logger *log.Logger) *Controller {
	c := &Controller{
		actuator: act,
		logger:   logger,
		state:    StateLocked,
	}
	if err := act.Lock(); err != nil {
		logger.Printf("lock: initial actuator lock failed: %v", err)
	}
	return c
}

// Unlock opens the door.  duration > 0 schedules an auto-relock that far in
// the future, replacing any pending timer; duration == 0 holds the door open
// until an explicit Lock (emergency override).  The actuator error, if any,
// is returned but the logical transition still happens.
func (c *Controller) Unlock(duration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelTimerLocked()

	err := c.actuator.Unlock(duration)
	if err != nil {
		c.logger.Printf("lock: actuator unlock failed: %v", err)
	}

	if duration > 0 {
		c.state = StateUnlockingTimer
		c.deadline = time.Now().Add(duration)
		gen := c.gen
		c.timer = time.AfterFunc(duration, func() { c.autoRelock(gen) })
		c.logger.Printf("lock: unlocked, auto-relock in %s", duration)
	} else {
		c.state = StateUnlocked
		c.deadline = time.Time{}
		c.logger.Printf("lock: unlocked until further notice")
	}
	return err
}

// Lock closes the door and cancels any pending auto-relock.  Idempotent:
// locking an already-locked door does not touch the actuator again.
func (c *Controller) Lock() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelTimerLocked()

	if c.state == StateLocked {
		return nil
	}

	err := c.actuator.Lock()
	if err != nil {
		c.logger.Printf("lock: actuator lock failed: %v", err)
	}
	c.state = StateLocked
	c.deadline = time.Time{}
	c.logger.Printf("lock: locked")
	return err
}

// IsLocked reports whether the logical state is Locked.
func (c *Controller) IsLocked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateLocked
}

// Snapshot returns the current status.
func (c *Controller) Snapshot() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{State: c.state}
	if c.state == StateUnlockingTimer {
		if rem := time.Until(c.deadline); rem > 0 {
			st.Remaining = rem
		}
	}
	return st
}

// Close forces the door to Locked on shutdown, cancelling any pending
// timer.  The actuator is always driven, even if the logical state is
// already Locked, so the hardware never ends up ambiguous.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelTimerLocked()

	err := c.actuator.Lock()
	if err != nil {
		c.logger.Printf("lock: actuator lock on shutdown failed: %v", err)
	}
	c.state = StateLocked
	c.deadline = time.Time{}
	return err
}

// autoRelock is the deferred relock scheduled by Unlock.  A generation
// mismatch means a newer command superseded this timer between its firing
// and acquiring the mutex; it must do nothing.
func (c *Controller) autoRelock(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.state != StateUnlockingTimer {
		return
	}

	if err := c.actuator.Lock(); err != nil {
		c.logger.Printf("lock: actuator auto-relock failed: %v", err)
	}
	c.state = StateLocked
	c.deadline = time.Time{}
	c.timer = nil
	c.logger.Printf("lock: auto-relocked")
}

// cancelTimerLocked stops any pending timer and bumps the generation so an
// already-fired timer waiting on the mutex becomes a no-op.  Caller holds mu.
func (c *Controller) cancelTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
}
