package lock

import (
	"log"
	"sync"
	"time"
)

// Actuator is the physical lock driver contract.  Implementations toggle
// the strike hardware; they do not own timers or policy.  Must be safe to
// call from the controller's critical section.
//
// The real GPIO driver lives outside this module; SimulatedActuator stands
// in for dev and tests.  The capability is injected at construction — there
// is deliberately no global hardware-presence switch.
type Actuator interface {
	Unlock(duration time.Duration) error
	Lock() error
	IsLocked() bool
}

// SimulatedActuator is a no-hardware Actuator that just tracks the requested
// position and logs transitions.
type SimulatedActuator struct {
	mu     sync.Mutex
	locked bool
	logger *log.Logger
}

func NewSimulatedActuator(logger *log.Logger) *SimulatedActuator {
	return &SimulatedActuator{locked: true, logger: logger}
}

func (a *SimulatedActuator) Unlock(duration time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.locked = false
	if duration > 0 {
		a.logger.Printf("sim actuator: unlock for %s", duration)
	} else {
		a.logger.Printf("sim actuator: unlock (held open)")
	}
	return nil
}

func (a *SimulatedActuator) Lock() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.locked = true
	a.logger.Printf("sim actuator: lock")
	return nil
}

func (a *SimulatedActuator) IsLocked() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.locked
}
