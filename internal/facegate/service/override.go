package service

import (
	"context"
	"fmt"
	"time"

	"github.com/facegate/server/internal/facegate/lock"
	"github.com/facegate/server/internal/facegate/store"
)

// Manual override commands arrive from an external control surface and may
// race the polling loop; the lock controller serializes them.  Every
// override is audit-logged with method "manual".

// ManualUnlock opens the door on an operator's say-so.  duration 0 is the
// emergency override: the door stays open until ManualLock.
func (o *Orchestrator) ManualUnlock(ctx context.Context, duration time.Duration, operator string) error {
	o.logger.Printf("manual unlock requested by %s", operator)

	err := o.lock.Unlock(duration)
	o.metrics.LockTransitions.WithLabelValues("manual_unlock").Inc()

	o.recordAttempt(ctx, store.AccessLogRecord{
		Timestamp: o.now(),
		Success:   true,
		Method:    store.MethodManual,
		Reason:    fmt.Sprintf("manual_unlock by %s", operator),
	})
	return err
}

// ManualLock closes the door, cancelling any pending auto-relock.
func (o *Orchestrator) ManualLock(ctx context.Context, operator string) error {
	o.logger.Printf("manual lock requested by %s", operator)

	err := o.lock.Lock()
	o.metrics.LockTransitions.WithLabelValues("manual_lock").Inc()

	o.recordAttempt(ctx, store.AccessLogRecord{
		Timestamp: o.now(),
		Success:   true,
		Method:    store.MethodManual,
		Reason:    fmt.Sprintf("manual_lock by %s", operator),
	})
	return err
}

// Status is a point-in-time snapshot for operators.
type Status struct {
	Lock         lock.Status
	ActiveUsers  int64
	RecentAccess []store.AccessLogRecord
	Timestamp    time.Time
}

func (o *Orchestrator) Status(ctx context.Context) (Status, error) {
	st := Status{
		Lock:      o.lock.Snapshot(),
		Timestamp: o.now(),
	}

	n, err := o.users.CountActive(ctx)
	if err != nil {
		return st, fmt.Errorf("count active users: %w", err)
	}
	st.ActiveUsers = n

	recent, err := o.logs.Recent(ctx, 5)
	if err != nil {
		return st, fmt.Errorf("recent access: %w", err)
	}
	st.RecentAccess = recent

	return st, nil
}
