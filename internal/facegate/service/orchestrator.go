package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/facegate/server/internal/facegate/alert"
	"github.com/facegate/server/internal/facegate/lock"
	"github.com/facegate/server/internal/facegate/policy"
	"github.com/facegate/server/internal/facegate/risk"
	"github.com/facegate/server/internal/facegate/store"
	"github.com/facegate/server/internal/facegate/types"
	"github.com/facegate/server/internal/metrics"
)

// historyWindow bounds how much history feeds risk scoring.
const historyWindow = 100

// Config is the orchestrator's runtime tuning.
type Config struct {
	// UnlockDuration is how long a granted unlock holds the door open.
	UnlockDuration time.Duration

	// AnomalyThreshold is the risk score above which an event raises a
	// suspicious_activity alert.
	AnomalyThreshold float64

	// FailureThreshold is how many consecutive no-frame cycles trigger a
	// system_error alert.
	FailureThreshold int

	// PollInterval is the pacing of the identification loop.
	PollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.UnlockDuration <= 0 {
		c.UnlockDuration = 5 * time.Second
	}
	if c.AnomalyThreshold <= 0 {
		c.AnomalyThreshold = risk.DefaultAnomalyThreshold
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	return c
}

// Dependencies wires the orchestrator's collaborators.
type Dependencies struct {
	Logger  *log.Logger
	Source  IdentitySource
	Users   store.UserStore
	Logs    store.AccessLogStore
	Policy  *policy.Engine
	Risk    *risk.Assessor
	Lock    *lock.Controller
	Alerts  *alert.Dispatcher
	Metrics *metrics.Metrics
	Config  Config

	// Now supplies the clock; nil means time.Now.  The wall-clock location
	// matters: role time windows follow local time, so the clock must not
	// be normalized to UTC.
	Now func() time.Time
}

// Orchestrator sequences the decision pipeline per identification event:
// policy, risk, audit, actuation, alerting.  Events are processed
// sequentially by a single polling loop; manual override commands may arrive
// concurrently and serialize inside the lock controller.
type Orchestrator struct {
	logger  *log.Logger
	source  IdentitySource
	users   store.UserStore
	logs    store.AccessLogStore
	policy  *policy.Engine
	risk    *risk.Assessor
	lock    *lock.Controller
	alerts  *alert.Dispatcher
	metrics *metrics.Metrics
	cfg     Config
	now     func() time.Time

	failures int // consecutive no-frame cycles; loop-goroutine only
}

func NewOrchestrator(d Dependencies) *Orchestrator {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Orchestrator{
		logger:  d.Logger,
		source:  d.Source,
		users:   d.Users,
		logs:    d.Logs,
		policy:  d.Policy,
		risk:    d.Risk,
		lock:    d.Lock,
		alerts:  d.Alerts,
		metrics: d.Metrics,
		cfg:     d.Config.withDefaults(),
		now:     d.Now,
	}
}

// Run drives the polling loop until ctx is cancelled, then forces the door
// locked so shutdown never leaves the actuator ambiguous.  Per-event errors
// are logged and the loop continues; only cancellation ends it.
func (o *Orchestrator) Run(ctx context.Context) {
	o.logger.Printf("orchestrator: polling every %s", o.cfg.PollInterval)

	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := o.lock.Close(); err != nil {
				o.logger.Printf("orchestrator: lock close on shutdown: %v", err)
			}
			o.logger.Printf("orchestrator: stopped")
			return
		case <-ticker.C:
			o.cycle(ctx)
		}
	}
}

func (o *Orchestrator) cycle(ctx context.Context) {
	events, err := o.source.Poll(ctx)
	if err != nil {
		o.noteCaptureFailure(ctx, err)
		return
	}
	o.failures = 0

	for _, ev := range events {
		if err := o.HandleEvent(ctx, ev); err != nil {
			o.logger.Printf("orchestrator: event handling: %v", err)
		}
	}
}

// noteCaptureFailure counts a transient capture failure and escalates to a
// critical system_error alert once the consecutive-failure threshold is hit,
// then resets the counter.  The loop itself keeps going.
func (o *Orchestrator) noteCaptureFailure(ctx context.Context, err error) {
	o.failures++
	o.metrics.CaptureFailures.Inc()
	o.logger.Printf("orchestrator: capture failure (%d/%d): %v",
		o.failures, o.cfg.FailureThreshold, err)

	if o.failures >= o.cfg.FailureThreshold {
		o.alerts.Dispatch(ctx, types.NewAlert(
			types.AlertSystemError,
			types.SeverityCritical,
			"Camera failure - unable to capture frames",
		))
		o.failures = 0
	}
}

// HandleEvent runs one identification event through the full pipeline.
// Timestamps keep their wall-clock location end to end — role time windows
// are local-time rules — and are only normalized to UTC at the store
// boundary.
func (o *Orchestrator) HandleEvent(ctx context.Context, ev types.IdentificationEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = o.now()
	}

	if ev.UserID == nil {
		o.handleUnknownFace(ctx, ev)
		return nil
	}

	user, err := o.users.GetUser(ctx, *ev.UserID)
	if err != nil {
		return fmt.Errorf("get user %d: %w", *ev.UserID, err)
	}
	if user == nil {
		// Matched an identity the store no longer knows; treat as unknown.
		o.handleUnknownFace(ctx, ev)
		return nil
	}

	decision := o.policy.Evaluate(*user, ev.Confidence, ev.Timestamp)

	history, err := o.logs.HistoryForUser(ctx, user.ID, historyWindow)
	if err != nil {
		o.logger.Printf("orchestrator: history for user %d: %v", user.ID, err)
		history = nil
	}
	score := o.risk.Assess(*user, history, risk.Context{
		Confidence: ev.Confidence,
		Now:        ev.Timestamp,
	})
	anomalous := o.risk.Anomalous(score, o.cfg.AnomalyThreshold)

	o.recordAttempt(ctx, store.AccessLogRecord{
		UserID:          &user.ID,
		Timestamp:       ev.Timestamp,
		Success:         decision.Granted,
		Method:          store.MethodFace,
		Confidence:      &ev.Confidence,
		RiskScore:       &score,
		AnomalyDetected: anomalous,
		Reason:          string(decision.Reason),
	})
	o.metrics.RecordDecision(decision.Granted, string(decision.Reason))
	o.metrics.RecordRisk(score, anomalous)

	if decision.Granted {
		o.logger.Printf("access GRANTED for %s (confidence %.2f)", user.Name, ev.Confidence)

		if err := o.lock.Unlock(o.cfg.UnlockDuration); err != nil {
			o.logger.Printf("orchestrator: unlock: %v", err)
		}
		o.metrics.LockTransitions.WithLabelValues("unlock").Inc()

		if err := o.users.TouchLastAccess(ctx, user.ID, ev.Timestamp); err != nil {
			o.logger.Printf("orchestrator: touch last access: %v", err)
		}

		a := types.NewAlert(types.AlertAccessGranted, types.SeverityInfo,
			fmt.Sprintf("Access granted to %s", user.Name))
		a.UserName = user.Name
		a.Confidence = &ev.Confidence
		o.alerts.Dispatch(ctx, a)
	} else {
		o.logger.Printf("access DENIED for %s: %s", user.Name, decision.Reason.Message())

		a := types.NewAlert(types.AlertAccessDenied, types.SeverityWarning,
			fmt.Sprintf("Access denied to %s: %s", user.Name, decision.Reason.Message()))
		a.UserName = user.Name
		a.Reason = string(decision.Reason)
		o.alerts.Dispatch(ctx, a)
	}

	// Suspicious activity fires on score alone, granted or not.
	if anomalous {
		a := types.NewAlert(types.AlertSuspiciousActivity, types.SeverityCritical,
			fmt.Sprintf("High risk score (%.2f) detected for %s", score, user.Name))
		a.UserName = user.Name
		a.RiskScore = &score
		o.alerts.Dispatch(ctx, a)
	}

	return nil
}

// handleUnknownFace records and alerts an event with no bound identity.  It
// never grants, and risk assessment is skipped — there is no history to
// score against.
func (o *Orchestrator) handleUnknownFace(ctx context.Context, ev types.IdentificationEvent) {
	o.logger.Printf("unknown face detected (confidence %.2f)", ev.Confidence)

	o.recordAttempt(ctx, store.AccessLogRecord{
		Timestamp:  ev.Timestamp,
		Success:    false,
		Method:     store.MethodFace,
		Confidence: &ev.Confidence,
		Reason:     string(types.ReasonUnknownIdentity),
	})
	o.metrics.RecordDecision(false, string(types.ReasonUnknownIdentity))

	o.alerts.Dispatch(ctx, types.NewAlert(
		types.AlertUnknownFace,
		types.SeverityWarning,
		"Unknown face detected at door",
	))
}

// recordAttempt persists an audit record.  A failed audit write is logged
// but does not block the decision path — availability of the door wins over
// audit completeness.
func (o *Orchestrator) recordAttempt(ctx context.Context, rec store.AccessLogRecord) {
	if err := o.logs.Append(ctx, rec); err != nil {
		o.logger.Printf("orchestrator: audit append: %v", err)
	}
}
