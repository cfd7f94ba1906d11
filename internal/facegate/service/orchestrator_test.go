package service_test

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/facegate/server/internal/facegate/alert"
	"github.com/facegate/server/internal/facegate/lock"
	"github.com/facegate/server/internal/facegate/policy"
	"github.com/facegate/server/internal/facegate/risk"
	"github.com/facegate/server/internal/facegate/service"
	"github.com/facegate/server/internal/facegate/store"
	"github.com/facegate/server/internal/facegate/store/memory"
	"github.com/facegate/server/internal/facegate/types"
	"github.com/facegate/server/internal/metrics"
)

func silentLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

type fixture struct {
	orch   *service.Orchestrator
	logs   *memory.AccessLogStore
	alerts *memory.AlertStore
	lock   *lock.Controller
}

// newFixture builds an orchestrator on memory stores and a simulated
// actuator, returning the pieces tests inspect.
func newFixture(t *testing.T, src service.IdentitySource, cfg service.Config, users ...types.User) *fixture {
	return newFixtureClock(t, src, cfg, nil, users...)
}

// newFixtureClock is newFixture with a pinned clock for tests that exercise
// the zero-timestamp stamping path.
func newFixtureClock(t *testing.T, src service.IdentitySource, cfg service.Config, now func() time.Time, users ...types.User) *fixture {
	t.Helper()

	logger := silentLogger()
	logs := memory.NewAccessLogStore()
	alertSink := memory.NewAlertStore()
	m := metrics.New(prometheus.NewRegistry())
	lc := lock.NewController(lock.NewSimulatedActuator(logger), logger)
	t.Cleanup(func() { _ = lc.Close() })

	orch := service.NewOrchestrator(service.Dependencies{
		Logger:  logger,
		Source:  src,
		Users:   memory.NewUserStore(users...),
		Logs:    logs,
		Policy:  policy.NewEngine(policy.Config{Threshold: 0.6, EnforceTimeRules: true}),
		Risk:    risk.NewAssessor(),
		Lock:    lc,
		Alerts:  alert.NewDispatcher(alertSink, logger, m),
		Metrics: m,
		Config:  cfg,
		Now:     now,
	})

	return &fixture{orch: orch, logs: logs, alerts: alertSink, lock: lc}
}

func alertsOfType(alerts []types.Alert, typ types.AlertType) []types.Alert {
	var out []types.Alert
	for _, a := range alerts {
		if a.Type == typ {
			out = append(out, a)
		}
	}
	return out
}

func eventFor(userID int64, confidence float64, ts time.Time) types.IdentificationEvent {
	return types.IdentificationEvent{UserID: &userID, Confidence: confidence, Timestamp: ts}
}

// 2026-03-04 12:00 UTC is a Wednesday inside business hours.
var noon = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

func TestHandleEvent_UnknownIdentity(t *testing.T) {
	f := newFixture(t, nil, service.Config{})

	ev := types.IdentificationEvent{Confidence: 0.4, Timestamp: noon}
	if err := f.orch.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	records := f.logs.Records()
	if len(records) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(records))
	}
	rec := records[0]
	if rec.Success {
		t.Error("unknown identity must never be granted")
	}
	if rec.UserID != nil {
		t.Error("expected nil user ref")
	}
	if rec.Reason != string(types.ReasonUnknownIdentity) {
		t.Errorf("expected reason=%s, got %q", types.ReasonUnknownIdentity, rec.Reason)
	}
	// Risk assessment is skipped for unknown faces.
	if rec.RiskScore != nil {
		t.Error("expected no risk score for unknown identity")
	}

	unknown := alertsOfType(f.alerts.Alerts(), types.AlertUnknownFace)
	if len(unknown) != 1 {
		t.Fatalf("expected exactly 1 unknown_face alert, got %d", len(unknown))
	}
	if unknown[0].Severity != types.SeverityWarning {
		t.Errorf("expected warning severity, got %s", unknown[0].Severity)
	}

	if !f.lock.IsLocked() {
		t.Error("door must stay locked for unknown identity")
	}
}

func TestHandleEvent_MissingUserTreatedAsUnknown(t *testing.T) {
	f := newFixture(t, nil, service.Config{}) // empty user store

	if err := f.orch.HandleEvent(context.Background(), eventFor(99, 0.9, noon)); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if n := len(alertsOfType(f.alerts.Alerts(), types.AlertUnknownFace)); n != 1 {
		t.Errorf("expected 1 unknown_face alert, got %d", n)
	}
	if !f.lock.IsLocked() {
		t.Error("door must stay locked")
	}
}

func TestHandleEvent_GrantUnlocksAndAlerts(t *testing.T) {
	admin := types.User{ID: 1, Name: "Admin", Role: types.RoleAdmin, Active: true}
	f := newFixture(t, nil, service.Config{UnlockDuration: time.Minute}, admin)

	if err := f.orch.HandleEvent(context.Background(), eventFor(1, 0.9, noon)); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	records := f.logs.Records()
	if len(records) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(records))
	}
	rec := records[0]
	if !rec.Success {
		t.Error("expected granted decision")
	}
	if rec.Reason != string(types.ReasonApproved) {
		t.Errorf("expected reason=%s, got %q", types.ReasonApproved, rec.Reason)
	}
	if rec.RiskScore == nil {
		t.Error("expected a risk score on identified events")
	}

	if f.lock.IsLocked() {
		t.Error("expected door unlocked after grant")
	}
	if st := f.lock.Snapshot(); st.State != lock.StateUnlockingTimer {
		t.Errorf("expected pending auto-relock, got state %s", st.State)
	}

	granted := alertsOfType(f.alerts.Alerts(), types.AlertAccessGranted)
	if len(granted) != 1 {
		t.Fatalf("expected 1 access_granted alert, got %d", len(granted))
	}
	if granted[0].Severity != types.SeverityInfo {
		t.Errorf("expected info severity, got %s", granted[0].Severity)
	}
	if granted[0].UserName != "Admin" {
		t.Errorf("expected user name on alert, got %q", granted[0].UserName)
	}
}

func TestHandleEvent_DenyKeepsDoorLocked(t *testing.T) {
	former := types.User{ID: 2, Name: "Former", Role: types.RoleEmployee, Active: false}
	f := newFixture(t, nil, service.Config{}, former)

	if err := f.orch.HandleEvent(context.Background(), eventFor(2, 0.95, noon)); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if !f.lock.IsLocked() {
		t.Error("expected door to remain locked on deny")
	}

	denied := alertsOfType(f.alerts.Alerts(), types.AlertAccessDenied)
	if len(denied) != 1 {
		t.Fatalf("expected 1 access_denied alert, got %d", len(denied))
	}
	if denied[0].Severity != types.SeverityWarning {
		t.Errorf("expected warning severity, got %s", denied[0].Severity)
	}
	if denied[0].Reason != string(types.ReasonAccountDisabled) {
		t.Errorf("expected account_disabled reason, got %q", denied[0].Reason)
	}
}

// Role time windows follow local wall-clock time.  A zero-timestamp event is
// stamped with the clock as-is, not normalized to UTC, so a host far from
// UTC must not shift the employee window.
func TestHandleEvent_TimeWindowUsesLocalWallClock(t *testing.T) {
	emp := types.User{ID: 3, Name: "Emp", Role: types.RoleEmployee, Active: true}

	// Local Wednesday 07:44 in UTC+14 — outside 08:00-18:00.  The same
	// instant in UTC is Tuesday 17:44, inside the window.
	early := time.FixedZone("UTC+14", 14*3600)
	f := newFixtureClock(t, nil, service.Config{},
		func() time.Time { return time.Date(2026, 3, 4, 7, 44, 0, 0, early) }, emp)

	ev := types.IdentificationEvent{UserID: &emp.ID, Confidence: 0.95}
	if err := f.orch.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if !f.lock.IsLocked() {
		t.Error("expected deny: 07:44 local is outside the employee window")
	}
	records := f.logs.Records()
	if len(records) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(records))
	}
	if records[0].Reason != string(types.ReasonOutsideHours) {
		t.Errorf("expected outside_allowed_time, got %q", records[0].Reason)
	}
	if got := records[0].Timestamp.Hour(); got != 7 {
		t.Errorf("stamped hour = %d, want 7 in the clock's own location", got)
	}

	// The mirror case: local Wednesday 12:00 in UTC-10 is inside the
	// window even though the UTC instant (22:00) is not.
	late := time.FixedZone("UTC-10", -10*3600)
	f = newFixtureClock(t, nil, service.Config{},
		func() time.Time { return time.Date(2026, 3, 4, 12, 0, 0, 0, late) }, emp)

	if err := f.orch.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if f.lock.IsLocked() {
		t.Error("expected grant: 12:00 local is inside the employee window")
	}
}

func TestHandleEvent_AnomalyAlertsEvenWhenGranted(t *testing.T) {
	admin := types.User{ID: 1, Name: "Admin", Role: types.RoleAdmin, Active: true}
	f := newFixture(t, nil, service.Config{}, admin)
	ctx := context.Background()

	// Prime history with a burst of four attempts in the last minute.  The
	// event lands at 03:00 (off default hours) with confidence 0.65 (low
	// for risk, but above the policy threshold): 0.3+0.2+0.4 = 0.9.
	night := time.Date(2026, 3, 4, 3, 0, 0, 0, time.UTC)
	uid := int64(1)
	for i := 1; i <= 4; i++ {
		_ = f.logs.Append(ctx, store.AccessLogRecord{
			UserID:    &uid,
			Timestamp: night.Add(-time.Duration(i*10) * time.Second),
			Success:   false,
			Method:    store.MethodFace,
		})
	}

	if err := f.orch.HandleEvent(ctx, eventFor(1, 0.65, night)); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	// Granted (admin, confidence above threshold) and still flagged.
	if f.lock.IsLocked() {
		t.Error("expected grant to unlock despite anomaly")
	}

	suspicious := alertsOfType(f.alerts.Alerts(), types.AlertSuspiciousActivity)
	if len(suspicious) != 1 {
		t.Fatalf("expected 1 suspicious_activity alert, got %d", len(suspicious))
	}
	if suspicious[0].Severity != types.SeverityCritical {
		t.Errorf("expected critical severity, got %s", suspicious[0].Severity)
	}
	if suspicious[0].RiskScore == nil || *suspicious[0].RiskScore <= 0.7 {
		t.Errorf("expected risk score > 0.7 on alert, got %v", suspicious[0].RiskScore)
	}

	records := f.logs.Records()
	last := records[len(records)-1]
	if !last.AnomalyDetected {
		t.Error("expected anomaly flag in audit record")
	}
}

// scriptedSource replays a fixed sequence of poll outcomes.
type scriptedSource struct {
	outcomes []error
	i        int
}

func (s *scriptedSource) Poll(context.Context) ([]types.IdentificationEvent, error) {
	if s.i >= len(s.outcomes) {
		return nil, nil
	}
	err := s.outcomes[s.i]
	s.i++
	return nil, err
}

func TestRun_ConsecutiveCaptureFailuresEscalate(t *testing.T) {
	noFrame := service.ErrNoFrame
	src := &scriptedSource{outcomes: []error{noFrame, noFrame, noFrame}}
	f := newFixture(t, src, service.Config{
		FailureThreshold: 3,
		PollInterval:     2 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.orch.Run(ctx)
		close(done)
	}()

	// Wait for the escalation alert, then stop.
	deadline := time.After(2 * time.Second)
	for {
		if len(alertsOfType(f.alerts.Alerts(), types.AlertSystemError)) >= 1 {
			break
		}
		select {
		case <-deadline:
			cancel()
			<-done
			t.Fatal("timed out waiting for system_error alert")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	sysErrs := alertsOfType(f.alerts.Alerts(), types.AlertSystemError)
	if len(sysErrs) != 1 {
		t.Fatalf("expected exactly 1 system_error alert, got %d", len(sysErrs))
	}
	if sysErrs[0].Severity != types.SeverityCritical {
		t.Errorf("expected critical severity, got %s", sysErrs[0].Severity)
	}
}

func TestRun_ShutdownForcesDoorLocked(t *testing.T) {
	src := &scriptedSource{} // always idle
	f := newFixture(t, src, service.Config{PollInterval: 2 * time.Millisecond})

	// Door held open by an emergency override before shutdown.
	if err := f.orch.ManualUnlock(context.Background(), 0, "test"); err != nil {
		t.Fatalf("ManualUnlock: %v", err)
	}
	if f.lock.IsLocked() {
		t.Fatal("expected door open before shutdown")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.orch.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	<-done

	if !f.lock.IsLocked() {
		t.Error("expected door forced locked on shutdown")
	}
}

func TestManualOverride_AuditLogged(t *testing.T) {
	f := newFixture(t, nil, service.Config{})
	ctx := context.Background()

	if err := f.orch.ManualUnlock(ctx, 30*time.Second, "CLI"); err != nil {
		t.Fatalf("ManualUnlock: %v", err)
	}
	if err := f.orch.ManualLock(ctx, "CLI"); err != nil {
		t.Fatalf("ManualLock: %v", err)
	}

	records := f.logs.Records()
	if len(records) != 2 {
		t.Fatalf("expected 2 audit records, got %d", len(records))
	}
	for _, rec := range records {
		if rec.Method != store.MethodManual {
			t.Errorf("expected method=manual, got %q", rec.Method)
		}
		if rec.UserID != nil {
			t.Error("manual overrides carry no user ref")
		}
	}
	if !f.lock.IsLocked() {
		t.Error("expected door locked after ManualLock")
	}
}

func TestManualLock_CancelsPendingAutoRelock(t *testing.T) {
	admin := types.User{ID: 1, Name: "Admin", Role: types.RoleAdmin, Active: true}
	f := newFixture(t, nil, service.Config{UnlockDuration: 40 * time.Millisecond}, admin)
	ctx := context.Background()

	if err := f.orch.HandleEvent(ctx, eventFor(1, 0.9, noon)); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if err := f.orch.ManualLock(ctx, "CLI"); err != nil {
		t.Fatalf("ManualLock: %v", err)
	}

	// Past the original deadline: the cancelled timer must not have acted.
	time.Sleep(100 * time.Millisecond)
	if !f.lock.IsLocked() {
		t.Error("expected door to stay locked")
	}
}

func TestStatus_ReportsLockAndUsers(t *testing.T) {
	admin := types.User{ID: 1, Name: "Admin", Role: types.RoleAdmin, Active: true}
	former := types.User{ID: 2, Name: "Former", Role: types.RoleEmployee, Active: false}
	f := newFixture(t, nil, service.Config{}, admin, former)
	ctx := context.Background()

	if err := f.orch.HandleEvent(ctx, eventFor(1, 0.9, noon)); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	st, err := f.orch.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.ActiveUsers != 1 {
		t.Errorf("expected 1 active user, got %d", st.ActiveUsers)
	}
	if len(st.RecentAccess) != 1 {
		t.Errorf("expected 1 recent access record, got %d", len(st.RecentAccess))
	}
	if st.Lock.State == "" {
		t.Error("expected lock state in status")
	}
}

func TestRun_SourceErrorOtherThanNoFrameCounts(t *testing.T) {
	// Any source error is a capture failure for counting purposes.
	src := &scriptedSource{outcomes: []error{errors.New("usb reset"), service.ErrNoFrame}}
	f := newFixture(t, src, service.Config{
		FailureThreshold: 2,
		PollInterval:     2 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.orch.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for len(alertsOfType(f.alerts.Alerts(), types.AlertSystemError)) == 0 {
		select {
		case <-deadline:
			cancel()
			<-done
			t.Fatal("timed out waiting for system_error alert")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
}
