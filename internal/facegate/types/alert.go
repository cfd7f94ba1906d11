package types

import (
	"time"

	"github.com/google/uuid"
)

type AlertType string

const (
	AlertAccessGranted      AlertType = "access_granted"
	AlertAccessDenied       AlertType = "access_denied"
	AlertUnknownFace        AlertType = "unknown_face"
	AlertSuspiciousActivity AlertType = "suspicious_activity"
	AlertSystemError        AlertType = "system_error"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Notifiable reports whether the severity warrants fan-out to notification
// channels.  Info alerts only reach the audit sink.
func (s Severity) Notifiable() bool {
	return s == SeverityCritical || s == SeverityWarning
}

// Alert is a write-once, fire-and-forget notification.  Optional fields are
// populated per alert type: UserName for per-user alerts, Confidence on
// grants, Reason on denials, RiskScore on suspicious activity.
type Alert struct {
	ID         string    `json:"id"`
	Type       AlertType `json:"type"`
	Severity   Severity  `json:"severity"`
	Message    string    `json:"message"`
	UserName   string    `json:"user,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
	RiskScore  *float64  `json:"risk_score,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewAlert builds an alert with a fresh ID and timestamp.  Callers set the
// optional fields afterwards.
func NewAlert(typ AlertType, sev Severity, message string) Alert {
	return Alert{
		ID:        uuid.NewString(),
		Type:      typ,
		Severity:  sev,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}
