package store

import (
	"context"
	"time"

	"github.com/facegate/server/internal/facegate/types"
)

// AccessLogRecord captures one access attempt for the audit log.  UserID is
// nil for unknown faces and manual overrides.  Confidence and RiskScore are
// nil when the attempt never reached recognition or risk assessment.
type AccessLogRecord struct {
	UserID          *int64
	Timestamp       time.Time
	Success         bool
	Method          string // "face" or "manual"
	Confidence      *float64
	RiskScore       *float64
	AnomalyDetected bool
	Reason          string
}

// Access methods recorded in the audit log.
const (
	MethodFace   = "face"
	MethodManual = "manual"
)

// UserStore serves read-only user snapshots for decisions.
//
// GetUser returns inactive users too — the policy engine owns the active
// check so a disabled account produces a proper deny reason instead of
// looking like an unknown face.  Missing users return (nil, nil).
type UserStore interface {
	GetUser(ctx context.Context, id int64) (*types.User, error)
	CountActive(ctx context.Context) (int64, error)

	// TouchLastAccess stamps the user's most recent successful entry.
	TouchLastAccess(ctx context.Context, id int64, at time.Time) error
}

// AccessLogStore persists access attempts as an append-only audit log.
type AccessLogStore interface {
	Append(ctx context.Context, rec AccessLogRecord) error

	// HistoryForUser returns the user's recent attempts, most recent
	// first, capped at limit.
	HistoryForUser(ctx context.Context, userID int64, limit int) ([]AccessLogRecord, error)

	// Recent returns the latest attempts across all users, most recent
	// first.
	Recent(ctx context.Context, limit int) ([]AccessLogRecord, error)

	// PruneOlderThan deletes records before cutoff, returning the number
	// of rows removed.
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// AlertStore persists dispatched alerts.  Every alert lands here regardless
// of severity; notification channels are additional, not a replacement.
type AlertStore interface {
	Append(ctx context.Context, alert types.Alert) error
}
