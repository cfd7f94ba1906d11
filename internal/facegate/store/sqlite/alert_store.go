package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	dbpkg "github.com/facegate/server/internal/db"
	"github.com/facegate/server/internal/facegate/types"
)

type AlertStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewAlertStore(conn *sql.DB, writer *dbpkg.Worker) *AlertStore {
	return &AlertStore{db: conn, writer: writer}
}

func (s *AlertStore) Append(ctx context.Context, a types.Alert) error {
	var userName, reason any
	if a.UserName != "" {
		userName = a.UserName
	}
	if a.Reason != "" {
		reason = a.Reason
	}

	var confidence, riskScore any
	if a.Confidence != nil {
		confidence = *a.Confidence
	}
	if a.RiskScore != nil {
		riskScore = *a.RiskScore
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO alerts(
  id, type, severity, message, user_name, reason, confidence, risk_score, ts_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
			a.ID, string(a.Type), string(a.Severity), a.Message,
			userName, reason, confidence, riskScore,
			a.Timestamp.UTC().UnixMilli(),
		); err != nil {
			return fmt.Errorf("Append alert: %w", err)
		}
		return nil
	})
}
