package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/facegate/server/internal/db"
	"github.com/facegate/server/internal/facegate/store"
)

type AccessLogStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewAccessLogStore(conn *sql.DB, writer *dbpkg.Worker) *AccessLogStore {
	return &AccessLogStore{db: conn, writer: writer}
}

func (s *AccessLogStore) Append(ctx context.Context, rec store.AccessLogRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	tsMs := rec.Timestamp.UTC().UnixMilli()

	var userID any
	if rec.UserID != nil {
		userID = *rec.UserID
	}

	var success int
	if rec.Success {
		success = 1
	}
	var anomaly int
	if rec.AnomalyDetected {
		anomaly = 1
	}

	var confidence, riskScore any
	if rec.Confidence != nil {
		confidence = *rec.Confidence
	}
	if rec.RiskScore != nil {
		riskScore = *rec.RiskScore
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO access_log(
  user_id, ts_ms, success, method, confidence, risk_score, anomaly_detected, reason
) VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`,
			userID, tsMs, success, rec.Method, confidence, riskScore, anomaly, rec.Reason,
		); err != nil {
			return fmt.Errorf("Append access_log: %w", err)
		}
		return nil
	})
}

func (s *AccessLogStore) HistoryForUser(ctx context.Context, userID int64, limit int) ([]store.AccessLogRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT user_id, ts_ms, success, method, confidence, risk_score, anomaly_detected, reason
FROM access_log
WHERE user_id = ?
ORDER BY ts_ms DESC
LIMIT ?;
`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("HistoryForUser %d: %w", userID, err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (s *AccessLogStore) Recent(ctx context.Context, limit int) ([]store.AccessLogRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT user_id, ts_ms, success, method, confidence, risk_score, anomaly_detected, reason
FROM access_log
ORDER BY ts_ms DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("Recent: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// PruneOlderThan deletes audit rows before the cutoff.  Uses the
// idx_access_log_time index for an efficient range scan.
func (s *AccessLogStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffMs := cutoff.UTC().UnixMilli()

	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
DELETE FROM access_log WHERE ts_ms < ?;
`, cutoffMs)
		if err != nil {
			return fmt.Errorf("PruneOlderThan: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	return deleted, err
}

func scanRecords(rows *sql.Rows) ([]store.AccessLogRecord, error) {
	var out []store.AccessLogRecord
	for rows.Next() {
		var (
			rec        store.AccessLogRecord
			userID     sql.NullInt64
			tsMs       int64
			success    int
			anomaly    int
			confidence sql.NullFloat64
			riskScore  sql.NullFloat64
		)
		if err := rows.Scan(&userID, &tsMs, &success, &rec.Method, &confidence, &riskScore, &anomaly, &rec.Reason); err != nil {
			return nil, fmt.Errorf("scan access_log row: %w", err)
		}
		if userID.Valid {
			v := userID.Int64
			rec.UserID = &v
		}
		rec.Timestamp = time.UnixMilli(tsMs).UTC()
		rec.Success = success != 0
		rec.AnomalyDetected = anomaly != 0
		if confidence.Valid {
			v := confidence.Float64
			rec.Confidence = &v
		}
		if riskScore.Valid {
			v := riskScore.Float64
			rec.RiskScore = &v
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
