package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SeedDev inserts a default admin user so a fresh dev database can grant
// somebody access.  Idempotent; never run in prod.
func SeedDev(ctx context.Context, conn *sql.DB) error {
	now := time.Now().UTC().UnixMilli()

	if _, err := conn.ExecContext(ctx, `
INSERT OR IGNORE INTO users(id, name, role, active, created_at_ms)
VALUES (1, 'Admin', 'admin', 1, ?);`, now); err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}

	return nil
}
