package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/facegate/server/internal/db"
	"github.com/facegate/server/internal/facegate/types"
)

type UserStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewUserStore(conn *sql.DB, writer *dbpkg.Worker) *UserStore {
	return &UserStore{db: conn, writer: writer}
}

// GetUser returns the user snapshot, or (nil, nil) when no such user exists.
// Inactive users are returned too; the policy engine owns the active check.
func (s *UserStore) GetUser(ctx context.Context, id int64) (*types.User, error) {
	var (
		u      types.User
		active int
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, name, role, active FROM users WHERE id = ?;
`, id).Scan(&u.ID, &u.Name, &u.Role, &active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetUser %d: %w", id, err)
	}
	u.Active = active != 0
	return &u, nil
}

func (s *UserStore) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE active = 1;`,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("CountActive: %w", err)
	}
	return n, nil
}

// TouchLastAccess stamps the user's last successful access time.  Failures
// are the caller's to ignore — a stale last_access column is cosmetic.
func (s *UserStore) TouchLastAccess(ctx context.Context, id int64, at time.Time) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
UPDATE users SET last_access_ms = ? WHERE id = ?;
`, at.UTC().UnixMilli(), id); err != nil {
			return fmt.Errorf("TouchLastAccess %d: %w", id, err)
		}
		return nil
	})
}
