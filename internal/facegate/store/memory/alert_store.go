package memory

import (
	"context"
	"sync"

	"github.com/facegate/server/internal/facegate/types"
)

// AlertStore is an in-memory alert sink for tests and dev environments.
type AlertStore struct {
	mu     sync.Mutex
	alerts []types.Alert
}

func NewAlertStore() *AlertStore {
	return &AlertStore{}
}

func (s *AlertStore) Append(_ context.Context, a types.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
	return nil
}

// Alerts returns a copy of all appended alerts.  Test-only helper.
func (s *AlertStore) Alerts() []types.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.Alert, len(s.alerts))
	copy(out, s.alerts)
	return out
}
