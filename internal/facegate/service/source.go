package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/facegate/server/internal/facegate/types"
)

// ErrNoFrame signals a transient capture failure: the upstream frame source
// produced nothing this cycle.  It is counted, not fatal.
var ErrNoFrame = errors.New("no frame from identity source")

// IdentitySource yields identification events from the external
// capture/recognition pipeline.  Poll returns zero or more events (one per
// detected face), or ErrNoFrame when the frame source failed this cycle.
//
// The matching algorithm behind the confidence score is the collaborator's
// concern; this interface only fixes the contract.
type IdentitySource interface {
	Poll(ctx context.Context) ([]types.IdentificationEvent, error)
}

// SimulatedSource is a stand-in identity source for dev deployments without
// a camera rig: every Nth poll it emits one event for a fixed user at a
// fixed confidence.  UserID nil simulates an unknown face.
type SimulatedSource struct {
	UserID     *int64
	Confidence float64
	Every      int

	mu sync.Mutex
	n  int
}

func (s *SimulatedSource) Poll(_ context.Context) ([]types.IdentificationEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.n++
	every := s.Every
	if every <= 0 {
		every = 50
	}
	if s.n%every != 0 {
		return nil, nil
	}

	// Local time, not UTC: role time windows follow the wall clock.
	return []types.IdentificationEvent{{
		UserID:     s.UserID,
		Confidence: s.Confidence,
		Timestamp:  time.Now(),
	}}, nil
}
