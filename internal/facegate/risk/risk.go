package risk

import (
	"time"

	"github.com/facegate/server/internal/facegate/store"
	"github.com/facegate/server/internal/facegate/types"
)

// Additive contribution weights.  These are fixed heuristic values, not a
// learned model; downstream thresholds depend on them, so they must not
// drift.
const (
	weightOffHours       = 0.3
	weightLowConfidence  = 0.2
	weightRapidAttempts  = 0.4
	lowConfidenceCutoff  = 0.7
	rapidWindow          = time.Minute
	rapidAttemptsAllowed = 3
)

// DefaultAnomalyThreshold is the fixed score above which an attempt is
// flagged anomalous.
const DefaultAnomalyThreshold = 0.7

// Context carries the per-attempt inputs to risk scoring.  Now is passed in
// rather than read from the clock so scoring stays deterministic.
type Context struct {
	Confidence float64
	Now        time.Time
}

// Assessor scores the anomalousness of an access attempt from the user's
// recent history.  Pure and stateless; safe for concurrent use.
type Assessor struct{}

func NewAssessor() *Assessor {
	return &Assessor{}
}

// Assess returns a risk score in [0,1].  Each contribution is independent;
// the sum is clamped to 1.0.
func (a *Assessor) Assess(user types.User, history []store.AccessLogRecord, rc Context) float64 {
	score := 0.0

	if !withinNormalHours(history, rc.Now) {
		score += weightOffHours
	}

	if rc.Confidence < lowConfidenceCutoff {
		score += weightLowConfidence
	}

	if countRecent(history, rc.Now) > rapidAttemptsAllowed {
		score += weightRapidAttempts
	}

	return min(score, 1.0)
}

// Anomalous reports whether the score exceeds the given threshold.
func (a *Assessor) Anomalous(score, threshold float64) bool {
	return score > threshold
}

// withinNormalHours checks the current hour-of-day against the user's normal
// hours: the hours seen in successful history entries, or 08:00-17:00 when
// there are none to learn from.  History timestamps may come back from the
// store normalized to UTC, so hours are compared in now's location.
func withinNormalHours(history []store.AccessLogRecord, now time.Time) bool {
	var seen [24]bool
	learned := false
	for _, rec := range history {
		if rec.Success {
			seen[rec.Timestamp.In(now.Location()).Hour()] = true
			learned = true
		}
	}
	if !learned {
		for h := 8; h <= 17; h++ {
			seen[h] = true
		}
	}
	return seen[now.Hour()]
}

// countRecent counts history entries within the rapid-attempt window
// preceding now.  Entries timestamped in the future are ignored.
func countRecent(history []store.AccessLogRecord, now time.Time) int {
	n := 0
	for _, rec := range history {
		d := now.Sub(rec.Timestamp)
		if d >= 0 && d < rapidWindow {
			n++
		}
	}
	return n
}
