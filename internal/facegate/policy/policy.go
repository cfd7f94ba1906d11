package policy

import (
	"time"

	"github.com/facegate/server/internal/facegate/types"
)

// Config is the policy rule configuration.  TwoFactorRequired is accepted
// but not yet enforced; it is carried so configs written for a future
// second-factor check remain valid.
type Config struct {
	// Threshold is the minimum recognition confidence for a grant.
	Threshold float64

	// EnforceTimeRules enables the role-based time windows.
	EnforceTimeRules bool

	// TwoFactorRequired is reserved for future enforcement.  Known no-op.
	TwoFactorRequired bool
}

// Engine evaluates access decisions from a fixed, ordered set of role, time
// and confidence checks.  It is pure: no clock, no store, no side effects —
// everything comes in through the arguments, which keeps the rules trivially
// testable.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Evaluate runs the ordered checks; the first failing check wins and
// determines the reason.  The reason is always set, including on grant.
func (e *Engine) Evaluate(user types.User, confidence float64, ts time.Time) types.AccessDecision {
	if !user.Active {
		return types.AccessDecision{Granted: false, Reason: types.ReasonAccountDisabled}
	}

	if confidence < e.cfg.Threshold {
		return types.AccessDecision{Granted: false, Reason: types.ReasonLowConfidence}
	}

	if e.cfg.EnforceTimeRules && !timeAllowed(user.Role, ts) {
		return types.AccessDecision{Granted: false, Reason: types.ReasonOutsideHours}
	}

	if !user.Role.Known() {
		return types.AccessDecision{Granted: false, Reason: types.ReasonInsufficient}
	}

	return types.AccessDecision{Granted: true, Reason: types.ReasonApproved}
}

// timeAllowed applies the role-based time window in the timestamp's own
// location.  Admins have 24/7 access; employees are restricted to business
// hours Mon-Fri 08:00-18:00 inclusive; other roles carry no restriction.
func timeAllowed(role types.Role, ts time.Time) bool {
	switch role {
	case types.RoleAdmin:
		return true
	case types.RoleEmployee:
		switch ts.Weekday() {
		case time.Saturday, time.Sunday:
			return false
		}
		secs := ts.Hour()*3600 + ts.Minute()*60 + ts.Second()
		return secs >= 8*3600 && secs <= 18*3600
	default:
		return true
	}
}
