package types

import "time"

// IdentificationEvent is one detection+recognition attempt from the identity
// source: a confidence score, optionally bound to a known user.  UserID nil
// means the face did not match any enrolled user.
type IdentificationEvent struct {
	UserID     *int64    `json:"user_id,omitempty"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// AccessDecision is the outcome of policy evaluation for a single event.
// Reason is always set, including on grant.
type AccessDecision struct {
	Granted bool   `json:"granted"`
	Reason  Reason `json:"reason"`
}

// Reason is a fixed enumerated decision reason.  The snake_case code is what
// gets persisted; Message returns the human-readable form for alerts.
type Reason string

const (
	ReasonApproved        Reason = "access_approved"
	ReasonAccountDisabled Reason = "account_disabled"
	ReasonLowConfidence   Reason = "low_confidence"
	ReasonOutsideHours    Reason = "outside_allowed_time"
	ReasonInsufficient    Reason = "insufficient_permissions"
	ReasonUnknownIdentity Reason = "unknown_identity"
)

var reasonMessages = map[Reason]string{
	ReasonApproved:        "Access approved",
	ReasonAccountDisabled: "User account disabled",
	ReasonLowConfidence:   "Low recognition confidence",
	ReasonOutsideHours:    "Outside allowed time",
	ReasonInsufficient:    "Insufficient permissions",
	ReasonUnknownIdentity: "Unknown face",
}

// Message returns the human-readable text for the reason code.  Unknown
// codes fall back to the raw code so a reason is never silently empty.
func (r Reason) Message() string {
	if m, ok := reasonMessages[r]; ok {
		return m
	}
	return string(r)
}
