// Package stm defines the append-only state-memory entry (spec §3) and the
// intent payload the extractor returns each turn.
package stm

import "time"

// StateType enumerates the closed set of STM entry kinds.
type StateType string

const (
	StateGoal           StateType = "goal"
	StateDecision       StateType = "decision"
	StateConstraint     StateType = "constraint"
	StateApproval       StateType = "approval"
	StateRejection      StateType = "rejection"
	StateDirectionChange StateType = "direction_change"
	StateScope          StateType = "scope"
)

// Entry is one row of session/user state. A supersedes pointer deactivates
// its target atomically (spec §3 invariant).
type Entry struct {
	ID         string
	UserID     string
	StateType  StateType
	Statement  string
	Rationale  string
	AppliesTo  string
	Supersedes string
	Confidence float64
	IsActive   bool
	CreatedAt  time.Time
}

// MinAcceptConfidence is the gate the spec fixes for C13 (0.6), overriding
// the 0.85 the original source used — see spec §9 Open Questions and the
// acceptance test in spec §8 scenario 6.
const MinAcceptConfidence = 0.6

// Intent is the extractor's combined STM-write proposal for one turn.
type Intent struct {
	ShouldWrite bool
	StateType   StateType
	Statement   string
	Rationale   string
	AppliesTo   string
	Confidence  float64
}

// Accept applies the C13 gate: should_write && state_type != "" &&
// statement != "" && confidence >= MinAcceptConfidence.
func (i Intent) Accept() bool {
	return i.ShouldWrite && i.StateType != "" && i.Statement != "" && i.Confidence >= MinAcceptConfidence
}
