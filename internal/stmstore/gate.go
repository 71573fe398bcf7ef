package stmstore

import (
	"context"
	"fmt"

	"github.com/avneeshrai07/Agent-Memory-System/internal/domain/stm"
	"github.com/avneeshrai07/Agent-Memory-System/internal/logging"
)

// Gate implements the STM Intent Gate (C13): accept iff
// should_write && state_type != "" && statement != "" && confidence >= 0.6
// (spec §4.7/§9 — overriding the 0.85 the original source used). The
// conservative default is to never auto-supersede (spec §4.7 step 4):
// Gate.Commit never sets Supersedes; supersession happens only when a caller
// passes an Entry with Supersedes set to Store.Commit directly.
type Gate struct {
	store  *Store
	logger logging.Logger
}

func NewGate(store *Store, logger logging.Logger) *Gate {
	return &Gate{store: store, logger: logging.OrNop(logger)}
}

// Evaluate applies the acceptance predicate without writing anything.
func (g *Gate) Evaluate(intent stm.Intent) bool {
	return intent.Accept()
}

// Commit accepts or rejects an intent; on accept it atomically inserts a
// new active STM entry. It never sets Supersedes, so no existing entry is
// deactivated (conservative default: off).
func (g *Gate) Commit(ctx context.Context, userID string, intent stm.Intent) (string, bool, error) {
	if !intent.Accept() {
		g.logger.Debug("stm gate: rejected intent for user %s (confidence=%.2f)", userID, intent.Confidence)
		return "", false, nil
	}

	id, err := g.store.Commit(ctx, stm.Entry{
		UserID:     userID,
		StateType:  intent.StateType,
		Statement:  intent.Statement,
		Rationale:  intent.Rationale,
		AppliesTo:  intent.AppliesTo,
		Confidence: intent.Confidence,
		IsActive:   true,
	})
	if err != nil {
		return "", false, fmt.Errorf("stm gate: commit: %w", err)
	}
	return id, true, nil
}
