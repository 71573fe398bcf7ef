package stmstore

import (
	"testing"

	"github.com/avneeshrai07/Agent-Memory-System/internal/domain/stm"
)

func TestGateAcceptsConfidentDecision(t *testing.T) {
	g := &Gate{}
	intent := stm.Intent{ShouldWrite: true, StateType: stm.StateDecision, Statement: "Target enterprise customers", Confidence: 0.92}
	if !g.Evaluate(intent) {
		t.Fatalf("expected acceptance at confidence 0.92")
	}
}

func TestGateRejectsLowConfidence(t *testing.T) {
	g := &Gate{}
	intent := stm.Intent{ShouldWrite: true, StateType: stm.StateDecision, Statement: "Target enterprise customers", Confidence: 0.4}
	if g.Evaluate(intent) {
		t.Fatalf("expected rejection at confidence 0.4")
	}
}

func TestGateRejectsMissingStatement(t *testing.T) {
	g := &Gate{}
	intent := stm.Intent{ShouldWrite: true, StateType: stm.StateDecision, Confidence: 0.9}
	if g.Evaluate(intent) {
		t.Fatalf("expected rejection when statement is empty")
	}
}
