package cognition

import (
	"testing"

	domain "github.com/avneeshrai07/Agent-Memory-System/internal/domain/cognition"
)

type stubFreq struct{ n int }

func (s stubFreq) CountPriorOccurrences(category, field string, value any) (int, error) {
	return s.n, nil
}

func TestPersonaShortCircuit(t *testing.T) {
	e := NewEngine(stubFreq{}, nil)
	decisions := e.Evaluate([]domain.Signal{{
		Category: "style", Field: "tone", Value: "professional",
		BaseConfidence: 0.5, Source: domain.SourceImplicit, EpistemicRole: domain.RolePersona,
	}})
	d := decisions[0]
	if d.Action != domain.ActionCommit || d.Target != domain.TargetPersona || d.Confidence != 1.0 {
		t.Fatalf("expected persona short-circuit commit, got %+v", d)
	}
}

func TestExplicitModeRejectsImplicitSource(t *testing.T) {
	e := NewEngine(stubFreq{}, nil)
	decisions := e.Evaluate([]domain.Signal{{
		Category: "identity", Field: "name", Value: "Ada",
		BaseConfidence: 0.9, Source: domain.SourceImplicit, EpistemicRole: domain.RoleLearnable,
	}})
	if decisions[0].Action != domain.ActionReject {
		t.Fatalf("expected reject, got %+v", decisions[0])
	}
}

func TestSafetyGateRejectsLowConfidence(t *testing.T) {
	e := NewEngine(stubFreq{}, nil)
	decisions := e.Evaluate([]domain.Signal{{
		Category: "constraints", Field: "constraints", Value: "no emojis",
		BaseConfidence: 0.9, Source: domain.SourceExplicit, EpistemicRole: domain.RoleLearnable,
	}})
	if decisions[0].Action != domain.ActionReject {
		t.Fatalf("expected reject below constraints min_confidence 0.95, got %+v", decisions[0])
	}
}

func TestImplicitModeCommitsAtFrequencyThreshold(t *testing.T) {
	e := NewEngine(stubFreq{n: 2}, nil)
	decisions := e.Evaluate([]domain.Signal{{
		Category: "business", Field: "business_model", Value: "saas",
		BaseConfidence: 0.85, Source: domain.SourceImplicit, EpistemicRole: domain.RoleLearnable,
	}})
	if decisions[0].Action != domain.ActionCommit {
		t.Fatalf("expected commit once frequency (2+1=3) meets min_freq 3, got %+v", decisions[0])
	}
}

func TestUnknownFieldDefers(t *testing.T) {
	e := NewEngine(stubFreq{}, nil)
	decisions := e.Evaluate([]domain.Signal{{
		Category: "misc", Field: "favorite_color", Value: "blue",
		BaseConfidence: 0.9, Source: domain.SourceExplicit, EpistemicRole: domain.RoleLearnable,
	}})
	if decisions[0].Action != domain.ActionDefer || decisions[0].Target != domain.TargetPatternLog {
		t.Fatalf("expected defer to pattern_log, got %+v", decisions[0])
	}
}
