// Package cognition implements the Cognition Engine (C7): a pure function
// mapping signals to decisions under a static per-field policy table,
// grounded on the original source's cognition_model.py/reasoning_policy.py
// and expressed in the teacher's small-pure-function style (the cognition
// engine has no I/O beyond a frequency lookup, much like the teacher's
// reasoning_policy modules have no side effects beyond their scoring call).
package cognition

import (
	"fmt"

	domain "github.com/avneeshrai07/Agent-Memory-System/internal/domain/cognition"
	"github.com/avneeshrai07/Agent-Memory-System/internal/logging"
)

// Mode names how a field's commit path is decided.
type Mode string

const (
	ModeExplicit     Mode = "explicit"
	ModeImplicit     Mode = "implicit"
	ModeHybrid       Mode = "hybrid"
	ModeExplicitOrN  Mode = "explicit_or_n"
)

// FieldPolicy is one row of the static per-field policy table (spec §4.1).
type FieldPolicy struct {
	Mode             Mode
	MinFreq          int
	PersonaEligible  bool
	MinConfidence    float64
}

// DefaultMinConfidence and ConstraintsMinConfidence are the two tiers spec
// §4.1 names explicitly; every other field falls back to DefaultMinConfidence
// unless its policy row overrides it.
const (
	DefaultMinConfidence     = 0.80
	ConstraintsMinConfidence = 0.95
)

// FieldPolicies is the static table. Field names align with
// persona.FieldBlockMap so a COMMIT with target=persona always resolves to
// a block.
var FieldPolicies = map[string]FieldPolicy{
	"name":              {Mode: ModeExplicit, MinFreq: 1, PersonaEligible: true, MinConfidence: DefaultMinConfidence},
	"role":              {Mode: ModeExplicit, MinFreq: 1, PersonaEligible: true, MinConfidence: DefaultMinConfidence},
	"seniority":         {Mode: ModeHybrid, MinFreq: 2, PersonaEligible: true, MinConfidence: DefaultMinConfidence},
	"industry":          {Mode: ModeExplicit, MinFreq: 1, PersonaEligible: true, MinConfidence: DefaultMinConfidence},
	"company_size":      {Mode: ModeHybrid, MinFreq: 2, PersonaEligible: true, MinConfidence: DefaultMinConfidence},
	"company_stage":     {Mode: ModeHybrid, MinFreq: 2, PersonaEligible: true, MinConfidence: DefaultMinConfidence},
	"business_model":    {Mode: ModeImplicit, MinFreq: 3, PersonaEligible: true, MinConfidence: DefaultMinConfidence},
	"revenue_model":     {Mode: ModeImplicit, MinFreq: 3, PersonaEligible: true, MinConfidence: DefaultMinConfidence},
	"product_name":      {Mode: ModeExplicit, MinFreq: 1, PersonaEligible: true, MinConfidence: DefaultMinConfidence},
	"product_category":  {Mode: ModeExplicitOrN, MinFreq: 2, PersonaEligible: true, MinConfidence: DefaultMinConfidence},
	"brand_voice":       {Mode: ModeHybrid, MinFreq: 2, PersonaEligible: true, MinConfidence: DefaultMinConfidence},
	"brand_values":      {Mode: ModeImplicit, MinFreq: 3, PersonaEligible: true, MinConfidence: DefaultMinConfidence},
	"objective":         {Mode: ModeExplicit, MinFreq: 1, PersonaEligible: true, MinConfidence: DefaultMinConfidence},
	"goal_horizon":      {Mode: ModeHybrid, MinFreq: 2, PersonaEligible: true, MinConfidence: DefaultMinConfidence},
	"format":            {Mode: ModeExplicitOrN, MinFreq: 2, PersonaEligible: true, MinConfidence: DefaultMinConfidence},
	"length_preference": {Mode: ModeImplicit, MinFreq: 3, PersonaEligible: true, MinConfidence: DefaultMinConfidence},
	"audience":          {Mode: ModeExplicit, MinFreq: 1, PersonaEligible: true, MinConfidence: DefaultMinConfidence},
	"audience_segment":  {Mode: ModeHybrid, MinFreq: 2, PersonaEligible: true, MinConfidence: DefaultMinConfidence},
	"tone":              {Mode: ModeExplicit, MinFreq: 1, PersonaEligible: true, MinConfidence: DefaultMinConfidence},
	"writing_style":     {Mode: ModeHybrid, MinFreq: 2, PersonaEligible: true, MinConfidence: DefaultMinConfidence},
	"vocabulary_level":  {Mode: ModeImplicit, MinFreq: 3, PersonaEligible: true, MinConfidence: DefaultMinConfidence},
	"language":          {Mode: ModeExplicit, MinFreq: 1, PersonaEligible: true, MinConfidence: DefaultMinConfidence},
	"constraints":       {Mode: ModeExplicit, MinFreq: 1, PersonaEligible: true, MinConfidence: ConstraintsMinConfidence},
}

// FrequencyLookup counts prior (category, field, value) rows in the pattern
// log, used to enrich a signal's frequency before policy evaluation (spec
// §4.1: "frequency is computed by counting prior rows... adding 1").
type FrequencyLookup interface {
	CountPriorOccurrences(category, field string, value any) (int, error)
}

// Engine evaluates signals against FieldPolicies. It has no I/O beyond the
// frequency lookup, and never mutates its input signals.
type Engine struct {
	policies map[string]FieldPolicy
	freq     FrequencyLookup
	logger   logging.Logger
}

func NewEngine(freq FrequencyLookup, logger logging.Logger) *Engine {
	return &Engine{policies: FieldPolicies, freq: freq, logger: logging.OrNop(logger)}
}

// Evaluate produces exactly one Decision per Signal, never erroring to the
// caller: any internal failure collapses to a REJECT with reason
// "reasoning_error" (spec §4.1 contract).
func (e *Engine) Evaluate(signals []domain.Signal) []domain.Decision {
	decisions := make([]domain.Decision, len(signals))
	for i, s := range signals {
		decisions[i] = e.evaluateOne(s)
	}
	return decisions
}

func (e *Engine) evaluateOne(s domain.Signal) (decision domain.Decision) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("cognition: panic evaluating signal %s.%s: %v", s.Category, s.Field, r)
			decision = domain.Decision{Action: domain.ActionReject, Target: domain.TargetNone, Reason: domain.ReasonReasoningError}
		}
	}()

	// 1. Persona short-circuit: never enters the learning path, never
	// logged to the pattern log.
	if s.EpistemicRole == domain.RolePersona {
		return domain.Decision{
			Action:     domain.ActionCommit,
			Target:     domain.TargetPersona,
			Scope:      []string{s.Field},
			Confidence: 1.0,
			Reason:     "persona_short_circuit",
		}
	}

	policy, known := e.policies[s.Field]
	if !known {
		return domain.Decision{Action: domain.ActionDefer, Target: domain.TargetPatternLog, Scope: []string{s.Field}, Reason: "unknown_field"}
	}

	// 2. Safety gate.
	if s.BaseConfidence < policy.MinConfidence {
		return domain.Decision{Action: domain.ActionReject, Reason: fmt.Sprintf("below_min_confidence:%.2f", policy.MinConfidence)}
	}

	frequency, err := e.enrichFrequency(s)
	if err != nil {
		e.logger.Warn("cognition: frequency lookup failed for %s.%s: %v", s.Category, s.Field, err)
		return domain.Decision{Action: domain.ActionReject, Reason: domain.ReasonReasoningError}
	}

	target := domain.TargetRuntime
	if policy.PersonaEligible {
		target = domain.TargetPersona
	}

	switch policy.Mode {
	case ModeExplicit:
		if s.Source == domain.SourceExplicit {
			return domain.Decision{Action: domain.ActionCommit, Target: target, Scope: []string{s.Field}, Confidence: s.BaseConfidence, Reason: "explicit_match"}
		}
		return domain.Decision{Action: domain.ActionReject, Reason: "explicit_required"}

	case ModeExplicitOrN:
		if s.Source == domain.SourceExplicit {
			return domain.Decision{Action: domain.ActionCommit, Target: target, Scope: []string{s.Field}, Confidence: s.BaseConfidence, Reason: "explicit_match"}
		}
		if frequency >= policy.MinFreq {
			return domain.Decision{Action: domain.ActionCommit, Target: target, Scope: []string{s.Field}, Confidence: s.BaseConfidence, Reason: "frequency_threshold"}
		}
		return domain.Decision{Action: domain.ActionProvisionalCommit, Target: domain.TargetRuntime, Scope: []string{s.Field}, Confidence: s.BaseConfidence, Reason: "below_frequency_threshold"}

	case ModeImplicit:
		if frequency >= policy.MinFreq {
			return domain.Decision{Action: domain.ActionCommit, Target: target, Scope: []string{s.Field}, Confidence: s.BaseConfidence, Reason: "frequency_threshold"}
		}
		return domain.Decision{Action: domain.ActionProvisionalCommit, Target: domain.TargetRuntime, Scope: []string{s.Field}, Confidence: s.BaseConfidence, Reason: "below_frequency_threshold"}

	case ModeHybrid:
		if s.Source == domain.SourceExplicit || frequency >= policy.MinFreq {
			return domain.Decision{Action: domain.ActionCommit, Target: target, Scope: []string{s.Field}, Confidence: s.BaseConfidence, Reason: "explicit_or_frequency"}
		}
		return domain.Decision{Action: domain.ActionProvisionalCommit, Target: domain.TargetRuntime, Scope: []string{s.Field}, Confidence: s.BaseConfidence, Reason: "below_frequency_threshold"}

	default:
		return domain.Decision{Action: domain.ActionDefer, Target: domain.TargetPatternLog, Scope: []string{s.Field}, Reason: "unknown_mode"}
	}
}

func (e *Engine) enrichFrequency(s domain.Signal) (int, error) {
	if e.freq == nil {
		return s.Frequency, nil
	}
	n, err := e.freq.CountPriorOccurrences(s.Category, s.Field, s.Value)
	if err != nil {
		return 0, err
	}
	return n + 1, nil
}
