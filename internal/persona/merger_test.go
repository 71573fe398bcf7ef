package persona

import (
	"testing"

	domainpersona "github.com/avneeshrai07/Agent-Memory-System/internal/domain/persona"
)

func TestMergeIntoTakesAbsentBlock(t *testing.T) {
	stored := domainpersona.Persona{Blocks: map[domainpersona.BlockName]domainpersona.Block{}}
	projected := domainpersona.Persona{Blocks: map[domainpersona.BlockName]domainpersona.Block{
		domainpersona.BlockTone: {Fields: map[string]any{"tone": "professional"}, Confidence: 0.5},
	}}
	out := MergeInto(stored, projected)
	if out.Blocks[domainpersona.BlockTone].Fields["tone"] != "professional" {
		t.Fatalf("expected absent block to be taken regardless of confidence")
	}
}

func TestMergeIntoOverwritesOnlyAboveThreshold(t *testing.T) {
	stored := domainpersona.Persona{Blocks: map[domainpersona.BlockName]domainpersona.Block{
		domainpersona.BlockTone: {Fields: map[string]any{"tone": "casual"}, Confidence: 0.9},
	}}
	lowConfidence := domainpersona.Persona{Blocks: map[domainpersona.BlockName]domainpersona.Block{
		domainpersona.BlockTone: {Fields: map[string]any{"tone": "formal"}, Confidence: 0.5},
	}}
	out := MergeInto(stored, lowConfidence)
	if out.Blocks[domainpersona.BlockTone].Fields["tone"] != "casual" {
		t.Fatalf("expected stored block to survive a sub-threshold overwrite attempt")
	}

	highConfidence := domainpersona.Persona{Blocks: map[domainpersona.BlockName]domainpersona.Block{
		domainpersona.BlockTone: {Fields: map[string]any{"tone": "formal"}, Confidence: 0.85},
	}}
	out = MergeInto(stored, highConfidence)
	if out.Blocks[domainpersona.BlockTone].Fields["tone"] != "formal" {
		t.Fatalf("expected block-atomic overwrite at confidence >= threshold")
	}
}

func TestMergeIntoNeverOverwritesWithEmptyBlock(t *testing.T) {
	stored := domainpersona.Persona{Blocks: map[domainpersona.BlockName]domainpersona.Block{
		domainpersona.BlockTone: {Fields: map[string]any{"tone": "casual"}, Confidence: 0.9},
	}}
	empty := domainpersona.Persona{Blocks: map[domainpersona.BlockName]domainpersona.Block{
		domainpersona.BlockTone: {Fields: map[string]any{}, Confidence: 1.0},
	}}
	out := MergeInto(stored, empty)
	if out.Blocks[domainpersona.BlockTone].Fields["tone"] != "casual" {
		t.Fatalf("expected empty projected block to never overwrite")
	}
}
