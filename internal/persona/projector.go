// Package persona implements the Persona Projector/Merger (C8): projecting
// cognition decisions onto a minimal persona delta, then block-atomically
// merging that delta into the stored persona under a confidence gate.
// Grounded on the original source's persona_merger.py and expressed in the
// teacher's small-stateless-transform style.
package persona

import (
	domaincognition "github.com/avneeshrai07/Agent-Memory-System/internal/domain/cognition"
	domainpersona "github.com/avneeshrai07/Agent-Memory-System/internal/domain/persona"
)

// ExtractedPersona is the raw per-field value map the extractor (C2)
// produced for this turn, keyed by field name.
type ExtractedPersona map[string]any

// Project converts extracted field values plus cognition decisions into a
// minimal persona containing exactly the fields whose decision is
// COMMIT|PARTIAL_COMMIT with target=persona (spec §4.2). Blocks with zero
// surviving fields are omitted. The block-level confidence recorded is the
// decision confidence for that field (or the lowest of several, if more
// than one field lands in the same block).
func Project(extracted ExtractedPersona, decisions []domaincognition.Decision) domainpersona.Persona {
	blocks := map[domainpersona.BlockName]*domainpersona.Block{}

	for _, d := range decisions {
		if d.Target != domaincognition.TargetPersona {
			continue
		}
		if d.Action != domaincognition.ActionCommit && d.Action != domaincognition.ActionPartialCommit {
			continue
		}
		for _, field := range d.Scope {
			value, present := extracted[field]
			if !present {
				continue
			}
			blockName, ok := domainpersona.BlockFor(field)
			if !ok {
				continue
			}
			b, exists := blocks[blockName]
			if !exists {
				b = &domainpersona.Block{Fields: map[string]any{}, Confidence: d.Confidence}
				blocks[blockName] = b
			}
			b.Fields[field] = value
			if d.Confidence < b.Confidence {
				b.Confidence = d.Confidence
			}
		}
	}

	out := domainpersona.Persona{Blocks: map[domainpersona.BlockName]domainpersona.Block{}}
	for name, b := range blocks {
		if b.IsEmpty() {
			continue
		}
		out.Blocks[name] = *b
	}
	return out
}
