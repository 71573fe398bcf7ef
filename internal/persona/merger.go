package persona

import (
	"time"

	domainpersona "github.com/avneeshrai07/Agent-Memory-System/internal/domain/persona"
)

// ConfidenceOverrideThreshold is the block-atomic overwrite gate (spec
// §4.2): a projected block replaces a stored block only if its confidence
// meets this bar.
const ConfidenceOverrideThreshold = 0.80

// Store is the persistence contract the merger writes through (C4).
type Store interface {
	LoadPersona(userID string) (domainpersona.Persona, error)
	SavePersona(p domainpersona.Persona) error
}

// Merger applies a projected persona delta onto the stored persona and
// writes the result back in a single upsert.
type Merger struct {
	store Store
}

func NewMerger(store Store) *Merger {
	return &Merger{store: store}
}

// Merge loads the stored persona, block-atomically overwrites blocks that
// clear ConfidenceOverrideThreshold, and persists the whole row in one
// upsert. Never partially applies a block (spec §7: "no partial persona
// updates are ever persisted").
func (m *Merger) Merge(userID string, projected domainpersona.Persona) error {
	stored, err := m.store.LoadPersona(userID)
	if err != nil {
		return err
	}
	if stored.Blocks == nil {
		stored.Blocks = map[domainpersona.BlockName]domainpersona.Block{}
	}
	stored.UserID = userID

	merged := MergeInto(stored, projected)
	merged.LastUpdated = time.Now().UTC()
	return m.store.SavePersona(merged)
}

// MergeInto is the pure merge function, exposed separately so it can be
// tested without a store. For each block present in projected: if the
// stored block is absent, take the projected block; otherwise overwrite
// block-atomically iff confidence >= ConfidenceOverrideThreshold. Empty
// projected blocks never overwrite.
func MergeInto(stored, projected domainpersona.Persona) domainpersona.Persona {
	out := domainpersona.Persona{UserID: stored.UserID, Blocks: map[domainpersona.BlockName]domainpersona.Block{}}
	for name, b := range stored.Blocks {
		out.Blocks[name] = b
	}

	for name, pb := range projected.Blocks {
		if pb.IsEmpty() {
			continue
		}
		existing, present := out.Blocks[name]
		if !present {
			out.Blocks[name] = pb
			continue
		}
		if pb.Confidence >= ConfidenceOverrideThreshold {
			out.Blocks[name] = pb
			continue
		}
		out.Blocks[name] = existing
	}
	return out
}
