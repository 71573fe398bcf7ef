package persona

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/avneeshrai07/Agent-Memory-System/internal/db"
	domainpersona "github.com/avneeshrai07/Agent-Memory-System/internal/domain/persona"
)

// schemaName matches the table namespace every other storage package in
// this module uses (spec §9 Open Question: agentic_memory_schema).
const schemaName = "agentic_memory_schema"
const table = schemaName + ".user_persona"

// PostgresStore implements Store (C4): one row per user holding the twelve
// block-structured persona columns as JSONB, grounded on the teacher's
// single-row-per-entity upsert pattern (internal/infra/kernel/postgres_store.go).
type PostgresStore struct {
	pool *db.Pool
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(pool *db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the user_persona table if absent, one JSONB column
// per block (spec §6 logical schema).
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	columns := make([]string, 0, len(domainpersona.AllBlocks))
	for _, b := range domainpersona.AllBlocks {
		columns = append(columns, string(b)+" JSONB")
	}
	columnList := ""
	for _, c := range columns {
		columnList += ",\n\t\t\t" + c
	}
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+table+` (
			user_id TEXT PRIMARY KEY`+columnList+`,
			last_updated TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("persona: ensure schema: %w", err)
	}
	return nil
}

// LoadPersona returns the stored persona for userID, or a Persona with an
// empty block map if the user has no row yet (every block absent means
// "not yet learned", never an error).
func (s *PostgresStore) LoadPersona(userID string) (domainpersona.Persona, error) {
	ctx := context.Background()
	cols := blockOnlyColumnList()
	row := s.pool.QueryRow(ctx, `SELECT `+cols+`, last_updated FROM `+table+` WHERE user_id = $1`, userID)

	raws := make([][]byte, len(domainpersona.AllBlocks))
	dest := make([]any, 0, len(raws)+1)
	for i := range raws {
		dest = append(dest, &raws[i])
	}
	var lastUpdated time.Time
	dest = append(dest, &lastUpdated)

	if err := row.Scan(dest...); err != nil {
		if err == pgx.ErrNoRows {
			return domainpersona.Persona{UserID: userID, Blocks: map[domainpersona.BlockName]domainpersona.Block{}}, nil
		}
		return domainpersona.Persona{}, fmt.Errorf("persona: load: %w", err)
	}

	blocks := map[domainpersona.BlockName]domainpersona.Block{}
	for i, name := range domainpersona.AllBlocks {
		if len(raws[i]) == 0 {
			continue
		}
		var fields map[string]any
		if err := json.Unmarshal(raws[i], &fields); err != nil {
			return domainpersona.Persona{}, fmt.Errorf("persona: unmarshal block %s: %w", name, err)
		}
		if len(fields) == 0 {
			continue
		}
		blocks[name] = domainpersona.Block{Fields: fields}
	}

	return domainpersona.Persona{UserID: userID, Blocks: blocks, LastUpdated: lastUpdated}, nil
}

// SavePersona writes the entire persona row in one upsert — every block
// column is serialized explicitly as JSON, matching spec §4.2's "the
// merger writes the entire persona row in one upsert; JSON blocks are
// serialized explicitly, never left as language-native dictionaries."
func (s *PostgresStore) SavePersona(p domainpersona.Persona) error {
	ctx := context.Background()

	values := make([]any, 0, len(domainpersona.AllBlocks)+2)
	values = append(values, p.UserID)
	for _, name := range domainpersona.AllBlocks {
		block, ok := p.Blocks[name]
		if !ok || block.IsEmpty() {
			values = append(values, nil)
			continue
		}
		raw, err := json.Marshal(block.Fields)
		if err != nil {
			return fmt.Errorf("persona: marshal block %s: %w", name, err)
		}
		values = append(values, raw)
	}
	lastUpdated := p.LastUpdated
	if lastUpdated.IsZero() {
		lastUpdated = time.Now().UTC()
	}
	values = append(values, lastUpdated)

	placeholders := make([]string, len(values))
	for i := range values {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	updateSet := ""
	for i, name := range domainpersona.AllBlocks {
		updateSet += fmt.Sprintf(", %s = $%d", name, i+2)
	}
	updateSet += fmt.Sprintf(", last_updated = $%d", len(values))

	query := fmt.Sprintf(`
		INSERT INTO %s (%s, last_updated)
		VALUES (%s)
		ON CONFLICT (user_id) DO UPDATE SET %s`,
		table, insertColumnList(), joinPlaceholders(placeholders), updateSet[2:])

	if _, err := s.pool.Exec(ctx, query, values...); err != nil {
		return fmt.Errorf("persona: save: %w", err)
	}
	return nil
}

func blockOnlyColumnList() string {
	out := string(domainpersona.AllBlocks[0])
	for _, b := range domainpersona.AllBlocks[1:] {
		out += ", " + string(b)
	}
	return out
}

func insertColumnList() string {
	out := "user_id"
	for _, b := range domainpersona.AllBlocks {
		out += ", " + string(b)
	}
	return out
}

func joinPlaceholders(ph []string) string {
	out := ph[0]
	for _, p := range ph[1:] {
		out += ", " + p
	}
	return out
}
