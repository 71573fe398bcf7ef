package memorystore

import (
	"context"
	"fmt"

	"github.com/avneeshrai07/Agent-Memory-System/internal/logging"
	"github.com/avneeshrai07/Agent-Memory-System/internal/metrics"
)

// Decayer implements Episodic Decay (C11): a periodic sweep that deletes
// expired episodic rows. Idempotent — a second run against the same state
// deletes nothing (spec §4.5).
type Decayer struct {
	store   Store
	logger  logging.Logger
	metrics *metrics.Memory
}

func NewDecayer(store Store, logger logging.Logger) *Decayer {
	return &Decayer{store: store, logger: logging.OrNop(logger)}
}

// WithMetrics attaches a metrics sink; nil is safe (no-op).
func (d *Decayer) WithMetrics(m *metrics.Memory) *Decayer {
	d.metrics = m
	return d
}

// Run deletes every episodic row whose expires_at has passed, returning the
// number of rows removed.
func (d *Decayer) Run(ctx context.Context) (int64, error) {
	n, err := d.store.DeleteExpiredEpisodic(ctx)
	if err != nil {
		return 0, fmt.Errorf("decay: %w", err)
	}
	if n > 0 {
		d.logger.Info("decay: removed %d expired episodic rows", n)
	}
	if d.metrics != nil {
		d.metrics.RecordDecayed(n)
	}
	return n, nil
}
