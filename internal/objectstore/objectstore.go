// Package objectstore implements the artifact object-store client contract
// (spec §1: "write(type, id, body) -> content_ref") as a local-filesystem
// backend wrapped with retry, grounded on the teacher's retry-wrapped
// infra clients (internal/infra/llm/retry_client.go) but using
// cenkalti/backoff directly, the way the rest of the example pack reaches
// for that library for non-LLM I/O retries.
package objectstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cenkalti/backoff/v4"

	"github.com/avneeshrai07/Agent-Memory-System/internal/logging"
)

// Client is the contract every artifact writer in the memory core depends
// on.
type Client interface {
	Write(ctx context.Context, artifactType, id string, body []byte) (contentRef string, err error)
}

// LocalClient persists artifacts under artifacts/{type}/{id}.md beneath a
// root directory, matching the object store layout in spec §6.
type LocalClient struct {
	root    string
	logger  logging.Logger
	backoff func() backoff.BackOff
}

func NewLocalClient(root string, logger logging.Logger) *LocalClient {
	return &LocalClient{
		root:   root,
		logger: logging.OrNop(logger),
		backoff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
		},
	}
}

// Write persists body under artifacts/{artifactType}/{id}.md and returns
// that relative path as the content_ref.
func (c *LocalClient) Write(ctx context.Context, artifactType, id string, body []byte) (string, error) {
	relPath := filepath.Join("artifacts", artifactType, id+".md")
	absPath := filepath.Join(c.root, relPath)

	op := func() error {
		if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
			return fmt.Errorf("objectstore: mkdir: %w", err)
		}
		if err := os.WriteFile(absPath, body, 0o644); err != nil {
			return fmt.Errorf("objectstore: write: %w", err)
		}
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(c.backoff(), ctx)); err != nil {
		c.logger.Error("objectstore: write failed after retries for %s/%s: %v", artifactType, id, err)
		return "", err
	}
	return relPath, nil
}
