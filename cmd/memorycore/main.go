// memorycore runs the agentic memory subsystem's HTTP server: the
// POST /model turn endpoint, the background persona/LTM worker, and the
// episodic decay ticker, all wired by internal/bootstrap.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/avneeshrai07/Agent-Memory-System/internal/bootstrap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx)
	if err != nil {
		log.Fatalf("memorycore: bootstrap failed: %v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("memorycore: exited: %v", err)
	}
}
