// Package orchestrator implements the per-turn glue (C14) and the
// background worker wiring (C15): STM gate -> route-based retrieval ->
// prompt assembly -> chat LLM -> background job dispatch. Grounded on the
// original source's orchestration/process_conversation.py and the teacher's
// async.Queue-backed background dispatch idiom.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/avneeshrai07/Agent-Memory-System/internal/artifact"
	"github.com/avneeshrai07/Agent-Memory-System/internal/async"
	domaincognition "github.com/avneeshrai07/Agent-Memory-System/internal/domain/cognition"
	domainepistemic "github.com/avneeshrai07/Agent-Memory-System/internal/domain/epistemic"
	domainpersona "github.com/avneeshrai07/Agent-Memory-System/internal/domain/persona"
	"github.com/avneeshrai07/Agent-Memory-System/internal/domain/stm"
	"github.com/avneeshrai07/Agent-Memory-System/internal/extractor"
	"github.com/avneeshrai07/Agent-Memory-System/internal/logging"
	"github.com/avneeshrai07/Agent-Memory-System/internal/memorystore"
	"github.com/avneeshrai07/Agent-Memory-System/internal/metrics"
	"github.com/avneeshrai07/Agent-Memory-System/internal/patternlog"
	"github.com/avneeshrai07/Agent-Memory-System/internal/persona"
	"github.com/avneeshrai07/Agent-Memory-System/internal/retrieval"
	"github.com/avneeshrai07/Agent-Memory-System/internal/stmstore"
)

// traceScope names the tracer this package starts spans under, matching the
// teacher's per-package scope constant convention.
const traceScope = "memorycore.orchestrator"

const (
	traceSpanHandleTurn = "memorycore.orchestrator.handle_turn"
	traceAttrUserID     = "memorycore.user_id"
	traceAttrRoute      = "memorycore.route"
	traceAttrStatus     = "memorycore.status"
)

// ChatFunc calls the external chat LLM (out of scope per spec §1 — the
// orchestrator only defines the call shape it needs).
type ChatFunc func(ctx context.Context, systemPrompt, userPrompt string) (string, error)

// Cognition is the subset of the cognition engine the orchestrator drives
// for persona learning.
type Cognition interface {
	Evaluate(signals []domaincognition.Signal) []domaincognition.Decision
}

// Rules is the epistemic rule source rendered into the system prompt (spec
// §4.8).
type Rules interface {
	Active() []domainepistemic.Rule
}

// Orchestrator implements C14. Exactly one instance is shared
// process-wide; all mutable state beyond the DB pool lives in the
// background queue it owns.
type Orchestrator struct {
	extractor    extractor.Extractor
	stmGate      *stmstore.Gate
	stmStore     *stmstore.Store
	retriever    *retrieval.Retriever
	cognition    Cognition
	projector    func(persona.ExtractedPersona, []domaincognition.Decision) domainpersona.Persona
	merger       *persona.Merger
	writer       *memorystore.Writer
	memStore     memorystore.Store
	patternLog   *patternlog.Store
	materializer *artifact.Materializer
	rules        Rules
	chat         ChatFunc
	queue        *async.Queue
	logger       logging.Logger
	metrics      *metrics.Memory
}

type Deps struct {
	Extractor    extractor.Extractor
	STMGate      *stmstore.Gate
	STMStore     *stmstore.Store
	Retriever    *retrieval.Retriever
	Cognition    Cognition
	Merger       *persona.Merger
	Writer       *memorystore.Writer
	MemStore     memorystore.Store
	PatternLog   *patternlog.Store
	Materializer *artifact.Materializer
	Rules        Rules
	Chat         ChatFunc
	Queue        *async.Queue
	Logger       logging.Logger
	Metrics      *metrics.Memory
}

func New(d Deps) *Orchestrator {
	return &Orchestrator{
		extractor:    d.Extractor,
		stmGate:      d.STMGate,
		stmStore:     d.STMStore,
		retriever:    d.Retriever,
		cognition:    d.Cognition,
		projector:    persona.Project,
		merger:       d.Merger,
		writer:       d.Writer,
		memStore:     d.MemStore,
		patternLog:   d.PatternLog,
		materializer: d.Materializer,
		rules:        d.Rules,
		chat:         d.Chat,
		queue:        d.Queue,
		logger:       logging.OrNop(d.Logger),
		metrics:      d.Metrics,
	}
}

// TurnResult is what HandleTurn returns to the HTTP handler.
type TurnResult struct {
	Response string
}

// HandleTurn implements spec §4.7's eight-step per-turn sequence.
func (o *Orchestrator) HandleTurn(ctx context.Context, userID, systemPrompt, userPrompt string) (result TurnResult, err error) {
	ctx, span := otel.Tracer(traceScope).Start(ctx, traceSpanHandleTurn, trace.WithAttributes(attribute.String(traceAttrUserID, userID)))
	defer func() { markSpanResult(span, err) }()

	extraction, err := o.extractor.ExtractTurn(ctx, userID, systemPrompt, userPrompt)
	if err != nil {
		return TurnResult{}, fmt.Errorf("orchestrator: extract turn: %w", err)
	}
	span.SetAttributes(attribute.String(traceAttrRoute, string(extraction.Route)))

	stmID, accepted, err := o.stmGate.Commit(ctx, userID, extraction.STMIntent)
	if err != nil {
		o.logger.Warn("orchestrator: stm commit failed for user %s: %v", userID, err)
	} else if accepted {
		o.logger.Debug("orchestrator: committed stm entry %s for user %s", stmID, userID)
	}

	retrievedPrompt, err := o.buildRetrievedContext(ctx, userID, extraction.Route, userPrompt)
	if err != nil {
		return TurnResult{}, fmt.Errorf("orchestrator: retrieval: %w", err)
	}

	finalSystemPrompt := o.assembleSystemPrompt(systemPrompt)
	finalUserPrompt := retrievedPrompt + "\n\n" + userPrompt

	response, err := o.chat(ctx, finalSystemPrompt, finalUserPrompt)
	if err != nil {
		return TurnResult{}, fmt.Errorf("orchestrator: chat: %w", err)
	}

	o.enqueueBackgroundWork(userID, userPrompt, string(extraction.Route), response, extraction)

	return TurnResult{Response: response}, nil
}

func (o *Orchestrator) buildRetrievedContext(ctx context.Context, userID string, route extractor.Route, userPrompt string) (string, error) {
	var sb strings.Builder

	switch route {
	case extractor.RouteCurrentContext:
		active, err := o.stmStore.ActiveForUser(ctx, userID)
		if err != nil {
			return "", fmt.Errorf("stm snapshot: %w", err)
		}
		// the snapshot carries at most the 7 newest active entries
		if len(active) > 7 {
			active = active[:7]
		}
		writeSTMSnapshot(&sb, active)

		result, err := o.retriever.Retrieve(ctx, userID, userPrompt)
		if err != nil {
			return "", err
		}
		writeRetrievalResult(&sb, result)

	case extractor.RouteEdit:
		sb.WriteString("[artifact required for edit route]\n")

	case extractor.RouteReference, extractor.RouteSemanticLookup:
		sb.WriteString("[artifact summaries list for reference/semantic_lookup route]\n")

	default:
		result, err := o.retriever.Retrieve(ctx, userID, userPrompt)
		if err != nil {
			return "", err
		}
		writeRetrievalResult(&sb, result)
	}

	return sb.String(), nil
}

func markSpanResult(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(traceAttrStatus, "error"))
		span.End()
		return
	}
	span.SetStatus(codes.Ok, "")
	span.SetAttributes(attribute.String(traceAttrStatus, "success"))
	span.End()
}

func writeSTMSnapshot(sb *strings.Builder, entries []stm.Entry) {
	if len(entries) == 0 {
		return
	}
	sb.WriteString("## Active state\n")
	for _, e := range entries {
		fmt.Fprintf(sb, "- [%s] %s\n", e.StateType, e.Statement)
	}
}

func writeRetrievalResult(sb *strings.Builder, result retrieval.Result) {
	if len(result.Episodic) > 0 {
		sb.WriteString("## Context\n")
		for _, m := range result.Episodic {
			fmt.Fprintf(sb, "- %s\n", m.Fact)
		}
	}
	if len(result.Factual) > 0 {
		sb.WriteString("## Known facts\n")
		for _, m := range result.Factual {
			fmt.Fprintf(sb, "- %s\n", m.Fact)
		}
	}
}

func (o *Orchestrator) assembleSystemPrompt(base string) string {
	var sb strings.Builder
	sb.WriteString(base)
	if o.rules == nil {
		return sb.String()
	}
	rules := o.rules.Active()
	if len(rules) == 0 {
		return sb.String()
	}
	sb.WriteString("\n\n## Epistemic rules\n")
	for _, r := range rules {
		if r.Category == domainepistemic.CategoryInvariant {
			continue // invariants are enforced pre-action, not rendered
		}
		fmt.Fprintf(&sb, "- (%s) %s\n", r.Category, r.Statement)
	}
	return sb.String()
}

// enqueueBackgroundWork enqueues two background jobs, plus a third when
// the predicate holds, as spec §4.7 step 8 names: persona learning, LTM extraction, and — iff
// the artifact predicate holds — artifact materialization.
func (o *Orchestrator) enqueueBackgroundWork(userID, rawContext, route, response string, extraction extractor.TurnExtraction) {
	o.queue.Enqueue(async.Job{
		Name: "persona-learn:" + userID,
		Run: func(ctx context.Context) error {
			return o.learnPersona(ctx, userID, extraction.PersonaSignal.Signals)
		},
	})

	o.queue.Enqueue(async.Job{
		Name: "ltm-extract:" + userID,
		Run: func(ctx context.Context) error {
			return o.extractLTM(ctx, userID, extraction, rawContext)
		},
	})

	if artifact.ShouldMaterialize(route, response) {
		o.queue.Enqueue(async.Job{
			Name: "artifact-materialize:" + userID,
			Run: func(ctx context.Context) error {
				_, err := o.materializer.Materialize(ctx, artifact.DefaultType, summarize(response), response, map[string]any{"user_id": userID})
				return err
			},
		})
	}

	if o.metrics != nil {
		o.metrics.SetQueueDepth(o.queue.Depth())
	}
}

func (o *Orchestrator) learnPersona(ctx context.Context, userID string, signals []domaincognition.Signal) error {
	if len(signals) == 0 {
		return nil
	}
	decisions := o.cognition.Evaluate(signals)

	extracted := persona.ExtractedPersona{}
	for _, s := range signals {
		extracted[s.Field] = s.Value
	}

	for i, d := range decisions {
		if signals[i].EpistemicRole == domaincognition.RolePersona {
			continue // persona short-circuit never hits the pattern log
		}
		if err := o.patternLog.Append(ctx, userID, patternlog.Entry{
			SignalCategory: signals[i].Category,
			SignalField:    signals[i].Field,
			SignalValue:    signals[i].Value,
			Action:         d.Action,
			Target:         d.Target,
			Confidence:     d.Confidence,
			Reason:         d.Reason,
		}); err != nil {
			o.logger.Warn("orchestrator: pattern log append failed: %v", err)
		}
	}

	projected := o.projector(extracted, decisions)
	if len(projected.Blocks) == 0 {
		return nil
	}
	return o.merger.Merge(userID, projected)
}

func (o *Orchestrator) extractLTM(ctx context.Context, userID string, extraction extractor.TurnExtraction, rawContext string) error {
	factualResult := o.writer.WriteFactual(ctx, userID, extraction.Factual, rawContext)
	if factualResult.Failed > 0 {
		o.logger.Warn("orchestrator: %d factual writes failed for user %s", factualResult.Failed, userID)
	}
	episodicResult := o.writer.WriteEpisodic(ctx, userID, extraction.Episodic)
	if episodicResult.Failed > 0 {
		o.logger.Warn("orchestrator: %d episodic writes failed for user %s", episodicResult.Failed, userID)
	}
	return nil
}

func summarize(response string) string {
	const maxLen = 140
	trimmed := strings.TrimSpace(response)
	if len(trimmed) <= maxLen {
		return trimmed
	}
	return trimmed[:maxLen] + "..."
}

// RunBackgroundQueue launches the single consumer goroutine for the
// lifetime of ctx (spec §5: "a single background consumer drains an
// unbounded FIFO queue in the same process").
func (o *Orchestrator) RunBackgroundQueue(ctx context.Context) {
	async.Go(queueLogger{o.logger}, "background-queue", func() { o.queue.Run(ctx) })
}

type queueLogger struct{ l logging.Logger }

func (q queueLogger) Error(format string, args ...any) { q.l.Error(format, args...) }

// RunDecay schedules the episodic decay sweep (C11) on a fixed interval
// until ctx is cancelled.
func RunDecay(ctx context.Context, decayer *memorystore.Decayer, interval time.Duration, logger logging.Logger) {
	logger = logging.OrNop(logger)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := decayer.Run(ctx); err != nil {
				logger.Warn("decay sweep failed: %v", err)
			}
		}
	}
}
