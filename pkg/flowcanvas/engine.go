package flowcanvas

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	fgerrors "github.com/randalmurphal/flowcanvas/pkg/flowcanvas/errors"
	"github.com/randalmurphal/flowcanvas/pkg/flowcanvas/history"
	"github.com/randalmurphal/flowcanvas/pkg/flowcanvas/llm"
	"github.com/randalmurphal/flowcanvas/pkg/flowcanvas/notify"
	"github.com/randalmurphal/flowcanvas/pkg/flowcanvas/observability"
)

// Engine executes validated pipelines against a model client.
// An Engine is safe for concurrent use; each Store admits one run at a time.
type Engine struct {
	client llm.Client
	cfg    engineConfig
}

// NewEngine creates an engine that invokes client for every run.
func NewEngine(client llm.Client, opts ...Option) *Engine {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Engine{client: client, cfg: cfg}
}

// Run executes pipeline on store.
//
// The run fails with ErrAlreadyRunning if store has a run pending, with a
// *ValidationError if the graph is not executable, with ErrPipelineMismatch
// if the graph no longer resolves to pipeline, and with an *llm.Error if the
// model call fails. On success the model output is written to the transform
// and sink nodes together; on any failure neither is touched.
//
// The returned error is nil exactly when the outcome succeeded.
func (e *Engine) Run(ctx context.Context, store *Store, pipeline Pipeline) (Outcome, error) {
	return e.execute(ctx, store, &pipeline)
}

// ValidateAndRun executes whatever pipeline store currently resolves to.
func (e *Engine) ValidateAndRun(ctx context.Context, store *Store) (Outcome, error) {
	return e.execute(ctx, store, nil)
}

// run carries the state of one execution.
type run struct {
	engine  *Engine
	ctx     context.Context
	logger  *slog.Logger
	outcome Outcome
	model   string
	slot    *runSlot
}

func (e *Engine) execute(ctx context.Context, store *Store, want *Pipeline) (Outcome, error) {
	if store == nil {
		return Outcome{Status: StatusFailed, Transitions: []State{StateIdle, StateFailed}, Err: ErrNilStore}, ErrNilStore
	}

	r := &run{
		engine: e,
		ctx:    ctx,
		outcome: Outcome{
			RunID:       uuid.NewString(),
			GraphID:     store.ID(),
			Transitions: []State{StateIdle},
			StartedAt:   time.Now().UTC(),
		},
	}
	if want != nil {
		r.outcome.Pipeline = *want
	}
	r.logger = observability.EnrichLogger(e.cfg.logger, r.outcome.RunID, r.outcome.GraphID)

	slot, err := store.beginRun()
	if err != nil {
		e.cfg.metrics.RecordRejected(ctx)
		observability.LogRunRejected(e.cfg.logger, store.ID())
		return r.fail(StateFailed, err)
	}
	defer slot.release()
	r.slot = slot

	observability.LogRunStart(e.cfg.logger, r.outcome.RunID, r.outcome.GraphID)
	if e.cfg.tracingEnabled {
		var span trace.Span
		r.ctx, span = e.cfg.spans.StartRunSpan(ctx, r.outcome.GraphID, r.outcome.RunID)
		defer func() {
			e.cfg.spans.EndSpanWithError(span, r.outcome.Err)
		}()
	}

	// Validating: every value the run uses is read from one snapshot.
	r.enter(StateValidating)
	snap := store.Snapshot()
	pipeline, err := Validate(snap)
	if err != nil {
		return r.fail(StateInvalid, err)
	}
	if want != nil && pipeline != *want {
		return r.fail(StateInvalid, fmt.Errorf("%w: graph resolves to %s -> %s -> %s",
			ErrPipelineMismatch, pipeline.SourceID, pipeline.TransformID, pipeline.SinkID))
	}
	if err := slot.pin(pipeline); err != nil {
		return r.fail(StateInvalid, fmt.Errorf("%w: %w", ErrPipelineMismatch, err))
	}
	r.outcome.Pipeline = pipeline

	source, _ := snap.Node(pipeline.SourceID)
	transform, _ := snap.Node(pipeline.TransformID)
	tp := transform.payload.(TransformPayload)
	req := llm.NewCompletionRequest(tp.ModelName, tp.Credential, source.payload.(SourcePayload).Text)
	r.model = req.Model

	// Invoking
	r.enter(StateInvoking)
	resp, err := r.invoke(req)
	if err != nil {
		return r.fail(StateFaulted, err)
	}

	// Completing
	r.enter(StateCompleting)
	if err := store.commitRun(pipeline, resp.Content); err != nil {
		return r.fail(StateFailed, err)
	}
	r.outcome.Output = resp.Content
	return r.succeed()
}

func (r *run) invoke(req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	e := r.engine
	ctx := r.ctx
	var span trace.Span
	if e.cfg.tracingEnabled {
		ctx, span = e.cfg.spans.StartInvokeSpan(ctx, req.Model)
	}

	start := time.Now()
	resp, err := e.client.Complete(ctx, req)
	if err == nil && resp == nil {
		err = llm.NewError("complete", llm.ErrMalformedResponse, errors.New("client returned no response"))
	}
	duration := time.Since(start)

	e.cfg.metrics.RecordInvocation(ctx, req.Model, duration, err)
	observability.LogInvoke(r.logger, req.Model, float64(duration.Milliseconds()), err)
	if e.cfg.tracingEnabled {
		if err == nil {
			span.SetAttributes(
				attribute.Int("flowcanvas.tokens.input", resp.Usage.InputTokens),
				attribute.Int("flowcanvas.tokens.output", resp.Usage.OutputTokens),
			)
		}
		e.cfg.spans.EndSpanWithError(span, err)
	}
	return resp, err
}

func (r *run) enter(s State) {
	prev := r.outcome.State()
	r.outcome.Transitions = append(r.outcome.Transitions, s)
	observability.LogTransition(r.logger, string(prev), string(s))
}

// fail moves through via (if it is not already terminal) to StateFailed.
func (r *run) fail(via State, err error) (Outcome, error) {
	if via != StateFailed {
		r.enter(via)
	}
	r.enter(StateFailed)
	r.outcome.Status = StatusFailed
	r.outcome.Err = err
	r.finish()
	return r.outcome, err
}

func (r *run) succeed() (Outcome, error) {
	r.enter(StateSucceeded)
	r.outcome.Status = StatusSucceeded
	r.finish()
	return r.outcome, nil
}

// finish records the outcome in metrics, logs, notifications and history.
// The store accepts a new run before notifiers and history are called.
func (r *run) finish() {
	if r.slot != nil {
		r.slot.release()
	}
	e := r.engine
	o := &r.outcome
	o.Duration = time.Since(o.StartedAt)
	durationMs := float64(o.Duration.Milliseconds())

	category := ""
	if o.Err != nil {
		category = fgerrors.Categorize(o.Err).String()
	}

	rejected := errors.Is(o.Err, ErrAlreadyRunning)
	if !rejected {
		e.cfg.metrics.RecordRun(r.ctx, o.Err == nil, category, o.Duration)
	}
	if o.Err != nil {
		observability.LogRunError(e.cfg.logger, o.RunID, o.Err, durationMs, category)
		if e.cfg.tracingEnabled {
			e.cfg.spans.AddSpanEvent(r.ctx, "run.failed", attribute.String("category", category))
		}
		r.notify(category)
	} else {
		observability.LogRunComplete(e.cfg.logger, o.RunID, durationMs, len(o.Output))
	}

	r.record(category)
}

func (r *run) notify(category string) {
	o := r.outcome
	n := notify.New(notify.SeverityError, o.RunID, o.GraphID, category, fgerrors.UserMessage(o.Err))
	// A cancelled run still reports why it failed.
	if err := r.engine.cfg.notifier.Notify(context.WithoutCancel(r.ctx), n); err != nil {
		r.logger.Warn("notification failed", "error", err)
	}
}

func (r *run) record(category string) {
	store := r.engine.cfg.history
	if store == nil {
		return
	}
	o := r.outcome
	rec := history.Record{
		RunID:     o.RunID,
		GraphID:   o.GraphID,
		Status:    string(o.Status),
		Category:  category,
		Model:     r.model,
		Output:    o.Output,
		StartedAt: o.StartedAt,
		Duration:  o.Duration,
	}
	if o.Err != nil {
		rec.Error = o.Err.Error()
	}
	if err := store.Save(rec); err != nil {
		observability.LogHistoryError(r.engine.cfg.logger, o.RunID, err)
	}
}
