package flowcanvas

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	fgerrors "github.com/randalmurphal/flowcanvas/pkg/flowcanvas/errors"
	"github.com/randalmurphal/flowcanvas/pkg/flowcanvas/history"
	"github.com/randalmurphal/flowcanvas/pkg/flowcanvas/llm"
	"github.com/randalmurphal/flowcanvas/pkg/flowcanvas/notify"
	"github.com/randalmurphal/flowcanvas/pkg/flowcanvas/observability"
)

func TestEngine_TwoPlusTwo(t *testing.T) {
	store, p := newPipelineStore(t)
	before := store.Snapshot()
	client := llm.NewMockClient("4")

	outcome, err := NewEngine(client).Run(testCtx(t), store, p)
	require.NoError(t, err)

	assert.Equal(t, StatusSucceeded, outcome.Status)
	assert.True(t, outcome.Succeeded())
	assert.Equal(t, "4", outcome.Output)
	assert.Nil(t, outcome.Err)
	assert.Equal(t, p, outcome.Pipeline)
	assert.Equal(t, store.ID(), outcome.GraphID)
	assert.NotEmpty(t, outcome.RunID)
	assert.Equal(t, []State{StateIdle, StateValidating, StateInvoking, StateCompleting, StateSucceeded}, outcome.Transitions)

	assert.Equal(t, "4", sinkPayload(t, store, p.SinkID).DisplayText)
	assert.Equal(t, "4", transformPayload(t, store, p.TransformID).Output)

	require.Equal(t, 1, client.CallCount())
	assert.Equal(t, llm.CompletionRequest{
		Model:       testModel,
		Credential:  testCredential,
		Prompt:      testPrompt,
		MaxTokens:   200,
		Temperature: 0.5,
	}, *client.LastCall())

	// Nothing else changed.
	var want []Node
	for _, n := range before.Nodes() {
		switch n.ID() {
		case p.TransformID:
			n, _ = n.UpdatePayload(Patch{FieldOutput: "4"})
		case p.SinkID:
			n, _ = n.UpdatePayload(Patch{FieldDisplayText: "4"})
		}
		want = append(want, n)
	}
	after := store.Snapshot()
	if diff := cmp.Diff(want, after.Nodes(), cmp.AllowUnexported(Node{})); diff != "" {
		t.Errorf("unexpected node changes (-want +got):\n%s", diff)
	}
	assert.Equal(t, before.Edges(), after.Edges())
}

func TestEngine_ValidateAndRun(t *testing.T) {
	store, p := newPipelineStore(t)

	outcome, err := NewEngine(llm.NewMockClient("4")).ValidateAndRun(testCtx(t), store)
	require.NoError(t, err)
	assert.Equal(t, p, outcome.Pipeline)
	assert.Equal(t, "4", sinkPayload(t, store, p.SinkID).DisplayText)
}

func TestEngine_InvalidGraphNeverInvokes(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(t *testing.T, store *Store, p Pipeline)
		sentinel error
		category error
	}{
		{
			name: "missing credential",
			mutate: func(t *testing.T, s *Store, p Pipeline) {
				require.NoError(t, s.UpdateNode(p.TransformID, Patch{FieldCredential: ""}))
			},
			sentinel: ErrMissingCredential,
			category: fgerrors.ErrInput,
		},
		{
			name: "empty input",
			mutate: func(t *testing.T, s *Store, p Pipeline) {
				require.NoError(t, s.UpdateNode(p.SourceID, Patch{FieldText: ""}))
			},
			sentinel: ErrEmptyInput,
			category: fgerrors.ErrInput,
		},
		{
			name:     "missing source",
			mutate:   func(t *testing.T, s *Store, p Pipeline) { require.NoError(t, s.RemoveNode(p.SourceID)) },
			sentinel: ErrMissingSource,
			category: fgerrors.ErrStructural,
		},
		{
			name:     "missing transform",
			mutate:   func(t *testing.T, s *Store, p Pipeline) { require.NoError(t, s.RemoveNode(p.TransformID)) },
			sentinel: ErrMissingTransform,
			category: fgerrors.ErrStructural,
		},
		{
			name:     "missing sink",
			mutate:   func(t *testing.T, s *Store, p Pipeline) { require.NoError(t, s.RemoveNode(p.SinkID)) },
			sentinel: ErrMissingSink,
			category: fgerrors.ErrStructural,
		},
		{
			name:     "disconnected",
			mutate:   func(t *testing.T, s *Store, p Pipeline) { require.NoError(t, s.Disconnect(p.SourceID, p.TransformID)) },
			sentinel: ErrDisconnected,
			category: fgerrors.ErrStructural,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, p := newPipelineStore(t)
			tt.mutate(t, store, p)
			client := llm.NewMockClient("4")

			outcome, err := NewEngine(client).Run(testCtx(t), store, p)
			require.ErrorIs(t, err, tt.sentinel)
			assert.ErrorIs(t, err, tt.category)
			assert.Equal(t, err, outcome.Err)
			assert.Equal(t, StatusFailed, outcome.Status)
			assert.Equal(t, []State{StateIdle, StateValidating, StateInvalid, StateFailed}, outcome.Transitions)
			assert.Zero(t, client.CallCount(), "no network interaction")
		})
	}
}

func TestEngine_AdapterFailureLeavesPayloads(t *testing.T) {
	kinds := []error{llm.ErrUnauthorized, llm.ErrUnavailable, llm.ErrMalformedResponse}

	for _, kind := range kinds {
		t.Run(kind.Error(), func(t *testing.T) {
			store, p := newPipelineStore(t)
			require.NoError(t, store.commitRun(p, "previous answer"))
			before := store.Snapshot()

			client := llm.NewMockClient("unused").WithError(llm.NewError("complete", kind, nil))
			outcome, err := NewEngine(client).Run(testCtx(t), store, p)

			require.ErrorIs(t, err, kind)
			assert.ErrorIs(t, err, fgerrors.ErrAdapter)
			assert.Equal(t, StatusFailed, outcome.Status)
			assert.Empty(t, outcome.Output)
			assert.Equal(t, []State{StateIdle, StateValidating, StateInvoking, StateFaulted, StateFailed}, outcome.Transitions)
			assert.Equal(t, 1, client.CallCount(), "never retried")

			if diff := cmp.Diff(before.Nodes(), store.Snapshot().Nodes(), cmp.AllowUnexported(Node{})); diff != "" {
				t.Errorf("failed run changed payloads (-before +after):\n%s", diff)
			}
		})
	}
}

func TestEngine_NilResponseIsMalformed(t *testing.T) {
	store, p := newPipelineStore(t)
	client := llm.NewMockClient("").WithCompleteFunc(func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return nil, nil
	})

	_, err := NewEngine(client).Run(testCtx(t), store, p)
	assert.ErrorIs(t, err, llm.ErrMalformedResponse)
	assert.Empty(t, sinkPayload(t, store, p.SinkID).DisplayText)
}

func TestEngine_EmptyOutputIsCommitted(t *testing.T) {
	store, p := newPipelineStore(t)
	require.NoError(t, store.commitRun(p, "stale"))

	outcome, err := NewEngine(llm.NewMockClient("")).Run(testCtx(t), store, p)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, outcome.Status)
	assert.Empty(t, sinkPayload(t, store, p.SinkID).DisplayText)
	assert.Empty(t, transformPayload(t, store, p.TransformID).Output)
}

func TestEngine_CancelledContext(t *testing.T) {
	store, p := newPipelineStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := NewEngine(llm.NewMockClient("4")).Run(ctx, store, p)
	require.ErrorIs(t, err, llm.ErrUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateFailed, outcome.State())
	assert.Empty(t, sinkPayload(t, store, p.SinkID).DisplayText)
}

func TestEngine_AlreadyRunning(t *testing.T) {
	store, p := newPipelineStore(t)
	release := make(chan struct{})
	client := llm.NewMockClient("4").WithRelease(release)
	rec := &notificationRecorder{}
	engine := NewEngine(client, WithNotifier(rec))

	type result struct {
		outcome Outcome
		err     error
	}
	first := make(chan result, 1)
	go func() {
		o, err := engine.Run(testCtx(t), store, p)
		first <- result{o, err}
	}()
	<-client.Started()

	outcome, err := engine.Run(testCtx(t), store, p)
	require.ErrorIs(t, err, ErrAlreadyRunning)
	assert.ErrorIs(t, err, fgerrors.ErrConcurrency)
	assert.Equal(t, []State{StateIdle, StateFailed}, outcome.Transitions)
	assert.Equal(t, 1, client.CallCount(), "second run issued no call")

	_, err = engine.ValidateAndRun(testCtx(t), store)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	close(release)
	res := <-first
	require.NoError(t, res.err)
	assert.Equal(t, "4", sinkPayload(t, store, p.SinkID).DisplayText)

	sent := rec.all()
	require.Len(t, sent, 2)
	assert.Equal(t, "The workflow is already running", sent[0].Message)
	assert.Equal(t, "concurrency", sent[0].Category)

	// The slot is free again.
	_, err = engine.Run(testCtx(t), store, p)
	assert.NoError(t, err)
}

func TestEngine_SeparateGraphsRunConcurrently(t *testing.T) {
	storeA, pa := newPipelineStore(t)
	storeB, pb := newPipelineStore(t)
	release := make(chan struct{})
	client := llm.NewMockClient("4").WithRelease(release)
	engine := NewEngine(client)

	errs := make(chan error, 2)
	go func() { _, err := engine.Run(testCtx(t), storeA, pa); errs <- err }()
	go func() { _, err := engine.Run(testCtx(t), storeB, pb); errs <- err }()
	<-client.Started()
	<-client.Started()
	close(release)

	assert.NoError(t, <-errs)
	assert.NoError(t, <-errs)
}

func TestEngine_InputsFrozenAtStart(t *testing.T) {
	store, p := newPipelineStore(t)
	release := make(chan struct{})
	client := llm.NewMockClient("4").WithRelease(release)

	done := make(chan error, 1)
	go func() {
		_, err := NewEngine(client).Run(testCtx(t), store, p)
		done <- err
	}()
	<-client.Started()

	require.NoError(t, store.UpdateNode(p.SourceID, Patch{FieldText: "What is 3+3?"}))
	require.NoError(t, store.UpdateNode(p.TransformID, Patch{FieldCredential: "sk-other", FieldModelName: "other-model"}))
	close(release)
	require.NoError(t, <-done)

	call := client.LastCall()
	assert.Equal(t, testPrompt, call.Prompt)
	assert.Equal(t, testCredential, call.Credential)
	assert.Equal(t, testModel, call.Model)

	// The edits themselves were kept; only the output fields were written.
	tp := transformPayload(t, store, p.TransformID)
	assert.Equal(t, TransformPayload{Credential: "sk-other", ModelName: "other-model", Output: "4"}, tp)
	src, _ := store.Node(p.SourceID)
	assert.Equal(t, SourcePayload{Text: "What is 3+3?"}, src.Payload())
}

func TestEngine_PinnedNodesDuringRun(t *testing.T) {
	store, p := newPipelineStore(t)
	release := make(chan struct{})
	client := llm.NewMockClient("4").WithRelease(release)

	done := make(chan error, 1)
	go func() {
		_, err := NewEngine(client).Run(testCtx(t), store, p)
		done <- err
	}()
	<-client.Started()

	assert.ErrorIs(t, store.RemoveNode(p.SinkID), ErrNodeInUse)
	assert.ErrorIs(t, store.RemoveNode(p.TransformID), ErrNodeInUse)
	require.NoError(t, store.Disconnect(p.TransformID, p.SinkID))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, "4", sinkPayload(t, store, p.SinkID).DisplayText)

	assert.NoError(t, store.RemoveNode(p.SinkID))
}

func TestEngine_PipelineMismatch(t *testing.T) {
	store, p := newPipelineStore(t)
	stale := p
	stale.SinkID = "sink-gone"
	client := llm.NewMockClient("4")

	outcome, err := NewEngine(client).Run(testCtx(t), store, stale)
	require.ErrorIs(t, err, ErrPipelineMismatch)
	assert.ErrorIs(t, err, fgerrors.ErrStructural)
	assert.Equal(t, StateFailed, outcome.State())
	assert.Contains(t, outcome.Transitions, StateInvalid)
	assert.Zero(t, client.CallCount())
}

func TestEngine_NilStore(t *testing.T) {
	outcome, err := NewEngine(llm.NewMockClient("4")).ValidateAndRun(testCtx(t), nil)
	assert.ErrorIs(t, err, ErrNilStore)
	assert.Equal(t, StatusFailed, outcome.Status)
	assert.Equal(t, fgerrors.CategoryUnknown, fgerrors.Categorize(err))
}

func TestEngine_StuckNotifierDoesNotHoldStore(t *testing.T) {
	store, p := newPipelineStore(t)
	require.NoError(t, store.UpdateNode(p.TransformID, Patch{FieldCredential: ""}))

	entered := make(chan struct{})
	unblock := make(chan struct{})
	var once sync.Once
	notifier := notify.NotifierFunc(func(context.Context, notify.Notification) error {
		once.Do(func() { close(entered) })
		<-unblock
		return nil
	})
	engine := NewEngine(llm.NewMockClient("4"), WithNotifier(notifier))

	done := make(chan error, 1)
	go func() {
		_, err := engine.Run(testCtx(t), store, p)
		done <- err
	}()
	<-entered

	require.NoError(t, store.UpdateNode(p.TransformID, Patch{FieldCredential: testCredential}))
	outcome, err := engine.Run(testCtx(t), store, p)
	require.NoError(t, err)
	assert.Equal(t, "4", outcome.Output)

	close(unblock)
	var verr *ValidationError
	require.ErrorAs(t, <-done, &verr)
	assert.Equal(t, ReasonMissingCredential, verr.Reason)
}

func TestEngine_NotifiesOnFailureOnly(t *testing.T) {
	store, p := newPipelineStore(t)
	rec := &notificationRecorder{}
	engine := NewEngine(llm.NewMockClient("4"), WithNotifier(rec))

	_, err := engine.Run(testCtx(t), store, p)
	require.NoError(t, err)
	assert.Empty(t, rec.all())

	require.NoError(t, store.UpdateNode(p.TransformID, Patch{FieldCredential: ""}))
	outcome, err := engine.Run(testCtx(t), store, p)
	require.Error(t, err)

	sent := rec.all()
	require.Len(t, sent, 1)
	assert.Equal(t, outcome.RunID, sent[0].RunID)
	assert.Equal(t, store.ID(), sent[0].GraphID)
	assert.Equal(t, "input", sent[0].Category)
	assert.Contains(t, sent[0].Message, "Please fill all required fields")
	assert.Contains(t, sent[0].Message, "MissingCredential")
}

func TestEngine_RecordsHistory(t *testing.T) {
	store, p := newPipelineStore(t)
	hist := history.NewMemoryStore()
	engine := NewEngine(llm.NewMockClient("4"), WithHistory(hist))

	ok, err := engine.Run(testCtx(t), store, p)
	require.NoError(t, err)

	require.NoError(t, store.UpdateNode(p.SourceID, Patch{FieldText: ""}))
	failed, err := engine.Run(testCtx(t), store, p)
	require.Error(t, err)

	records, err := hist.List(store.ID())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, ok.RunID, records[0].RunID)
	assert.Equal(t, history.StatusSucceeded, records[0].Status)
	assert.Equal(t, "4", records[0].Output)
	assert.Equal(t, testModel, records[0].Model)
	assert.Empty(t, records[0].Category)

	assert.Equal(t, failed.RunID, records[1].RunID)
	assert.Equal(t, history.StatusFailed, records[1].Status)
	assert.Equal(t, "input", records[1].Category)
	assert.Contains(t, records[1].Error, "EmptyInput")
}

// brokenHistory fails every save.
type brokenHistory struct {
	history.Store
}

func (brokenHistory) Save(history.Record) error { return errors.New("disk full") }

func TestEngine_HistoryFailureDoesNotChangeOutcome(t *testing.T) {
	store, p := newPipelineStore(t)
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	outcome, err := NewEngine(llm.NewMockClient("4"), WithHistory(brokenHistory{}), WithLogger(logger)).Run(testCtx(t), store, p)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, outcome.Status)
	assert.Contains(t, buf.String(), "disk full")
}

func TestEngine_LogsTransitions(t *testing.T) {
	store, p := newPipelineStore(t)
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	outcome, err := NewEngine(llm.NewMockClient("4"), WithLogger(logger)).Run(testCtx(t), store, p)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, outcome.RunID)
	assert.Contains(t, out, store.ID())
	assert.Contains(t, out, `"to":"completing"`)
}

func TestEngine_Metrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	recorder, err := observability.NewMetricsRecorderWithMeter(provider.Meter("flowcanvas-test"))
	require.NoError(t, err)

	store, p := newPipelineStore(t)
	engine := NewEngine(llm.NewMockClient("4"), WithMetricsRecorder(recorder))
	_, err = engine.Run(testCtx(t), store, p)
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	names := make(map[string]bool)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	assert.True(t, names["flowcanvas.run.count"], "got %v", names)
	assert.True(t, names["flowcanvas.invoke.count"], "got %v", names)
}

func TestEngine_Tracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	spans := observability.NewSpanManagerWithTracer(tp.Tracer(observability.TracerName))

	store, p := newPipelineStore(t)
	engine := NewEngine(llm.NewMockClient("4"), WithSpanManager(spans))
	for range 2 {
		exporter.Reset()
		_, err := engine.Run(testCtx(t), store, p)
		require.NoError(t, err)

		var names []string
		for _, s := range exporter.GetSpans() {
			names = append(names, s.Name)
		}
		assert.ElementsMatch(t, []string{"flowcanvas.invoke", "flowcanvas.run"}, names)
	}
}

func TestEngine_TracingGlobalProvider(t *testing.T) {
	engine := NewEngine(llm.NewMockClient("4"), WithTracing(true))
	store, p := newPipelineStore(t)

	for range 2 {
		exporter := tracetest.NewInMemoryExporter()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
		original := otel.GetTracerProvider()
		otel.SetTracerProvider(tp)

		_, err := engine.Run(testCtx(t), store, p)
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
		require.NoError(t, err)
		assert.Len(t, exporter.GetSpans(), 2)
	}
}

func TestEngine_ConcurrentRunsAdmitOneAtATime(t *testing.T) {
	store, p := newPipelineStore(t)
	client := llm.NewMockClient("4")
	engine := NewEngine(client)

	var succeeded, rejected atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Run(testCtx(t), store, p)
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, ErrAlreadyRunning):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(16), succeeded.Load()+rejected.Load())
	assert.Equal(t, int(succeeded.Load()), client.CallCount())
	assert.GreaterOrEqual(t, succeeded.Load(), int32(1))
}
