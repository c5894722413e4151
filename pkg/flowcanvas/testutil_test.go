package flowcanvas

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/flowcanvas/pkg/flowcanvas/notify"
)

// Values used by the standard three-node graph.
const (
	testPrompt     = "What is 2+2?"
	testCredential = "sk-test"
	testModel      = "test-model"
)

// testCtx returns a context that is cancelled when the test ends.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// newPipelineStore builds source -> transform -> sink with every field filled.
func newPipelineStore(t *testing.T) (*Store, Pipeline) {
	t.Helper()
	store := NewStore()

	src, err := store.AddNode(KindSource)
	require.NoError(t, err)
	tr, err := store.AddNode(KindTransform)
	require.NoError(t, err)
	sink, err := store.AddNode(KindSink)
	require.NoError(t, err)

	require.NoError(t, store.Connect(src, tr))
	require.NoError(t, store.Connect(tr, sink))
	require.NoError(t, store.UpdateNode(src, Patch{FieldText: testPrompt}))
	require.NoError(t, store.UpdateNode(tr, Patch{
		FieldCredential: testCredential,
		FieldModelName:  testModel,
	}))

	return store, Pipeline{SourceID: src, TransformID: tr, SinkID: sink}
}

// transformPayload reads the transform payload of id from store.
func transformPayload(t *testing.T, store *Store, id string) TransformPayload {
	t.Helper()
	n, ok := store.Node(id)
	require.True(t, ok, "node %s missing", id)
	return n.Payload().(TransformPayload)
}

// sinkPayload reads the sink payload of id from store.
func sinkPayload(t *testing.T, store *Store, id string) SinkPayload {
	t.Helper()
	n, ok := store.Node(id)
	require.True(t, ok, "node %s missing", id)
	return n.Payload().(SinkPayload)
}

// notificationRecorder collects notifications sent by the engine.
type notificationRecorder struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *notificationRecorder) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *notificationRecorder) all() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Notification, len(r.sent))
	copy(out, r.sent)
	return out
}
