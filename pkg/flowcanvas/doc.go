// Package flowcanvas runs a three-node LLM workflow built on an editable graph.
//
// A graph holds exactly one source node (the prompt), one transform node
// (model name and credential) and one sink node (where the answer appears),
// connected source -> transform -> sink. The graph is edited through a Store,
// checked with Validate and executed by an Engine:
//
//	store := flowcanvas.NewStore()
//	src, _ := store.AddNode(flowcanvas.KindSource)
//	llmNode, _ := store.AddNode(flowcanvas.KindTransform)
//	out, _ := store.AddNode(flowcanvas.KindSink)
//	_ = store.Connect(src, llmNode)
//	_ = store.Connect(llmNode, out)
//
//	_ = store.UpdateNode(src, flowcanvas.Patch{flowcanvas.FieldText: "What is 2+2?"})
//	_ = store.UpdateNode(llmNode, flowcanvas.Patch{
//	    flowcanvas.FieldCredential: os.Getenv("OPENAI_API_KEY"),
//	    flowcanvas.FieldModelName:  "gpt-3.5-turbo-instruct",
//	})
//
//	engine := flowcanvas.NewEngine(llm.NewCompletionsClient())
//	outcome, err := engine.ValidateAndRun(ctx, store)
//
// # Runs
//
// A run reads the prompt, credential and model name from a single snapshot
// taken when it starts, so edits made while the model call is pending do not
// affect it. Each Store admits one run at a time; a second run started while
// one is pending fails immediately with ErrAlreadyRunning. Nodes captured by
// a pending run cannot be removed.
//
// On success the model output is written to the transform's Output and the
// sink's DisplayText in one step. On failure neither changes.
//
// # Errors
//
// Every run failure matches one category sentinel from the errors subpackage:
//
//	switch {
//	case errors.Is(err, fgerrors.ErrStructural): // graph shape
//	case errors.Is(err, fgerrors.ErrInput):      // empty field
//	case errors.Is(err, fgerrors.ErrConcurrency): // run pending
//	case errors.Is(err, fgerrors.ErrAdapter):    // model call
//	}
//
// ErrNilStore is a caller error returned before any run starts. It matches
// no category.
//
// Validation failures are *ValidationError values and also match a reason
// sentinel such as ErrMissingCredential.
package flowcanvas
