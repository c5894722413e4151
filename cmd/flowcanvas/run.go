package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/flowcanvas/pkg/flowcanvas"
	"github.com/randalmurphal/flowcanvas/pkg/flowcanvas/config"
	"github.com/randalmurphal/flowcanvas/pkg/flowcanvas/history"
	"github.com/randalmurphal/flowcanvas/pkg/flowcanvas/llm"
	"github.com/randalmurphal/flowcanvas/pkg/flowcanvas/notify"
	"github.com/randalmurphal/flowcanvas/pkg/flowcanvas/observability"
)

// credentialEnv is read when --credential is not given.
const credentialEnv = "OPENAI_API_KEY"

var runFlags struct {
	prompt      string
	model       string
	credential  string
	endpoint    string
	configPath  string
	historyPath string
	dryRun      bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Validate and execute the workflow once",
	Args:  cobra.NoArgs,
	RunE:  runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.prompt, "prompt", "", "Text for the source node")
	f.StringVar(&runFlags.model, "model", "", "Model name for the LLM node")
	f.StringVar(&runFlags.credential, "credential", "", "API key for the LLM node (default $"+credentialEnv+")")
	f.StringVar(&runFlags.endpoint, "endpoint", "", "Completions endpoint URL (overrides config)")
	f.StringVar(&runFlags.configPath, "config", "", "Settings file (YAML or JSON)")
	f.StringVar(&runFlags.historyPath, "history", "", "SQLite file recording run outcomes (overrides config)")
	f.BoolVar(&runFlags.dryRun, "dry-run", false, "Echo the prompt instead of calling the endpoint")
}

func runRun(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings(runFlags.configPath)
	if err != nil {
		return err
	}
	if runFlags.endpoint != "" {
		settings.Endpoint = runFlags.endpoint
	}
	if runFlags.historyPath != "" {
		settings.HistoryPath = runFlags.historyPath
	}
	level, err := settings.Level()
	if err != nil {
		return err
	}
	stderr := &lockedWriter{w: cmd.ErrOrStderr()}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	credential := runFlags.credential
	if credential == "" {
		credential = os.Getenv(credentialEnv)
	}

	store, err := buildWorkflow(runFlags.prompt, credential, runFlags.model)
	if err != nil {
		return err
	}

	var client llm.Client
	if runFlags.dryRun {
		client = llm.NewMockClient(runFlags.prompt)
	} else {
		client = llm.NewCompletionsClient(
			llm.WithEndpoint(settings.Endpoint),
			llm.WithTimeout(settings.Timeout),
			llm.WithLogger(logger),
		)
	}

	bus := notify.NewBus(notify.DefaultBusConfig)
	bus.Subscribe(printNotification(stderr))

	opts := []flowcanvas.Option{
		flowcanvas.WithLogger(logger),
		flowcanvas.WithNotifier(bus),
	}
	if settings.HistoryPath != "" {
		hist, err := history.NewSQLiteStore(settings.HistoryPath)
		if err != nil {
			_ = bus.Close()
			return fmt.Errorf("open history: %w", err)
		}
		defer hist.Close()
		opts = append(opts, flowcanvas.WithHistory(hist))
	}

	elapsed := observability.TimedOperation()
	outcome, runErr := flowcanvas.NewEngine(client, opts...).ValidateAndRun(cmd.Context(), store)
	// Close drains pending notifications before the error is printed.
	if err := bus.Close(); err != nil {
		logger.Warn("close notification bus", "error", err)
	}
	logger.Debug("run finished", "run_id", outcome.RunID, "status", outcome.Status, "elapsed_ms", elapsed())
	if runErr != nil {
		return runErr
	}

	fmt.Fprintln(cmd.OutOrStdout(), outcome.Output)
	return nil
}

// loadSettings reads path if set and overlays FLOWCANVAS_* variables.
func loadSettings(path string) (config.Settings, error) {
	cfg := config.New(nil)
	if path != "" {
		var err error
		if cfg, err = config.FromFile(path); err != nil {
			return config.Settings{}, err
		}
	}
	return config.SettingsFrom(cfg.Merge(config.FromEnv(os.Environ())))
}

// buildWorkflow creates source -> transform -> sink with the given fields.
// Empty fields are left for validation to report.
func buildWorkflow(prompt, credential, model string) (*flowcanvas.Store, error) {
	store := flowcanvas.NewStore()

	src, err := store.AddNodeAt(flowcanvas.KindSource, flowcanvas.Position{X: 0, Y: 0})
	if err != nil {
		return nil, err
	}
	tr, err := store.AddNodeAt(flowcanvas.KindTransform, flowcanvas.Position{X: 250, Y: 0})
	if err != nil {
		return nil, err
	}
	sink, err := store.AddNodeAt(flowcanvas.KindSink, flowcanvas.Position{X: 500, Y: 0})
	if err != nil {
		return nil, err
	}

	steps := []func() error{
		func() error { return store.Connect(src, tr) },
		func() error { return store.Connect(tr, sink) },
		func() error { return store.UpdateNode(src, flowcanvas.Patch{flowcanvas.FieldText: prompt}) },
		func() error {
			return store.UpdateNode(tr, flowcanvas.Patch{
				flowcanvas.FieldCredential: credential,
				flowcanvas.FieldModelName:  model,
			})
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func printNotification(w io.Writer) notify.Handler {
	return func(_ context.Context, n notify.Notification) {
		fmt.Fprintf(w, "%s: %s\n", n.Severity, n.Message)
	}
}

// lockedWriter serializes writes from the logger and the notification subscriber.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
