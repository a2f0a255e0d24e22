// Command runners shared by the CLI entry point.
//
// Information Hiding:
// - Provider/loop/storage assembly hidden behind setup
// - Persistence is best-effort: warnings go to stderr, conversations continue

package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/loomworks/loom/config"
	"github.com/loomworks/loom/llm"
	"github.com/loomworks/loom/loop"
	"github.com/loomworks/loom/storage"
	"github.com/loomworks/loom/tools"
	"github.com/loomworks/loom/transcript"
)

// Options holds CLI-level configuration assembled from flags.
type Options struct {
	Provider              string
	Model                 string
	SessionID             string
	DBPath                string
	HideImages            bool
	OnlyNMostRecentImages int
	SystemPromptSuffix    string
	MaxIterations         int
	ToolRetries           uint32
	Verbose               bool
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Provider:              "anthropic",
		SessionID:             "default",
		OnlyNMostRecentImages: -1, // -1 means "use settings"
		MaxIterations:         -1,
		ToolRetries:           3,
	}
}

// session bundles everything a running conversation needs.
type session struct {
	accumulator *transcript.Accumulator
	store       storage.TranscriptStorage
	settings    config.Settings
	mediaDir    string
	id          string
}

// setup assembles provider, tools, loop, storage and accumulator from options.
func setup(ctx context.Context, opts Options) (*session, func(), error) {
	settings, err := config.New(opts.Provider)
	if err != nil {
		return nil, nil, err
	}
	applyOverrides(&settings, opts)

	provider, err := createProvider(settings)
	if err != nil {
		return nil, nil, err
	}
	if opts.Verbose {
		fmt.Fprintf(os.Stderr, "Using %s (%s)\n", provider.Name(), provider.Model())
	}

	registry, err := tools.WithDefaults()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build tool registry: %w", err)
	}
	executor := tools.NewExecutor(tools.ToolConfig{MaxRetries: opts.ToolRetries})

	agentLoop := loop.New(provider, registry).WithExecutor(executor)

	suffix := opts.SystemPromptSuffix
	if suffix == "" {
		suffix = config.NewStore().SystemPromptSuffix()
	}

	accumulator := transcript.NewAccumulator(
		agentLoop,
		transcript.Policy{HideImages: settings.Display.HideImages},
		transcript.LoopOptions{
			Model:                 settings.LLM.Model,
			SystemPromptSuffix:    suffix,
			OnlyNMostRecentImages: settings.Loop.OnlyNMostRecentImages,
			MaxIterations:         settings.Loop.MaxIterations,
		},
	)

	sess := &session{
		accumulator: accumulator,
		settings:    settings,
		mediaDir:    filepath.Join(config.ConfigDir(), "media"),
		id:          opts.SessionID,
	}
	cleanup := func() {}

	// Persistence failures never block a conversation.
	store, err := storage.OpenSqlite(settings.Storage.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: transcript persistence disabled: %v\n", err)
		return sess, cleanup, nil
	}
	sess.store = store
	cleanup = func() { store.Close() }

	history, err := store.Load(ctx, sess.id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load session history: %v\n", err)
		return sess, cleanup, nil
	}
	accumulator.WithHistory(history)

	return sess, cleanup, nil
}

// applyOverrides layers non-zero flag values over environment settings.
func applyOverrides(settings *config.Settings, opts Options) {
	if opts.Model != "" {
		settings.LLM.Model = opts.Model
	}
	if opts.DBPath != "" {
		settings.Storage.DBPath = opts.DBPath
	}
	if opts.HideImages {
		settings.Display.HideImages = true
	}
	if opts.OnlyNMostRecentImages >= 0 {
		settings.Loop.OnlyNMostRecentImages = opts.OnlyNMostRecentImages
	}
	if opts.MaxIterations > 0 {
		settings.Loop.MaxIterations = opts.MaxIterations
	}
}

// createProvider builds an LLM provider from settings, preferring the
// environment API key and falling back to the persisted one.
func createProvider(settings config.Settings) (llm.Provider, error) {
	providerType, err := llm.ParseProviderType(settings.LLM.Provider)
	if err != nil {
		return nil, err
	}

	builder := llm.NewProviderBuilder(providerType).
		Model(settings.LLM.Model).
		MaxTokens(settings.LLM.MaxTokens).
		Temperature(float32(settings.LLM.Temperature))

	key, err := config.APIKeyFor(settings.LLM.Provider)
	if err != nil {
		key = config.NewStore().APIKey()
		if key == "" {
			return nil, fmt.Errorf("no API key for %s: set %s or run 'loom auth'",
				settings.LLM.Provider, envHint(settings.LLM.Provider))
		}
	}
	return builder.APIKey(key)
}

func envHint(provider string) string {
	name, err := config.APIKeyEnvFor(provider)
	if err != nil {
		return "the provider API key"
	}
	return name
}

// saveTranscript persists the accumulated history. Best-effort.
func (s *session) saveTranscript(ctx context.Context) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, s.id, s.accumulator.History()); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to save transcript: %v\n", err)
	}
}

// RunTask executes a single turn and exits.
func RunTask(ctx context.Context, task string, opts Options) error {
	sess, cleanup, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	r := newRenderer(os.Stdout, sess.mediaDir)
	if _, err := sess.accumulator.RunTurn(ctx, task, r.emit); err != nil {
		return err
	}
	sess.saveTranscript(ctx)
	return nil
}

// Chat runs an interactive conversation on stdin.
func Chat(ctx context.Context, opts Options) error {
	sess, cleanup, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	if history := sess.accumulator.History(); len(history) > 0 {
		fmt.Printf("Resuming session %q (%d turns)\n\n", sess.id, len(history))
		printHistory(os.Stdout, sess.mediaDir, history)
	}
	fmt.Println("Chat started. Type 'exit' to quit.")
	fmt.Println()

	r := newRenderer(os.Stdout, sess.mediaDir)
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(userPromptStyle.Render("> "))
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		r.reset()
		if _, err := sess.accumulator.RunTurn(ctx, input, r.emit); err != nil {
			// Only misuse or cancellation surface here; loop failures
			// already appeared in the transcript as error fragments.
			if ctx.Err() != nil {
				// The cancelled context can no longer drive a save.
				sess.saveTranscript(context.Background())
				return ctx.Err()
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		sess.saveTranscript(ctx)
		fmt.Println()
	}

	return scanner.Err()
}

// ListSessions prints all persisted session IDs.
func ListSessions(ctx context.Context, opts Options) error {
	settings, err := config.New(opts.Provider)
	if err != nil {
		return err
	}
	applyOverrides(&settings, opts)

	store, err := storage.OpenSqlite(settings.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	sessions, err := store.ListSessions(ctx)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No saved sessions.")
		return nil
	}
	for _, id := range sessions {
		fmt.Println(id)
	}
	return nil
}

// SaveAPIKey persists an API key for later runs.
func SaveAPIKey(key string) {
	config.NewStore().SetAPIKey(key)
	fmt.Println(noticeStyle.Render("API key saved."))
}

// SaveSystemPromptSuffix persists extra system prompt instructions.
func SaveSystemPromptSuffix(suffix string) {
	config.NewStore().SetSystemPromptSuffix(suffix)
	fmt.Println(noticeStyle.Render("System prompt suffix saved."))
}

// ListTools prints the available tools.
func ListTools(verbose bool) {
	registry, err := tools.WithDefaults()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}

	fmt.Println("Available tools:")
	for _, meta := range registry.List() {
		fmt.Printf("  %-20s %s\n", meta.Name, meta.Description)
		if !verbose {
			continue
		}
		for _, p := range meta.Parameters {
			required := ""
			if p.Required {
				required = " (required)"
			}
			fmt.Printf("      %s: %s%s - %s\n", p.Name, p.ParamType, required, p.Description)
		}
	}
}
