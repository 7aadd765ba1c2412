// Command loreforge runs a single game session on the terminal: it loads the
// configuration, builds the provider and persistence stack, creates or
// resumes a game, and feeds stdin lines through the turn orchestrator while
// the plot planner runs in the background.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/loreforge/loreforge/internal/config"
	"github.com/loreforge/loreforge/internal/observe"
	"github.com/loreforge/loreforge/internal/orchestrator"
	"github.com/loreforge/loreforge/internal/persist"
	"github.com/loreforge/loreforge/internal/persist/memstore"
	"github.com/loreforge/loreforge/internal/persist/postgres"
	"github.com/loreforge/loreforge/internal/planner"
	"github.com/loreforge/loreforge/internal/rules"
	"github.com/loreforge/loreforge/internal/state"
	"github.com/loreforge/loreforge/pkg/events"
	"github.com/loreforge/loreforge/pkg/llm"
	"github.com/loreforge/loreforge/pkg/llm/mock"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	gameID := flag.String("game", "", "game id to resume; empty starts a new game")
	metricsAddr := flag.String("metrics", "", "address to serve /metrics on; empty disables")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "loreforge: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "loreforge: %v\n", err)
		}
		return 1
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.Level.Slog()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "loreforge"})
	if err != nil {
		slog.Error("telemetry init failed", "error", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "error", err)
		}
	}()

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("metrics init failed", "error", err)
		return 1
	}

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				slog.Error("metrics endpoint failed", "error", err)
			}
		}()
		slog.Info("metrics endpoint up", "addr", *metricsAddr)
	}

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	base, err := reg.CreateLLM(cfg.LLM)
	if err != nil {
		slog.Error("provider creation failed", "name", cfg.LLM.Name, "error", err)
		return 1
	}
	provider := timeoutProvider{Provider: base, timeout: cfg.LLM.Timeout()}
	slog.Info("provider created", "name", cfg.LLM.Name, "model", cfg.LLM.Model, "timeout", cfg.LLM.Timeout())

	gateway, cleanup, err := openGateway(ctx, cfg.Memory.PostgresDSN)
	if err != nil {
		slog.Error("persistence init failed", "error", err)
		return 1
	}
	defer cleanup()

	seed := cfg.Game.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	engine := rules.NewEngine(cfg.Game.Difficulty, seed, logger)

	st, err := openGame(ctx, cfg, gateway, engine, *gameID)
	if err != nil {
		slog.Error("game init failed", "error", err)
		return 1
	}

	orch, err := orchestrator.New(ctx, orchestrator.Options{
		Provider: provider,
		Gateway:  gateway,
		Engine:   engine,
		State:    st,
		Limits:   cfg.Memory.Limits(),
		Metrics:  metrics,
		Log:      logger,
	})
	if err != nil {
		slog.Error("orchestrator init failed", "error", err)
		return 1
	}

	pl := planner.New(provider, gateway, logger)

	slog.Info("session ready",
		"game", st.GameID,
		"player", st.PlayerName,
		"system_type", st.SystemType,
		"difficulty", cfg.Game.Difficulty,
	)

	code := repl(ctx, orch, pl)

	saveCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := orch.ForceSave(saveCtx); err != nil {
		slog.Error("final save failed", "error", err)
		return 1
	}
	slog.Info("session saved", "game", st.GameID)
	return code
}

// registerBuiltinProviders wires the provider factories this binary links in.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterLLM("mock", func(entry config.ProviderEntry) (llm.Provider, error) {
		return &mock.Provider{Default: "The System renders the scene in sparse grey text."}, nil
	})
}

// timeoutProvider applies the configured per-call deadline to every
// SendMessage on every stream it opens.
type timeoutProvider struct {
	llm.Provider
	timeout time.Duration
}

func (p timeoutProvider) StartAgent(ctx context.Context, systemPrompt string) (llm.AgentStream, error) {
	stream, err := p.Provider.StartAgent(ctx, systemPrompt)
	if err != nil {
		return nil, err
	}
	return timeoutStream{stream: stream, timeout: p.timeout}, nil
}

type timeoutStream struct {
	stream  llm.AgentStream
	timeout time.Duration
}

func (s timeoutStream) SendMessage(ctx context.Context, text string) (<-chan llm.Chunk, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	ch, err := s.stream.SendMessage(callCtx, text)
	if err != nil {
		cancel()
		return nil, err
	}
	out := make(chan llm.Chunk)
	go func() {
		defer cancel()
		defer close(out)
		for c := range ch {
			out <- c
		}
	}()
	return out, nil
}

// openGateway selects the persistence backend: Postgres when a DSN is
// configured, the in-memory store otherwise.
func openGateway(ctx context.Context, dsn string) (persist.Gateway, func(), error) {
	if dsn == "" {
		return memstore.NewStore(), func() {}, nil
	}
	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

// openGame resumes the identified game from the gateway, or creates a fresh
// one from the character-creation config.
func openGame(ctx context.Context, cfg *config.Config, gw persist.Gateway, engine *rules.Engine, gameID string) (state.GameState, error) {
	if gameID != "" {
		st, err := gw.LoadGame(ctx, gameID)
		if err == nil {
			slog.Info("game resumed", "game", gameID, "level", st.CharacterSheet.Level)
			return st, nil
		}
		if !errors.Is(err, persist.ErrNotFound) {
			return state.GameState{}, err
		}
		slog.Warn("game not found, starting fresh", "game", gameID)
	}

	cc := cfg.Game.CharacterCreation
	var custom state.Stats
	if cc.CustomStats != nil {
		custom = *cc.CustomStats
	}
	sheet := state.NewCharacterSheet(state.AllocateStats(cc.StatAllocation, custom, engine.RNG()))

	id := gameID
	if id == "" {
		id = uuid.NewString()
	}
	return state.NewGame(id, cc.Name, cc.Backstory, cfg.Game.SystemType, cfg.Game.Difficulty, sheet, cfg.Game.PlayerPreferences), nil
}

// repl feeds stdin lines through the orchestrator until EOF or cancellation.
// The first turn is the blank bootstrap input that plays the opening
// narration.
func repl(ctx context.Context, orch *orchestrator.Orchestrator, pl *planner.Planner) int {
	pending := make(chan state.PlotGraph, 1)

	playTurn(ctx, orch, "")
	maybeReplan(ctx, orch, pl, pending)

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		playTurn(ctx, orch, scanner.Text())

		// Plot-graph adoption happens between turns, when no turn can be
		// in flight.
		select {
		case g := <-pending:
			if !orch.AdoptPlotGraph(g) {
				pending <- g
			}
		default:
		}
		maybeReplan(ctx, orch, pl, pending)

		fmt.Print("> ")
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		slog.Error("stdin read failed", "error", err)
		return 1
	}
	fmt.Println()
	return 0
}

// playTurn runs one turn and renders its event stream to stdout.
func playTurn(ctx context.Context, orch *orchestrator.Orchestrator, input string) {
	for ev := range orch.ProcessInput(ctx, input) {
		render(ev)
	}
}

// render prints one event in terminal form.
func render(ev events.Event) {
	switch e := ev.(type) {
	case events.NarratorText:
		fmt.Println(e.Text)
	case events.NPCDialogue:
		fmt.Printf("%s: %s\n", e.NPCName, e.Text)
	case events.CombatLog:
		fmt.Println("  " + e.Text)
	case events.StatChange:
		fmt.Printf("  [%s %d → %d]\n", e.StatName, e.OldValue, e.NewValue)
	case events.ItemGained:
		fmt.Printf("  [obtained %dx %s]\n", e.Quantity, e.ItemName)
	case events.QuestUpdate:
		fmt.Printf("  [quest %s: %s]\n", e.Status, e.QuestName)
	case events.SystemNotification:
		fmt.Println("[System] " + e.Text)
	default:
		fmt.Println(events.Describe(ev))
	}
}

// maybeReplan triggers a background planning run when the snapshot warrants
// one. The resulting graph is parked on pending for adoption between turns.
// A trigger while a run is in flight is dropped.
func maybeReplan(ctx context.Context, orch *orchestrator.Orchestrator, pl *planner.Planner, pending chan<- state.PlotGraph) {
	st := orch.State()
	devs := planner.DetectDeviations(st, orch.LastNarration())
	reason, ok := pl.ShouldPlan(st, devs)
	if !ok {
		return
	}

	mode := state.ReplanIncremental
	switch {
	case len(st.PlotGraph.Nodes) == 0:
		mode = state.ReplanFull
	case len(devs) > 0:
		mode = state.ReplanAdaptive
	}

	progress, result, err := pl.Run(ctx, st, mode, reason, devs)
	if err != nil {
		if !errors.Is(err, planner.ErrBusy) {
			slog.Error("planner trigger failed", "error", err)
		}
		return
	}
	go func() {
		for p := range progress {
			slog.Debug("planning", "stage", p.Stage, "message", p.Message)
		}
		res := <-result
		if res.Err != nil {
			slog.Error("planning run failed", "error", res.Err)
			return
		}
		slog.Info("planning run complete",
			"nodes_added", res.Session.NodesAdded,
			"consensus", res.Session.Consensus,
		)
		select {
		case pending <- res.Graph:
		default:
		}
	}()
}
