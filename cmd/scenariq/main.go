// Scenariq daemon: runs simulations and drives their recommended actions
// through discovery, approval, and execution.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/scenariq/scenariq/internal/actions"
	"github.com/scenariq/scenariq/internal/api"
	"github.com/scenariq/scenariq/internal/config"
	"github.com/scenariq/scenariq/internal/discovery"
	"github.com/scenariq/scenariq/internal/embeddings"
	"github.com/scenariq/scenariq/internal/learning"
	"github.com/scenariq/scenariq/internal/logging"
	"github.com/scenariq/scenariq/internal/normalize"
	"github.com/scenariq/scenariq/internal/orchestrator"
	"github.com/scenariq/scenariq/internal/simulation"
	"github.com/scenariq/scenariq/internal/storage"
	"github.com/scenariq/scenariq/internal/vectors"
)

var (
	configPath string
	dataDir    string
	port       int
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "scenariq",
		Short: "Scenariq - simulation-to-action orchestration daemon",
		RunE:  runDaemon,
	}

	home, _ := os.UserHomeDir()
	defaultDataDir := filepath.Join(home, ".scenariq")

	rootCmd.Flags().StringVar(&configPath, "config", filepath.Join(defaultDataDir, "config.json"), "Config file path")
	rootCmd.Flags().StringVar(&dataDir, "data-dir", "", "Data directory (overrides config)")
	rootCmd.Flags().IntVar(&port, "port", 0, "HTTP server port (overrides config)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if port != 0 {
		cfg.Server.Port = port
	}

	level := logging.INFO
	if cfg.Pipeline.DebugMode {
		level = logging.DEBUG
	}
	log := logging.New(level, os.Stdout)

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := storage.Open(storage.Config{Path: cfg.DatabasePath()})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	// Embedding provider. The pipeline runs without it; scoring just loses
	// the semantic factor.
	embedder := embeddings.NewService(embeddings.Config{
		BaseURL: cfg.Ollama.URL,
		Model:   cfg.Ollama.Model,
		Timeout: cfg.Ollama.Timeout,
	})
	if err := embedder.Health(context.Background()); err != nil {
		log.Warn("Ollama not available, semantic scoring disabled: %v", err)
	} else {
		log.Info("Ollama connected (%s)", embedder.ModelName())
	}

	// Executor profile index. Optional.
	var profiles *vectors.Index
	if cfg.Qdrant.Enabled {
		idx, err := vectors.NewIndex(vectors.Config{
			Host: cfg.Qdrant.Host,
			Port: cfg.Qdrant.Port,
		})
		if err != nil {
			log.Warn("Qdrant not available, profiles will be embedded per pass: %v", err)
		} else if err := idx.EnsureCollection(context.Background(), embedder.Dimension()); err != nil {
			log.Warn("Qdrant collection setup failed: %v", err)
			idx.Close()
		} else {
			profiles = idx
			defer profiles.Close()
			log.Info("Qdrant connected")
		}
	}

	registry := discovery.NewRegistry(db)
	if err := registry.Load(context.Background()); err != nil {
		return fmt.Errorf("failed to load executor registry: %w", err)
	}
	stats := registry.Stats()
	log.Info("Loaded %d executors", stats.TotalExecutors)

	decisions := storage.NewDecisionStore(db)
	sims := storage.NewSimulationStore(db)
	learn := learning.NewStore(db)

	var scorerProfiles discovery.ProfileIndex
	if profiles != nil {
		scorerProfiles = profiles
	}
	scorer := discovery.NewScorer(registry, learn, embedder, scorerProfiles, log)

	runner := orchestrator.NewLocalRunner(cfg.Pipeline.ExecutionTimeout, log)
	hub := api.NewWebSocketHub(log)

	orch := orchestrator.New(
		decisions, sims, registry, scorer, learn,
		actions.NewExtractor(actions.DefaultPolicy()),
		runner, hub, log,
	)

	server := api.New(api.Config{
		Port:       cfg.Server.Port,
		Engine:     simulation.NewEngine(),
		Normalizer: normalize.New(),
		Orch:       orch,
		Registry:   registry,
		Sims:       sims,
		Decisions:  decisions,
		Learning:   learn,
		Embedder:   embedder,
		Profiles:   profiles,
		Threshold:  cfg.Pipeline.ConfidenceThreshold,
		Hub:        hub,
		Log:        log,
	})

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		log.Info("Shutting down")
		server.Stop(context.Background())
	}()

	return server.Start()
}
