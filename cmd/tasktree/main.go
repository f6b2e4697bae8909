package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abatilo/tasktree/internal/config"
	"github.com/abatilo/tasktree/internal/logging"
	"github.com/abatilo/tasktree/internal/output"
	"github.com/abatilo/tasktree/internal/storage"
	"github.com/abatilo/tasktree/internal/store"
)

//nolint:gochecknoglobals // CLI flags and formatter are shared by every command
var (
	jsonOutput bool
	configDir  string
	formatter  output.Formatter
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tasktree",
		Short: "A hierarchical task tracker with dependency tracking",
		Long: "tasktree - tracks tasks addressed by slash-delimited paths, " +
			"keeps their dependency graph acyclic and propagates status changes to dependents.",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			formatter = output.New(jsonOutput)
		},
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "Directory containing tasktree.yaml (default: project root)")

	rootCmd.AddCommand(
		initCmd(),
		createCmd(),
		updateCmd(),
		showCmd(),
		listCmd(),
		treeCmd(),
		rmCmd(),
		applyCmd(),
		checkCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// loadConfig reads tasktree.yaml and builds the logger. Without a config
// file, tasks live as markdown files under ~/.tasktree/<project>.
func loadConfig() (*config.Config, *zap.Logger, error) {
	dir := configDir
	if dir == "" {
		if root, err := storage.FindProjectRoot(); err == nil {
			dir = root
		}
	}

	opts := []config.Option{config.WithBackendKind(config.BackendMarkdown)}
	if base, err := storage.DefaultDir(); err == nil {
		opts = append(opts, config.WithBackendPath(base))
	}

	cfg, err := config.Load(dir, opts...)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func getStore(ctx context.Context) (*store.Store, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return store.Open(ctx, cfg, logger)
}

func printOutput(s string) {
	os.Stdout.WriteString(s) //nolint:gosec // stdout write errors are unrecoverable
}

func printError(err error) {
	os.Stdout.WriteString(formatter.FormatError(err)) //nolint:gosec // stdout write errors are unrecoverable
	os.Exit(1)
}

// initCmd implements 'tasktree init'.
func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the configured backing store",
		Run: func(cmd *cobra.Command, _ []string) {
			cfg, _, err := loadConfig()
			if err != nil {
				printError(err)
			}
			if err = storage.Init(cmd.Context(), cfg.Backend, force); err != nil {
				printError(err)
			}

			where := cfg.Backend.Path
			switch cfg.Backend.Kind {
			case config.BackendPostgres:
				where = "postgres"
			case config.BackendMemory:
				where = "memory"
			}
			printOutput(formatter.FormatMessage(fmt.Sprintf("Initialized tasktree (%s) at %s", cfg.Backend.Kind, where)))
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Reinitialize even if already exists")
	return cmd
}
