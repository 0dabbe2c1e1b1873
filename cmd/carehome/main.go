package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/npezzotti/go-carehome/internal/app"
	"github.com/npezzotti/go-carehome/internal/backend"
	"github.com/npezzotti/go-carehome/internal/clock"
	"github.com/npezzotti/go-carehome/internal/config"
	"github.com/npezzotti/go-carehome/internal/database"
	"github.com/npezzotti/go-carehome/internal/feed"
	"github.com/npezzotti/go-carehome/internal/messaging"
	"github.com/npezzotti/go-carehome/internal/stats"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version = "dev"

	configPath string
	asUser     string
)

// env is what every command runs against. It is built before the command
// and torn down after it.
type env struct {
	cfg   *config.Config
	log   *zap.Logger
	mux   *http.ServeMux
	stats *stats.StatsUpdater
	app   *app.App
}

var rt env

var rootCmd = &cobra.Command{
	Use:           "carehome",
	Short:         "Care home logging, family feed and messaging",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return rt.open(cmd.Context())
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return rt.close()
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "carehome.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&asUser, "as", "", "switch the current user to this id before running")
}

func (e *env) open(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	store, err := database.Open(logger.Named("database"), cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	e.cfg = cfg
	e.log = logger
	e.mux = http.NewServeMux()
	e.stats = stats.NewStatsUpdater(e.mux)
	e.stats.Run()

	be := backend.NewMemory(logger.Named("backend"), feed.TableFeedItems, messaging.TableMessages)
	e.app = app.New(logger, e.stats, store, clock.System(), be)
	if err := e.app.Open(ctx); err != nil {
		store.Close()
		return err
	}

	if asUser != "" {
		if err := e.app.Directory.SetCurrentUser(asUser); err != nil {
			return err
		}
	}
	return nil
}

func (e *env) close() error {
	if e.app == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := e.app.Close(ctx)
	e.app = nil
	e.stats.Stop()
	_ = e.log.Sync()
	return err
}

func main() {
	// A missing .env file is fine; real environment variables still apply.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		rt.close()
		os.Exit(1)
	}
}
