// Package cli holds the overlay-editor commands.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/heimdex/overlay-editor/internal/app"
	"github.com/heimdex/overlay-editor/internal/config"
	"github.com/heimdex/overlay-editor/internal/db"
	"github.com/heimdex/overlay-editor/internal/imagemeta"
	"github.com/heimdex/overlay-editor/internal/logging"
	"github.com/heimdex/overlay-editor/internal/media"
	"github.com/heimdex/overlay-editor/internal/overlay"
)

var (
	cfg    *config.EnvConfig
	logger *slog.Logger

	dataDir  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "overlay-editor",
	Short: "Timed image overlay editor for local videos",
	Long: `overlay-editor keeps a list of timed image overlays for a local video,
serves the editing API to a browser front-end on the loopback interface and
imports or exports the list as a delimited file.

Run without a subcommand to start the editor.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.New()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		c.SetDataDir(dataDir)
		c.SetLogLevel(logLevel)
		cfg = c
		logger = logging.NewLogger(cfg.LogLevel())
		return nil
	},
	RunE: runServe,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().
		StringVar(&dataDir, "data-dir", "", "Directory holding the overlay database")
	rootCmd.PersistentFlags().
		StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	addServeFlags(rootCmd)
}

// session is an opened data directory.
type session struct {
	shell  *app.Shell
	images *imagemeta.Resolver
	close  func()
}

// openSession starts a shell on the configured data directory. A database
// that cannot be opened is logged and the shell runs on the default list in
// memory.
func openSession(ctx context.Context) (*session, error) {
	if err := os.MkdirAll(cfg.DataDir(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	closeDB := func() {}
	var repo overlay.Repository
	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		logger.Warn("database unavailable, changes will not be saved", "path", logging.SanitizePath(cfg.DBPath()), "error", err)
	} else {
		repo = overlay.NewRepository(database.Conn())
		closeDB = func() { database.Close() }
	}

	store := overlay.NewStore(repo, logging.WithComponent(logger, "store"))
	images := imagemeta.NewResolver(imagemeta.NewHTTPFetcher(cfg.ImageTimeout()), cfg.ImageTimeout(), logging.WithComponent(logger, "images"))
	prober := media.NewFFProbe(cfg.ProbeTimeout())

	shell := app.New(store, images, prober, logger)
	shell.Start(ctx)

	return &session{
		shell:  shell,
		images: images,
		close: func() {
			images.Wait()
			closeDB()
		},
	}, nil
}
