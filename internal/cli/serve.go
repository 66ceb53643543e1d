package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/heimdex/overlay-editor/internal/api"
	"github.com/heimdex/overlay-editor/internal/config"
	"github.com/heimdex/overlay-editor/internal/logging"
	"github.com/heimdex/overlay-editor/internal/media"
	"github.com/heimdex/overlay-editor/internal/playback"
	"github.com/heimdex/overlay-editor/internal/ui"
	"github.com/heimdex/overlay-editor/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the editor API and the tray icon",
	Long: `Start the loopback editing API used by the browser front-end. A tray icon
shows the overlay count and opens the editor unless --headless is set.

Examples:
  overlay-editor serve
  overlay-editor serve --port 9000 --headless
  overlay-editor serve --video ~/Videos/clip.mp4`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addServeFlags(serveCmd)
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("port", "p", 0, "Port for the loopback API")
	cmd.Flags().Bool("headless", false, "Run without the tray icon")
	cmd.Flags().String("video", "", "Video file to register on start")
	cmd.Flags().Bool("no-watch", false, "Do not reload the video when the file changes on disk")
}

func runServe(cmd *cobra.Command, args []string) error {
	startTime := time.Now()

	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		if err := cfg.SetPort(port); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("headless") {
		headless, _ := cmd.Flags().GetBool("headless")
		cfg.SetHeadless(headless)
	}

	logger.Info("starting overlay editor", "version", config.Version, "data_dir", cfg.DataDir())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.close()

	if noWatch, _ := cmd.Flags().GetBool("no-watch"); !noWatch {
		fw := watcher.New(logging.WithComponent(logger, "watcher"), watcher.DefaultDebounce)
		defer fw.Stop()
		watchVideo(ctx, sess, fw)
	}

	if video, _ := cmd.Flags().GetString("video"); video != "" {
		if _, err := sess.shell.LoadVideo(ctx, video); err != nil {
			logger.Warn("video not registered", "error", err)
		}
	}

	fmt.Println()
	fmt.Printf("  Overlay Editor %s\n", config.Version)
	fmt.Printf("  API URL: %s\n", cfg.EditorURL())
	fmt.Println()

	apiServer := api.NewServer(api.ServerConfig{
		Port:      cfg.Port(),
		Shell:     sess.shell,
		Playback:  playback.NewServer(logger),
		Logger:    logger,
		StartTime: startTime,
		Version:   config.Version,
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- apiServer.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	quitCh := make(chan struct{})
	var quitOnce sync.Once
	quit := func() { quitOnce.Do(func() { close(quitCh) }) }

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			quit()
		case <-quitCh:
		}
	}()

	var tray *ui.Tray
	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray = ui.NewTray(ui.TrayConfig{
			Shell:     sess.shell,
			EditorURL: cfg.EditorURL(),
			Logger:    logger,
			OnQuit:    quit,
		})
		go tray.Run()
	}

	var runErr error
	select {
	case <-quitCh:
	case err := <-serverErr:
		if err != nil {
			logger.Error("HTTP server error", "error", err)
			runErr = fmt.Errorf("http server: %w", err)
		}
		quit()
	}

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}
	if tray != nil {
		tray.Quit()
	}

	logger.Info("shutdown complete")
	return runErr
}

// watchVideo follows every registered video file, including one restored from
// the store, and probes it again when it is rewritten on disk.
func watchVideo(ctx context.Context, sess *session, fw *watcher.FileWatcher) {
	fw.OnChange(func(path string, event watcher.EventType) {
		if event == watcher.EventDelete {
			logger.Warn("video file removed or renamed", "path", logging.SanitizePath(path))
			return
		}
		info, ok, err := sess.shell.ReloadVideo(ctx)
		if err != nil {
			logger.Warn("video reload failed", "path", logging.SanitizePath(path), "error", err)
			return
		}
		if ok {
			logger.Info("video reloaded", "event", event.String(), "duration", info.Duration)
		}
	})

	sess.shell.OnVideoLoaded(func(info media.Info) {
		if err := fw.Watch(ctx, info.Path); err != nil {
			logger.Warn("video file not watched", "path", logging.SanitizePath(info.Path), "error", err)
		}
	})
}
