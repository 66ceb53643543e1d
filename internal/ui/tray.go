package ui

import (
	_ "embed"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/heimdex/overlay-editor/internal/app"
)

//go:embed icon.png
var iconBytes []byte

const refreshInterval = 2 * time.Second

type Tray struct {
	shell     *app.Shell
	editorURL string
	logger    *slog.Logger

	overlaysItem *systray.MenuItem
	videoItem    *systray.MenuItem

	mu   sync.Mutex
	done chan struct{}

	openURL func(string) error
	onQuit  func()
}

type TrayConfig struct {
	Shell     *app.Shell
	EditorURL string
	Logger    *slog.Logger
	// OpenURL opens the editor in a browser. Defaults to OpenBrowser.
	OpenURL func(string) error
	OnQuit  func()
}

func NewTray(cfg TrayConfig) *Tray {
	openURL := cfg.OpenURL
	if openURL == nil {
		openURL = OpenBrowser
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Tray{
		shell:     cfg.Shell,
		editorURL: cfg.EditorURL,
		logger:    logger,
		done:      make(chan struct{}),
		openURL:   openURL,
		onQuit:    cfg.OnQuit,
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Overlays")
	systray.SetTooltip("Overlay Editor")

	t.overlaysItem = systray.AddMenuItem(OverlaysTitle(0), "Overlays in the working list")
	t.overlaysItem.Disable()

	t.videoItem = systray.AddMenuItem(VideoTitle("", false), "Registered video")
	t.videoItem.Disable()

	systray.AddSeparator()

	openItem := systray.AddMenuItem("Open Editor", "Open the editor in a browser")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Overlay Editor")

	t.refresh()
	go t.refreshLoop()

	go func() {
		for {
			select {
			case <-openItem.ClickedCh:
				t.handleOpen()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	close(t.done)
	t.logger.Info("system tray exiting")
}

func (t *Tray) refreshLoop() {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.refresh()
		case <-t.done:
			return
		}
	}
}

func (t *Tray) refresh() {
	if t.shell == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.overlaysItem.SetTitle(OverlaysTitle(t.shell.Session().Len()))
	v, ok := t.shell.Video()
	t.videoItem.SetTitle(VideoTitle(v.Name, ok))
}

func (t *Tray) handleOpen() {
	if err := t.openURL(t.editorURL); err != nil {
		t.logger.Error("failed to open editor", "url", t.editorURL, "error", err)
	}
}

func (t *Tray) Quit() {
	systray.Quit()
}

func OverlaysTitle(n int) string {
	if n == 1 {
		return "1 overlay"
	}
	return fmt.Sprintf("%d overlays", n)
}

func VideoTitle(name string, loaded bool) string {
	if !loaded || name == "" {
		return "Video: none"
	}
	return "Video: " + name
}
