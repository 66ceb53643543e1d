package ui

import (
	"fmt"
	"os/exec"
	"runtime"
)

// OpenBrowser asks the desktop to open url.
func OpenBrowser(url string) error {
	name, args := browserCommand(runtime.GOOS, url)
	if err := exec.Command(name, args...).Start(); err != nil {
		return fmt.Errorf("open %s: %w", url, err)
	}
	return nil
}

func browserCommand(goos, url string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{url}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}
	default:
		return "xdg-open", []string{url}
	}
}
