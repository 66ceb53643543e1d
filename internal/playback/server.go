// Package playback streams the registered local video to the browser preview
// with HTTP Range support, so the media element can seek.
package playback

import (
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
)

// PlaybackService writes a local file to an HTTP response.
type PlaybackService interface {
	ServeFile(w http.ResponseWriter, r *http.Request, filePath string) error
}

type Server struct {
	logger *slog.Logger
}

func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{logger: logger}
}

// ServeFile answers GET and HEAD for filePath, including byte ranges and
// conditional requests. A missing file is a 404 and is not reported as an
// error.
func (s *Server) ServeFile(w http.ResponseWriter, r *http.Request, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "file not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if stat.IsDir() {
		http.Error(w, "not a file", http.StatusBadRequest)
		return nil
	}

	w.Header().Set("Content-Type", ContentType(filePath))
	w.Header().Set("Cache-Control", "no-cache")

	http.ServeContent(w, r, stat.Name(), stat.ModTime(), file)
	s.logger.Debug("video served", "path", filepath.Base(filePath), "range", r.Header.Get("Range"))
	return nil
}

// ContentType guesses the media type from the file extension.
func ContentType(filePath string) string {
	ext := filepath.Ext(filePath)
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	switch ext {
	case ".mkv":
		return "video/x-matroska"
	case ".mov":
		return "video/quicktime"
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	}
	return "application/octet-stream"
}
