package playback

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeClip(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.webm")
	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(i % 251)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	return path
}

func serve(t *testing.T, method, path, rangeHeader string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, "/video/file", nil)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	w := httptest.NewRecorder()
	if err := NewServer(nil).ServeFile(w, req, path); err != nil {
		t.Fatalf("ServeFile() error = %v", err)
	}
	return w
}

func TestServeFile_Full(t *testing.T) {
	path := writeClip(t)
	w := serve(t, http.MethodGet, path, "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.Len() != 1000 || w.Header().Get("Content-Length") != "1000" {
		t.Errorf("body = %d bytes, Content-Length %q", w.Body.Len(), w.Header().Get("Content-Length"))
	}
	if w.Header().Get("Accept-Ranges") != "bytes" {
		t.Error("missing Accept-Ranges")
	}
	if w.Header().Get("Content-Type") != "video/webm" {
		t.Errorf("Content-Type = %q", w.Header().Get("Content-Type"))
	}
}

func TestServeFile_Range(t *testing.T) {
	path := writeClip(t)
	w := serve(t, http.MethodGet, path, "bytes=100-199")

	if w.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", w.Code)
	}
	if got := w.Header().Get("Content-Range"); got != "bytes 100-199/1000" {
		t.Errorf("Content-Range = %q", got)
	}
	body, _ := io.ReadAll(w.Body)
	if len(body) != 100 || body[0] != byte(100%251) {
		t.Errorf("body = %d bytes starting %d", len(body), body[0])
	}
}

func TestServeFile_Unsatisfiable(t *testing.T) {
	path := writeClip(t)
	w := serve(t, http.MethodGet, path, "bytes=5000-")

	if w.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Fatalf("status = %d, want 416", w.Code)
	}
	if got := w.Header().Get("Content-Range"); got != "bytes */1000" {
		t.Errorf("Content-Range = %q", got)
	}
}

func TestServeFile_InvalidRange(t *testing.T) {
	path := writeClip(t)
	w := serve(t, http.MethodGet, path, "frames=1-2")

	if w.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Errorf("status = %d, want 416", w.Code)
	}
}

func TestServeFile_SuffixRange(t *testing.T) {
	path := writeClip(t)
	w := serve(t, http.MethodGet, path, "bytes=-10")

	if w.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", w.Code)
	}
	if got := w.Header().Get("Content-Range"); got != "bytes 990-999/1000" {
		t.Errorf("Content-Range = %q", got)
	}
	if w.Body.Len() != 10 {
		t.Errorf("body = %d bytes, want 10", w.Body.Len())
	}
}

func TestServeFile_NotModified(t *testing.T) {
	path := writeClip(t)
	stat, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/video/file", nil)
	req.Header.Set("If-Modified-Since", stat.ModTime().Add(time.Hour).UTC().Format(http.TimeFormat))
	w := httptest.NewRecorder()
	if err := NewServer(nil).ServeFile(w, req, path); err != nil {
		t.Fatalf("ServeFile() error = %v", err)
	}

	if w.Code != http.StatusNotModified {
		t.Errorf("status = %d, want 304", w.Code)
	}
}

func TestServeFile_Directory(t *testing.T) {
	w := serve(t, http.MethodGet, t.TempDir(), "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestServeFile_Head(t *testing.T) {
	path := writeClip(t)
	w := serve(t, http.MethodHead, path, "")

	if w.Code != http.StatusOK || w.Body.Len() != 0 {
		t.Errorf("status = %d, body %d bytes", w.Code, w.Body.Len())
	}
	if w.Header().Get("Content-Length") != "1000" {
		t.Errorf("Content-Length = %q", w.Header().Get("Content-Length"))
	}
}

func TestServeFile_Missing(t *testing.T) {
	w := serve(t, http.MethodGet, filepath.Join(t.TempDir(), "gone.mp4"), "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestContentType(t *testing.T) {
	if got := ContentType("a.unknownext"); got != "application/octet-stream" {
		t.Errorf("ContentType(unknown) = %q", got)
	}
	if got := ContentType("a.mov"); got != "video/quicktime" {
		t.Errorf("ContentType(mov) = %q", got)
	}
}
