package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"mime"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/overlay-editor/internal/csvcodec"
	"github.com/heimdex/overlay-editor/internal/editor"
	"github.com/heimdex/overlay-editor/internal/imagemeta"
	"github.com/heimdex/overlay-editor/internal/overlay"
)

const maxImportBytes = 10 << 20

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(LoopbackGuard())
	r.Use(CORSAllowlist())

	r.Get("/", indexHandler())
	r.Get("/health", healthHandler(cfg))

	r.Route("/overlays", func(r chi.Router) {
		r.Get("/", listOverlaysHandler(cfg))
		r.Post("/", addOverlayHandler(cfg))
		r.Post("/resize", resizeHandler(cfg))
		r.Delete("/{key}", deleteOverlayHandler(cfg))
		r.Post("/{key}/edit", beginEditHandler(cfg))
		r.Patch("/{key}/pending", stageHandler(cfg))
		r.Post("/{key}/save", saveHandler(cfg))
		r.Post("/{key}/cancel", cancelHandler(cfg))
		r.Post("/{key}/select", selectHandler(cfg))
		r.Get("/{key}/jump", jumpHandler(cfg))
	})

	r.Post("/import", importHandler(cfg))
	r.Get("/export", exportCSVHandler(cfg))
	r.Get("/export/edl", exportEDLHandler(cfg))
	r.Post("/export/file", exportFileHandler(cfg))
	r.Get("/summary", summaryHandler(cfg))

	r.Put("/video", loadVideoHandler(cfg))
	r.Get("/video", getVideoHandler(cfg))
	r.Get("/video/file", videoFileHandler(cfg))
	r.Head("/video/file", videoFileHandler(cfg))

	r.Get("/preview", previewHandler(cfg))
	r.Get("/pointer", pointerHandler(cfg))
	r.Get("/images/dimensions", dimensionsHandler(cfg))

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:         "ok",
			Version:        cfg.Version,
			UptimeS:        uptime,
			StoreAvailable: cfg.Shell.StoreAvailable(),
			Overlays:       cfg.Shell.Session().Len(),
		})
	}
}

func listOverlaysHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		engine := cfg.Shell.Engine()
		if raw := r.URL.Query().Get("t"); raw != "" {
			t, err := parseFloat(raw)
			if err != nil {
				WriteError(w, http.StatusBadRequest, "t must be a number", "BAD_REQUEST")
				return
			}
			engine.Seek(t)
		}

		WriteJSON(w, http.StatusOK, OverlaysResponse{
			Time:     engine.Current(),
			Overlays: cfg.Shell.Rows(),
		})
	}
}

func addOverlayHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddOverlayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		o, err := cfg.Shell.Add(r.Context(), req.ImageURL)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, OverlayResponse{Overlay: o})
	}
}

func deleteOverlayHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Shell.Session().Delete(r.Context(), chi.URLParam(r, "key")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func beginEditHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		session := cfg.Shell.Session()
		if err := session.BeginEdit(key); err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, PendingResponse{Key: key, Pending: session.Pending()})
	}
}

func stageHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p overlay.Patch
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		key := chi.URLParam(r, "key")
		session := cfg.Shell.Session()
		if err := session.Stage(key, p); err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, PendingResponse{Key: key, Pending: session.Pending()})
	}
}

func saveHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o, err := cfg.Shell.SaveEdit(r.Context(), chi.URLParam(r, "key"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, OverlayResponse{Overlay: o})
	}
}

func cancelHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		session := cfg.Shell.Session()
		if err := session.Cancel(key); err != nil {
			writeServiceError(w, err)
			return
		}
		o, _ := session.Get(key)
		WriteJSON(w, http.StatusOK, OverlayResponse{Overlay: o})
	}
}

func selectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		session := cfg.Shell.Session()
		selected, err := session.ToggleSelect(key)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, SelectResponse{
			Key:       key,
			Selected:  selected,
			Selection: session.Selection(),
		})
	}
}

func jumpHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		t, err := cfg.Shell.Jump(key)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, JumpResponse{Key: key, Time: t})
	}
}

func resizeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ResizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.TargetHeight <= 0 {
			WriteError(w, http.StatusBadRequest, "target_height must be positive", "BAD_REQUEST")
			return
		}

		n := cfg.Shell.ApplyTargetHeight(r.Context(), req.TargetHeight)
		WriteJSON(w, http.StatusOK, ResizeResponse{Resized: n, Overlays: cfg.Shell.Rows()})
	}
}

func importHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

		var src io.Reader = r.Body
		if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "multipart/form-data" {
			file, _, err := r.FormFile("file")
			if err != nil {
				WriteError(w, http.StatusBadRequest, "multipart field \"file\" is required", "BAD_REQUEST")
				return
			}
			defer file.Close()
			src = file
		}

		items, err := cfg.Shell.Import(r.Context(), src)
		if err != nil {
			var fe *csvcodec.FormatError
			var tooLarge *http.MaxBytesError
			switch {
			case errors.As(err, &fe):
				WriteJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
					Error:  fe.Error(),
					Code:   "FORMAT_ERROR",
					Line:   fe.Line,
					Column: fe.Column,
				})
			case errors.As(err, &tooLarge):
				WriteError(w, http.StatusRequestEntityTooLarge, "import file too large", "TOO_LARGE")
			default:
				WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			}
			return
		}

		WriteJSON(w, http.StatusOK, ImportResponse{Count: len(items), Overlays: items})
	}
}

func exportCSVHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		if err := cfg.Shell.Export(&buf); err != nil {
			writeServiceError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="overlays.csv"`)
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
	}
}

func summaryHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, SummaryResponse{Rows: cfg.Shell.Summary()})
	}
}

func loadVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VideoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if strings.TrimSpace(req.Path) == "" {
			WriteError(w, http.StatusBadRequest, "path is required", "BAD_REQUEST")
			return
		}

		info, err := cfg.Shell.LoadVideo(r.Context(), req.Path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				WriteError(w, http.StatusNotFound, "video not found", "NOT_FOUND")
				return
			}
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		WriteJSON(w, http.StatusOK, VideoToResponse(info))
	}
}

func getVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, ok := cfg.Shell.Video()
		if !ok {
			WriteError(w, http.StatusNotFound, "no video loaded", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, VideoToResponse(info))
	}
}

func videoFileHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, ok := cfg.Shell.Video()
		if !ok {
			WriteError(w, http.StatusNotFound, "no video loaded", "NOT_FOUND")
			return
		}

		if err := cfg.Playback.ServeFile(w, r, info.Path); err != nil {
			cfg.Logger.Error("playback error", "error", err)
		}
	}
}

func previewHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		engine := cfg.Shell.Engine()

		t := engine.Current()
		if raw := q.Get("t"); raw != "" {
			v, err := parseFloat(raw)
			if err != nil {
				WriteError(w, http.StatusBadRequest, "t must be a number", "BAD_REQUEST")
				return
			}
			t = v
		}

		var viewportWidth float64
		if raw := q.Get("viewport_width"); raw != "" {
			v, err := parseFloat(raw)
			if err != nil || v <= 0 {
				WriteError(w, http.StatusBadRequest, "viewport_width must be a positive number", "BAD_REQUEST")
				return
			}
			viewportWidth = v
		}

		frame := cfg.Shell.Preview(t, viewportWidth)
		WriteJSON(w, http.StatusOK, PreviewResponse{Frame: frame, Grid: engine.Grid()})
	}
}

func pointerHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		x, errX := parseFloat(q.Get("x"))
		y, errY := parseFloat(q.Get("y"))
		if errX != nil || errY != nil {
			WriteError(w, http.StatusBadRequest, "x and y must be numbers", "BAD_REQUEST")
			return
		}

		engine := cfg.Shell.Engine()
		if raw := q.Get("viewport_width"); raw != "" {
			v, err := parseFloat(raw)
			if err != nil || v <= 0 {
				WriteError(w, http.StatusBadRequest, "viewport_width must be a positive number", "BAD_REQUEST")
				return
			}
			engine.SetViewportWidth(v)
		}

		nx, ny, ok := engine.ToNative(x, y)
		if !ok {
			WriteError(w, http.StatusConflict, "viewport width is not known yet", "NO_VIEWPORT")
			return
		}
		WriteJSON(w, http.StatusOK, PointerResponse{X: nx, Y: ny})
	}
}

func dimensionsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url := strings.TrimSpace(r.URL.Query().Get("url"))
		if url == "" {
			WriteError(w, http.StatusBadRequest, "url is required", "BAD_REQUEST")
			return
		}

		images := cfg.Shell.Images()
		d, err := images.Resolve(r.Context(), url)
		resp := DimensionsResponse{URL: url, State: images.State(url)}
		if err == nil {
			resp.Width, resp.Height = d.Width, d.Height
		} else if resp.State == imagemeta.StateUnknown {
			resp.State = imagemeta.StateFailed
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, editor.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.Is(err, editor.ErrNotEditing):
		WriteError(w, http.StatusConflict, err.Error(), "NOT_EDITING")
	case errors.Is(err, editor.ErrInvalidPatch), errors.Is(err, editor.ErrEmptyURL), errors.Is(err, editor.ErrInvalidURL):
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	case errors.Is(err, csvcodec.ErrUnencodable):
		WriteError(w, http.StatusConflict, err.Error(), "UNENCODABLE")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}

func parseFloat(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, strconv.ErrRange
	}
	return v, nil
}
