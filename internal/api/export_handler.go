package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/heimdex/overlay-editor/internal/export"
)

func exportEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		frameRate := export.DefaultFrameRate
		if raw := r.URL.Query().Get("fps"); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil || v <= 0 || v > 120 {
				WriteError(w, http.StatusBadRequest, "fps must be between 0 and 120", "BAD_REQUEST")
				return
			}
			frameRate = v
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="overlays.edl"`)
		if _, err := cfg.Shell.ExportEDL(w, export.DefaultFileName, frameRate); err != nil {
			cfg.Logger.Debug("edl export interrupted", "error", err)
		}
	}
}

func exportFileHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req export.FileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		format := strings.ToLower(strings.TrimSpace(req.Format))
		if format == "" {
			format = export.FormatCSV
		}
		if format != export.FormatCSV && format != export.FormatEDL {
			WriteError(w, http.StatusBadRequest, "format must be csv or edl", "BAD_REQUEST")
			return
		}

		if err := export.ValidateOutputDir(req.OutputDir); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		frameRate := req.FrameRate
		if frameRate <= 0 {
			frameRate = export.DefaultFrameRate
		}

		name := export.FileName(req.FileName, format)
		count := 0
		render := func(w io.Writer) error {
			if format == export.FormatEDL {
				n, err := cfg.Shell.ExportEDL(w, strings.TrimSuffix(name, "."+format), frameRate)
				count = n
				return err
			}
			count = cfg.Shell.Session().Len()
			return cfg.Shell.Export(w)
		}

		outputPath, size, err := export.WriteFile(req.OutputDir, name, render)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		cfg.Logger.Info("overlays exported", "format", format, "count", count, "size", humanize.Bytes(uint64(size)))
		WriteJSON(w, http.StatusOK, export.FileResponse{
			Status:     "ok",
			Format:     format,
			OutputPath: outputPath,
			Count:      count,
			Size:       humanize.Bytes(uint64(size)),
		})
	}
}
