package export

import "github.com/heimdex/overlay-editor/internal/overlay"

const (
	FormatCSV = "csv"
	FormatEDL = "edl"

	DefaultFileName  = "overlays"
	DefaultFrameRate = 30.0
)

// FileRequest asks for the overlay list to be written into a local folder.
type FileRequest struct {
	Format    string  `json:"format"`
	FileName  string  `json:"file_name"`
	OutputDir string  `json:"output_dir"`
	FrameRate float64 `json:"frame_rate"`
}

type FileResponse struct {
	Status     string `json:"status"`
	Format     string `json:"format"`
	OutputPath string `json:"output_path"`
	Count      int    `json:"count"`
	Size       string `json:"size"`
}

// Cue is one overlay placed on the record timeline.
type Cue struct {
	Name      string
	ImageURL  string
	StartMs   int
	EndMs     int
	PositionX int
	PositionY int
	Width     int
}

// CuesFromOverlays converts overlays to cues, dropping those with an empty
// time window.
func CuesFromOverlays(items []overlay.Overlay) []Cue {
	cues := make([]Cue, 0, len(items))
	for _, o := range items {
		start := secondsToMs(o.StartTime)
		end := secondsToMs(o.EndTime())
		if end <= start {
			continue
		}
		cues = append(cues, Cue{
			Name:      CueName(o.ImageURL),
			ImageURL:  o.ImageURL,
			StartMs:   start,
			EndMs:     end,
			PositionX: o.PositionX,
			PositionY: o.PositionY,
			Width:     o.Width,
		})
	}
	return cues
}
