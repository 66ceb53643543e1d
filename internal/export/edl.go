package export

import (
	"fmt"
	"math"
	"path"
	"strings"
)

// GenerateEDL renders overlays as a CMX3600 style cue list. Each overlay is a
// graphic event on V2 whose record in and out match its on-screen window, so
// the timing can be rebuilt in an NLE.
func GenerateEDL(cues []Cue, title string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = int(DefaultFrameRate)
	}

	isDropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	lines := []string{fmt.Sprintf("TITLE: %s", title)}
	if isDropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	for i, c := range cues {
		srcIn := msToTimecode(0, fps)
		srcOut := msToTimecode(c.EndMs-c.StartMs, fps)
		recIn := msToTimecode(c.StartMs, fps)
		recOut := msToTimecode(c.EndMs, fps)

		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "GFX", "V2", srcIn, srcOut, recIn, recOut),
			fmt.Sprintf("* FROM CLIP NAME:  %s", c.Name),
			fmt.Sprintf("* SOURCE URL:  %s", c.ImageURL),
			fmt.Sprintf("* POSITION:  X %d Y %d WIDTH %d", c.PositionX, c.PositionY, c.Width),
		)
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

// CueName is the last path element of an image URL, without query string.
func CueName(url string) string {
	name := url
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	name = path.Base(strings.TrimRight(name, "/"))
	name = SanitizeName(name, 160)
	if name == "" || name == "." {
		return "overlay"
	}
	return name
}

func secondsToMs(s float64) int {
	return int(math.Round(s * 1000))
}

func msToTimecode(ms int, fps int) string {
	if ms < 0 {
		ms = 0
	}
	totalFrames := int(math.Round(float64(ms) * float64(fps) / 1000.0))
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, frames)
}
