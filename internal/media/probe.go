// Package media reads the metadata of the video an overlay set is authored
// against.
package media

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

const (
	DefaultWidth        = 1920
	DefaultHeight       = 1080
	DefaultProbeTimeout = 30 * time.Second
)

// Info describes a local video file.
type Info struct {
	Path     string  `json:"path"`
	Name     string  `json:"name"`
	Size     int64   `json:"size"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Duration float64 `json:"duration"`
}

// SizeHuman returns the file size in a readable unit, e.g. "82 MB".
func (i Info) SizeHuman() string {
	return humanize.Bytes(uint64(i.Size))
}

// DurationKnown reports whether the probe found a positive duration.
func (i Info) DurationKnown() bool {
	return i.Duration > 0
}

// Prober inspects a video file.
type Prober interface {
	Probe(ctx context.Context, path string) (Info, error)
}

// ProbeFunc runs ffprobe on a file and returns its JSON output.
type ProbeFunc func(path string, timeout time.Duration) (string, error)

// FFProbe is a Prober backed by the ffprobe binary.
type FFProbe struct {
	timeout time.Duration
	probe   ProbeFunc
}

func NewFFProbe(timeout time.Duration) *FFProbe {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &FFProbe{timeout: timeout, probe: runFFProbe}
}

func runFFProbe(path string, timeout time.Duration) (string, error) {
	return ffmpeg.ProbeWithTimeout(path, timeout, ffmpeg.KwArgs{})
}

// Probe stats path and reads its first video stream. The context only bounds
// the wait; ffprobe itself is limited by the configured timeout.
func (p *FFProbe) Probe(ctx context.Context, path string) (Info, error) {
	st, err := os.Stat(path)
	if err != nil {
		return Info{}, errors.Wrap(err, "failed to stat video")
	}
	if st.IsDir() {
		return Info{}, errors.Errorf("%s is a directory", path)
	}

	info := Info{
		Path: path,
		Name: filepath.Base(path),
		Size: st.Size(),
	}

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := p.probe(path, p.timeout)
		done <- result{out, err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		return info, errors.Wrap(ctx.Err(), "probe cancelled")
	}
	if res.err != nil {
		return info, errors.Wrap(res.err, "failed to get video metadata")
	}

	w, h, d, err := ParseProbe(res.out)
	if err != nil {
		return info, err
	}
	info.Width, info.Height, info.Duration = w, h, d
	return info, nil
}

// ParseProbe extracts the frame size and duration from ffprobe JSON output.
// The first video stream is used and its duration wins over the container
// duration.
func ParseProbe(raw string) (width, height int, duration float64, err error) {
	if !gjson.Valid(raw) {
		return 0, 0, 0, errors.New("invalid ffprobe output")
	}

	stream := gjson.Get(raw, `streams.#(codec_type=="video")`)
	if !stream.Exists() {
		return 0, 0, 0, errors.New("no video stream found")
	}

	width, height = int(stream.Get("width").Int()), int(stream.Get("height").Int())
	if width <= 0 || height <= 0 {
		return 0, 0, 0, errors.New("video stream has no frame size")
	}

	duration = parseSeconds(stream.Get("duration").String())
	if duration <= 0 {
		duration = parseSeconds(gjson.Get(raw, "format.duration").String())
	}
	return width, height, duration, nil
}

func parseSeconds(s string) float64 {
	d, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || !(d > 0) || math.IsInf(d, 1) {
		return 0
	}
	return d
}
