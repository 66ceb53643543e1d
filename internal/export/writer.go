package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// WriteFile renders into dir/name through a temporary file that is renamed
// into place, so a failed render never leaves a partial file behind. It
// returns the final path and the number of bytes written.
func WriteFile(dir, name string, render func(io.Writer) error) (string, int64, error) {
	if err := ValidateOutputDir(dir); err != nil {
		return "", 0, err
	}

	tmp, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	cw := &countingWriter{w: tmp}
	if err := render(cw); err != nil {
		tmp.Close()
		return "", 0, err
	}
	if err := tmp.Close(); err != nil {
		return "", 0, fmt.Errorf("close temp file: %w", err)
	}

	outputPath := filepath.Join(dir, name)
	if err := os.Rename(tmpPath, outputPath); err != nil {
		return "", 0, fmt.Errorf("write export file: %w", err)
	}
	return outputPath, cw.n, nil
}
