// Package csvcodec reads and writes the overlay exchange format: a header line
// followed by one comma separated row of eight fields per overlay. The format
// has no quoting, so fields can never contain a comma or a line break.
package csvcodec

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/heimdex/overlay-editor/internal/overlay"
)

const (
	Separator = ","
	Header    = "url_imagen,posicion_x,posicion_y,ancho,tiempo_inicio,duracion,fondo,transicion"
)

// Columns lists the field names in their fixed positional order.
var Columns = strings.Split(Header, Separator)

var (
	ErrFormat      = errors.New("malformed overlay file")
	ErrUnencodable = errors.New("value cannot be encoded")
)

// FormatError describes the first malformed row of an input file. Line is
// 1-based and counts the header.
type FormatError struct {
	Line   int
	Column string
	Value  string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("line %d: column %s: %s (%q)", e.Line, e.Column, e.Reason, e.Value)
}

func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

// ParseString parses a whole file held in memory.
func ParseString(text string) ([]overlay.Overlay, error) {
	return Parse(strings.NewReader(text))
}

// Parse reads overlays from r. The first line is a header and is not checked.
// Blank lines are skipped. Every other line must hold exactly eight fields;
// the first malformed row aborts the parse with a *FormatError. Each parsed
// overlay gets a fresh key.
func Parse(r io.Reader) ([]overlay.Overlay, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	items := []overlay.Overlay{}
	line := 0
	for sc.Scan() {
		line++
		if line == 1 {
			continue
		}
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		o, err := parseRow(line, text)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read overlay file: %w", err)
	}
	return items, nil
}

func parseRow(line int, text string) (overlay.Overlay, error) {
	fields := strings.Split(text, Separator)
	if len(fields) != len(Columns) {
		return overlay.Overlay{}, &FormatError{
			Line:   line,
			Reason: fmt.Sprintf("expected %d fields, got %d", len(Columns), len(fields)),
		}
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	p := rowParser{line: line, fields: fields}
	o := overlay.Overlay{
		Key:        overlay.NewKey(),
		ImageURL:   p.text(0),
		PositionX:  p.integer(1),
		PositionY:  p.integer(2),
		Width:      p.integer(3),
		StartTime:  p.number(4),
		Duration:   p.number(5),
		Background: overlay.ParseBackground(fields[6]),
		Transition: overlay.ParseTransition(fields[7]),
	}
	if p.err != nil {
		return overlay.Overlay{}, p.err
	}
	return o, nil
}

// rowParser keeps the first field error of a row.
type rowParser struct {
	line   int
	fields []string
	err    error
}

func (p *rowParser) fail(col int, reason string) {
	if p.err == nil {
		p.err = &FormatError{Line: p.line, Column: Columns[col], Value: p.fields[col], Reason: reason}
	}
}

func (p *rowParser) text(col int) string {
	if p.fields[col] == "" {
		p.fail(col, "must not be empty")
	}
	return p.fields[col]
}

func (p *rowParser) integer(col int) int {
	s := p.fields[col]
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	// Spreadsheet exports sometimes write integers as "300.0".
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) ||
		f > math.MaxInt32 || f < math.MinInt32 {
		p.fail(col, "not an integer")
		return 0
	}
	return int(f)
}

func (p *rowParser) number(col int) float64 {
	f, err := strconv.ParseFloat(p.fields[col], 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		p.fail(col, "not a number")
		return 0
	}
	return f
}

// SerializeString renders items in the exchange format.
func SerializeString(items []overlay.Overlay) (string, error) {
	var b strings.Builder
	if err := Serialize(&b, items); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Serialize writes the header and one row per overlay, joined by "\n" with no
// trailing newline. Overlays whose URL would break the row structure are
// refused with ErrUnencodable instead of producing a file that does not parse
// back.
func Serialize(w io.Writer, items []overlay.Overlay) error {
	for i, o := range items {
		if strings.ContainsAny(o.ImageURL, ",\r\n") {
			return fmt.Errorf("%w: overlay %d url %q contains a separator", ErrUnencodable, i, o.ImageURL)
		}
		if strings.TrimSpace(o.ImageURL) != o.ImageURL || o.ImageURL == "" {
			return fmt.Errorf("%w: overlay %d url %q is empty or padded", ErrUnencodable, i, o.ImageURL)
		}
		if !o.Background.Valid() || !o.Transition.Valid() {
			return fmt.Errorf("%w: overlay %d has fondo %q, transicion %q", ErrUnencodable, i, o.Background, o.Transition)
		}
		if !finite(o.StartTime) || !finite(o.Duration) {
			return fmt.Errorf("%w: overlay %d has a non-finite time", ErrUnencodable, i)
		}
	}

	bw := bufio.NewWriter(w)
	bw.WriteString(Header)
	for _, o := range items {
		bw.WriteByte('\n')
		bw.WriteString(formatRow(o))
	}
	return bw.Flush()
}

func formatRow(o overlay.Overlay) string {
	return strings.Join([]string{
		o.ImageURL,
		strconv.Itoa(o.PositionX),
		strconv.Itoa(o.PositionY),
		strconv.Itoa(o.Width),
		formatFloat(o.StartTime),
		formatFloat(o.Duration),
		string(o.Background),
		string(o.Transition),
	}, Separator)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
