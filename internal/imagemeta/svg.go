package imagemeta

import (
	"bytes"
	"io"
	"math"

	"github.com/srwiley/oksvg"
)

const sniffLen = 512

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// looksLikeSVG reports whether the head of a document is SVG markup.
func looksLikeSVG(head []byte) bool {
	head = bytes.TrimPrefix(head, utf8BOM)
	head = bytes.TrimLeft(head, " \t\r\n")
	if len(head) == 0 || head[0] != '<' {
		return false
	}
	return bytes.Contains(head, []byte("<svg"))
}

// svgDimensions is the size of the document's view box.
func svgDimensions(r io.Reader) (Dimensions, error) {
	icon, err := oksvg.ReadIconStream(r, oksvg.IgnoreErrorMode)
	if err != nil {
		return Dimensions{}, err
	}
	return Dimensions{
		Width:  int(math.Round(icon.ViewBox.W)),
		Height: int(math.Round(icon.ViewBox.H)),
	}, nil
}
