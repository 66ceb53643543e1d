package overlay

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Background is the treatment rendered behind an overlay image.
type Background string

// Transition is the entry animation of an overlay.
type Transition string

const (
	BackgroundTransparent Background = "transparente"
	BackgroundDim         Background = "opacidad"

	TransitionFade  Transition = "difuminado"
	TransitionSlide Transition = "lateral"
)

// Add-new defaults used by the editor.
const (
	DefaultPositionX  = 50
	DefaultPositionY  = 10
	DefaultWidth      = 300
	DefaultStartTime  = 2.0
	DefaultDuration   = 8.0
	DefaultBackground = BackgroundDim
	DefaultTransition = TransitionFade
)

type Overlay struct {
	// Key identifies the record in memory. It is never persisted or exported.
	Key string `json:"key"`
	// ID is the store surrogate key, 0 when the record has not been persisted.
	ID int64 `json:"id,omitempty"`

	ImageURL   string     `json:"url_imagen"`
	PositionX  int        `json:"posicion_x"`
	PositionY  int        `json:"posicion_y"`
	Width      int        `json:"ancho"`
	StartTime  float64    `json:"tiempo_inicio"`
	Duration   float64    `json:"duracion"`
	Background Background `json:"fondo"`
	Transition Transition `json:"transicion"`
}

// EndTime is the last instant the overlay is visible.
func (o Overlay) EndTime() float64 {
	return o.StartTime + o.Duration
}

// SameContent reports whether two overlays carry the same exported fields.
func (o Overlay) SameContent(other Overlay) bool {
	return o.ImageURL == other.ImageURL &&
		o.PositionX == other.PositionX &&
		o.PositionY == other.PositionY &&
		o.Width == other.Width &&
		o.StartTime == other.StartTime &&
		o.Duration == other.Duration &&
		o.Background == other.Background &&
		o.Transition == other.Transition
}

func (b Background) Valid() bool {
	return b == BackgroundTransparent || b == BackgroundDim
}

func (t Transition) Valid() bool {
	return t == TransitionFade || t == TransitionSlide
}

// ParseBackground maps free-form input onto a canonical background. Only an
// exact (case and space insensitive) "opacidad" selects the dimmed backdrop.
func ParseBackground(s string) Background {
	if strings.ToLower(strings.TrimSpace(s)) == string(BackgroundDim) {
		return BackgroundDim
	}
	return BackgroundTransparent
}

// ParseTransition maps free-form input onto a canonical transition. Only an
// exact "lateral" selects the slide-in.
func ParseTransition(s string) Transition {
	if strings.ToLower(strings.TrimSpace(s)) == string(TransitionSlide) {
		return TransitionSlide
	}
	return TransitionFade
}

func NewKey() string {
	return uuid.NewString()
}

// New returns an overlay for url with the add-new defaults and a fresh key.
func New(url string) Overlay {
	return Overlay{
		Key:        NewKey(),
		ImageURL:   url,
		PositionX:  DefaultPositionX,
		PositionY:  DefaultPositionY,
		Width:      DefaultWidth,
		StartTime:  DefaultStartTime,
		Duration:   DefaultDuration,
		Background: DefaultBackground,
		Transition: DefaultTransition,
	}
}

// Defaults returns the seed set written on first store creation and served
// when the store is unusable.
func Defaults() []Overlay {
	urls := []string{
		"https://raw.githubusercontent.com/lucide-icons/lucide/main/icons/zap.svg",
		"https://raw.githubusercontent.com/lucide-icons/lucide/main/icons/star.svg",
	}
	items := make([]Overlay, len(urls))
	for i, u := range urls {
		items[i] = New(u)
		items[i].Width = 600
	}
	return items
}

// EnsureKeys assigns a key to every overlay missing one.
func EnsureKeys(items []Overlay) {
	for i := range items {
		if items[i].Key == "" {
			items[i].Key = NewKey()
		}
	}
}

// Patch carries a partial update. Nil fields are left untouched.
type Patch struct {
	ImageURL   *string     `json:"url_imagen,omitempty"`
	PositionX  *int        `json:"posicion_x,omitempty"`
	PositionY  *int        `json:"posicion_y,omitempty"`
	Width      *int        `json:"ancho,omitempty"`
	StartTime  *float64    `json:"tiempo_inicio,omitempty"`
	Duration   *float64    `json:"duracion,omitempty"`
	Background *Background `json:"fondo,omitempty"`
	Transition *Transition `json:"transicion,omitempty"`
}

func (p Patch) Empty() bool {
	return p.ImageURL == nil && p.PositionX == nil && p.PositionY == nil && p.Width == nil &&
		p.StartTime == nil && p.Duration == nil && p.Background == nil && p.Transition == nil
}

// ValidateImageURL rejects URLs the exchange format cannot carry: empty,
// padded with spaces, or containing a field or line separator.
func ValidateImageURL(url string) error {
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("url_imagen must not be empty")
	}
	if strings.TrimSpace(url) != url {
		return fmt.Errorf("url_imagen %q has surrounding spaces", url)
	}
	if strings.ContainsAny(url, ",\r\n") {
		return fmt.Errorf("url_imagen %q contains a separator", url)
	}
	return nil
}

// Validate rejects enum values outside the canonical sets and URLs that
// could not be exported.
func (p Patch) Validate() error {
	if p.ImageURL != nil {
		if err := ValidateImageURL(*p.ImageURL); err != nil {
			return err
		}
	}
	if p.Background != nil && !p.Background.Valid() {
		return fmt.Errorf("invalid fondo %q", *p.Background)
	}
	if p.Transition != nil && !p.Transition.Valid() {
		return fmt.Errorf("invalid transicion %q", *p.Transition)
	}
	return nil
}

// Merge returns p with every field set in other overriding p.
func (p Patch) Merge(other Patch) Patch {
	if other.ImageURL != nil {
		p.ImageURL = other.ImageURL
	}
	if other.PositionX != nil {
		p.PositionX = other.PositionX
	}
	if other.PositionY != nil {
		p.PositionY = other.PositionY
	}
	if other.Width != nil {
		p.Width = other.Width
	}
	if other.StartTime != nil {
		p.StartTime = other.StartTime
	}
	if other.Duration != nil {
		p.Duration = other.Duration
	}
	if other.Background != nil {
		p.Background = other.Background
	}
	if other.Transition != nil {
		p.Transition = other.Transition
	}
	return p
}

// Apply returns o with the patch fields applied.
func (p Patch) Apply(o Overlay) Overlay {
	if p.ImageURL != nil {
		o.ImageURL = *p.ImageURL
	}
	if p.PositionX != nil {
		o.PositionX = *p.PositionX
	}
	if p.PositionY != nil {
		o.PositionY = *p.PositionY
	}
	if p.Width != nil {
		o.Width = *p.Width
	}
	if p.StartTime != nil {
		o.StartTime = *p.StartTime
	}
	if p.Duration != nil {
		o.Duration = *p.Duration
	}
	if p.Background != nil {
		o.Background = *p.Background
	}
	if p.Transition != nil {
		o.Transition = *p.Transition
	}
	return o
}
