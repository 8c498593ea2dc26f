package presentation

import (
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// noMarginStyle is a JSON style that removes document margins.
const noMarginStyle = `{
	"document": {
		"margin": 0,
		"block_prefix": "",
		"block_suffix": ""
	}
}`

// plain is set by DisableColor and selects the notty markdown style.
var plain bool

// DisableColor turns off ANSI styling for all text output.
func DisableColor() {
	lipgloss.SetColorProfile(termenv.Ascii)
	plain = true
}

// Renderer wraps glamour for item descriptions.
type Renderer struct {
	renderer *glamour.TermRenderer
	width    int
}

// NewRenderer creates a markdown renderer with the given width and style.
// style should be "dark", "light" or "notty". Defaults to "dark". Once color
// is disabled every renderer uses "notty".
func NewRenderer(width int, style string) (*Renderer, error) {
	switch {
	case plain:
		style = "notty"
	case style == "":
		style = "dark"
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(style),
		glamour.WithStylesFromJSONBytes([]byte(noMarginStyle)),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	return &Renderer{renderer: r, width: width}, nil
}

// Width returns the configured word wrap width.
func (r *Renderer) Width() int {
	return r.width
}

// Render transforms markdown to styled terminal output.
func (r *Renderer) Render(markdown string) (string, error) {
	return r.renderer.Render(markdown)
}
