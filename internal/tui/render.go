package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// Renderer turns model replies into terminal markup.
type Renderer struct {
	glamour *glamour.TermRenderer
}

func NewRenderer(width int) (*Renderer, error) {
	gr, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	return &Renderer{glamour: gr}, nil
}

// Render falls back to the raw text when markdown rendering fails; a reply is
// never dropped over formatting.
func (r *Renderer) Render(text string) string {
	rendered, err := r.glamour.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(rendered, "\n")
}
