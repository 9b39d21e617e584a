package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
)

// Progress renders batch completion state as a one-line bar. It is drawn
// statically between items; there is no live animation because processing is
// strictly sequential and each item blocks on the API.
type Progress struct {
	bar   progress.Model
	total int
}

// NewProgress creates a bar for total items.
func NewProgress(total int) *Progress {
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 30
	return &Progress{bar: bar, total: total}
}

// View renders the bar for done completed items.
func (p *Progress) View(done int) string {
	if p.total <= 0 {
		return ""
	}
	return fmt.Sprintf("%s %d/%d", p.bar.ViewAs(float64(done)/float64(p.total)), done, p.total)
}
