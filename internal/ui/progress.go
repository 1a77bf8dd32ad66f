package ui

import (
	"fmt"
	"math"

	"github.com/charmbracelet/bubbles/progress"
)

const (
	StatusConverting = "Converting..."
	StatusComplete   = "Conversion complete!"
)

// ProgressStatus rounds p to a whole percentage and picks the status line.
// The line only reads complete once p itself reaches 100.
func ProgressStatus(p float64) (int, string) {
	n := int(math.Round(p))
	if p < 100 {
		return n, StatusConverting
	}
	return n, StatusComplete
}

// renderProgress draws a bar filled to the rounded percentage with the
// status text under it.
func renderProgress(bar progress.Model, p float64) string {
	n, status := ProgressStatus(p)
	fill := float64(n) / 100
	if fill < 0 {
		fill = 0
	} else if fill > 1 {
		fill = 1
	}
	return bar.ViewAs(fill) + "\n" + fmt.Sprintf("%s (%d%%)", status, n)
}
