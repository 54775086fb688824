package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"sendermap/internal/model"
	"sendermap/internal/treemap"
)

var palette = []lipgloss.Color{"24", "30", "65", "95", "131", "61", "66", "96", "101", "67", "58", "52"}

var (
	othersStyle = lipgloss.NewStyle().Background(lipgloss.Color("238")).Foreground(lipgloss.Color("252"))
	emptyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func cellStyle(e model.GroupedEntry) lipgloss.Style {
	if e.Metadata.IsOthers {
		return othersStyle
	}
	return lipgloss.NewStyle().
		Background(palette[e.Metadata.Order%len(palette)]).
		Foreground(lipgloss.Color("255"))
}

// cellLine is the text shown on row of a cell: the sender on the first row,
// the count on the second.
func cellLine(e model.GroupedEntry, row int) string {
	switch row {
	case 0:
		return e.Key
	case 1:
		return fmt.Sprintf("%d", e.Value)
	}
	return ""
}

func fit(s string, w int) string {
	return runewidth.FillRight(runewidth.Truncate(s, w, "…"), w)
}

// renderTreemap draws entries into a width x height block of text.
func renderTreemap(entries []model.GroupedEntry, width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	cells := treemap.Layout(entries, width, height)

	owner := make([][]int, height)
	for y := range owner {
		owner[y] = make([]int, width)
		for x := range owner[y] {
			owner[y][x] = -1
		}
	}
	for i, c := range cells {
		for y := c.Y; y < c.Y+c.H; y++ {
			for x := c.X; x < c.X+c.W; x++ {
				owner[y][x] = i
			}
		}
	}

	lines := make([]string, height)
	for y := 0; y < height; y++ {
		var b strings.Builder
		for x := 0; x < width; {
			i := owner[y][x]
			if i < 0 {
				b.WriteByte(' ')
				x++
				continue
			}
			c := cells[i]
			b.WriteString(cellStyle(c.Entry).Render(fit(cellLine(c.Entry, y-c.Y), c.W)))
			x += c.W
		}
		lines[y] = b.String()
	}
	return strings.Join(lines, "\n")
}

func treemapHeader(total, cutoff, maxCutoff int, mode model.Mode) string {
	return titleStyle.Render(fmt.Sprintf("%d unread emails", total)) +
		footerStyle.Render(fmt.Sprintf("   cutoff %d/%d   below cutoff: %s", cutoff, maxCutoff, mode))
}

func treemapFooter() string {
	return footerStyle.Render("r: refresh  +/-: cutoff  m: regroup/hide  o: others  x: sign out  q: quit")
}
