package cli

import (
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
)

// buildTable renders a rounded box-drawing table for terminal output. Styling
// is dropped entirely when colored is false (non-TTY or --no-color).
type buildTable struct {
	headers []string
	rows    [][]string
	widths  []int
	title   string
	colored bool
}

func newBuildTable(colored bool, headers ...string) *buildTable {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	return &buildTable{
		headers: headers,
		widths:  widths,
		colored: colored,
	}
}

func (t *buildTable) withTitle(title string) *buildTable {
	t.title = title
	return t
}

func (t *buildTable) addRow(cols ...string) {
	for i, c := range cols {
		if i < len(t.widths) {
			if w := utf8.RuneCountInString(c); w > t.widths[i] {
				t.widths[i] = w
			}
		}
	}
	t.rows = append(t.rows, cols)
}

func (t *buildTable) render() string {
	if len(t.headers) == 0 {
		return ""
	}

	borderStyle := lipgloss.NewStyle()
	headerStyle := lipgloss.NewStyle()
	titleStyle := lipgloss.NewStyle()
	if t.colored {
		borderStyle = borderStyle.Foreground(lipgloss.Color("240"))
		headerStyle = headerStyle.Bold(true).Foreground(lipgloss.Color("75"))
		titleStyle = titleStyle.Bold(true)
	}

	pad := func(s string, w int) string {
		return s + strings.Repeat(" ", w-utf8.RuneCountInString(s))
	}
	line := func(left, mid, right string) string {
		parts := make([]string, len(t.widths))
		for i, w := range t.widths {
			parts[i] = strings.Repeat("─", w+2)
		}
		return borderStyle.Render(left + strings.Join(parts, mid) + right)
	}

	var sb strings.Builder
	if t.title != "" {
		sb.WriteString(titleStyle.Render(t.title))
		sb.WriteString("\n")
	}

	sb.WriteString(line("╭", "┬", "╮"))
	sb.WriteString("\n")

	sep := borderStyle.Render("│")
	cells := make([]string, len(t.headers))
	for i, h := range t.headers {
		cells[i] = " " + headerStyle.Render(pad(h, t.widths[i])) + " "
	}
	sb.WriteString(sep + strings.Join(cells, sep) + sep)
	sb.WriteString("\n")
	sb.WriteString(line("├", "┼", "┤"))
	sb.WriteString("\n")

	for _, row := range t.rows {
		for i := range cells {
			val := ""
			if i < len(row) {
				val = row[i]
			}
			cells[i] = " " + pad(val, t.widths[i]) + " "
		}
		sb.WriteString(sep + strings.Join(cells, sep) + sep)
		sb.WriteString("\n")
	}

	sb.WriteString(line("╰", "┴", "╯"))
	return sb.String()
}
