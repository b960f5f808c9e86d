package report

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"corpus_dups/internal/aggregate"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	totalsStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
)

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// RenderTable prints the cache. Terminals get a rounded, styled table;
// anything else gets plain ASCII borders.
func RenderTable(w io.Writer, c Cache, order []string) error {
	rows := Rows(c, order)
	styled := IsTerminal(w)

	t := table.New().Headers(append([]string{"Corpus"}, Columns...)...)
	if styled {
		t = t.Border(lipgloss.RoundedBorder()).StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row >= 0 && row < len(rows) && rows[row].Corpus == aggregate.TotalsKey:
				return totalsStyle
			default:
				return cellStyle
			}
		})
	} else {
		t = t.Border(lipgloss.ASCIIBorder()).StyleFunc(func(int, int) lipgloss.Style { return cellStyle })
	}

	for _, r := range rows {
		s := r.Summary
		t = t.Row(
			r.Corpus,
			humanize.Comma(int64(s.NumTexts)),
			humanize.Comma(int64(s.TextsWithDups)),
			fmt.Sprintf("%.6f", s.MaxDupsPerText),
			fmt.Sprintf("%.6f", s.AvgDupsPerText),
			humanize.Comma(int64(s.NumSentences)),
			fmt.Sprintf("%.6f", s.AvgDupsPerCorpus),
			fmt.Sprintf("%.4f", r.PercentPerText()),
			fmt.Sprintf("%.4f", r.PercentPerCorpus()),
		)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// RenderGrid prints a generic table in the same style as RenderTable.
func RenderGrid(w io.Writer, headers []string, rows [][]string) error {
	t := table.New().Headers(headers...).Rows(rows...)
	if IsTerminal(w) {
		t = t.Border(lipgloss.RoundedBorder()).StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	} else {
		t = t.Border(lipgloss.ASCIIBorder()).StyleFunc(func(int, int) lipgloss.Style { return cellStyle })
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}
