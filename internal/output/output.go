// Package output provides context-aware output for gitks.
// Stdout is used for primary data output (tables, settings, paths).
// Stderr (via log package) is used for diagnostics.
package output

import (
	"context"
	"fmt"
	"io"
	"os"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/mattn/go-isatty"

	"github.com/raphi011/gitks/internal/ui/styles"
)

type ctxKey struct{}

// Printer writes primary output to stdout.
// Styling is only applied when the writer is a terminal.
type Printer struct {
	w      io.Writer
	styled bool
}

// New creates a new Printer writing to the given writer.
func New(w io.Writer) *Printer {
	return &Printer{w: w, styled: isTerminal(w)}
}

// WithPrinter attaches a Printer to the context.
func WithPrinter(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, ctxKey{}, New(w))
}

// FromContext retrieves the Printer from context.
// Returns a Printer writing to os.Stdout if none is attached.
func FromContext(ctx context.Context) *Printer {
	if p, ok := ctx.Value(ctxKey{}).(*Printer); ok {
		return p
	}
	return New(os.Stdout)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Print writes output without a newline.
func (p *Printer) Print(a ...any) {
	fmt.Fprint(p.w, a...)
}

// Printf writes formatted output.
func (p *Printer) Printf(format string, a ...any) {
	fmt.Fprintf(p.w, format, a...)
}

// Println writes a line of output.
func (p *Printer) Println(a ...any) {
	fmt.Fprintln(p.w, a...)
}

// Successf writes a status line prefixed with a checkmark.
func (p *Printer) Successf(format string, a ...any) {
	mark := styles.SymbolSuccess
	if p.styled {
		mark = styles.SuccessStyle.Render(mark)
	}
	fmt.Fprintf(p.w, "%s %s\n", mark, fmt.Sprintf(format, a...))
}

// KeyValues writes aligned "key  value" rows.
func (p *Printer) KeyValues(rows [][2]string) {
	width := 0
	for _, r := range rows {
		width = max(width, len(r[0]))
	}
	for _, r := range rows {
		key := fmt.Sprintf("%-*s", width, r[0])
		if p.styled {
			key = styles.MutedStyle.Render(key)
		}
		fmt.Fprintf(p.w, "%s  %s\n", key, r[1])
	}
}

// Table renders rows under headers with a normal border.
func (p *Printer) Table(headers []string, rows [][]string) {
	t := table.New().
		Headers(headers...).
		Rows(rows...).
		Border(lipgloss.NormalBorder()).
		BorderStyle(styles.MutedStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	fmt.Fprintln(p.w, t.String())
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer {
	return p.w
}
