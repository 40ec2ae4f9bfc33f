package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// printer writes operator-facing status lines. Colors are only emitted when
// the writer is a terminal.
type printer struct {
	w    io.Writer
	ok   lipgloss.Style
	warn lipgloss.Style
	bad  lipgloss.Style
	dim  lipgloss.Style
}

func newPrinter(w io.Writer) *printer {
	r := lipgloss.NewRenderer(w)
	return &printer{
		w:    w,
		ok:   r.NewStyle().Foreground(lipgloss.Color("#24a148")).Bold(true),
		warn: r.NewStyle().Foreground(lipgloss.Color("#ff832b")).Bold(true),
		bad:  r.NewStyle().Foreground(lipgloss.Color("#da1e28")).Bold(true),
		dim:  r.NewStyle().Foreground(lipgloss.Color("#8d8d8d")),
	}
}

func (p *printer) line(format string, a ...any) {
	_, _ = fmt.Fprintf(p.w, format+"\n", a...)
}

func (p *printer) okf(format string, a ...any) {
	p.line("%s", p.ok.Render(fmt.Sprintf(format, a...)))
}

func (p *printer) warnf(format string, a ...any) {
	p.line("%s", p.warn.Render(fmt.Sprintf(format, a...)))
}

func (p *printer) badf(format string, a ...any) {
	p.line("%s", p.bad.Render(fmt.Sprintf(format, a...)))
}

func (p *printer) hint(format string, a ...any) {
	p.line("%s", p.dim.Render(fmt.Sprintf(format, a...)))
}
