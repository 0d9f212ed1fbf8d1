// Package termview draws render trees and form descriptors in a terminal.
package termview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/wilhg/kit/pkg/form"
	"github.com/wilhg/kit/pkg/render"
)

const (
	defaultWidth = 100
	cellGap      = 2
)

// Theme holds the styles used for every component kind.
type Theme struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Unit    lipgloss.Style
	Text    lipgloss.Style
	Muted   lipgloss.Style
	Code    lipgloss.Style
	Badges  map[render.Color]lipgloss.Style
	Warning lipgloss.Style
}

// DefaultTheme mirrors the badge palette of the web renderer.
func DefaultTheme() Theme {
	primary := lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	subtle := lipgloss.AdaptiveColor{Light: "#6B6B6B", Dark: "#9A9A9A"}
	text := lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#FFFFFF"}
	badge := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	return Theme{
		Title: lipgloss.NewStyle().Bold(true).Foreground(primary),
		Label: lipgloss.NewStyle().Foreground(subtle),
		Value: lipgloss.NewStyle().Bold(true).Foreground(text),
		Unit:  lipgloss.NewStyle().Foreground(subtle),
		Text:  lipgloss.NewStyle().Foreground(text),
		Muted: lipgloss.NewStyle().Foreground(subtle).Italic(true),
		Code:  lipgloss.NewStyle().Foreground(subtle),
		Badges: map[render.Color]lipgloss.Style{
			render.ColorGreen:   badge.Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#2ECC40")),
			render.ColorAmber:   badge.Foreground(lipgloss.Color("#1A1A1A")).Background(lipgloss.Color("#FF851B")),
			render.ColorRed:     badge.Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#FF4136")),
			render.ColorNeutral: badge.Foreground(lipgloss.Color("#1A1A1A")).Background(lipgloss.Color("#FFFFFF")),
		},
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF851B")),
	}
}

// Printer lays components out in a fixed terminal width.
type Printer struct {
	Width int
	Theme Theme
}

// New returns a Printer for width columns; zero picks a default width.
func New(width int) *Printer {
	if width <= 0 {
		width = defaultWidth
	}
	return &Printer{Width: width, Theme: DefaultTheme()}
}

// Tree draws every row of t. Cells of a row share the width evenly.
func (p *Printer) Tree(t render.Tree) string {
	blocks := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		if len(row.Cells) == 0 {
			continue
		}
		cols := row.Columns
		if cols <= 0 {
			cols = 1
		}
		w := (p.Width - cellGap*(cols-1)) / cols
		cells := make([]string, 0, len(row.Cells)*2)
		for i, c := range row.Cells {
			if i > 0 {
				cells = append(cells, strings.Repeat(" ", cellGap))
			}
			cells = append(cells, lipgloss.NewStyle().Width(w).Render(p.component(c, w)))
		}
		blocks = append(blocks, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return strings.Join(blocks, "\n\n")
}

func (p *Printer) component(c render.Component, width int) string {
	th := p.Theme
	label := th.Label.Render(c.Label)
	switch c.Kind {
	case render.KindTitle:
		return th.Title.Render(c.Text)
	case render.KindMetric:
		return label + "\n" + p.metric(c)
	case render.KindBadge:
		style, ok := th.Badges[c.Color]
		if !ok {
			style = th.Badges[render.ColorNeutral]
		}
		return label + "\n" + style.Render(c.Text)
	case render.KindImage:
		return label + "\n" + th.Muted.Render("[image] "+truncate(c.Src, width-8))
	case render.KindList:
		lines := make([]string, 0, len(c.Items))
		for _, it := range c.Items {
			lines = append(lines, th.Text.Render("• "+it))
		}
		return label + "\n" + strings.Join(lines, "\n")
	case render.KindTable:
		tbl := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(th.Label).
			Headers(c.Columns...).
			Rows(c.Rows...)
		return label + "\n" + tbl.String()
	case render.KindMetricGroup:
		lines := make([]string, 0, len(c.Metrics))
		for _, m := range c.Metrics {
			lines = append(lines, th.Label.Render(m.Label+": ")+p.metric(m))
		}
		return label + "\n" + strings.Join(lines, "\n")
	case render.KindJSON:
		return label + "\n" + th.Code.Render(c.Text)
	case render.KindProse:
		return label + "\n" + th.Text.Width(width).Render(c.Text)
	default:
		return label + "\n" + th.Text.Render(c.Text)
	}
}

func (p *Printer) metric(c render.Component) string {
	s := p.Theme.Value.Render(c.Text)
	if c.Unit != "" {
		s += " " + p.Theme.Unit.Render(c.Unit)
	}
	return s
}

// Form lists the controls of a form, one per line, with the options and
// bounds each control offers.
func (p *Printer) Form(fields []form.Control) string {
	th := p.Theme
	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		name := f.Label
		if f.Required {
			name += th.Warning.Render(" *")
		}
		line := th.Value.Render(name) + " " + th.Label.Render("("+string(f.Kind)+")")
		if hint := controlHint(f); hint != "" {
			line += " " + th.Text.Render(hint)
		}
		if f.Placeholder != "" {
			line += "\n  " + th.Muted.Render(f.Placeholder)
		}
		if f.HelpText != "" {
			line += "\n  " + th.Label.Render(f.HelpText)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func controlHint(f form.Control) string {
	switch f.Kind {
	case form.KindSlider:
		var lo, hi float64
		if f.Min != nil {
			lo = *f.Min
		}
		if f.Max != nil {
			hi = *f.Max
		}
		h := fmt.Sprintf("%g..%g", lo, hi)
		if f.Unit != "" {
			h += " " + f.Unit
		}
		return h
	case form.KindRadioGroup, form.KindMultiSelect:
		return "[" + strings.Join(f.Options, " | ") + "]"
	}
	return ""
}

func truncate(s string, n int) string {
	if n < 4 {
		n = 4
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
