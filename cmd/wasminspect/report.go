package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/wasm-inspect/inspect"
)

type styles struct {
	title    lipgloss.Style
	function lipgloss.Style
	typ      lipgloss.Style
	selected lipgloss.Style
	dim      lipgloss.Style
	err      lipgloss.Style
	help     lipgloss.Style
}

// newStyles returns colored styles for terminals and plain ones otherwise.
func newStyles(color bool) styles {
	if !color {
		plain := lipgloss.NewStyle()
		return styles{plain, plain, plain, plain, plain, plain, plain}
	}
	return styles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1),
		function: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98")),
		typ: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB")),
		selected: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")),
		dim: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")),
		err: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")),
		help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")),
	}
}

func (s styles) signature(f inspect.Function) string {
	name := f.Name
	if name == "" {
		name = fmt.Sprintf("func[%d]", f.Index)
	}
	return s.function.Render(name) + " " + s.typ.Render(f.Signature)
}

func renderText(w io.Writer, results []inspect.Result, s styles) {
	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if r.Err != nil {
			fmt.Fprintf(w, "%s %s\n", s.title.Render(r.Path), s.err.Render(r.Err.Error()))
			continue
		}
		writeReport(w, r.Report, s)
	}
}

func writeReport(w io.Writer, rep *inspect.Report, s styles) {
	var b strings.Builder

	b.WriteString(s.title.Render(rep.Name))
	fmt.Fprintf(&b, " %d bytes", rep.Size)
	if rep.Verified {
		b.WriteString(s.dim.Render(" (verified)"))
	}
	b.WriteString("\n")

	c := rep.Counts
	b.WriteString(s.dim.Render(fmt.Sprintf("types %d  imports %d  functions %d  tables %d  memories %d  globals %d  exports %d  elements %d  data %d",
		c.Types, c.Imports, c.Functions, c.Tables, c.Memories, c.Globals, c.Exports, c.Elements, c.Data)))
	b.WriteString("\n")

	b.WriteString("\nExported functions:\n")
	if len(rep.Exported) == 0 {
		b.WriteString(s.dim.Render("  (none)\n"))
	}
	for _, f := range rep.Exported {
		b.WriteString("  ")
		b.WriteString(s.signature(f))
		if f.Imported {
			b.WriteString(s.dim.Render(" (re-exported import)"))
		}
		b.WriteString("\n")
	}

	if len(rep.Internal) > 0 {
		b.WriteString("\nInternal functions:\n")
		for _, f := range rep.Internal {
			b.WriteString("  ")
			b.WriteString(s.signature(f))
			b.WriteString("\n")
		}
	}

	if len(rep.Others) > 0 {
		b.WriteString("\nOther exports:\n")
		for _, e := range rep.Others {
			fmt.Fprintf(&b, "  %s %s\n", s.function.Render(e.Name), s.typ.Render(fmt.Sprintf("%s[%d]", e.Kind, e.Index)))
		}
	}

	if len(rep.Imports) > 0 {
		b.WriteString("\nImports:\n")
		for _, e := range rep.Imports {
			fmt.Fprintf(&b, "  %s.%s %s\n", e.Module, s.function.Render(e.Name), s.typ.Render(e.Kind))
		}
	}

	if rep.Start != nil {
		fmt.Fprintf(&b, "\nStart: func[%d]\n", *rep.Start)
	}
	if len(rep.Custom) > 0 {
		fmt.Fprintf(&b, "\nCustom sections: %s\n", strings.Join(rep.Custom, ", "))
	}

	_, _ = io.WriteString(w, b.String())
}
