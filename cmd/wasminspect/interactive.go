package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/wippyai/wasm-inspect/inspect"
	"github.com/wippyai/wasm-inspect/wasm"
)

type browserModel struct {
	err      error
	module   *wasm.Module
	report   *inspect.Report
	filename string
	opts     inspect.Options
	styles   styles
	entries  []entry
	visible  []entry
	filter   textinput.Model
	selected int
	state    modelState
	internal bool
}

type entry struct {
	fn       inspect.Function
	exported bool
}

type modelState int

const (
	stateList modelState = iota
	stateFilter
	stateDetail
)

func newBrowserModel(filename string, opts inspect.Options) *browserModel {
	ti := textinput.New()
	ti.Placeholder = "name or signature"
	ti.Prompt = "/ "
	ti.Width = 40
	return &browserModel{
		filename: filename,
		opts:     opts,
		styles:   newStyles(true),
		filter:   ti,
		state:    stateList,
	}
}

type loadedMsg struct {
	err    error
	module *wasm.Module
	report *inspect.Report
}

func (m *browserModel) Init() tea.Cmd {
	return m.loadModule
}

func (m *browserModel) loadModule() tea.Msg {
	data, err := inspect.LoadFile(m.filename, m.opts.MaxBytes)
	if err != nil {
		return loadedMsg{err: err}
	}
	mod, err := wasm.ParseWithOptions(data, m.opts.Reader)
	if err != nil {
		return loadedMsg{err: err}
	}
	rep := inspect.NewReport(m.filename, len(data), mod)
	if m.opts.Verify {
		if err := inspect.Verify(context.Background(), data, mod); err != nil {
			return loadedMsg{err: err}
		}
		rep.Verified = true
	}
	return loadedMsg{module: mod, report: rep}
}

func (m *browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.state == stateFilter {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "up", "k":
			if m.state == stateList && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateList && m.selected < len(m.visible)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateList:
				if len(m.visible) > 0 {
					m.state = stateDetail
				}
			case stateDetail:
				m.state = stateList
			}

		case "/":
			if m.state == stateList {
				m.state = stateFilter
				return m, m.filter.Focus()
			}

		case "tab":
			if m.state == stateList {
				m.internal = !m.internal
				m.refresh()
			}

		case "esc":
			if m.state == stateDetail {
				m.state = stateList
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.module = msg.module
		m.report = msg.report
		for _, f := range msg.report.Exported {
			m.entries = append(m.entries, entry{fn: f, exported: true})
		}
		for _, f := range msg.report.Internal {
			m.entries = append(m.entries, entry{fn: f})
		}
		m.refresh()
	}

	return m, nil
}

func (m *browserModel) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "enter", "esc":
		if msg.String() == "esc" {
			m.filter.SetValue("")
		}
		m.filter.Blur()
		m.state = stateList
		m.refresh()
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.refresh()
	return m, cmd
}

// refresh recomputes the visible entries from the filter text and the
// internal-functions toggle.
func (m *browserModel) refresh() {
	query := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	m.visible = m.visible[:0]
	for _, e := range m.entries {
		if !e.exported && !m.internal {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(e.fn.Name), query) &&
			!strings.Contains(e.fn.Signature, query) {
			continue
		}
		m.visible = append(m.visible, e)
	}
	if m.selected >= len(m.visible) {
		m.selected = max(len(m.visible)-1, 0)
	}
}

func (m *browserModel) View() string {
	s := m.styles
	if m.err != nil {
		return s.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if m.report == nil {
		return "Loading module..."
	}

	var b strings.Builder
	b.WriteString(s.title.Render("WASM Inspect"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	if m.report.Verified {
		b.WriteString(s.dim.Render(" (verified)"))
	}
	b.WriteString("\n\n")

	switch m.state {
	case stateList, stateFilter:
		if m.state == stateFilter || m.filter.Value() != "" {
			b.WriteString(m.filter.View())
			b.WriteString("\n\n")
		}
		if len(m.visible) == 0 {
			b.WriteString(s.dim.Render("no matching functions"))
			b.WriteString("\n")
		}
		for i, e := range m.visible {
			line := s.signature(e.fn)
			if !e.exported {
				line += s.dim.Render(" internal")
			}
			if i == m.selected {
				b.WriteString(s.selected.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(s.help.Render("↑/↓ select • enter details • / filter • tab internal functions • q quit"))

	case stateDetail:
		b.WriteString(m.detail(m.visible[m.selected]))
		b.WriteString("\n")
		b.WriteString(s.help.Render("enter/esc back • q quit"))
	}

	return b.String()
}

func (m *browserModel) detail(e entry) string {
	s := m.styles
	var b strings.Builder
	b.WriteString(s.signature(e.fn))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "index      %d\n", e.fn.Index)
	fmt.Fprintf(&b, "exported   %v\n", e.exported)

	body, ok := m.module.Body(e.fn.Index)
	if !ok {
		b.WriteString("imported   true\n")
		return b.String()
	}
	fmt.Fprintf(&b, "body       %d bytes at offset 0x%x\n", len(body.Body), body.Offset)

	locals, err := body.Locals()
	if err != nil {
		b.WriteString(s.err.Render(fmt.Sprintf("locals     %v", err)))
		b.WriteString("\n")
		return b.String()
	}
	var decl []string
	for _, l := range locals {
		decl = append(decl, fmt.Sprintf("%d×%s", l.Count, l.ValType))
	}
	if len(decl) == 0 {
		decl = append(decl, "none")
	}
	fmt.Fprintf(&b, "locals     %s\n", s.typ.Render(strings.Join(decl, ", ")))

	code, _ := body.Instructions()
	preview := code
	if len(preview) > 32 {
		preview = preview[:32]
	}
	fmt.Fprintf(&b, "code       % x", preview)
	if len(code) > len(preview) {
		b.WriteString(" …")
	}
	b.WriteString("\n")
	return b.String()
}

func runInteractive(filename string, opts inspect.Options) error {
	p := tea.NewProgram(newBrowserModel(filename, opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
