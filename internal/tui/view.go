package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/3leaps/bucketnav/pkg/output"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00FF80"))
	crumbStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#7F7F7F"))
	activeCrumb   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF"))
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#4A90E2")).Bold(true)
	folderStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FFFF"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFEB3B"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	confirmStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5555"))
)

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("bucketnav " + m.snap.Bucket))
	b.WriteString("\n")
	b.WriteString(m.breadcrumbs())
	b.WriteString("\n\n")

	selected := map[string]bool{}
	for _, k := range m.snap.Selected {
		selected[k] = true
	}

	rows := m.listHeight()
	end := min(m.offset+rows, len(m.entries))
	for i := m.offset; i < end; i++ {
		b.WriteString(m.row(m.entries[i], selected[m.entries[i].key], i == m.cursor))
		b.WriteString("\n")
	}
	if len(m.entries) == 0 && !m.loading && m.err == nil {
		b.WriteString(statusStyle.Render("  (empty)"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.footer())
	b.WriteString("\n")

	switch m.mode {
	case modeConfirm:
		b.WriteString(confirmStyle.Render(fmt.Sprintf("Delete %d item(s)? Folders are removed with their contents. [y/n]", len(m.snap.Selected))))
	case modeMatch:
		b.WriteString(m.input.View())
	default:
		b.WriteString(m.help.View(m.keys))
	}
	return b.String()
}

func (m *Model) breadcrumbs() string {
	parts := []string{crumbStyle.Render(m.snap.Bucket + ":")}
	if m.snap.Pos < 0 {
		parts[0] = activeCrumb.Render(m.snap.Bucket + ":")
	}
	for i, p := range m.snap.History {
		label := p.Name() + "/"
		if i == m.snap.Pos {
			parts = append(parts, activeCrumb.Render(label))
		} else {
			parts = append(parts, crumbStyle.Render(label))
		}
	}
	nav := ""
	if m.snap.CanBack {
		nav += " [←]"
	}
	if m.snap.CanForward {
		nav += " [→]"
	}
	return strings.Join(parts, " ") + crumbStyle.Render(nav)
}

func (m *Model) row(e entry, selected, atCursor bool) string {
	mark := "[ ]"
	if selected {
		mark = "[x]"
	}
	if e.parent {
		mark = "   "
	}

	var line string
	switch {
	case e.parent:
		line = fmt.Sprintf("%s %s", mark, e.name)
	case e.folder:
		line = fmt.Sprintf("%s %s", mark, folderStyle.Render(e.name))
	default:
		mod := ""
		if !e.object.LastModified.IsZero() {
			mod = e.object.LastModified.Local().Format("2006-01-02 15:04")
		}
		line = fmt.Sprintf("%s %-40s %10s  %s", mark, e.name, output.FormatSize(e.object.Size), mod)
	}
	switch {
	case atCursor:
		return cursorStyle.Render("> " + line)
	case selected:
		return selectedStyle.Render("  " + line)
	}
	return "  " + line
}

func (m *Model) footer() string {
	var parts []string
	if n := len(m.snap.Selected); n > 0 {
		state := ""
		sel := m.sess.Selection()
		switch {
		case sel.IsAllSelected(m.listing):
			state = " (all)"
		case sel.IsPartiallySelected(m.listing):
			state = " (partial)"
		}
		parts = append(parts, fmt.Sprintf("%d selected%s", n, state))
	}
	parts = append(parts, fmt.Sprintf("%d folders, %d objects", len(m.listing.Folders), len(m.listing.Objects)))
	if m.listing.NextToken != "" {
		parts = append(parts, "more available (n)")
	}
	if m.loading {
		parts = append(parts, m.spinner.View()+" loading")
	}
	line := statusStyle.Render(strings.Join(parts, " | "))
	if m.status != "" {
		line += "  " + statusStyle.Render(m.status)
	}
	if m.err != nil {
		line += "\n" + errorStyle.Render("error: "+m.err.Error())
	}
	return line
}
