package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nestfold/nestfold/pkg/graph"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// TreeModel - Interactive hierarchy browser
// =============================================================================

// treeRow is one visible line of the flattened hierarchy.
type treeRow struct {
	id          string
	depth       int
	compound    bool
	placeholder bool
}

// TreeModel is the bubbletea model for browsing the derived hierarchy.
// Compound groups expand and collapse; leaves are plain rows. The model
// views a snapshot taken at construction, so a rebuild running elsewhere
// never mutates what the browser is walking.
type TreeModel struct {
	nodes    map[string]graph.NodeData
	children map[string][]string
	roots    []string
	rows     []treeRow
	expanded map[string]bool
	Cursor   int
	Height   int
	Offset   int
}

// NewTreeModel creates a tree browser over a snapshot of the given store.
// Every compound group starts expanded so the full hierarchy is visible at
// once.
func NewTreeModel(store *graph.Store) TreeModel {
	snap := store.Snapshot()
	m := TreeModel{
		nodes:    snap.NodeIndex(),
		children: snap.ChildIndex(),
		roots:    snap.Roots(),
		expanded: make(map[string]bool),
		Height:   15,
	}
	for id := range m.nodes {
		if len(m.children[id]) > 0 {
			m.expanded[id] = true
		}
	}
	m.reflow()
	return m
}

// reflow rebuilds the visible rows from the snapshot and expansion state.
func (m *TreeModel) reflow() {
	m.rows = m.rows[:0]
	for _, root := range m.roots {
		m.appendSubtree(root, 0)
	}
	if m.Cursor >= len(m.rows) {
		m.Cursor = len(m.rows) - 1
	}
	if m.Cursor < 0 {
		m.Cursor = 0
	}
}

func (m *TreeModel) appendSubtree(id string, depth int) {
	n, ok := m.nodes[id]
	if !ok {
		return
	}
	children := m.children[id]
	m.rows = append(m.rows, treeRow{
		id:          id,
		depth:       depth,
		compound:    len(children) > 0,
		placeholder: n.IsPlaceholder(),
	})
	if !m.expanded[id] {
		return
	}
	for _, child := range children {
		m.appendSubtree(child, depth+1)
	}
}

func (m TreeModel) Init() tea.Cmd {
	return nil
}

func (m TreeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.rows)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter", " ", "right", "l", "left", "h":
			if m.Cursor < len(m.rows) {
				row := m.rows[m.Cursor]
				if row.compound {
					m.expanded[row.id] = !m.expanded[row.id]
					m.reflow()
				}
			}
		case "e":
			for id := range m.expanded {
				m.expanded[id] = true
			}
			m.reflow()
		case "c":
			for id := range m.expanded {
				m.expanded[id] = false
			}
			m.reflow()
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 6
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m TreeModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Vault Hierarchy"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ fold/unfold  e expand all  c collapse all  q quit"))
	b.WriteString("\n\n")

	if len(m.rows) == 0 {
		b.WriteString(listDimStyle.Render("  (empty vault)"))
		return b.String()
	}

	end := m.Offset + m.Height
	if end > len(m.rows) {
		end = len(m.rows)
	}

	for i := m.Offset; i < end; i++ {
		row := m.rows[i]

		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}

		marker := "  "
		if row.compound {
			if m.expanded[row.id] {
				marker = "▾ "
			} else {
				marker = "▸ "
			}
		}

		label := row.id
		if row.placeholder {
			label += " (missing)"
		}

		line := cursor + strings.Repeat("  ", row.depth) + marker + label

		switch {
		case i == m.Cursor:
			b.WriteString(listSelectedStyle.Render(line))
		case row.placeholder:
			b.WriteString(stylePlaceholder.Render(line))
		default:
			b.WriteString(listNormalStyle.Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.rows))))

	return b.String()
}

// =============================================================================
// Plain Rendering
// =============================================================================

// renderTreePlain writes the full hierarchy as indented text, for use
// outside a TTY.
func renderTreePlain(store *graph.Store) string {
	snap := store.Snapshot()
	nodes := snap.NodeIndex()
	children := snap.ChildIndex()

	var b strings.Builder
	var walk func(id string, depth int)
	walk = func(id string, depth int) {
		n, ok := nodes[id]
		if !ok {
			return
		}
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(n.DisplayLabel())
		if n.IsPlaceholder() {
			b.WriteString(" (missing)")
		}
		b.WriteString("\n")
		for _, child := range children[id] {
			walk(child, depth+1)
		}
	}
	for _, root := range snap.Roots() {
		walk(root, 0)
	}
	return b.String()
}
