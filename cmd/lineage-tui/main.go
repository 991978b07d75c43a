// lineage-tui is a read-only terminal browser over the graph snapshot:
// dashboard, node table, task plan, stale set and integrity issues.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dd0wney/cluso-lineage/pkg/config"
	"github.com/dd0wney/cluso-lineage/pkg/graph"
	"github.com/dd0wney/cluso-lineage/pkg/scheduler"
	"github.com/dd0wney/cluso-lineage/pkg/snapshot"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF00FF")).
			MarginLeft(2).
			MarginTop(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FFFF")).
			Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#FF00FF")).
			Padding(0, 2)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#666666")).
				Padding(0, 2)

	contentStyle = lipgloss.NewStyle().
			MarginLeft(2).
			MarginTop(1)

	statsBoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FF00")).
			Padding(1, 2).
			MarginRight(2)

	staleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFF00"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#00FF00")).
		Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginTop(1).
			MarginLeft(2)
)

type view int

const (
	dashboardView view = iota
	nodesView
	planView
	staleView
	issuesView
	viewCount
)

type keyMap struct {
	Tab      key.Binding
	ShiftTab key.Binding
	Refresh  key.Binding
	Quit     key.Binding
	Up       key.Binding
	Down     key.Binding
}

var keys = keyMap{
	Tab: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next view"),
	),
	ShiftTab: key.NewBinding(
		key.WithKeys("shift+tab"),
		key.WithHelp("shift+tab", "prev view"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reload"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Refresh, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.ShiftTab, k.Refresh},
		{k.Up, k.Down, k.Quit},
	}
}

type model struct {
	graphPath   string
	g           *graph.Graph
	currentView view
	nodeTable   table.Model
	help        help.Model
	keys        keyMap
	width       int
	height      int
	message     string
	loadedAt    time.Time
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func initialModel(graphPath string, g *graph.Graph) model {
	columns := []table.Column{
		{Title: "ID", Width: 24},
		{Title: "Type", Width: 12},
		{Title: "Status", Width: 8},
		{Title: "Ver", Width: 5},
		{Title: "Title", Width: 40},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(14),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#00FFFF")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#FF00FF")).
		Bold(false)
	t.SetStyles(s)

	m := model{
		graphPath:   graphPath,
		g:           g,
		currentView: dashboardView,
		nodeTable:   t,
		help:        help.New(),
		keys:        keys,
		loadedAt:    time.Now(),
	}
	m.refreshTable()
	return m
}

func (m *model) reload() {
	g, err := snapshot.LoadOrInit(m.graphPath)
	if err != nil {
		m.message = fmt.Sprintf("reload failed: %v", err)
		return
	}
	m.g = g
	m.loadedAt = time.Now()
	m.message = ""
	m.refreshTable()
}

func (m *model) refreshTable() {
	rows := make([]table.Row, 0, m.g.NodeCount())
	for _, id := range m.g.IDs() {
		node := m.g.Nodes[id]
		rows = append(rows, table.Row{
			node.ID,
			string(node.Type),
			string(node.Status),
			fmt.Sprintf("%d", node.Version),
			node.Title,
		})
	}
	m.nodeTable.SetRows(rows)
}

func (m model) Init() tea.Cmd {
	return tickCmd()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case tickMsg:
		m.reload()
		return m, tickCmd()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Tab):
			m.currentView = (m.currentView + 1) % viewCount

		case key.Matches(msg, m.keys.ShiftTab):
			if m.currentView == 0 {
				m.currentView = viewCount - 1
			} else {
				m.currentView--
			}

		case key.Matches(msg, m.keys.Refresh):
			m.reload()
		}
	}

	if m.currentView == nodesView {
		m.nodeTable, cmd = m.nodeTable.Update(msg)
	}
	return m, cmd
}

func (m model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var s strings.Builder

	s.WriteString(titleStyle.Render("🧬 Lineage - Dependency Graph Browser"))
	s.WriteString("\n\n")
	s.WriteString(m.renderTabs())
	s.WriteString("\n\n")

	switch m.currentView {
	case dashboardView:
		s.WriteString(m.renderDashboard())
	case nodesView:
		s.WriteString(m.renderNodes())
	case planView:
		s.WriteString(m.renderPlan())
	case staleView:
		s.WriteString(m.renderStale())
	case issuesView:
		s.WriteString(m.renderIssues())
	}

	if m.message != "" {
		s.WriteString("\n\n")
		s.WriteString(errorStyle.Render("✗ " + m.message))
	}

	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render(m.help.ShortHelpView(m.keys.ShortHelp())))

	return s.String()
}

func (m model) renderTabs() string {
	tabs := []string{"Dashboard", "Nodes", "Plan", "Stale", "Issues"}
	var renderedTabs []string

	for i, tab := range tabs {
		if view(i) == m.currentView {
			renderedTabs = append(renderedTabs, activeTabStyle.Render(tab))
		} else {
			renderedTabs = append(renderedTabs, inactiveTabStyle.Render(tab))
		}
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, renderedTabs...)
}

func (m model) renderDashboard() string {
	byStatus := map[graph.Status]int{}
	byType := map[graph.NodeType]int{}
	for _, node := range m.g.Nodes {
		byStatus[node.Status]++
		byType[node.Type]++
	}

	statsContent := fmt.Sprintf(`📊 Graph
━━━━━━━━━━━━━━━
Nodes:     %d
Edges:     %d
Stale:     %d
Pending:   %d
Active:    %d
Loaded:    %s`,
		m.g.NodeCount(),
		m.g.EdgeCount(),
		byStatus[graph.StatusStale],
		byStatus[graph.StatusPending],
		byStatus[graph.StatusActive],
		m.loadedAt.Format("15:04:05"),
	)

	var types strings.Builder
	types.WriteString("🗂  By Type\n━━━━━━━━━━━━━━━\n")
	for _, t := range graph.NodeTypes {
		types.WriteString(fmt.Sprintf("%-12s %d\n", t, byType[t]))
	}

	statsBox := statsBoxStyle.Render(statsContent)
	typesBox := statsBoxStyle.Render(strings.TrimRight(types.String(), "\n"))

	return contentStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Top, statsBox, typesBox),
	)
}

func (m model) renderNodes() string {
	var s strings.Builder

	s.WriteString(headerStyle.Render("Node Browser"))
	s.WriteString("\n\n")
	s.WriteString(m.nodeTable.View())
	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("Navigate with ↑/↓ • Press 'r' to reload"))

	return contentStyle.Render(s.String())
}

func (m model) renderPlan() string {
	var s strings.Builder

	s.WriteString(headerStyle.Render("Task Plan"))
	s.WriteString("\n\n")

	groups := scheduler.ParallelGroups(m.g)
	if len(groups) == 0 {
		s.WriteString(helpStyle.Render("No plannable tasks"))
	}
	for i, group := range groups {
		s.WriteString(fmt.Sprintf("Wave %d:\n", i+1))
		for _, t := range group {
			s.WriteString(fmt.Sprintf("  ◉ %s  %s\n", t.ID, t.Title))
		}
	}

	blocked := scheduler.Blocked(m.g)
	if len(blocked) > 0 {
		s.WriteString("\nBlocked:\n")
		for _, b := range blocked {
			s.WriteString(staleStyle.Render(
				fmt.Sprintf("  ⏸ %s  waiting on %s\n", b.Node.ID, strings.Join(b.Unmet, ", "))))
		}
	}

	return contentStyle.Render(s.String())
}

func (m model) renderStale() string {
	var s strings.Builder

	s.WriteString(headerStyle.Render("Stale Nodes"))
	s.WriteString("\n\n")

	stale := m.g.StaleNodes()
	if len(stale) == 0 {
		s.WriteString(okStyle.Render("✓ Nothing is stale"))
		return contentStyle.Render(s.String())
	}

	s.WriteString("Safe recomputation order:\n\n")
	for i, id := range stale {
		node := m.g.Nodes[id]
		s.WriteString(staleStyle.Render(fmt.Sprintf("  %2d. %s  [%s]  %s\n", i+1, id, node.Type, node.Title)))
	}

	return contentStyle.Render(s.String())
}

func (m model) renderIssues() string {
	var s strings.Builder

	s.WriteString(headerStyle.Render("Integrity Issues"))
	s.WriteString("\n\n")

	issues := m.g.Validate()
	if len(issues) == 0 {
		s.WriteString(okStyle.Render("✓ Graph is consistent"))
		return contentStyle.Render(s.String())
	}

	for _, issue := range issues {
		s.WriteString(errorStyle.Render(fmt.Sprintf("  ✗ [%s] ", issue.Kind)))
		s.WriteString(issue.Message)
		s.WriteString("\n")
	}

	return contentStyle.Render(s.String())
}

func main() {
	configPath := flag.String("config", "lineage.yaml", "Config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	g, err := snapshot.LoadOrInit(cfg.GraphPath())
	if err != nil {
		log.Fatalf("Failed to load graph: %v", err)
	}

	p := tea.NewProgram(initialModel(cfg.GraphPath(), g), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}
