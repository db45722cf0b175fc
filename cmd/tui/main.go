package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"mutfreq/internal/engine"
	"mutfreq/internal/report"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Colors for modern design
var (
	primaryColor   = lipgloss.Color("#7C3AED") // Purple
	conservedColor = lipgloss.Color("#10B981") // Green
	mutatedColor   = lipgloss.Color("#EF4444") // Red
	accentColor    = lipgloss.Color("#F59E0B") // Amber
	surfaceColor   = lipgloss.Color("#1F2937") // Dark gray
	textColor      = lipgloss.Color("#F3F4F6") // Light gray
	mutedColor     = lipgloss.Color("#9CA3AF") // Muted gray
	borderColor    = lipgloss.Color("#374151") // Border gray
)

// Styles
var (
	containerStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor)

	titleStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true).
			Align(lipgloss.Center)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(textColor).
			Background(surfaceColor).
			Padding(0, 1)

	detailStyle = lipgloss.NewStyle().
			Foreground(textColor).
			Background(lipgloss.Color("#111827")).
			Padding(1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor)

	conservedStyle = lipgloss.NewStyle().Foreground(conservedColor).Bold(true)
	mutatedStyle   = lipgloss.NewStyle().Foreground(mutatedColor).Bold(true)
	lowConfStyle   = lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	labelStyle     = lipgloss.NewStyle().Foreground(mutedColor)
)

type listItem struct {
	rec engine.PositionRecord
}

func (i listItem) FilterValue() string {
	return fmt.Sprintf("%d %s", i.rec.Position, i.rec.Reference)
}

func (i listItem) Title() string {
	return fmt.Sprintf("Position %d  (%s)", i.rec.Position, i.rec.Reference)
}

func (i listItem) Description() string {
	var cls string
	if i.rec.Classification == engine.Mutated {
		cls = mutatedStyle.Render(i.rec.Classification.String())
	} else {
		cls = conservedStyle.Render(i.rec.Classification.String())
	}
	conf := i.rec.Confidence.String()
	if i.rec.Confidence == engine.LowConfidence {
		conf = lowConfStyle.Render(conf)
	}
	return fmt.Sprintf("%s    %s", cls, conf)
}

type mode int

const (
	modeAll mode = iota
	modeMutated
	modeLowConf
)

func (m mode) String() string {
	switch m {
	case modeMutated:
		return "Mutated only"
	case modeLowConf:
		return "Low-confidence only"
	default:
		return "All positions"
	}
}

type model struct {
	list        list.Model
	result      *engine.Result
	currentMode mode
	showHelp    bool
	width       int
	height      int
}

func newModel(res *engine.Result) model {
	l := list.New(itemsFor(res, modeAll), list.NewDefaultDelegate(), 0, 0)
	l.Title = "Alignment positions"
	l.SetShowStatusBar(false)
	l.SetShowPagination(true)
	l.SetFilteringEnabled(true)
	return model{list: l, result: res, currentMode: modeAll}
}

// itemsFor builds the list items for the given filter mode.
func itemsFor(res *engine.Result, m mode) []list.Item {
	items := make([]list.Item, 0, len(res.Positions))
	for _, rec := range res.Positions {
		switch m {
		case modeMutated:
			if rec.Classification != engine.Mutated {
				continue
			}
		case modeLowConf:
			if rec.Confidence != engine.LowConfidence {
				continue
			}
		}
		items = append(items, listItem{rec: rec})
	}
	return items
}

// cycleMode advances all -> mutated -> low-confidence -> all.
func (m model) cycleMode() model {
	return m.setMode((m.currentMode + 1) % 3)
}

func (m model) setMode(next mode) model {
	m.currentMode = next
	m.list.SetItems(itemsFor(m.result, next))
	m.list.ResetSelected()
	return m
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetWidth(msg.Width / 3)
		m.list.SetHeight(msg.Height - 4)
		return m, nil

	case tea.KeyMsg:
		// don't steal keys while the list filter input is active
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "h":
			m.showHelp = !m.showHelp
			return m, nil
		case "tab":
			return m.cycleMode(), nil
		case "1":
			return m.setMode(modeAll), nil
		case "2":
			return m.setMode(modeMutated), nil
		case "3":
			return m.setMode(modeLowConf), nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if m.width == 0 {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelpModal()
	}
	main := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderLeftPanel(),
		m.renderRightPanel(),
	)
	return lipgloss.JoinVertical(
		lipgloss.Left,
		main,
		m.renderStatusBar(),
	)
}

func (m model) renderLeftPanel() string {
	return containerStyle.
		Width(m.width/3 - 2).
		Height(m.height - 4).
		Render(m.list.View())
}

func (m model) renderRightPanel() string {
	rightWidth := (m.width * 2) / 3
	box := containerStyle.Width(rightWidth - 2).Height(m.height - 4)

	selected := m.list.SelectedItem()
	if selected == nil {
		return box.Render("No position selected")
	}
	rec := selected.(listItem).rec
	lines := m.buildRightLines(rec)
	return box.Render(strings.Join(lines, "\n"))
}

// buildRightLines renders the detail view for one position record.
func (m model) buildRightLines(rec engine.PositionRecord) []string {
	header := titleStyle.Render(fmt.Sprintf("Position %d (reference %s)", rec.Position, rec.Reference))

	var cls string
	if rec.Classification == engine.Mutated {
		cls = mutatedStyle.Render(rec.Classification.String())
	} else {
		cls = conservedStyle.Render(rec.Classification.String())
	}
	conf := rec.Confidence.String()
	if rec.Confidence == engine.LowConfidence {
		conf = lowConfStyle.Render(conf)
	}
	meta := labelStyle.Render("Classification: ") + cls + labelStyle.Render("    Confidence: ") + conf

	detail := detailStyle.
		Width(m.width*2/3 - 6).
		Render(strings.Join([]string{
			labelStyle.Render("Representation: ") + rec.Representation,
			labelStyle.Render("Counts:         ") + report.FormatCounts(rec.Counts),
			labelStyle.Render("Frequencies:    ") + report.FormatFrequencies(rec.Frequencies),
		}, "\n"))

	return []string{header, meta, "", detail}
}

func (m model) renderStatusBar() string {
	left := fmt.Sprintf("%d positions, %d mutated, %d low-confidence",
		m.result.TotalPositions, m.result.MutationCount, len(m.result.LowConfPositions))
	center := fmt.Sprintf("Mode: %s", m.currentMode.String())
	right := "Press 'h' for help, 'q' to quit"

	spacing := m.width - len(left) - len(center) - len(right) - 6
	var content string
	if spacing > 0 {
		l := spacing / 2
		content = left + strings.Repeat(" ", l) + center + strings.Repeat(" ", spacing-l) + right
	} else {
		content = left + " | " + center
	}
	return statusBarStyle.Width(m.width).Render(content)
}

func (m model) renderHelpModal() string {
	helpContent := `Mutation Frequency Browser - Help

Navigation:
  up/down, j/k   Navigate positions
  /              Filter positions
  tab            Cycle filter mode

Filter Modes:
  1              All positions
  2              Mutated only
  3              Low-confidence only

General:
  h              Toggle this help
  q, Ctrl+C      Quit

Current Mode: ` + m.currentMode.String() + `
Total Positions: ` + fmt.Sprintf("%d", m.result.TotalPositions) + `
`

	modalStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(primaryColor).
		Padding(1, 2).
		Background(surfaceColor).
		Foreground(textColor).
		Width(60).
		Align(lipgloss.Center)

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		modalStyle.Render(helpContent),
	)
}

func loadResults(path string) (*engine.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return report.ReadJSON(f)
}

func main() {
	resultsFlag := flag.String("results", "results.json", "path to analysis results JSON")
	flag.Parse()

	res, err := loadResults(*resultsFlag)
	if err != nil {
		log.Fatal(err)
	}

	p := tea.NewProgram(newModel(res), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v", err)
		os.Exit(1)
	}
}
