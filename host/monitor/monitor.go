// Package monitor is a terminal dashboard that charts a motor's position.
package monitor

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrDone tells the monitor its source has nothing more to show.
var ErrDone = errors.New("source exhausted")

// Sample is one reading of a motor.
type Sample struct {
	Position    int64
	Target      int64
	Speed       float64 // steps/ms
	Moving      bool
	Direction   string
	StepNumber  int64
	Revolutions int64
}

// Source produces the next sample. Returning ErrDone freezes the display.
type Source func() (Sample, error)

const (
	headerHeight = 2
	statusHeight = 3
	borderSize   = 2
)

var series = []struct {
	name  string
	color string
}{
	{"target", "240"},
	{"position", "51"},
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	movingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

type tickMsg time.Time

// Model is the bubbletea model of the dashboard.
type Model struct {
	title    string
	source   Source
	interval time.Duration

	chart  *streamlinechart.Model
	last   Sample
	count  int
	err    error
	done   bool
	width  int
	height int

	quitting bool
}

// New charts samples from src every interval, with the y axis spanning
// ±yRange steps.
func New(title string, src Source, interval time.Duration, yRange float64) Model {
	if yRange <= 0 {
		yRange = 100
	}
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(-yRange, yRange),
	)
	for _, s := range series {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(s.color))
		chart.SetDataSetStyles(s.name, runes.ThinLineStyle, style)
	}
	return Model{
		title:    title,
		source:   src,
		interval: interval,
		chart:    &chart,
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.chart.Resize(m.chartSize())
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		s, err := m.source()
		switch {
		case errors.Is(err, ErrDone):
			m.done = true
			return m, nil
		case err != nil:
			m.err = err
			return m, m.tick()
		}
		m.err = nil
		m.last = s
		m.count++
		m.chart.PushDataSet("target", float64(s.Target))
		m.chart.PushDataSet("position", float64(s.Position))
		m.chart.DrawAll()
		return m, m.tick()
	}
	return m, nil
}

func (m Model) chartSize() (int, int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20
	}
	w := m.width - borderSize - 2
	if w < 40 {
		w = 40
	}
	h := m.height - headerHeight - statusHeight - borderSize
	if h < 8 {
		h = 8
	}
	return w, h
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.title))
	switch {
	case m.done:
		sb.WriteString(statusStyle.Render("  finished"))
	case m.last.Moving:
		sb.WriteString("  " + movingStyle.Render("moving"))
	default:
		sb.WriteString(statusStyle.Render("  idle"))
	}
	sb.WriteString("\n\n")

	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	s := m.last
	sb.WriteString(fmt.Sprintf("position %d  target %d  step %d  rev %d  speed %.3f steps/ms  %s\n",
		s.Position, s.Target, s.StepNumber, s.Revolutions, s.Speed, s.Direction))
	sb.WriteString(legend())
	sb.WriteString("\n")
	if m.err != nil {
		sb.WriteString(errorStyle.Render(m.err.Error()))
	} else {
		sb.WriteString(statusStyle.Render("Press 'q' to quit"))
	}
	sb.WriteString("\n")
	return sb.String()
}

func legend() string {
	items := make([]string, 0, len(series))
	for _, s := range series {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(s.color)).Bold(true)
		items = append(items, style.Render("━━")+" "+s.name)
	}
	return strings.Join(items, "  ")
}

// Last is the most recent sample shown.
func (m Model) Last() Sample { return m.last }

// Run shows the dashboard until the user quits.
func Run(m Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
