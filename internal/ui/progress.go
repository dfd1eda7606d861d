// Package ui renders compile progress in the terminal.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"zam/internal/driver"
)

const statusWidth = 10

type compileModel struct {
	title   string
	events  <-chan driver.Event
	spinner spinner.Model
	bar     progress.Model
	rows    []row
	index   map[string]int
	phase   string
	width   int
	failed  int
	done    bool
}

type row struct {
	body    string
	status  string
	stage   driver.Stage
	elapsed time.Duration
}

type eventMsg driver.Event
type closedMsg struct{}

// NewCompileModel returns a Bubble Tea model that follows the events of
// one driver.Program.Compile call and quits when the channel closes.
func NewCompileModel(title string, bodies []string, events <-chan driver.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 60

	m := &compileModel{
		title:   title,
		events:  events,
		spinner: sp,
		bar:     bar,
		rows:    make([]row, 0, len(bodies)),
		index:   make(map[string]int, len(bodies)),
		width:   80,
	}
	for _, b := range bodies {
		m.track(b)
	}
	return m
}

func (m *compileModel) track(body string) int {
	if i, ok := m.index[body]; ok {
		return i
	}
	m.index[body] = len(m.rows)
	m.rows = append(m.rows, row{body: body, status: string(driver.StatusQueued)})
	return len(m.rows) - 1
}

func (m *compileModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.next())
}

func (m *compileModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		return m, tea.Batch(m.apply(driver.Event(msg)), m.next())
	case closedMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.bar.Width = max(10, msg.Width-4)
		}
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *compileModel) View() string {
	header := m.title
	if m.phase != "" {
		header += " (" + m.phase + ")"
	}
	if m.done {
		header = "done: " + header
		if m.failed > 0 {
			header += fmt.Sprintf(", %d failed", m.failed)
		}
	} else {
		header = m.spinner.View() + " " + header
	}

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render(header))
	b.WriteString("\n\n")

	nameWidth := max(20, m.width-statusWidth-14)
	for _, r := range m.rows {
		status := statusStyle(r.status).Render(fmt.Sprintf("%*s", statusWidth, r.status))
		line := "  " + status + " " + fit(r.body, nameWidth)
		if r.elapsed > 0 {
			line += lipgloss.NewStyle().Faint(true).Render(" " + r.elapsed.Round(time.Microsecond).String())
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if m.done {
		b.WriteString(m.bar.ViewAs(1))
	} else {
		b.WriteString(m.bar.View())
	}
	b.WriteString("\n")
	return b.String()
}

func (m *compileModel) next() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return closedMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *compileModel) apply(ev driver.Event) tea.Cmd {
	if ev.Body == "" {
		m.phase = label(ev.Stage, ev.Status)
		return nil
	}
	r := &m.rows[m.track(ev.Body)]
	r.status = label(ev.Stage, ev.Status)
	r.stage = ev.Stage
	if ev.Status == driver.StatusError {
		m.failed++
	}
	if ev.Elapsed > 0 {
		r.elapsed = ev.Elapsed
	}
	return m.bar.SetPercent(m.percent())
}

func (m *compileModel) percent() float64 {
	if len(m.rows) == 0 {
		return 0
	}
	total := 0.0
	for _, r := range m.rows {
		total += weight(r)
	}
	return total / float64(len(m.rows))
}

func weight(r row) float64 {
	switch r.status {
	case string(driver.StatusDone), string(driver.StatusError):
		return 1
	case string(driver.StatusQueued):
		return 0
	}
	switch r.stage {
	case driver.StageAnalyze:
		return 0.2
	case driver.StageLower:
		return 0.5
	case driver.StageValidate:
		return 0.9
	default:
		return 0
	}
}

func label(stage driver.Stage, status driver.Status) string {
	switch status {
	case driver.StatusWorking:
		switch stage {
		case driver.StageAnalyze:
			return "analyzing"
		case driver.StageLower:
			return "lowering"
		case driver.StageValidate:
			return "checking"
		case driver.StageBind:
			return "binding"
		}
		return string(stage)
	default:
		return string(status)
	}
}

func statusStyle(status string) lipgloss.Style {
	switch status {
	case string(driver.StatusDone):
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case string(driver.StatusError):
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case string(driver.StatusQueued):
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	}
}

// fit truncates s to width terminal cells.
func fit(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 3 {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, "...")
}
