// Package tui is the interactive brick inspector: a tick-by-tick
// stepper through one memory's evolution history.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rcliao/engram/internal/brick"
	"github.com/rcliao/engram/internal/frame"
)

// ramp maps cell values from -1 (space) to +1 (@), ten levels.
const ramp = " .:-=+*#%@"

// RenderFrame draws a frame as ASCII, one character per cell.
func RenderFrame(f *frame.Frame) string {
	var sb strings.Builder
	sb.Grow((f.Width + 1) * f.Height)
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			sb.WriteByte(ramp[rampIndex(f.At(x, y))])
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func rampIndex(v float64) int {
	i := int((v + 1) / 2 * float64(len(ramp)-1))
	if i < 0 {
		return 0
	}
	if i > len(ramp)-1 {
		return len(ramp) - 1
	}
	return i
}

// Styles groups the lipgloss styling for the stepper.
type Styles struct {
	Title  lipgloss.Style
	State  lipgloss.Style
	Meta   lipgloss.Style
	Frame  lipgloss.Style
	Help   lipgloss.Style
	Marker lipgloss.Style
}

// DefaultStyles returns the stepper's color scheme.
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")),
		State: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
		Meta: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),
		Frame: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")),
		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		Marker: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")),
	}
}

// Model steps through a brick's tick history.
type Model struct {
	brick  *brick.Brick
	chunk  string
	styles Styles

	tick       int
	divergence int
	hasDiverge bool
	width      int
	height     int
}

// NewModel builds the stepper positioned at the seed frame.
func NewModel(b *brick.Brick, chunk string) Model {
	m := Model{
		brick:  b,
		chunk:  chunk,
		styles: DefaultStyles(),
	}
	m.divergence, m.hasDiverge = b.DivergencePoint()
	return m
}

// Tick reports the currently displayed tick.
func (m Model) Tick() int { return m.tick }

func (m Model) Init() tea.Cmd { return nil }

func (m Model) last() int { return len(m.brick.History) - 1 }

func (m Model) clampTick(t int) int {
	if t < 0 {
		return 0
	}
	if t > m.last() {
		return m.last()
	}
	return t
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "left", "h":
			m.tick = m.clampTick(m.tick - 1)
		case "right", "l":
			m.tick = m.clampTick(m.tick + 1)
		case "up", "k":
			m.tick = m.clampTick(m.tick + 10)
		case "down", "j":
			m.tick = m.clampTick(m.tick - 10)
		case "home", "g":
			m.tick = 0
		case "end", "G":
			m.tick = m.last()
		case "d":
			if m.hasDiverge {
				m.tick = m.clampTick(m.divergence)
			}
		}
	}
	return m, nil
}

func (m Model) View() string {
	b := m.brick
	f, err := b.FrameAt(m.tick)
	if err != nil {
		return fmt.Sprintf("broken history: %v\n", err)
	}

	title := fmt.Sprintf("brick %s  chunk %s", shortKey(b.Meta.Key), m.chunk)
	header := m.styles.Title.Render(title) + "  " +
		m.styles.State.Render(string(b.State)) + "\n" +
		m.styles.Meta.Render(fmt.Sprintf("tick %d/%d  rotation %d  attempts %d  wall %.3fs",
			m.tick, m.last(), b.Meta.Rotation, b.Meta.Attempts, b.Meta.WallTime))

	var extra string
	if b.Meta.CyclePeriod > 0 {
		extra = m.styles.Meta.Render(fmt.Sprintf("cycle period %d  oscillating cells %d",
			b.Meta.CyclePeriod, b.Meta.CycleCells))
		if m.hasDiverge {
			extra += "  " + m.styles.Marker.Render(fmt.Sprintf("divergence at tick %d", m.divergence))
		}
		extra += "\n"
	}

	help := m.styles.Help.Render("←/→ step  ↑/↓ jump 10  g/G ends  d divergence  q quit")

	return header + "\n" + extra +
		m.styles.Frame.Render(strings.TrimRight(RenderFrame(f), "\n")) +
		"\n" + help + "\n"
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}

// Run opens the stepper in the alternate screen until the user quits.
func Run(b *brick.Brick, chunk string) error {
	if len(b.History) == 0 {
		return fmt.Errorf("brick has no history to display")
	}
	_, err := tea.NewProgram(NewModel(b, chunk), tea.WithAltScreen()).Run()
	return err
}
