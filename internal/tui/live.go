// Package tui renders a running ring-road episode in the terminal.
package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/mvelasco/platoon/internal/config"
	"github.com/mvelasco/platoon/internal/episode"
	"github.com/mvelasco/platoon/internal/marl"
	"github.com/mvelasco/platoon/internal/metrics"
	"github.com/mvelasco/platoon/internal/ring"
)

var (
	cyan    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	dimmer  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	green   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	red     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	magenta = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
)

const historyLen = 240

type Model struct {
	cfg    config.Config
	road   *ring.Ring
	env    *marl.Env
	policy episode.Policy

	obs     map[string][]float64
	step    int
	paused  bool
	crashed bool
	speed   float64

	speedHist  []float64
	rewardHist []float64

	width  int
	height int
}

func NewLive(cfg config.Config, road *ring.Ring, env *marl.Env, policy episode.Policy) Model {
	return Model{
		cfg:        cfg,
		road:       road,
		env:        env,
		policy:     policy,
		obs:        env.State(),
		speed:      1.0,
		speedHist:  make([]float64, 0, historyLen),
		rewardHist: make([]float64, 0, historyLen),
		width:      80,
		height:     24,
	}
}

func (m Model) Init() tea.Cmd { return tick() }

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tickMsg:
		if !m.paused && !m.done() {
			steps := int(m.speed)
			if steps < 1 {
				steps = 1
			}
			for i := 0; i < steps && !m.done(); i++ {
				m.advance()
			}
		}
		return m, tick()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "escape":
		return m, tea.Quit
	case " ", "p":
		m.paused = !m.paused
	case "r":
		m.obs = m.env.Reset(m.cfg.Seed)
		m.step = 0
		m.crashed = false
		m.speedHist = m.speedHist[:0]
		m.rewardHist = m.rewardHist[:0]
		return m, tea.ClearScreen
	case "+", "=":
		m.speed = math.Min(m.speed*2, 32)
	case "-", "_":
		m.speed = math.Max(m.speed/2, 1)
	case "0":
		m.speed = 1.0
	}
	return m, nil
}

func (m Model) done() bool {
	return m.crashed || m.step >= m.cfg.Horizon
}

func (m *Model) advance() {
	var actions map[string][]float64
	if m.policy != nil && m.step >= m.cfg.Warmup {
		actions = m.policy.Act(m.obs)
	}

	m.env.ApplyActions(actions)
	m.road.Advance(m.cfg.Dt)
	m.obs = m.env.State()
	m.env.AdditionalCommand()
	m.crashed = m.road.Crashed()

	rewards := m.env.Reward(actions, m.crashed)
	sum := 0.0
	for _, r := range rewards {
		sum += r
	}
	if len(rewards) > 0 {
		sum /= float64(len(rewards))
	}

	m.speedHist = appendCapped(m.speedHist, metrics.AverageVelocity(m.road, false))
	m.rewardHist = appendCapped(m.rewardHist, sum)
	m.step++
}

func appendCapped(s []float64, v float64) []float64 {
	s = append(s, v)
	if len(s) > historyLen {
		s = s[1:]
	}
	return s
}

func (m Model) View() string {
	var b strings.Builder

	statusIcon := green.Render("●")
	statusText := green.Render("running")
	switch {
	case m.crashed:
		statusIcon = red.Render("✗")
		statusText = red.Render("collision")
	case m.step >= m.cfg.Horizon:
		statusIcon = dim.Render("●")
		statusText = dim.Render("finished")
	case m.paused:
		statusIcon = yellow.Render("○")
		statusText = yellow.Render("paused")
	}
	b.WriteString(fmt.Sprintf("\n   %s %s  %s\n", statusIcon, cyan.Render("platoon"), statusText))

	progress := float64(m.step) / float64(m.cfg.Horizon)
	if progress > 1 {
		progress = 1
	}
	barWidth := 36
	filled := int(progress * float64(barWidth))
	t := float64(m.step) * m.cfg.Dt
	timeStr := fmt.Sprintf("%.1fs  step %d/%d  x%.0f", t, m.step, m.cfg.Horizon, m.speed)
	bar := cyan.Render(strings.Repeat("━", filled)) + dimmer.Render(strings.Repeat("─", barWidth-filled))
	b.WriteString(fmt.Sprintf("   %s %s\n\n", bar, dim.Render(timeStr)))

	b.WriteString(m.viewRoad())

	if len(m.speedHist) > 1 {
		chart := asciigraph.Plot(m.speedHist,
			asciigraph.Height(5),
			asciigraph.Width(min(m.width-12, 60)),
			asciigraph.Caption("mean speed (m/s)"))
		b.WriteString("\n" + dim.Render(indent(chart, 3)) + "\n")
	}

	b.WriteString(m.viewStats())
	b.WriteString("\n" + dim.Render("   space pause  ± speed  r reset  q quit") + "\n")
	return b.String()
}

// viewRoad draws the ring unrolled into a strip, RL vehicles highlighted.
func (m Model) viewRoad() string {
	cols := min(m.width-8, 72)
	if cols < 20 {
		cols = 20
	}

	cells := make([]string, cols)
	for i := range cells {
		cells[i] = dimmer.Render("·")
	}

	rl := make(map[string]bool)
	for _, id := range m.road.RLIDs() {
		rl[id] = true
	}
	length := m.road.RoadLength()
	for id, pos := range m.road.Positions() {
		col := int(pos / length * float64(cols))
		if col >= cols {
			col = cols - 1
		}
		switch {
		case rl[id]:
			cells[col] = magenta.Render("@")
		case m.road.Observed(id):
			cells[col] = yellow.Render("*")
		default:
			cells[col] = white.Render("o")
		}
	}

	var b strings.Builder
	b.WriteString("   " + dimmer.Render("╶") + strings.Join(cells, "") + dimmer.Render("╴") + "\n")
	b.WriteString("   " + dim.Render(fmt.Sprintf("%.0f m ring  %s human  %s rl  %s observed",
		length, white.Render("o"), magenta.Render("@"), yellow.Render("*"))) + "\n")
	return b.String()
}

func (m Model) viewStats() string {
	meanSpeed := 0.0
	if len(m.speedHist) > 0 {
		meanSpeed = m.speedHist[len(m.speedHist)-1]
	}
	reward := 0.0
	if len(m.rewardHist) > 0 {
		reward = m.rewardHist[len(m.rewardHist)-1]
	}

	minHead := math.Inf(1)
	for _, id := range m.road.IDs() {
		if h := m.road.Headway(id); h >= 0 && h < minHead {
			minHead = h
		}
	}
	headStr := "n/a"
	if !math.IsInf(minHead, 1) {
		headStr = fmt.Sprintf("%.1f m", minHead)
	}

	return fmt.Sprintf("\n   %s %s   %s %s   %s %s   %s %d\n",
		dim.Render("speed"), white.Render(fmt.Sprintf("%.2f m/s", meanSpeed)),
		dim.Render("reward"), white.Render(fmt.Sprintf("%.3f", reward)),
		dim.Render("min gap"), white.Render(headStr),
		dim.Render("vehicles"), len(m.road.IDs()))
}

func indent(s string, n int) string {
	pad := strings.Repeat(" ", n)
	return pad + strings.ReplaceAll(s, "\n", "\n"+pad)
}
