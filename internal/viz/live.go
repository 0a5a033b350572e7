package viz

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/pendubot/internal/mech"
	"github.com/san-kum/pendubot/internal/sched"
)

var (
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	dimmer = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	red    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(16*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

type liveModel struct {
	sched  *sched.Scheduler
	ev     mech.Evaluators
	reach  float64
	ctx    context.Context
	cancel context.CancelFunc

	paused    bool
	done      bool
	err       error
	wallStart time.Time
	pausedFor time.Duration
	pauseAt   time.Time

	history []float64
	tauHist []float64

	width  int
	height int
}

func newLiveModel(s *sched.Scheduler, ev mech.Evaluators) *liveModel {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRenderer(ev)
	return &liveModel{
		sched:   s,
		ev:      ev,
		reach:   r.reach,
		ctx:     ctx,
		cancel:  cancel,
		history: make([]float64, 0, 256),
		tauHist: make([]float64, 0, 256),
		width:   80,
		height:  24,
	}
}

func (m *liveModel) Init() tea.Cmd {
	if err := m.sched.Start(); err != nil {
		m.err = err
		m.done = true
		return tea.Quit
	}
	m.wallStart = time.Now()
	return tick()
}

func (m *liveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "escape":
			// Request cancellation; the loop observes it at the next
			// iteration boundary and emits the final frame first.
			m.cancel()
		case " ", "p":
			m.togglePause()
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tickMsg:
		if m.done {
			return m, tea.Quit
		}
		if m.paused && m.ctx.Err() == nil {
			return m, tick()
		}
		m.advance()
		if m.done {
			return m, tea.Quit
		}
		return m, tick()
	}
	return m, nil
}

// advance steps the simulation until it catches up with wall-clock time,
// bounded so a stalled terminal cannot trigger a burst of steps.
func (m *liveModel) advance() {
	elapsed := time.Since(m.wallStart) - m.pausedFor
	for i := 0; i < 8; i++ {
		if m.sched.Frame().T >= elapsed.Seconds() && m.ctx.Err() == nil {
			return
		}
		done, err := m.sched.StepOnce(m.ctx)
		m.record()
		if done {
			m.done = true
			m.err = err
			return
		}
	}
}

func (m *liveModel) record() {
	f := m.sched.Frame()
	if len(f.State) < 4 {
		return
	}
	m.history = append(m.history, f.State[1])
	if len(m.history) > 256 {
		m.history = m.history[1:]
	}
	m.tauHist = append(m.tauHist, f.Command.Tau1)
	if len(m.tauHist) > 256 {
		m.tauHist = m.tauHist[1:]
	}
}

func (m *liveModel) togglePause() {
	if m.paused {
		m.pausedFor += time.Since(m.pauseAt)
	} else {
		m.pauseAt = time.Now()
	}
	m.paused = !m.paused
}

func (m *liveModel) View() string {
	f := m.sched.Frame()
	cfg := m.sched.Config()

	cw := m.width - 6
	ch := m.height - 11
	if cw < 40 {
		cw = 40
	}
	if ch < 10 {
		ch = 10
	}

	canvas := NewCanvas(cw, ch)
	if len(f.State) >= 4 {
		drawArm(canvas, m.ev, m.reach, f.State[0], f.State[1])
	}

	var b strings.Builder

	statusIcon := green.Render("●")
	statusText := green.Render("running")
	switch {
	case !f.Running:
		statusIcon = red.Render("●")
		statusText = red.Render("controller stopped")
	case m.paused:
		statusIcon = yellow.Render("○")
		statusText = yellow.Render("paused")
	}
	b.WriteString(fmt.Sprintf("\n   %s %s  %s\n",
		statusIcon, cyan.Render(m.sched.Runtime().Name()), statusText))

	progress := f.T / cfg.TStop
	if progress > 1 {
		progress = 1
	}
	barWidth := 36
	filled := int(progress * float64(barWidth))
	bar := cyan.Render(strings.Repeat("━", filled)) + dimmer.Render(strings.Repeat("─", barWidth-filled))
	b.WriteString(fmt.Sprintf("   %s %s\n\n", bar,
		dim.Render(fmt.Sprintf("%.1fs/%.0fs", f.T, cfg.TStop))))

	for _, row := range strings.Split(strings.TrimRight(canvas.String(), "\n"), "\n") {
		b.WriteString("   " + row + "\n")
	}

	if len(f.State) >= 4 {
		b.WriteString("   " +
			dim.Render("q1=") + white.Render(fmt.Sprintf("%6.3f", f.State[0])) + "  " +
			dim.Render("q2=") + white.Render(fmt.Sprintf("%6.3f", f.State[1])) + "  " +
			dim.Render("v1=") + white.Render(fmt.Sprintf("%6.3f", f.State[2])) + "  " +
			dim.Render("v2=") + white.Render(fmt.Sprintf("%6.3f", f.State[3])) + "  " +
			dim.Render("tau=") + yellow.Render(fmt.Sprintf("%6.2f", f.Command.Tau1)) + "\n")
	}

	if len(m.history) > 2 {
		plot := asciigraph.Plot(m.history,
			asciigraph.Height(4),
			asciigraph.Width(min(len(m.history), cw-12)),
			asciigraph.Caption("q2"))
		for _, row := range strings.Split(plot, "\n") {
			b.WriteString("   " + dim.Render(row) + "\n")
		}
	}

	if n := len(m.sched.Warnings()); n > 0 {
		b.WriteString("   " + yellow.Render(fmt.Sprintf("%d warning(s)", n)) + "\n")
	}

	b.WriteString("\n" + dim.Render("   space pause  q quit") + "\n")
	return b.String()
}

// RunLive drives the scheduler under an interactive terminal view. It
// returns the simulation error, if any, once the run finishes or the
// user quits.
func RunLive(s *sched.Scheduler, ev mech.Evaluators) error {
	m := newLiveModel(s, ev)
	defer m.cancel()
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
	return m.err
}
