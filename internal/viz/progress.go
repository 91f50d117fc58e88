package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/swimsim/internal/dynamo"
	"github.com/san-kum/swimsim/internal/sim"
)

const (
	barWidth        = 40
	historyCapacity = 600
	canvasWidth     = 40
	canvasHeight    = 10
)

type TickMsg time.Time

// ProgressMsg carries one sim.Progress into the model.
type ProgressMsg sim.Progress

// DoneMsg ends the display once the run has returned.
type DoneMsg struct {
	Result *sim.Result
	Err    error
}

// ProgressModel tracks a running simulation. It never drives the simulation
// itself; stop only asks the run to finish.
type ProgressModel struct {
	title string
	box   dynamo.BoxSize
	total uint64
	stop  func()

	progress sim.Progress
	first    uint64
	started  bool
	polar    []float64
	recorded uint64

	canvas       *Canvas
	showEnsemble bool
	frame        int

	stopping bool
	done     bool
	result   *sim.Result
	err      error
}

func NewProgressModel(title string, total uint64, box dynamo.BoxSize, stop func()) ProgressModel {
	if stop == nil {
		stop = func() {}
	}
	return ProgressModel{
		title:        title,
		box:          box,
		total:        total,
		stop:         stop,
		polar:        make([]float64, 0, historyCapacity),
		canvas:       NewCanvas(canvasWidth, canvasHeight),
		showEnsemble: true,
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/10, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m ProgressModel) Init() tea.Cmd {
	return tick()
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.done {
				return m, tea.Quit
			}
			if !m.stopping {
				m.stopping = true
				m.stop()
			}
		case "v":
			m.showEnsemble = !m.showEnsemble
		}

	case ProgressMsg:
		p := sim.Progress(msg)
		if !m.started {
			m.first = p.Timestep - 1
			m.started = true
		}
		m.progress = p
		if row := p.Metrics; row.Timestep > 0 && row.Timestep != m.recorded {
			m.recorded = row.Timestep
			if len(m.polar) == historyCapacity {
				m.polar = m.polar[1:]
			}
			m.polar = append(m.polar, row.PolarOrder)
		}

	case DoneMsg:
		m.done = true
		m.result, m.err = msg.Result, msg.Err
		return m, tea.Quit

	case TickMsg:
		m.frame++
		if m.done {
			return m, nil
		}
		return m, tick()
	}
	return m, nil
}

// Fraction is the completed share of the run.
func (m ProgressModel) Fraction() float64 {
	if m.total == 0 {
		return 1
	}
	return float64(m.progress.Timestep) / float64(m.total)
}

// Rate is the number of timesteps per second since the first report.
func (m ProgressModel) Rate() float64 {
	steps := m.progress.Timestep - m.first
	if !m.started || m.progress.Elapsed <= 0 {
		return 0
	}
	return float64(steps) / m.progress.Elapsed.Seconds()
}

func (m ProgressModel) status() string {
	switch {
	case m.err != nil:
		return statusFailed.Render("failed")
	case m.done && m.result != nil && m.result.Interrupted:
		return statusStopped.Render("stopped")
	case m.done:
		return statusDone.Render("done")
	case m.stopping:
		return statusStopped.Render(spinner(m.frame) + " stopping")
	}
	return statusRunning.Render(spinner(m.frame) + " running")
}

func (m ProgressModel) row(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value) + "\n"
}

func (m ProgressModel) View() string {
	var s strings.Builder
	p := m.progress

	s.WriteString(titleStyle.Render(m.title) + "  " + m.status() + "\n\n")
	s.WriteString(progressBar(m.Fraction(), barWidth))
	s.WriteString(fmt.Sprintf(" %d/%d (%.0f%%)\n\n", p.Timestep, m.total, 100*m.Fraction()))

	rate := m.Rate()
	eta := "-"
	if rate > 0 && p.Timestep < m.total {
		eta = (time.Duration(float64(m.total-p.Timestep)/rate) * time.Second).Round(time.Second).String()
	}
	s.WriteString(m.row("Throughput", fmt.Sprintf("%.1f steps/s", rate)))
	s.WriteString(m.row("Elapsed", p.Elapsed.Round(time.Second).String()))
	s.WriteString(m.row("Remaining", eta))
	s.WriteString(m.row("Queue blocked", fmt.Sprintf("%d (%s)", p.Queue.Blocked, p.Queue.BlockedFor.Round(time.Millisecond))))

	if p.Metrics.Timestep > 0 {
		s.WriteString("\n")
		s.WriteString(m.row("Polar order", fmt.Sprintf("%.4f", p.Metrics.PolarOrder)))
		s.WriteString(m.row("Nematic order", fmt.Sprintf("%.4f", p.Metrics.NematicOrder)))
		s.WriteString(m.row("<cos θ>", fmt.Sprintf("%.4f", p.Metrics.MeanAlignment)))
		s.WriteString(m.row("<θ>", fmt.Sprintf("%.4f", p.Metrics.MeanTheta)))
	}

	var panels []string
	if len(m.polar) > 1 {
		chart := asciigraph.Plot(m.polar, asciigraph.Height(canvasHeight-2), asciigraph.Width(canvasWidth), asciigraph.Caption("polar order"))
		panels = append(panels, graphStyle.Render(chart))
	}
	if m.showEnsemble && len(p.Sample) > 0 {
		m.canvas.Clear()
		m.canvas.DrawEnsemble(p.Sample, m.box)
		panels = append(panels, panelStyle.Render(m.canvas.String()+subtle.Render("x-z projection")))
	}
	if len(panels) > 0 {
		s.WriteString("\n" + lipgloss.JoinHorizontal(lipgloss.Top, panels...) + "\n")
	}

	if m.err != nil {
		s.WriteString("\n" + statusFailed.Render(m.err.Error()) + "\n")
	}
	s.WriteString(helpStyle.Render("q: stop  v: toggle swimmers"))
	return s.String()
}
