package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/framehost/config"
	"github.com/wippyai/framehost/errors"
	"github.com/wippyai/framehost/runtime"
)

const (
	pollInterval  = 250 * time.Millisecond
	actionTimeout = 30 * time.Second
	logLines      = 12
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateWatch modelState = iota
	stateLoadPrompt
	stateShowResult
)

type dashboardModel struct {
	rt       *runtime.Runtime
	err      error
	logs     *ringSink
	ready    <-chan *runtime.Runtime
	done     <-chan struct{}
	target   string
	result   string
	snap     runtime.Snapshot
	input    textinput.Model
	selected int
	state    modelState
	finished bool
}

func newDashboardModel(target string, logs *ringSink, ready <-chan *runtime.Runtime, done <-chan struct{}) *dashboardModel {
	ti := textinput.New()
	ti.Placeholder = "path or URL"
	ti.Prompt = "image: "
	ti.Width = 60
	return &dashboardModel{
		target: target,
		logs:   logs,
		ready:  ready,
		done:   done,
		input:  ti,
		state:  stateWatch,
	}
}

type readyMsg struct{ rt *runtime.Runtime }

type finishedMsg struct{}

type pollMsg struct{}

type snapshotMsg struct {
	err  error
	snap runtime.Snapshot
}

type actionMsg struct {
	err    error
	result string
}

func (m *dashboardModel) Init() tea.Cmd {
	return tea.Batch(m.waitReady, m.waitDone, poll())
}

func (m *dashboardModel) waitReady() tea.Msg {
	select {
	case rt := <-m.ready:
		return readyMsg{rt: rt}
	case <-m.done:
		return nil
	}
}

func (m *dashboardModel) waitDone() tea.Msg {
	<-m.done
	return finishedMsg{}
}

func poll() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg { return pollMsg{} })
}

func (m *dashboardModel) snapshot() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), pollInterval)
	defer cancel()
	snap, err := m.rt.Snapshot(ctx)
	return snapshotMsg{snap: snap, err: err}
}

func (m *dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.state == stateLoadPrompt {
			return m.updatePrompt(msg)
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "up", "k":
			if m.state == stateWatch && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateWatch && m.selected < len(m.snap.Instances)-1 {
				m.selected++
			}

		case "l":
			if m.state == stateWatch && m.rt != nil && !m.finished {
				m.state = stateLoadPrompt
				m.input.SetValue("")
				return m, m.input.Focus()
			}

		case "x":
			if m.state == stateWatch && m.rt != nil && !m.finished && m.selected < len(m.snap.Instances) {
				return m, m.unload(m.snap.Instances[m.selected])
			}

		case "enter", "esc":
			if m.state == stateShowResult {
				m.state = stateWatch
				m.result = ""
				m.err = nil
			}
		}

	case readyMsg:
		m.rt = msg.rt

	case finishedMsg:
		m.finished = true

	case pollMsg:
		if m.rt == nil || m.finished {
			return m, poll()
		}
		return m, m.snapshot

	case snapshotMsg:
		if msg.err == nil {
			m.snap = msg.snap
			if m.selected >= len(m.snap.Instances) {
				m.selected = max(len(m.snap.Instances)-1, 0)
			}
		}
		return m, poll()

	case actionMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	return m, nil
}

func (m *dashboardModel) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.input.Blur()
		m.state = stateWatch
		return m, nil
	case "enter":
		m.input.Blur()
		source := strings.TrimSpace(m.input.Value())
		if source == "" {
			m.state = stateWatch
			return m, nil
		}
		return m, m.load(source)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *dashboardModel) load(source string) tea.Cmd {
	rt, target := m.rt, m.target
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		h, err := rt.Load(ctx, source, target)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{result: fmt.Sprintf("loaded %s as handle %d", source, h)}
	}
}

func (m *dashboardModel) unload(info runtime.InstanceInfo) tea.Cmd {
	rt := m.rt
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		if err := rt.Unload(ctx, info.Handle); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{result: fmt.Sprintf("unloaded handle %d (%s)", info.Handle, info.Source)}
	}
}

func (m *dashboardModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("framehost"))
	b.WriteString(" ")
	switch {
	case m.rt == nil && m.finished:
		b.WriteString(errorStyle.Render("runtime failed to start"))
	case m.rt == nil:
		b.WriteString("starting...")
	case m.finished:
		b.WriteString(fmt.Sprintf("finished after %d frames", m.snap.Frames))
	default:
		b.WriteString(fmt.Sprintf("frame %d • %s • mount %s", m.snap.Frames, m.snap.State, m.target))
	}
	b.WriteString("\n\n")

	switch m.state {
	case stateWatch:
		m.viewInstances(&b)
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • l load • x unload • q quit"))

	case stateLoadPrompt:
		b.WriteString("Load a guest image:\n\n")
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter load • esc back"))

	case stateShowResult:
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render("log"))
	b.WriteString("\n")
	for _, line := range m.logs.Lines() {
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (m *dashboardModel) viewInstances(b *strings.Builder) {
	if len(m.snap.Instances) == 0 {
		b.WriteString(dimStyle.Render("no guests loaded"))
		b.WriteString("\n")
	}
	for i, inst := range m.snap.Instances {
		active := "idle"
		if inst.Active {
			active = "active"
		}
		line := fmt.Sprintf("%3d %s %-6s updates=%d traps=%d mem=%dKiB",
			inst.Handle, nameStyle.Render(inst.Source), active, inst.Updates, inst.Traps, inst.MemoryBytes/1024)
		if i == m.selected {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	if len(m.snap.Pending) > 0 {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("pending reads (%d)", len(m.snap.Pending))))
		b.WriteString("\n")
		for _, p := range m.snap.Pending {
			b.WriteString(fmt.Sprintf("  #%d handle %d %s → [%d, +%d)\n",
				p.ID, p.Handle, p.Name, p.Dest.Ptr, p.Dest.Len))
		}
	}
}

// runInteractive serves images behind the dashboard. Logs go to an
// in-memory ring shown under the instance list.
func runInteractive(ctx context.Context, cfg *config.Config, images []runtime.Image) error {
	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	logs := newRingSink(logLines)
	logger := buildLogger(cfg.Logging, level, consoleEncoder(false), logs)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ready := make(chan *runtime.Runtime, 1)
	done := make(chan struct{})
	var serveErr error
	go func() {
		defer close(done)
		serveErr = serve(ctx, cfg, logger, images, func(rt *runtime.Runtime) { ready <- rt })
	}()

	target := "main"
	if len(images) > 0 {
		target = images[0].Target
	}
	p := tea.NewProgram(newDashboardModel(target, logs, ready, done), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()

	cancel()
	<-done
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return serveErr
}
