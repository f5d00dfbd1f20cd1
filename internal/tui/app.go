// Package tui is the terminal foreground context.
package tui

import (
	"context"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/goliatone/go-pushrelay/pkg/app"
	"github.com/goliatone/go-pushrelay/pkg/domain"
)

// toastTTL is how long a toast stays on screen.
const toastTTL = 4 * time.Second

// Workflow is the controller surface the UI drives.
type Workflow interface {
	State() domain.AppState
	Items() []domain.EventItem
	RequestPermission(ctx context.Context) error
	StartScan(ctx context.Context) error
	CancelScan(ctx context.Context) error
	HandleDecoded(ctx context.Context, text string) error
	Forget(ctx context.Context) error
}

type stateMsg domain.AppState

type toastMsg app.Toast

type itemsMsg []domain.EventItem

type toastExpiredMsg struct{ seq int }

type actionDoneMsg struct{ err error }

// Model is the root Bubbletea model.
type Model struct {
	ctx      context.Context
	workflow Workflow
	now      func() time.Time

	state    domain.AppState
	items    []domain.EventItem
	toast    *app.Toast
	toastSeq int
	input    string
	busy     bool
	cursor   int
	width    int
	height   int
}

// New builds the model from the workflow's current state.
func New(ctx context.Context, w Workflow) Model {
	return Model{
		ctx:      ctx,
		workflow: w,
		now:      time.Now,
		state:    w.State(),
		items:    w.Items(),
	}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case stateMsg:
		next := domain.AppState(msg)
		if next != m.state {
			m.input = ""
			m.cursor = 0
		}
		m.state = next
		return m, nil

	case itemsMsg:
		m.items = []domain.EventItem(msg)
		if m.cursor >= len(m.items) {
			m.cursor = 0
		}
		return m, nil

	case toastMsg:
		t := app.Toast(msg)
		m.toast = &t
		m.toastSeq++
		seq := m.toastSeq
		return m, tea.Tick(toastTTL, func(time.Time) tea.Msg { return toastExpiredMsg{seq: seq} })

	case toastExpiredMsg:
		if msg.seq == m.toastSeq {
			m.toast = nil
		}
		return m, nil

	case actionDoneMsg:
		m.busy = false
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m, tea.Quit
	}
	if m.state != domain.StateScanning && key == "q" {
		return m, tea.Quit
	}
	if m.busy {
		return m, nil
	}

	switch m.state {
	case domain.StatePermission:
		if key == "enter" || key == "p" {
			return m.run(m.workflow.RequestPermission)
		}

	case domain.StateScan:
		if key == "enter" || key == "s" {
			return m.run(m.workflow.StartScan)
		}

	case domain.StateScanning:
		switch {
		case key == "esc":
			return m.run(m.workflow.CancelScan)
		case key == "enter":
			text := strings.TrimSpace(m.input)
			if text == "" {
				return m, nil
			}
			m.input = ""
			return m.run(func(ctx context.Context) error { return m.workflow.HandleDecoded(ctx, text) })
		case key == "backspace":
			m.input = editText(m.input, key, nil)
		case msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace:
			m.input = editText(m.input, key, msg.Runes)
		}

	case domain.StateEvents:
		switch key {
		case "f":
			return m.run(m.workflow.Forget)
		case "j", "down":
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		case "k", "up":
			if m.cursor > 0 {
				m.cursor--
			}
		}
	}
	return m, nil
}

// run executes a workflow action off the update loop.
func (m Model) run(action func(ctx context.Context) error) (tea.Model, tea.Cmd) {
	m.busy = true
	ctx := m.ctx
	return m, func() tea.Msg {
		return actionDoneMsg{err: action(ctx)}
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("EVENT TRACKER"))
	b.WriteString("\n\n")

	switch m.state {
	case domain.StatePermission:
		b.WriteString(normalStyle.Render("Push notifications need your permission."))
		b.WriteString("\n\n")
		b.WriteString(renderHelp("enter", "enable notifications", "q", "quit"))

	case domain.StateScan:
		b.WriteString(normalStyle.Render("Scan a registration QR code to subscribe."))
		b.WriteString("\n\n")
		b.WriteString(renderHelp("s", "start scanning", "q", "quit"))

	case domain.StateScanning:
		box := dimStyle.Render("Copy the decoded code to the clipboard, or paste it here:") + "\n" +
			accentStyle.Render("> ") + normalStyle.Render(m.input) + accentStyle.Render("█")
		b.WriteString(scanBoxStyle.Render(box))
		b.WriteString("\n\n")
		b.WriteString(renderHelp("enter", "register", "esc", "cancel"))

	case domain.StateEvents:
		b.WriteString(m.renderEvents())
		b.WriteString("\n")
		b.WriteString(renderHelp("j/k", "move", "f", "forget", "q", "quit"))
	}

	if m.toast != nil {
		style := toastStyle
		if m.toast.Error {
			style = toastErrorStyle
		}
		b.WriteString("\n\n")
		b.WriteString(style.Render(m.toast.Text))
	}
	if m.busy {
		b.WriteString("\n")
		b.WriteString(metaStyle.Render("working…"))
	}
	return b.String()
}

func (m Model) renderEvents() string {
	if len(m.items) == 0 {
		return dimStyle.Render("No events yet. Waiting for pushes…") + "\n"
	}
	width := m.width - 16
	if width < 20 {
		width = 60
	}
	now := m.now()
	var b strings.Builder
	for i, item := range m.items {
		marker := "  "
		text := normalStyle.Render(truncStr(item.Text, width))
		if i == m.cursor {
			marker = accentStyle.Render("▸ ")
		}
		age := metaStyle.Render(lipgloss.NewStyle().Width(10).Render(formatAge(item.Timestamp, now)))
		b.WriteString(marker + age + " " + text + "\n")
	}
	return b.String()
}

// Bridge forwards controller and store callbacks into a running program.
// Messages sent before Attach are queued.
type Bridge struct {
	mu      sync.Mutex
	program *tea.Program
	pending []tea.Msg
}

// Attach starts delivery to p and flushes queued messages.
func (b *Bridge) Attach(p *tea.Program) {
	b.mu.Lock()
	b.program = p
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()
	go func() {
		for _, msg := range pending {
			p.Send(msg)
		}
	}()
}

func (b *Bridge) send(msg tea.Msg) {
	b.mu.Lock()
	p := b.program
	if p == nil {
		b.pending = append(b.pending, msg)
	}
	b.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func (b *Bridge) OnState(s domain.AppState) { b.send(stateMsg(s)) }

func (b *Bridge) OnToast(t app.Toast) { b.send(toastMsg(t)) }

func (b *Bridge) OnItems(items []domain.EventItem) { b.send(itemsMsg(items)) }

// Run starts the program on the terminal and blocks until it quits.
func Run(ctx context.Context, w Workflow, bridge *Bridge) error {
	p := tea.NewProgram(New(ctx, w), tea.WithContext(ctx), tea.WithAltScreen())
	if bridge != nil {
		bridge.Attach(p)
	}
	_, err := p.Run()
	return err
}
