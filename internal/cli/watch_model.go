package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/tempo/internal/cli/formatter"
	"github.com/alexanderramin/tempo/internal/domain"
	"github.com/alexanderramin/tempo/internal/tracker"
	"github.com/alexanderramin/tempo/internal/tracking"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	watchTick        = time.Second
	watchReload      = 15 * time.Second
	watchCallTimeout = 10 * time.Second
)

// watchTickMsg re-renders running values from the registry.
type watchTickMsg time.Time

// watchLoadedMsg signals that owners were reloaded from the store.
type watchLoadedMsg struct {
	err error
}

// watchResultMsg carries a settled start or pause.
type watchResultMsg struct {
	result tracker.Result
}

type watchKeyMap struct {
	Toggle  key.Binding
	Refresh key.Binding
	Quit    key.Binding
}

func (k watchKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Refresh, k.Quit}
}

var watchKeys = watchKeyMap{
	Toggle:  key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "start/pause")),
	Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// watchModel is a live table of every owner in the registry: the running
// value of the open session next to the closed-session total.
type watchModel struct {
	rt    *tracking.Runtime
	now   func() time.Time
	table table.Model

	refs     []domain.OwnerRef
	message  string
	err      error
	lastLoad time.Time
	loading  bool
}

func newWatchModel(rt *tracking.Runtime, now func() time.Time) watchModel {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "KIND", Width: 9},
			{Title: "ID", Width: 14},
			{Title: "NAME", Width: 24},
			{Title: "STATE", Width: 9},
			{Title: "RUNNING", Width: 10},
			{Title: "TOTAL", Width: 8},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(formatter.ColorDim).
		BorderBottom(true).
		Foreground(formatter.ColorHeader).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(formatter.ColorFg).
		Background(lipgloss.Color("#504945"))
	t.SetStyles(styles)

	m := watchModel{rt: rt, now: now, table: t, loading: true}
	m.refresh()
	return m
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.load(), watchTickCmd())
}

func watchTickCmd() tea.Cmd {
	return tea.Tick(watchTick, func(t time.Time) tea.Msg { return watchTickMsg(t) })
}

func (m watchModel) load() tea.Cmd {
	engine := m.rt.Engine
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), watchCallTimeout)
		defer cancel()
		return watchLoadedMsg{err: engine.Load(ctx)}
	}
}

func (m watchModel) toggle(ref domain.OwnerRef) tea.Cmd {
	engine := m.rt.Engine
	action := domain.ActionStart
	if o, ok := m.rt.Registry.Get(ref); ok && o.HasOpenSession() {
		action = domain.ActionPause
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), watchCallTimeout)
		defer cancel()
		return watchResultMsg{result: <-engine.Submit(ctx, tracker.Command{Action: action, Owner: ref})}
	}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case watchTickMsg:
		m.refresh()
		cmds := []tea.Cmd{watchTickCmd()}
		if !m.loading && m.now().Sub(m.lastLoad) >= watchReload {
			m.loading = true
			cmds = append(cmds, m.load())
		}
		return m, tea.Batch(cmds...)

	case watchLoadedMsg:
		m.loading = false
		m.lastLoad = m.now()
		m.err = msg.err
		m.refresh()
		return m, nil

	case watchResultMsg:
		m.message = formatter.FormatResult(msg.result)
		m.refresh()
		return m, nil

	case tea.WindowSizeMsg:
		m.table.SetHeight(max(msg.Height-6, 3))
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, watchKeys.Quit):
			return m, tea.Quit
		case key.Matches(msg, watchKeys.Refresh):
			m.loading = true
			return m, m.load()
		case key.Matches(msg, watchKeys.Toggle):
			if i := m.table.Cursor(); i >= 0 && i < len(m.refs) {
				return m, m.toggle(m.refs[i])
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// refresh rebuilds the rows from registry snapshots.
func (m *watchModel) refresh() {
	now := m.now()
	var rows []table.Row
	m.refs = nil
	for _, k := range domain.OwnerKinds {
		for _, o := range m.rt.Registry.List(k) {
			m.refs = append(m.refs, o.Ref())
			rows = append(rows, watchRow(o, now))
		}
	}
	m.table.SetRows(rows)
}

func watchRow(o *domain.Owner, now time.Time) table.Row {
	state := "idle"
	running := "--"
	switch {
	case o.IsCompleted:
		state = "done"
	case o.HasOpenSession():
		state = "running"
		running = formatter.FormatDuration(o.RunningFor(now))
	}
	total := "--"
	if h, ok := o.TotalWorkedHours(); ok {
		total = formatter.FormatHours(h)
	}
	return table.Row{string(o.Kind), o.ID, o.Name, state, running, total}
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(formatter.StyleHeader.Render("TEMPO") + "  " + formatter.ConnectivityPill(m.rt.Monitor.Status()))
	if n := m.rt.Queue.Len(); n > 0 {
		b.WriteString("  " + formatter.StyleYellow.Render(fmt.Sprintf("%d pending", n)))
	}
	b.WriteString("\n\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(formatter.StyleRed.Render("reload failed: "+m.err.Error()) + "\n")
	}
	if m.message != "" {
		b.WriteString(m.message + "\n")
	}

	var help []string
	for _, k := range watchKeys.ShortHelp() {
		h := k.Help()
		help = append(help, h.Key+" "+h.Desc)
	}
	b.WriteString(formatter.Dim(strings.Join(help, " • ")))
	return b.String()
}
