package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/latebit/wikichain/internal/chain"
	"github.com/latebit/wikichain/internal/config"
	"github.com/latebit/wikichain/internal/events"
	"github.com/latebit/wikichain/internal/history"
	"github.com/latebit/wikichain/internal/logging"
	"github.com/latebit/wikichain/internal/prefs"
	"github.com/latebit/wikichain/internal/report"
	"github.com/latebit/wikichain/internal/session"
)

type focus int

const (
	focusSource focus = iota
	focusTarget
	focusViewport
)

const tickInterval = 200 * time.Millisecond

type model struct {
	sess    *session.Session
	prefs   *prefs.Store
	history *history.Store

	inputs   [2]textinput.Model
	viewport viewport.Model
	focus    focus
	width    int
	height   int
	ready    bool

	autostart bool
	running   bool
	gen       int
	cancel    context.CancelFunc
	events    chan events.Event
	progress  progress

	outcome *chain.Outcome
	err     error
}

type startMsg struct{}

type progressMsg struct {
	gen   int
	event events.Event
	ok    bool
}

type searchDoneMsg struct {
	gen int
	out *chain.Outcome
	err error
}

type tickMsg struct {
	gen int
}

func initialModel(sess *session.Session, store *prefs.Store, hist *history.Store, source, target string) model {
	var inputs [2]textinput.Model
	for i, placeholder := range []string{"source article or URL", "target article or URL"} {
		ti := textinput.New()
		ti.Placeholder = placeholder
		ti.Prompt = ""
		ti.CharLimit = 256
		inputs[i] = ti
	}
	inputs[0].SetValue(source)
	inputs[1].SetValue(target)
	inputs[0].Focus()

	return model{
		sess:      sess,
		prefs:     store,
		history:   hist,
		inputs:    inputs,
		focus:     focusSource,
		autostart: source != "" && target != "",
	}
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if m.autostart {
		cmds = append(cmds, func() tea.Msg { return startMsg{} })
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		if m.ready {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		headerHeight := 2 // inputs + divider
		footerHeight := 1 // status bar
		viewportHeight := max(m.height-headerHeight-footerHeight, 1)

		if !m.ready {
			m.viewport = viewport.New(m.width, viewportHeight)
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = viewportHeight
		}
		inputWidth := max(m.width/2-8, 10)
		m.inputs[0].Width = inputWidth
		m.inputs[1].Width = inputWidth
		m.refresh()
		return m, nil

	case startMsg:
		return m.start()

	case progressMsg:
		if msg.gen != m.gen || !msg.ok {
			return m, nil
		}
		m.progress.apply(msg.event)
		m.refresh()
		return m, waitForProgress(m.gen, m.events)

	case tickMsg:
		if msg.gen != m.gen || !m.running {
			return m, nil
		}
		m.progress.elapsed = time.Since(m.progress.started)
		m.refresh()
		return m, tick(m.gen)

	case searchDoneMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		m.running = false
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		m.outcome, m.err = msg.out, msg.err
		m.refresh()
		if m.ready {
			m.viewport.GotoTop()
		}
		return m, nil
	}

	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.stop()
		return m, tea.Quit
	case tea.KeyTab:
		return m.cycleFocus(), nil
	case tea.KeyEscape:
		if m.running {
			m.stop()
			return m, nil
		}
		if m.focus != focusViewport {
			m.focus = focusViewport
			m.blurInputs()
		}
		return m, nil
	}

	if m.focus != focusViewport {
		if msg.Type == tea.KeyEnter {
			if m.focus == focusSource && strings.TrimSpace(m.inputs[1].Value()) == "" {
				return m.cycleFocus(), nil
			}
			return m.start()
		}
		var cmd tea.Cmd
		i := int(m.focus)
		m.inputs[i], cmd = m.inputs[i].Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q":
		m.stop()
		return m, tea.Quit
	case "s":
		m.stop()
		return m, nil
	case "r":
		return m.start()
	case "i", "n":
		if m.running {
			return m, nil
		}
		return m.toggleFilter(msg.String() == "i"), nil
	}
	if !m.ready {
		return m, nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// start launches a search for the current inputs. A running search is
// cancelled first.
func (m model) start() (tea.Model, tea.Cmd) {
	source := strings.TrimSpace(m.inputs[0].Value())
	target := strings.TrimSpace(m.inputs[1].Value())
	if source == "" || target == "" {
		m.err = fmt.Errorf("enter both a source and a target")
		m.refresh()
		return m, nil
	}
	m.stop()

	ctx, cancel := context.WithCancel(context.Background())
	m.gen++
	m.cancel = cancel
	m.running = true
	m.outcome, m.err = nil, nil
	m.events = make(chan events.Event, 256)
	m.progress = newProgress(source, target, time.Now())
	m.focus = focusViewport
	m.blurInputs()
	m.refresh()

	return m, tea.Batch(
		m.search(ctx, m.gen, source, target, m.events),
		waitForProgress(m.gen, m.events),
		tick(m.gen),
	)
}

// stop cancels the running search, if any. The search reports back through
// searchDoneMsg with Stopped set.
func (m *model) stop() {
	if m.cancel != nil {
		m.cancel()
	}
}

// search runs the finder and records the outcome. Progress events are
// forwarded to ch without blocking the search; ch is closed when it returns.
func (m model) search(ctx context.Context, gen int, source, target string, ch chan events.Event) tea.Cmd {
	sess, hist := m.sess, m.history
	return func() tea.Msg {
		forward := func(e events.Event) {
			select {
			case ch <- e:
			default:
			}
		}
		out, err := sess.FindChain(ctx, source, target, sess.Observer(forward))
		close(ch)
		if err == nil && hist != nil {
			if _, herr := hist.Save(context.WithoutCancel(ctx), history.FromOutcome(out)); herr != nil {
				sess.Logger.Warn("recording run failed", "err", herr)
			}
		}
		return searchDoneMsg{gen: gen, out: out, err: err}
	}
}

func waitForProgress(gen int, ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		return progressMsg{gen: gen, event: e, ok: ok}
	}
}

func tick(gen int) tea.Cmd {
	return tea.Tick(tickInterval, func(time.Time) tea.Msg { return tickMsg{gen: gen} })
}

func (m model) toggleFilter(infobox bool) model {
	cfg := m.sess.Config
	if infobox {
		cfg.IncludeInfobox = !cfg.IncludeInfobox
	} else {
		cfg.IncludeNavbox = !cfg.IncludeNavbox
	}
	if m.prefs != nil {
		if err := m.prefs.Save(cfg.IncludeInfobox, cfg.IncludeNavbox); err != nil {
			m.sess.Logger.Warn("saving preferences failed", "err", err)
		}
	}
	return m
}

func (m model) cycleFocus() model {
	m.focus = (m.focus + 1) % 3
	m.blurInputs()
	if m.focus != focusViewport {
		m.inputs[m.focus].Focus()
	}
	return m
}

func (m *model) blurInputs() {
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
}

// refresh redraws the viewport content from the current state.
func (m *model) refresh() {
	if !m.ready {
		return
	}
	switch {
	case m.running:
		m.viewport.SetContent(m.progress.view())
	case m.err != nil:
		m.viewport.SetContent(errorView(m.err))
	case m.outcome != nil:
		md := report.MarkdownOf(report.FromOutcome(m.outcome, m.sess.Endpoint()))
		rendered, err := report.RenderTerminal(md, m.width)
		if err != nil {
			rendered = md
		}
		m.viewport.SetContent(rendered)
	default:
		m.viewport.SetContent(helpView())
	}
}

func (m model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder

	label := lipgloss.NewStyle().Faint(true)
	field := func(f focus, name string) string {
		style := lipgloss.NewStyle().Padding(0, 1)
		if m.focus == f {
			style = style.Bold(true)
		}
		return style.Render(label.Render(name) + " " + m.inputs[f].View())
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, field(focusSource, "From"), field(focusTarget, "To")))
	b.WriteByte('\n')

	b.WriteString(strings.Repeat("─", m.width))
	b.WriteByte('\n')

	b.WriteString(m.viewport.View())
	b.WriteByte('\n')

	b.WriteString(m.statusBarView())

	return b.String()
}

func (m model) statusBarView() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Padding(0, 1)

	if m.running {
		return style.Foreground(lipgloss.Color("12")).Render(m.progress.summary() + "  [esc] stop")
	}
	if m.err != nil {
		return style.Foreground(lipgloss.Color("9")).Render("Error: " + m.err.Error())
	}

	filters := fmt.Sprintf("infobox %s  navbox %s", onOff(m.sess.Config.IncludeInfobox), onOff(m.sess.Config.IncludeNavbox))
	if m.outcome == nil {
		return style.Faint(true).Render("Enter two articles and press Enter  " + filters)
	}

	var parts []string
	switch {
	case m.outcome.Stopped:
		parts = append(parts, "[stopped]")
		style = style.Foreground(lipgloss.Color("11"))
	case !m.outcome.Found:
		parts = append(parts, "[no chain]")
		style = style.Foreground(lipgloss.Color("11"))
	default:
		parts = append(parts, fmt.Sprintf("[%d links]", m.outcome.Length))
	}
	parts = append(parts,
		fmt.Sprintf("%d attempts", m.outcome.Attempts),
		m.outcome.Elapsed.Round(time.Millisecond).String(),
		filters,
		fmt.Sprintf("%d%%", int(m.viewport.ScrollPercent()*100)),
	)
	return style.Render(strings.Join(parts, "  "))
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func helpView() string {
	return `
  Type a source and a target article, then press Enter.

  tab      switch between fields and results
  enter    start the search
  esc, s   stop a running search
  r        run the search again
  i        toggle infobox links
  n        toggle navbox links
  q        quit
`
}

func errorView(err error) string {
	return fmt.Sprintf("\n  Error: %s\n", err.Error())
}

func main() {
	configPath := flag.String("config", config.DefaultPath(), "path to config file")
	endpoint := flag.String("endpoint", "", "MediaWiki action API endpoint")
	insecure := flag.Bool("insecure", false, "skip TLS certificate verification")
	http3 := flag.Bool("http3", false, "talk to the API over HTTP/3")
	logPath := flag.String("log", "", "write logs to this file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *endpoint != "" {
		cfg.Endpoint = *endpoint
	}
	cfg.Insecure = cfg.Insecure || *insecure
	cfg.HTTP3 = cfg.HTTP3 || *http3

	store, err := prefs.Load(prefs.DefaultPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		store = nil
	} else {
		store.Apply(&cfg.IncludeInfobox, &cfg.IncludeNavbox)
	}

	logger, closeLog := openLog(*logPath, cfg)
	defer closeLog()

	sess := session.Open(cfg, logger)
	defer sess.Close()

	hist, err := history.Open(cfg.HistoryPath)
	if err != nil {
		logger.Warn("history unavailable", "path", cfg.HistoryPath, "err", err)
		hist = nil
	} else {
		defer hist.Close()
	}

	p := tea.NewProgram(
		initialModel(sess, store, hist, flag.Arg(0), flag.Arg(1)),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// openLog returns a file logger when path is set. The terminal belongs to
// the UI, so logging is otherwise discarded.
func openLog(path string, cfg *config.Config) (*slog.Logger, func()) {
	if path == "" {
		return logging.Discard(), func() {}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: open log %q: %v\n", path, err)
		return logging.Discard(), func() {}
	}
	return logging.New(cfg.LogFormat, cfg.LogLevel, f), func() { _ = f.Close() }
}
