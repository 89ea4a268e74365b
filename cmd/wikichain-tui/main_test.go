package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/latebit/wikichain/internal/config"
	"github.com/latebit/wikichain/internal/events"
	"github.com/latebit/wikichain/internal/prefs"
	"github.com/latebit/wikichain/internal/session"
	"github.com/latebit/wikichain/internal/wikitest"
)

func testSession(t *testing.T) *session.Session {
	t.Helper()
	w := wikitest.New().
		Page("Start", "Middle").
		Page("Middle", "End").
		Page("End")
	cfg := config.Default()
	cfg.PageDelay = 0
	return session.New(cfg, w, nil)
}

func sized(t *testing.T, m model) model {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(model)
}

func TestProgressApply(t *testing.T) {
	p := newProgress("A", "Z", time.Now())
	p.apply(events.Event{Kind: events.AttemptStarted, Attempt: 1})
	p.apply(events.Event{Kind: events.NodeExpanded, Direction: events.Forward, Title: "A", Visited: 4, ForwardQueue: 3, BackwardQueue: 1})
	p.apply(events.Event{Kind: events.NodeExpanded, Direction: events.Backward, Title: "Z", Depth: 0, Visited: 6, ForwardQueue: 3, BackwardQueue: 2})
	p.apply(events.Event{Kind: events.FetchFailed, Title: "B"})
	p.apply(events.Event{Kind: events.MeetingFound, Title: "M", Visited: 7})
	p.apply(events.Event{Kind: events.EdgeBlacklisted, From: "A", To: "M"})
	p.apply(events.Event{Kind: events.AttemptStarted, Attempt: 2})

	if p.attempt != 2 {
		t.Errorf("attempt = %d, want 2", p.attempt)
	}
	if p.expanded != 2 {
		t.Errorf("expanded = %d, want 2", p.expanded)
	}
	if p.visited != 7 {
		t.Errorf("visited = %d, want 7", p.visited)
	}
	if p.forward != 3 || p.backward != 2 {
		t.Errorf("queues = %d/%d, want 3/2", p.forward, p.backward)
	}
	if p.meeting != "" {
		t.Errorf("meeting = %q, want reset by new attempt", p.meeting)
	}
	if p.failures != 1 {
		t.Errorf("failures = %d, want 1", p.failures)
	}
	if len(p.blacklisted) != 1 || p.blacklisted[0] != "A → M" {
		t.Errorf("blacklisted = %v", p.blacklisted)
	}

	view := p.view()
	for _, want := range []string{"Searching A → Z", "visited", "A → M", "Z (backward, depth 0)"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestProgressViewTruncatesBlacklist(t *testing.T) {
	p := newProgress("A", "Z", time.Now())
	for i := range maxShownBlacklist + 3 {
		p.apply(events.Event{Kind: events.EdgeBlacklisted, From: "A", To: string(rune('a' + i))})
	}
	if view := p.view(); !strings.Contains(view, "… 3 earlier") {
		t.Errorf("view should summarise older edges:\n%s", view)
	}
}

func TestSearchFlow(t *testing.T) {
	m := sized(t, initialModel(testSession(t), nil, nil, "Start", "End"))
	if !m.autostart {
		t.Fatal("autostart should be set when both titles are given")
	}

	ch := make(chan events.Event, 256)
	m.gen = 1
	m.running = true
	msg := m.search(context.Background(), 1, "Start", "End", ch)()

	done, ok := msg.(searchDoneMsg)
	if !ok {
		t.Fatalf("msg = %T, want searchDoneMsg", msg)
	}
	if done.err != nil || !done.out.Found {
		t.Fatalf("search: found=%v err=%v", done.out.Found, done.err)
	}

	var sawExpansion bool
	for e := range ch {
		if e.Kind == events.NodeExpanded {
			sawExpansion = true
		}
	}
	if !sawExpansion {
		t.Error("no expansion events forwarded")
	}

	next, _ := m.Update(done)
	m = next.(model)
	if m.running {
		t.Error("running should be cleared")
	}
	if !strings.Contains(m.statusBarView(), "[2 links]") {
		t.Errorf("status bar = %q", m.statusBarView())
	}
	if !strings.Contains(m.viewport.View(), "Middle") {
		t.Errorf("viewport missing chain:\n%s", m.viewport.View())
	}
}

func TestStaleResultsIgnored(t *testing.T) {
	m := sized(t, initialModel(testSession(t), nil, nil, "", ""))
	m.gen = 2
	m.running = true

	next, _ := m.Update(searchDoneMsg{gen: 1})
	if !next.(model).running {
		t.Error("result of an earlier search should be ignored")
	}
	_, cmd := m.Update(progressMsg{gen: 1, ok: true})
	if cmd != nil {
		t.Error("progress of an earlier search should not be awaited")
	}
}

func TestStopKeyCancels(t *testing.T) {
	m := sized(t, initialModel(testSession(t), nil, nil, "", ""))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.cancel = cancel
	m.running = true

	m.Update(tea.KeyMsg{Type: tea.KeyEscape})
	if ctx.Err() == nil {
		t.Error("esc should cancel the running search")
	}
}

func TestStartRequiresBothTitles(t *testing.T) {
	m := sized(t, initialModel(testSession(t), nil, nil, "Start", ""))
	next, cmd := m.start()
	if cmd != nil {
		t.Error("no search should start")
	}
	if next.(model).err == nil {
		t.Error("expected an error message")
	}
}

func TestToggleFiltersSavesPrefs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	store, err := prefs.Load(path)
	if err != nil {
		t.Fatalf("prefs.Load: %v", err)
	}
	sess := testSession(t)
	m := sized(t, initialModel(sess, store, nil, "", ""))
	m.focus = focusViewport

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	m = next.(model)
	if sess.Config.IncludeNavbox {
		t.Error("navbox should be toggled off")
	}
	if !strings.Contains(m.statusBarView(), "navbox off") {
		t.Errorf("status bar = %q", m.statusBarView())
	}

	reloaded, err := prefs.Load(path)
	if err != nil {
		t.Fatalf("prefs.Load: %v", err)
	}
	infobox, navbox := true, true
	reloaded.Apply(&infobox, &navbox)
	if !infobox || navbox {
		t.Errorf("saved prefs = infobox %v navbox %v, want true false", infobox, navbox)
	}
}

func TestCycleFocus(t *testing.T) {
	m := initialModel(testSession(t), nil, nil, "", "")
	want := []focus{focusTarget, focusViewport, focusSource}
	for i, f := range want {
		m = m.cycleFocus()
		if m.focus != f {
			t.Errorf("step %d: focus = %d, want %d", i, m.focus, f)
		}
	}
}
