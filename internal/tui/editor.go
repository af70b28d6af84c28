// Package tui is the interactive task editor. Every edit flows through an autosave
// session; closing the editor flushes first and is refused while a save is failing.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"planner/internal/autosave"
	"planner/internal/model"
)

const defaultCloseTimeout = 10 * time.Second

type focus int

const (
	focusTitle focus = iota
	focusSchedule
	focusTags
	focusNotes
	focusCount
)

// statusMsg signals that the session changed state; the model re-reads it.
type statusMsg struct{}

type closedMsg struct{ err error }

type Options struct {
	Host *autosave.Host
	Task model.Task
	// Events wakes the model after background saves. May be nil.
	Events <-chan struct{}
	Now    func() time.Time
	// CloseTimeout bounds the flush performed on close.
	CloseTimeout time.Duration
}

type Model struct {
	host         *autosave.Host
	sess         *autosave.Session
	events       <-chan struct{}
	now          func() time.Time
	closeTimeout time.Duration

	title    textinput.Model
	schedule textinput.Model
	tags     textinput.Model
	notes    textarea.Model
	help     help.Model
	keys     keyMap

	draft   autosave.Fields
	status  autosave.Status
	focus   focus
	preview bool
	width   int
	height  int

	// inputErr is a field value that could not be applied (e.g. an unknown date).
	inputErr error
	// blocked is set when a close was refused because the flush failed.
	blocked error
	closing bool
	closed  bool
}

// New opens task in host and builds the editor around the resulting session.
func New(ctx context.Context, opts Options) (Model, error) {
	if opts.Host == nil {
		return Model{}, errors.New("tui: host is required")
	}
	sess, err := opts.Host.Open(ctx, opts.Task)
	if err != nil {
		return Model{}, err
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.CloseTimeout <= 0 {
		opts.CloseTimeout = defaultCloseTimeout
	}
	draft := sess.Draft()

	title := textinput.New()
	title.Prompt = ""
	title.Placeholder = "Title"
	title.CharLimit = 500
	title.SetValue(draft.Title)

	schedule := textinput.New()
	schedule.Prompt = ""
	schedule.Placeholder = "YYYY-MM-DD, tomorrow, next friday…"
	if draft.ScheduleDate != nil {
		schedule.SetValue(*draft.ScheduleDate)
	}

	tags := textinput.New()
	tags.Prompt = ""
	tags.Placeholder = "comma,separated"
	tags.SetValue(strings.Join(draft.Tags, ", "))

	notes := textarea.New()
	notes.ShowLineNumbers = false
	notes.Placeholder = "Notes (markdown)"
	notes.CharLimit = 0
	notes.SetValue(draft.Notes)

	m := Model{
		host:         opts.Host,
		sess:         sess,
		events:       opts.Events,
		now:          opts.Now,
		closeTimeout: opts.CloseTimeout,
		title:        title,
		schedule:     schedule,
		tags:         tags,
		notes:        notes,
		help:         help.New(),
		keys:         defaultKeys(),
		draft:        draft,
		status:       sess.Status(),
	}
	m.setFocus(focusTitle)
	m.resize(80, 24)
	return m, nil
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitStatus())
}

func (m Model) waitStatus() tea.Cmd {
	if m.events == nil {
		return nil
	}
	ch := m.events
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return statusMsg{}
	}
}

func (m Model) closeCmd() tea.Cmd {
	host, timeout := m.host, m.closeTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return closedMsg{err: host.Close(ctx)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case statusMsg:
		m.status = m.sess.Status()
		return m, m.waitStatus()

	case closedMsg:
		m.closing = false
		if msg.err != nil {
			m.blocked = msg.err
			m.status = m.sess.Status()
			return m, nil
		}
		m.closed = true
		return m, tea.Quit

	case tea.KeyMsg:
		if m.closing {
			return m, nil
		}
		cmd := m.handleKey(msg)
		m.status = m.sess.Status()
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Close):
		m.commitField()
		m.closing = true
		m.blocked = nil
		return m.closeCmd()
	case key.Matches(msg, m.keys.Retry):
		if m.sess.Retry() {
			m.blocked = nil
		}
		return nil
	case key.Matches(msg, m.keys.Next):
		m.commitField()
		return m.setFocus((m.focus + 1) % focusCount)
	case key.Matches(msg, m.keys.Prev):
		m.commitField()
		return m.setFocus((m.focus + focusCount - 1) % focusCount)
	case key.Matches(msg, m.keys.Preview):
		m.preview = !m.preview
		return nil
	case key.Matches(msg, m.keys.Done):
		if m.draft.Status == model.StatusCompleted {
			m.draft.Status = model.StatusOpen
		} else {
			m.draft.Status = model.StatusCompleted
		}
		m.sess.Update(m.draft)
		return nil
	case key.Matches(msg, m.keys.Commit) && m.focus != focusNotes:
		m.commitField()
		if m.focus == focusTitle {
			return m.setFocus(focusSchedule)
		}
		return nil
	}

	var cmd tea.Cmd
	switch m.focus {
	case focusTitle:
		m.title, cmd = m.title.Update(msg)
		if v := m.title.Value(); v != m.draft.Title {
			m.draft.Title = v
			m.sess.Update(m.draft)
		}
	case focusNotes:
		m.notes, cmd = m.notes.Update(msg)
		if v := m.notes.Value(); v != m.draft.Notes {
			m.draft.Notes = v
			m.sess.Update(m.draft)
		}
	case focusSchedule:
		m.schedule, cmd = m.schedule.Update(msg)
	case focusTags:
		m.tags, cmd = m.tags.Update(msg)
	}
	return cmd
}

// commitField applies the structural inputs, which save on enter or blur rather than
// on every keystroke.
func (m *Model) commitField() {
	switch m.focus {
	case focusSchedule:
		d, err := parseSchedule(m.schedule.Value(), m.now())
		if err != nil {
			m.inputErr = err
			return
		}
		m.inputErr = nil
		if d != nil {
			m.schedule.SetValue(*d)
		} else {
			m.schedule.SetValue("")
		}
		if !model.SameStrPtr(d, m.draft.ScheduleDate) {
			m.draft.ScheduleDate = d
			m.sess.Update(m.draft)
		}
	case focusTags:
		tags := parseTags(m.tags.Value())
		m.tags.SetValue(strings.Join(tags, ", "))
		if strings.Join(tags, "\x00") != strings.Join(m.draft.Tags, "\x00") {
			m.draft.Tags = tags
			m.sess.Update(m.draft)
		}
	}
}

func (m *Model) setFocus(f focus) tea.Cmd {
	m.focus = f
	m.title.Blur()
	m.schedule.Blur()
	m.tags.Blur()
	m.notes.Blur()
	switch f {
	case focusTitle:
		return m.title.Focus()
	case focusSchedule:
		return m.schedule.Focus()
	case focusTags:
		return m.tags.Focus()
	default:
		return m.notes.Focus()
	}
}

func (m *Model) resize(w, h int) {
	m.width, m.height = w, h
	inner := max(w-14, 10)
	m.title.Width = inner
	m.schedule.Width = inner
	m.tags.Width = inner
	m.notes.SetWidth(max(w-2, 10))
	m.notes.SetHeight(max(h-10, 3))
	m.help.Width = w
}

func (m Model) View() string {
	if m.closed {
		return ""
	}
	var b strings.Builder
	header := lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Render(m.draft.Title)
	if strings.TrimSpace(m.draft.Title) == "" {
		header = styleMuted().Render("(untitled)")
	}
	b.WriteString(header + "  " + styleMuted().Render(m.sess.TaskID()) + "\n\n")

	b.WriteString(styleLabel(m.focus == focusTitle).Render("Title") + m.title.View() + "\n")
	b.WriteString(styleLabel(m.focus == focusSchedule).Render("Schedule") + m.schedule.View() + "\n")
	b.WriteString(styleLabel(m.focus == focusTags).Render("Tags") + m.tags.View() + "\n")
	b.WriteString(styleLabel(false).Render("Status") + string(m.draft.Status) + "\n")
	if m.inputErr != nil {
		b.WriteString(lipgloss.NewStyle().Foreground(colorErrorFg).Render(m.inputErr.Error()) + "\n")
	}
	b.WriteString("\n" + styleLabel(m.focus == focusNotes).Render("Notes") + "\n")
	if m.preview {
		body := renderNotes(m.draft.Notes, max(m.width-2, 10))
		if body == "" {
			body = styleMuted().Render("(no notes)")
		}
		b.WriteString(lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorderDim).
			Render(body) + "\n")
	} else {
		b.WriteString(lipgloss.NewStyle().Background(colorInputBg).Render(m.notes.View()) + "\n")
	}
	b.WriteString("\n" + m.statusLine() + "\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) statusLine() string {
	var line string
	switch {
	case m.closing:
		line = lipgloss.NewStyle().Foreground(colorSavingFg).Render("saving before close…")
	case m.blocked != nil:
		line = lipgloss.NewStyle().Foreground(colorErrorFg).Bold(true).
			Render(fmt.Sprintf("cannot close: %v (ctrl+r to retry)", blockedCause(m.blocked)))
	case m.status.State == autosave.StateError:
		line = lipgloss.NewStyle().Foreground(colorErrorFg).
			Render(fmt.Sprintf("save failed: %v (ctrl+r to retry)", m.status.Err))
	case m.status.State == autosave.StateSaving:
		line = lipgloss.NewStyle().Foreground(colorSavingFg).Render("saving…")
	case m.status.Dirty:
		line = styleMuted().Render("unsaved changes")
	default:
		line = lipgloss.NewStyle().Foreground(colorSavedFg).Render("saved")
	}
	if m.width > 0 {
		line = ansi.Truncate(line, m.width, "…")
	}
	return line
}

func blockedCause(err error) error {
	var be *autosave.BlockedError
	if errors.As(err, &be) && be.Err != nil {
		return be.Err
	}
	return err
}

// Closed reports whether the editor flushed and closed its session.
func (m Model) Closed() bool { return m.closed }

// Blocked is the error that refused the last close attempt, if any.
func (m Model) Blocked() error { return m.blocked }
