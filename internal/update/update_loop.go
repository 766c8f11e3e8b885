package update

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/todobot/internal/notify"
	"github.com/sandeepkv93/todobot/internal/views"
)

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForNotificationCmd(m.notifications))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(typed.Width, typed.Height)
		m.refreshTranscript()
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(typed)
	case SetStatusMsg:
		m.Status = StatusBar{Text: typed.Text, IsError: typed.IsError}
		return m, nil
	case ClearStatusMsg:
		m.Status = StatusBar{}
		return m, nil
	case AppErrorMsg:
		m.LastError = typed.Err
		if typed.Err != nil {
			m.Status = StatusBar{Text: typed.Err.Error(), IsError: true}
		}
		return m, nil
	case NotificationMsg:
		m.showNotification(typed.Delivery)
		return m, waitForNotificationCmd(m.notifications)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.Quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Submit):
		m.submit()
		return m, nil
	case key.Matches(msg, m.keys.Previous):
		m.recall(-1)
		return m, nil
	case key.Matches(msg, m.keys.Next):
		m.recall(1)
		return m, nil
	case key.Matches(msg, m.keys.PageUp, m.keys.PageDown):
		var cmd tea.Cmd
		m.transcript, cmd = m.transcript.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) submit() {
	line := strings.TrimSpace(m.input.Value())
	if line == "" {
		return
	}
	m.input.SetValue("")
	m.pushHistory(line)
	m.appendEntry(entry{echo: true, text: line})

	if m.handler == nil {
		m.LastError = fmt.Errorf("update: no command handler")
		m.Status = StatusBar{Text: m.LastError.Error(), IsError: true}
		m.refreshTranscript()
		return
	}
	res, err := m.handler.Handle(m.User, line)
	if res.Message != "" {
		m.appendEntry(entry{text: res.Message})
	}
	m.LastError = err
	if err != nil {
		m.Status = StatusBar{Text: "command failed", IsError: true}
	} else {
		m.Status = StatusBar{Text: "ok"}
	}
	m.refreshTranscript()
}

func (m *Model) recall(step int) {
	if len(m.history) == 0 {
		return
	}
	pos := m.historyPos + step
	if pos < 0 {
		pos = 0
	}
	if pos >= len(m.history) {
		m.historyPos = len(m.history)
		m.input.SetValue("")
		return
	}
	m.historyPos = pos
	m.input.SetValue(m.history[pos])
	m.input.CursorEnd()
}

func (m *Model) showNotification(d notify.Delivery) {
	if m.User != "" && d.Recipient != m.User {
		return
	}
	n := d.Notification
	m.Notification = fmt.Sprintf("%s: %s", n.Title(), n.Summary())
	m.Status = StatusBar{Text: strings.ToLower(n.Title()) + " delivered"}
	m.appendEntry(entry{text: views.Notification(n, m.now())})
	m.refreshTranscript()
}

func (m *Model) refreshTranscript() {
	width := m.transcript.Width
	blocks := make([]string, 0, len(m.entries))
	for i := range m.entries {
		e := &m.entries[i]
		switch {
		case e.echo:
			blocks = append(blocks, views.RenderEcho(e.text))
		case m.plain:
			blocks = append(blocks, e.text)
		default:
			if !e.cached || e.renderedWidth != width {
				e.rendered = m.markdown.Render(e.text, width)
				e.renderedWidth = width
				e.cached = true
			}
			blocks = append(blocks, e.rendered)
		}
	}
	m.transcript.SetContent(strings.Join(blocks, "\n\n"))
	m.transcript.GotoBottom()
}

func (m Model) View() string {
	if m.Quitting {
		return ""
	}
	status := m.Status.Text
	if m.Status.IsError && status != "" {
		status = "error: " + status
	}
	return views.RenderConsole(views.ConsoleData{
		Header:       fmt.Sprintf("todobot | user: %s", m.User),
		Transcript:   m.transcript.View(),
		Input:        m.input.View(),
		StatusLine:   status,
		Notification: m.Notification,
		Footer:       m.help.View(m.keys),
		Width:        m.width,
	})
}

func waitForNotificationCmd(ch <-chan notify.Delivery) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		d, ok := <-ch
		if !ok {
			return nil
		}
		return NotificationMsg{Delivery: d}
	}
}
