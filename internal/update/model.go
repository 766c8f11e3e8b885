// Package update is the bubbletea console: a local chat session for one
// user that runs commands and shows delivered notifications.
package update

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"

	"github.com/sandeepkv93/todobot/internal/commands"
	"github.com/sandeepkv93/todobot/internal/notify"
	"github.com/sandeepkv93/todobot/internal/views"
)

// Handler runs one command line for a user.
type Handler interface {
	Handle(userID, input string) (commands.Result, error)
}

type HandlerFunc func(userID, input string) (commands.Result, error)

func (f HandlerFunc) Handle(userID, input string) (commands.Result, error) {
	return f(userID, input)
}

type StatusBar struct {
	Text    string
	IsError bool
}

type Config struct {
	User          string
	Handler       Handler
	Notifications <-chan notify.Delivery
	Now           func() time.Time
	// Plain skips glamour and shows replies as raw markdown.
	Plain bool
}

const (
	maxEntries    = 200
	maxHistory    = 50
	defaultWidth  = 80
	defaultHeight = 24
)

type entry struct {
	echo bool
	text string
	// rendered caches the output for renderedWidth.
	rendered      string
	renderedWidth int
	cached        bool
}

type Model struct {
	User         string
	Status       StatusBar
	Notification string
	LastError    error
	Quitting     bool

	handler       Handler
	notifications <-chan notify.Delivery
	now           func() time.Time
	plain         bool
	markdown      *views.MarkdownRenderer

	entries    []entry
	history    []string
	historyPos int

	input      textinput.Model
	transcript viewport.Model
	help       help.Model
	keys       keyMap
	width      int
	height     int
}

type SetStatusMsg struct {
	Text    string
	IsError bool
}

type ClearStatusMsg struct{}

type AppErrorMsg struct {
	Err error
}

type NotificationMsg struct {
	Delivery notify.Delivery
}

func NewModel(cfg Config) Model {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	in := textinput.New()
	in.Prompt = "> "
	in.Placeholder = "!help"
	in.CharLimit = 1024
	in.Focus()

	m := Model{
		User:          cfg.User,
		Status:        StatusBar{Text: "ready"},
		handler:       cfg.Handler,
		notifications: cfg.Notifications,
		now:           cfg.Now,
		plain:         cfg.Plain,
		markdown:      views.NewMarkdownRenderer(),
		input:         in,
		transcript:    viewport.New(defaultWidth, defaultHeight),
		help:          help.New(),
		keys:          defaultKeyMap(),
	}
	m.resize(defaultWidth, defaultHeight)
	m.entries = append(m.entries, entry{text: "Type `!help` to see the available commands."})
	m.refreshTranscript()
	return m
}

// Transcript returns the raw text of every entry, oldest first.
func (m Model) Transcript() []string {
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.text)
	}
	return out
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = max(width-6, 10)
	m.transcript.Width = max(width-4, 10)
	// header, input, status, footer and two border rows
	m.transcript.Height = max(height-8, 3)
}

func (m *Model) appendEntry(e entry) {
	m.entries = append(m.entries, e)
	if len(m.entries) > maxEntries {
		m.entries = m.entries[len(m.entries)-maxEntries:]
	}
}

func (m *Model) pushHistory(line string) {
	if n := len(m.history); n == 0 || m.history[n-1] != line {
		m.history = append(m.history, line)
	}
	if len(m.history) > maxHistory {
		m.history = m.history[len(m.history)-maxHistory:]
	}
	m.historyPos = len(m.history)
}
