package views

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

type ConsoleData struct {
	Header       string
	Transcript   string
	Input        string
	StatusLine   string
	Footer       string
	Notification string
	Width        int
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	alertStyle  = panelStyle.BorderForeground(lipgloss.Color("11"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	userStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
)

func RenderConsole(data ConsoleData) string {
	width := data.Width
	if width <= 0 {
		width = 80
	}
	inner := width - panelStyle.GetHorizontalFrameSize()
	if inner < 20 {
		inner = 20
	}

	status := statusStyle.Render(data.StatusLine)
	if strings.Contains(strings.ToLower(data.StatusLine), "error") {
		status = errorStyle.Render(data.StatusLine)
	}

	lines := []string{headerStyle.Render(data.Header)}
	if data.Notification != "" {
		lines = append(lines, alertStyle.Width(inner).Render(data.Notification))
	}
	lines = append(lines,
		panelStyle.Width(inner).Render(data.Transcript),
		data.Input,
		status,
	)
	if data.Footer != "" {
		lines = append(lines, footerStyle.Render(data.Footer))
	}
	return strings.Join(lines, "\n")
}

// RenderEcho formats a line the user typed for the transcript.
func RenderEcho(input string) string {
	return userStyle.Render("> " + input)
}

// MarkdownRenderer renders markdown with one glamour renderer per wrap
// width, built on first use. It is safe for concurrent use.
type MarkdownRenderer struct {
	mu        sync.Mutex
	renderers map[int]*glamour.TermRenderer
	builds    int
}

func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{renderers: map[int]*glamour.TermRenderer{}}
}

// Render renders md for a terminal of the given width. A width of zero
// keeps glamour's default wrapping. Rendering errors return md unchanged.
func (m *MarkdownRenderer) Render(md string, width int) string {
	if strings.TrimSpace(md) == "" {
		return ""
	}
	if width < 0 {
		width = 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.renderers[width]
	if !ok {
		opts := []glamour.TermRendererOption{glamour.WithStandardStyle("dark")}
		if width > 0 {
			opts = append(opts, glamour.WithWordWrap(width))
		}
		var err error
		r, err = glamour.NewTermRenderer(opts...)
		if err != nil {
			return md
		}
		m.renderers[width] = r
		m.builds++
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimSpace(out)
}
