// Package review is the interactive browser over postings whose derived
// field failed, with actions to clear the failure tag or retry the field.
package review

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/jobscout/internal/model"
)

// Lines per item in the list view (title + subtitle + blank separator).
const itemHeight = 3

type viewState int

const (
	viewList viewState = iota
	viewDetail
)

var (
	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Foreground(lipgloss.Color("39"))

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	itemTitleStyle = lipgloss.NewStyle().
			Bold(true)

	itemSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))

	selectedTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("24"))

	selectedSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252")).
				Background(lipgloss.Color("24"))

	detailLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Width(14)

	descDividerStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))

	descBodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

// Admin is the failure-tag side of the store the review needs.
type Admin interface {
	ListFailed(ctx context.Context, field model.FieldDescriptor, limit int) ([]model.FailedItem, error)
	ClearFailed(ctx context.Context, field model.FieldDescriptor, link model.JobLink) (int64, error)
}

// Reprocessor re-runs one derived field of one posting.
type Reprocessor interface {
	ProcessField(ctx context.Context, link model.JobLink, field model.FieldDescriptor) error
}

type clearedMsg struct {
	link model.JobLink
	err  error
}

type reprocessedMsg struct {
	link  model.JobLink
	items []model.FailedItem
	err   error
}

type reviewModel struct {
	ctx    context.Context
	field  model.FieldDescriptor
	admin  Admin
	reproc Reprocessor // nil disables the retry key
	limit  int

	items  []model.FailedItem
	cursor int

	view   viewState
	list   viewport.Model
	detail viewport.Model
	width  int
	height int
	ready  bool

	busy     bool
	status   string
	failed   bool // status is an error
	wantQuit bool
}

func newReviewModel(ctx context.Context, field model.FieldDescriptor, admin Admin, reproc Reprocessor, items []model.FailedItem, limit int) reviewModel {
	return reviewModel{ctx: ctx, field: field, admin: admin, reproc: reproc, items: items, limit: limit}
}

func (m reviewModel) Init() tea.Cmd {
	return nil
}

func (m reviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		return m, nil

	case clearedMsg:
		m.busy = false
		if msg.err != nil {
			m.setError(fmt.Sprintf("clear failed: %v", msg.err))
			return m, nil
		}
		m.removeItem(msg.link)
		m.setStatus("cleared " + string(msg.link) + "; it is pending again")
		m.view = viewList
		m.recalcContent()
		return m, nil

	case reprocessedMsg:
		m.busy = false
		if msg.err != nil {
			m.setError(fmt.Sprintf("retry failed: %v", msg.err))
			return m, nil
		}
		m.items = msg.items
		m.cursor = clamp(m.cursor, 0, max(len(m.items)-1, 0))
		if m.indexOf(msg.link) >= 0 {
			m.setError(string(msg.link) + " failed again")
		} else {
			m.setStatus(string(msg.link) + " resolved")
			m.view = viewList
		}
		m.recalcContent()
		return m, nil

	case tea.KeyMsg:
		if m.view == viewDetail {
			return m.updateDetailView(msg)
		}
		return m.updateListView(msg)
	}
	return m, nil
}

func (m reviewModel) updateListView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.wantQuit = true
		return m, tea.Quit
	case "esc", "b":
		m.wantQuit = false
		return m, tea.Quit
	case "up", "k":
		m.cursor = clamp(m.cursor-1, 0, max(len(m.items)-1, 0))
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "down", "j":
		m.cursor = clamp(m.cursor+1, 0, max(len(m.items)-1, 0))
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "enter":
		if len(m.items) == 0 {
			return m, nil
		}
		m.view = viewDetail
		m.detail = viewport.New(max(m.width-4, 20), max(m.height-4, 5))
		m.detail.SetContent(m.renderDetail())
		return m, nil
	case "c":
		return m.clearSelected()
	case "r":
		return m.retrySelected()
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m reviewModel) updateDetailView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.wantQuit = true
		return m, tea.Quit
	case "esc", "backspace":
		m.view = viewList
		return m, nil
	case "c":
		return m.clearSelected()
	case "r":
		return m.retrySelected()
	}

	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

func (m reviewModel) selected() (model.FailedItem, bool) {
	if m.busy || len(m.items) == 0 {
		return model.FailedItem{}, false
	}
	return m.items[m.cursor], true
}

func (m reviewModel) clearSelected() (tea.Model, tea.Cmd) {
	item, ok := m.selected()
	if !ok {
		return m, nil
	}
	m.busy = true
	m.setStatus("clearing " + string(item.Link) + "...")
	ctx, admin, field, link := m.ctx, m.admin, m.field, item.Link
	return m, func() tea.Msg {
		_, err := admin.ClearFailed(ctx, field, link)
		return clearedMsg{link: link, err: err}
	}
}

func (m reviewModel) retrySelected() (tea.Model, tea.Cmd) {
	item, ok := m.selected()
	if !ok || m.reproc == nil {
		return m, nil
	}
	m.busy = true
	m.setStatus("retrying " + string(item.Link) + "...")
	ctx, admin, reproc, field, link, limit := m.ctx, m.admin, m.reproc, m.field, item.Link, m.limit
	return m, func() tea.Msg {
		if _, err := admin.ClearFailed(ctx, field, link); err != nil {
			return reprocessedMsg{link: link, err: err}
		}
		if err := reproc.ProcessField(ctx, link, field); err != nil {
			return reprocessedMsg{link: link, err: err}
		}
		items, err := admin.ListFailed(ctx, field, limit)
		return reprocessedMsg{link: link, items: items, err: err}
	}
}

func (m *reviewModel) setStatus(s string) {
	m.status, m.failed = s, false
}

func (m *reviewModel) setError(s string) {
	m.status, m.failed = s, true
}

func (m reviewModel) indexOf(link model.JobLink) int {
	for i, it := range m.items {
		if it.Link == link {
			return i
		}
	}
	return -1
}

func (m *reviewModel) removeItem(link model.JobLink) {
	i := m.indexOf(link)
	if i < 0 {
		return
	}
	m.items = append(m.items[:i:i], m.items[i+1:]...)
	m.cursor = clamp(m.cursor, 0, max(len(m.items)-1, 0))
}

func (m *reviewModel) ensureCursorVisible() {
	top := m.cursor * itemHeight
	bottom := top + itemHeight - 1
	if top < m.list.YOffset {
		m.list.SetYOffset(top)
	} else if bottom >= m.list.YOffset+m.list.Height {
		m.list.SetYOffset(bottom - m.list.Height + 1)
	}
}

func (m *reviewModel) recalcLayout() {
	// Header (1) + border top/bottom (2) + status bar (1) = 4 lines overhead.
	w, h := max(m.width-2, 20), max(m.height-4, 5)
	if !m.ready {
		m.list = viewport.New(w, h)
		m.ready = true
	} else {
		m.list.Width, m.list.Height = w, h
	}
	if m.view == viewDetail {
		m.detail.Width, m.detail.Height = max(m.width-4, 20), h
	}
	m.recalcContent()
}

func (m *reviewModel) recalcContent() {
	if !m.ready {
		return
	}
	m.list.SetContent(renderItems(m.items, m.cursor))
	if m.view == viewDetail {
		m.detail.SetContent(m.renderDetail())
	}
}

func (m reviewModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	var header, body, keys string
	if m.view == viewDetail {
		header = headerStyle.Render("Posting detail")
		body = borderStyle.Width(m.width - 2).Render(m.detail.View())
		keys = "c clear  r retry  esc back  ↑/↓ scroll  q quit"
	} else {
		header = headerStyle.Render(fmt.Sprintf("%s: %d failed", m.field.Name, len(m.items)))
		body = borderStyle.Width(m.width - 2).Render(m.list.View())
		keys = "↑/↓ cursor  enter detail  c clear  r retry  esc back  q quit"
	}
	if m.reproc == nil {
		keys = strings.Replace(keys, "  r retry", "", 1)
	}

	status := " " + keys
	if m.status != "" {
		msg := m.status
		if m.failed {
			msg = errorStyle.Render(msg)
		}
		status = " " + msg + "    " + keys
	}
	return header + "\n" + body + "\n" + statusBarStyle.Width(m.width).Render(status)
}

func (m reviewModel) renderDetail() string {
	if len(m.items) == 0 {
		return ""
	}
	it := m.items[m.cursor]
	var b strings.Builder

	addField := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(detailLabelStyle.Render(label))
		b.WriteString(value)
		b.WriteByte('\n')
	}
	addField("Title", it.Title)
	addField("Organization", it.Organization)
	addField("Link", string(it.Link))
	addField("Field", fmt.Sprintf("%s (%s)", m.field.Name, m.field.Type))
	if !it.FailedAt.IsZero() {
		addField("Failed at", it.FailedAt.Local().Format("2006-01-02 15:04 MST"))
	}

	wrapWidth := max(m.width-8, 20)
	label := "── Description "
	b.WriteString("\n" + descDividerStyle.Render(label+strings.Repeat("─", max(wrapWidth-len(label), 3))) + "\n\n")
	var paras []string
	for _, p := range strings.Split(PlainText(it.Description), "\n") {
		paras = append(paras, wordWrap(p, wrapWidth))
	}
	b.WriteString(descBodyStyle.Render(strings.Join(paras, "\n")) + "\n")
	return b.String()
}

func renderItems(items []model.FailedItem, cursor int) string {
	if len(items) == 0 {
		return "  (no failed postings)"
	}

	var b strings.Builder
	for i, it := range items {
		titleSt, subtitleSt, prefix := itemTitleStyle, itemSubtitleStyle, "  "
		if i == cursor {
			titleSt, subtitleSt, prefix = selectedTitleStyle, selectedSubtitleStyle, "> "
		}

		title := it.Title
		if it.Organization != "" {
			title = it.Organization + ": " + title
		}
		b.WriteString(prefix)
		b.WriteString(titleSt.Render(title))
		b.WriteByte('\n')

		failed := "n/a"
		if !it.FailedAt.IsZero() {
			failed = it.FailedAt.Local().Format(time.DateOnly)
		}
		b.WriteString(prefix)
		b.WriteString(subtitleSt.Render(fmt.Sprintf("%s · failed %s", it.Link, failed)))
		b.WriteByte('\n')

		if i < len(items)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func wordWrap(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) <= width {
			line += " " + w
		} else {
			lines = append(lines, line)
			line = w
		}
	}
	lines = append(lines, line)
	return strings.Join(lines, "\n")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RunReviewTUI launches the full-screen review of items for field.
// reproc may be nil, which hides the retry key.
// Returns wantQuit=true if the user pressed q/ctrl+c, false if they pressed esc to return to the picker.
func RunReviewTUI(ctx context.Context, field model.FieldDescriptor, admin Admin, reproc Reprocessor, items []model.FailedItem, limit int) (bool, error) {
	m := newReviewModel(ctx, field, admin, reproc, items, limit)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	result, err := p.Run()
	if err != nil {
		return false, err
	}
	final := result.(reviewModel)
	return final.wantQuit, nil
}
