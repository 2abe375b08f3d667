package review

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/amishk599/jobscout/internal/model"
)

var testField = model.FieldDescriptor{Name: "years_of_experience", Type: model.FieldSmallint, Prompt: "How many years?"}

type fakeAdmin struct {
	items    []model.FailedItem
	cleared  []model.JobLink
	clearErr error
}

func (f *fakeAdmin) ListFailed(_ context.Context, _ model.FieldDescriptor, limit int) ([]model.FailedItem, error) {
	out := append([]model.FailedItem(nil), f.items...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeAdmin) ClearFailed(_ context.Context, _ model.FieldDescriptor, link model.JobLink) (int64, error) {
	if f.clearErr != nil {
		return 0, f.clearErr
	}
	f.cleared = append(f.cleared, link)
	for i, it := range f.items {
		if it.Link == link {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

// fakeReprocessor re-marks links listed in failAgain.
type fakeReprocessor struct {
	admin     *fakeAdmin
	failAgain map[model.JobLink]bool
	calls     []model.JobLink
	fields    []string
}

func (f *fakeReprocessor) ProcessField(_ context.Context, link model.JobLink, field model.FieldDescriptor) error {
	f.calls = append(f.calls, link)
	f.fields = append(f.fields, field.Name)
	if f.failAgain[link] {
		f.admin.items = append(f.admin.items, model.FailedItem{Link: link, Title: "again", FailedAt: time.Now()})
	}
	return nil
}

func sampleItems() []model.FailedItem {
	return []model.FailedItem{
		{Link: "https://www.linkedin.com/jobs/view/1", Title: "Go Engineer", Organization: "Acme", Description: "<p>Senior <b>Go</b> role</p>", FailedAt: time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC)},
		{Link: "https://www.linkedin.com/jobs/view/2", Title: "SRE", Organization: "Globex", Description: "<ul><li>on-call</li><li>k8s</li></ul>"},
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// send delivers msg and, when it produces a command, runs it and delivers
// the result, mimicking one round trip of the bubbletea runtime.
func send(t *testing.T, m reviewModel, msg tea.Msg) reviewModel {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(reviewModel)
	if cmd != nil {
		if out := cmd(); out != nil {
			if _, quit := out.(tea.QuitMsg); !quit {
				next, _ = m.Update(out)
				m = next.(reviewModel)
			}
		}
	}
	return m
}

func newTestModel(admin *fakeAdmin, reproc Reprocessor) reviewModel {
	m := newReviewModel(context.Background(), testField, admin, reproc, append([]model.FailedItem(nil), admin.items...), 100)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(reviewModel)
}

func TestReview_ClearRemovesItem(t *testing.T) {
	admin := &fakeAdmin{items: sampleItems()}
	m := newTestModel(admin, nil)

	m = send(t, m, key("down"))
	m = send(t, m, key("c"))

	if len(admin.cleared) != 1 || admin.cleared[0] != "https://www.linkedin.com/jobs/view/2" {
		t.Fatalf("cleared = %v", admin.cleared)
	}
	if len(m.items) != 1 || m.items[0].Link != "https://www.linkedin.com/jobs/view/1" {
		t.Errorf("items = %+v", m.items)
	}
	if m.cursor != 0 {
		t.Errorf("cursor = %d, want clamped to 0", m.cursor)
	}
	if m.busy || m.failed {
		t.Errorf("busy=%v failed=%v status=%q", m.busy, m.failed, m.status)
	}
}

func TestReview_ClearError(t *testing.T) {
	admin := &fakeAdmin{items: sampleItems(), clearErr: errors.New("db locked")}
	m := newTestModel(admin, nil)

	m = send(t, m, key("c"))
	if len(m.items) != 2 {
		t.Errorf("items must be kept on error, got %d", len(m.items))
	}
	if !m.failed || !strings.Contains(m.status, "db locked") {
		t.Errorf("status = %q", m.status)
	}
}

func TestReview_RetryResolves(t *testing.T) {
	admin := &fakeAdmin{items: sampleItems()}
	reproc := &fakeReprocessor{admin: admin}
	m := newTestModel(admin, reproc)

	m = send(t, m, key("r"))
	if len(reproc.calls) != 1 || reproc.calls[0] != "https://www.linkedin.com/jobs/view/1" {
		t.Fatalf("ProcessField calls = %v", reproc.calls)
	}
	if reproc.fields[0] != testField.Name {
		t.Errorf("retried field %q, want only %q", reproc.fields[0], testField.Name)
	}
	if len(m.items) != 1 {
		t.Errorf("items = %+v, want the resolved one gone", m.items)
	}
	if m.failed || !strings.Contains(m.status, "resolved") {
		t.Errorf("status = %q", m.status)
	}
}

func TestReview_RetryFailsAgain(t *testing.T) {
	admin := &fakeAdmin{items: sampleItems()}
	reproc := &fakeReprocessor{admin: admin, failAgain: map[model.JobLink]bool{"https://www.linkedin.com/jobs/view/1": true}}
	m := newTestModel(admin, reproc)

	m = send(t, m, key("r"))
	if len(m.items) != 2 {
		t.Errorf("items = %d, want 2", len(m.items))
	}
	if !m.failed || !strings.Contains(m.status, "failed again") {
		t.Errorf("status = %q", m.status)
	}
}

func TestReview_RetryDisabledWithoutReprocessor(t *testing.T) {
	admin := &fakeAdmin{items: sampleItems()}
	m := newTestModel(admin, nil)

	next, cmd := m.Update(key("r"))
	if cmd != nil {
		t.Fatal("retry must be a no-op without a reprocessor")
	}
	if next.(reviewModel).busy {
		t.Error("model must not be busy")
	}
	if strings.Contains(m.View(), "r retry") {
		t.Error("retry key must be hidden")
	}
}

func TestReview_DetailShowsPlainDescription(t *testing.T) {
	admin := &fakeAdmin{items: sampleItems()}
	m := newTestModel(admin, nil)

	m = send(t, m, key("enter"))
	if m.view != viewDetail {
		t.Fatal("expected detail view")
	}
	detail := m.renderDetail()
	if !strings.Contains(detail, "Senior Go role") || strings.Contains(detail, "<b>") {
		t.Errorf("detail should contain plain description, got:\n%s", detail)
	}

	m = send(t, m, key("esc"))
	if m.view != viewList {
		t.Error("esc should return to the list")
	}
}

func TestReview_EscReturnsToPicker(t *testing.T) {
	m := newTestModel(&fakeAdmin{items: sampleItems()}, nil)
	next, cmd := m.Update(key("esc"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if next.(reviewModel).wantQuit {
		t.Error("esc should not quit the whole review")
	}
	next, _ = m.Update(key("q"))
	if !next.(reviewModel).wantQuit {
		t.Error("q should quit")
	}
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"<p>Hello   <b>world</b></p>", "Hello world"},
		{"<p>One</p><p>Two</p>", "One\nTwo"},
		{"<ul><li>Go</li><li>SQL</li></ul>", "• Go\n• SQL"},
		{"Line<br>break &amp; entity", "Line\nbreak & entity"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := PlainText(tt.in); got != tt.want {
			t.Errorf("PlainText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
