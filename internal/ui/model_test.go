package ui

import (
	"context"
	"strings"
	"testing"

	"github.com/nconklindev/sheet2xml/internal/api"
	"github.com/nconklindev/sheet2xml/internal/header"
	"github.com/nconklindev/sheet2xml/internal/types"
	"github.com/nconklindev/sheet2xml/internal/upload"
	"github.com/nconklindev/sheet2xml/internal/workflow"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
)

type stubConverter struct {
	resp *types.ConversionResponse
	err  error
}

func (s stubConverter) Convert(context.Context, types.SelectedFile, []types.HeaderField) (*types.ConversionResponse, error) {
	return s.resp, s.err
}

type stubNavigator struct{ urls []string }

func (n *stubNavigator) Navigate(_ context.Context, u string) error {
	n.urls = append(n.urls, u)
	return nil
}

func newTestModel(conv workflow.Converter) (Model, *workflow.Orchestrator, *stubNavigator) {
	nav := &stubNavigator{}
	orch := workflow.New(conv, nav)
	client := api.New("http://localhost:1")
	m := New(orch, client, nil, Options{StartDir: "."})
	return m, orch, nav
}

func send(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T; want Model", next)
	}
	return model, cmd
}

func typeText(t *testing.T, m Model, s string) Model {
	t.Helper()
	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return m
}

// drain runs the conversion commands until the result arrives.
func drain(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	for i := 0; i < 1000 && cmd != nil; i++ {
		msg := cmd()
		m, cmd = send(t, m, msg)
		if _, done := msg.(conversionCompleteMsg); done {
			return m
		}
	}
	t.Fatal("conversion did not complete")
	return m
}

func TestProgressStatus(t *testing.T) {
	tests := []struct {
		input   float64
		percent int
		status  string
	}{
		{0, 0, StatusConverting},
		{44.4, 44, StatusConverting},
		{44.5, 45, StatusConverting},
		{90, 90, StatusConverting},
		{99.4, 99, StatusConverting},
		{99.5, 100, StatusConverting},
		{99.6, 100, StatusConverting},
		{100, 100, StatusComplete},
	}

	for _, tt := range tests {
		n, status := ProgressStatus(tt.input)
		if n != tt.percent || status != tt.status {
			t.Errorf("ProgressStatus(%v) = (%d, %q); want (%d, %q)", tt.input, n, status, tt.percent, tt.status)
		}
	}
}

func TestRenderProgress(t *testing.T) {
	out := renderProgress(progress.New(), 40)
	if !strings.Contains(out, "Converting... (40%)") {
		t.Errorf("renderProgress(40) = %q; missing status text", out)
	}
	out = renderProgress(progress.New(), 100)
	if !strings.Contains(out, "Conversion complete! (100%)") {
		t.Errorf("renderProgress(100) = %q; missing status text", out)
	}
}

func TestTypingUpdatesEditor(t *testing.T) {
	m, orch, _ := newTestModel(stubConverter{})

	m = typeText(t, m, "CALLREPORT_ID")
	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m = typeText(t, m, "DTR001")

	var fields []types.HeaderField
	orch.ViewFields(func(e *header.Editor) { fields = e.Fields() })
	if len(fields) != 1 || fields[0].TagName != "CALLREPORT_ID" || fields[0].TagValue != "DTR001" {
		t.Fatalf("fields = %+v", fields)
	}

	view := m.View()
	if !strings.Contains(view, "<CALLREPORT_ID>DTR001</CALLREPORT_ID>") {
		t.Errorf("View() missing preview:\n%s", view)
	}
}

func TestInvalidNameShowsError(t *testing.T) {
	m, _, _ := newTestModel(stubConverter{})
	m = typeText(t, m, "1bad")

	if !strings.Contains(m.View(), header.InvalidTagNameMessage) {
		t.Errorf("View() does not show %q", header.InvalidTagNameMessage)
	}
}

func TestAddAndRemoveRows(t *testing.T) {
	m, orch, _ := newTestModel(stubConverter{})

	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyCtrlN})
	if len(m.rows) != 2 || m.focus != 2 {
		t.Fatalf("after add: rows = %d, focus = %d; want 2, 2", len(m.rows), m.focus)
	}

	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyCtrlD})
	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyCtrlD})
	if len(m.rows) != 1 {
		t.Errorf("rows = %d; the last row must stay", len(m.rows))
	}

	var n int
	orch.ViewFields(func(e *header.Editor) { n = e.Len() })
	if n != len(m.rows) {
		t.Errorf("editor has %d rows, view has %d", n, len(m.rows))
	}
}

func TestSubmitNotReady(t *testing.T) {
	m, orch, _ := newTestModel(stubConverter{})
	m, cmd := send(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if cmd != nil || m.screen != screenForm {
		t.Errorf("submit without a file started a conversion")
	}
	if orch.Err() != workflow.MsgNotReady {
		t.Errorf("Err() = %q; want %q", orch.Err(), workflow.MsgNotReady)
	}
	if !strings.Contains(m.View(), workflow.MsgNotReady) {
		t.Error("View() does not show the refusal")
	}
}

func readyModel(t *testing.T, conv workflow.Converter) (Model, *workflow.Orchestrator, *stubNavigator) {
	t.Helper()
	m, orch, nav := newTestModel(conv)
	err := orch.SelectFile([]types.SelectedFile{{
		Name:      "report.xlsx",
		Size:      3,
		MediaType: types.MediaTypeXLSX,
		Content:   []byte("abc"),
	}})
	if err != nil {
		t.Fatal(err)
	}
	m = typeText(t, m, "ID")
	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m = typeText(t, m, "1")
	return m, orch, nav
}

func TestConvertFlow(t *testing.T) {
	m, orch, nav := readyModel(t, stubConverter{resp: &types.ConversionResponse{Status: "success", DownloadURL: "/files/42"}})

	if !strings.Contains(m.View(), ConvertLabel) {
		t.Error("View() missing convert button")
	}

	m, cmd := send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.screen != screenConverting {
		t.Fatalf("screen = %v; want converting", m.screen)
	}
	if !strings.Contains(m.View(), ConvertingLabel) {
		t.Error("converting view missing busy label")
	}

	m = drain(t, m, cmd)
	if m.screen != screenForm {
		t.Errorf("screen = %v; want form", m.screen)
	}
	if m.percent != 100 {
		t.Errorf("percent = %v; want 100", m.percent)
	}
	if len(nav.urls) != 1 || nav.urls[0] != "/files/42" {
		t.Errorf("navigated to %v", nav.urls)
	}
	if orch.State() != workflow.StateIdle {
		t.Errorf("State() = %v; want idle", orch.State())
	}
}

func TestConvertFailureShowsError(t *testing.T) {
	m, _, _ := readyModel(t, stubConverter{err: &api.Error{Message: "disk full", StatusCode: 500}})

	m, cmd := send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = drain(t, m, cmd)

	if !strings.Contains(m.View(), "Conversion failed: disk full") {
		t.Errorf("View() missing failure:\n%s", m.View())
	}
	if m.percent != 0 {
		t.Errorf("percent = %v; want 0", m.percent)
	}
}

func TestSessionExpiredShowsLogin(t *testing.T) {
	m, _, _ := readyModel(t, stubConverter{err: &api.Error{Message: "Session expired", StatusCode: 401}})

	m, cmd := send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = drain(t, m, cmd)
	if m.screen != screenLogin {
		t.Fatalf("screen = %v; want login", m.screen)
	}

	m = typeText(t, m, "fresh-token")
	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.screen != screenForm {
		t.Errorf("screen = %v; want form", m.screen)
	}
	if got := m.client.Credentials().Token(); got != "fresh-token" {
		t.Errorf("Token() = %q; want fresh-token", got)
	}
}

func TestSessionExpiredMsg(t *testing.T) {
	m, _, _ := newTestModel(stubConverter{})
	m, _ = send(t, m, SessionExpiredMsg{})
	if m.screen != screenLogin {
		t.Errorf("screen = %v; want login", m.screen)
	}
	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.screen != screenForm {
		t.Errorf("screen = %v; want form after esc", m.screen)
	}
}

func TestRejectedFileShown(t *testing.T) {
	m, orch, _ := newTestModel(stubConverter{})
	orch.RejectFile()
	if !strings.Contains(m.View(), upload.MsgRejected) {
		t.Errorf("View() does not show %q", upload.MsgRejected)
	}

	_ = orch.SelectFile([]types.SelectedFile{{Name: "notes.txt", Size: 1, MediaType: "text/plain"}})
	if !strings.Contains(m.View(), upload.MsgUnsupportedType) {
		t.Errorf("View() does not show %q", upload.MsgUnsupportedType)
	}
}

func TestEscapeToggle(t *testing.T) {
	m, _, _ := newTestModel(stubConverter{})
	m = typeText(t, m, "A")
	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m = typeText(t, m, "x<y")

	if !strings.Contains(m.View(), "<A>x<y</A>") {
		t.Error("verbatim preview expected by default")
	}
	if !strings.Contains(m.View(), "not well-formed XML") {
		t.Error("missing reserved markup warning")
	}

	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyCtrlE})
	if !strings.Contains(m.View(), "<A>x&lt;y</A>") {
		t.Error("escaped preview expected after toggle")
	}
}
