package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/nconklindev/sheet2xml/internal/api"
	"github.com/nconklindev/sheet2xml/internal/header"
	"github.com/nconklindev/sheet2xml/internal/logger"
	"github.com/nconklindev/sheet2xml/internal/sheet"
	"github.com/nconklindev/sheet2xml/internal/types"
	"github.com/nconklindev/sheet2xml/internal/upload"
	"github.com/nconklindev/sheet2xml/internal/workflow"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

const (
	ConvertLabel    = "Convert to XML"
	ConvertingLabel = "Converting..."

	healthTimeout = 5 * time.Second
	maxInputChars = 256
)

type screen int

const (
	screenForm screen = iota
	screenFilePicker
	screenLogin
	screenConverting
)

type health int

const (
	healthUnknown health = iota
	healthUp
	healthDown
)

// Options are the display settings of the terminal UI.
type Options struct {
	// Escape previews values XML-escaped instead of verbatim.
	Escape    bool
	Highlight bool
	Theme     string
	// StartDir is where the file picker opens. Empty means the working
	// directory.
	StartDir string
}

type fieldRow struct {
	name  textinput.Model
	value textinput.Model
}

func newFieldRow() fieldRow {
	name := textinput.New()
	name.Placeholder = "Tag name"
	name.CharLimit = maxInputChars
	name.Width = 24
	name.Prompt = "  "

	value := textinput.New()
	value.Placeholder = "Tag value"
	value.CharLimit = maxInputChars
	value.Width = 32
	value.Prompt = " = "

	return fieldRow{name: name, value: value}
}

// savedPath carries the location of the last saved document from the
// navigator to the submitting goroutine.
type savedPath struct {
	mu   sync.Mutex
	path string
}

func (s *savedPath) set(p string) {
	s.mu.Lock()
	s.path = p
	s.mu.Unlock()
}

func (s *savedPath) take() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.path
	s.path = ""
	return p
}

type Model struct {
	screen screen
	orch   *workflow.Orchestrator
	client *api.Client
	opts   Options
	log    zerolog.Logger

	filepicker filepicker.Model
	rows       []fieldRow
	focus      int
	login      textinput.Model

	summary    *types.SheetSummary
	summaryErr error
	fileErr    string
	health     health
	notice     string
	saved      *savedPath

	keys     KeyMap
	help     help.Model
	progress progress.Model
	percent  float64

	progressChan chan float64
	resultChan   chan conversionCompleteMsg

	width  int
	height int
}

// SessionExpiredMsg switches to the login view. Send it from the client's
// unauthorized handler.
type SessionExpiredMsg struct{}

type healthMsg struct {
	healthy bool
	err     error
}

type fileLoadedMsg struct {
	summary    *types.SheetSummary
	inspectErr error
	err        error
}

type conversionCompleteMsg struct {
	err   error
	saved string
}

type progressMsg float64

type waitForProgressMsg struct{}

// New builds the terminal UI over orch. When nav is the orchestrator's
// navigator, saved documents are reported in the form.
func New(orch *workflow.Orchestrator, client *api.Client, nav *workflow.SaveNavigator, opts Options) Model {
	fp := filepicker.New()
	fp.AllowedTypes = upload.AllowedExtensions
	fp.CurrentDirectory = opts.StartDir
	if fp.CurrentDirectory == "" {
		fp.CurrentDirectory, _ = os.Getwd()
	}

	fp.Styles.Cursor = lipgloss.NewStyle().Foreground(accent)
	fp.Styles.Symlink = lipgloss.NewStyle().Foreground(soft)
	fp.Styles.Directory = lipgloss.NewStyle().Foreground(soft)
	fp.Styles.File = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF"))
	fp.Styles.DisabledFile = lipgloss.NewStyle().Foreground(muted)
	fp.Styles.Permission = lipgloss.NewStyle().Foreground(muted)
	fp.Styles.Selected = lipgloss.NewStyle().Foreground(accent).Bold(true)
	fp.Styles.FileSize = lipgloss.NewStyle().Foreground(muted)

	login := textinput.New()
	login.Placeholder = "Session token"
	login.EchoMode = textinput.EchoPassword
	login.EchoCharacter = '•'
	login.CharLimit = 4096
	login.Width = 48

	m := Model{
		screen:     screenForm,
		orch:       orch,
		client:     client,
		opts:       opts,
		log:        logger.Get(),
		filepicker: fp,
		rows:       []fieldRow{newFieldRow()},
		login:      login,
		saved:      &savedPath{},
		keys:       DefaultKeyMap(),
		help:       help.New(),
		progress:   progress.New(progress.WithGradient("#3FB68B", "#8FD9B6")),
	}
	m.setFocus(0)

	if nav != nil {
		nav.OnSaved = m.saved.set
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.filepicker.Init(), checkHealth(m.client), textinput.Blink)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		// Leave room for title, subtitle and help.
		height := msg.Height - 12
		if height < 5 {
			height = 5
		}
		m.filepicker.SetHeight(height)

		width := msg.Width - 12
		if width > 60 {
			width = 60
		}
		if width < 10 {
			width = 10
		}
		m.progress.Width = width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		switch m.screen {
		case screenForm:
			return m.updateForm(msg)
		case screenLogin:
			return m.updateLogin(msg)
		case screenConverting:
			return m, nil
		case screenFilePicker:
			if key.Matches(msg, m.keys.Back) {
				m.screen = screenForm
				return m, nil
			}
		}

	case healthMsg:
		if api.IsUnauthorized(msg.err) {
			m.health = healthDown
			return m.showLogin()
		}
		m.health = healthDown
		if msg.healthy {
			m.health = healthUp
		}
		return m, nil

	case SessionExpiredMsg:
		// A running conversion reports the 401 itself when it finishes.
		if m.screen == screenConverting {
			return m, nil
		}
		return m.showLogin()

	case fileLoadedMsg:
		m.screen = screenForm
		if msg.err != nil {
			m.log.Error().Err(msg.err).Msg("File selection failed")
			if m.orch.SelectorState().Err == "" {
				m.fileErr = msg.err.Error()
			}
			return m, nil
		}
		m.fileErr = ""
		m.summary = msg.summary
		m.summaryErr = msg.inspectErr
		if msg.inspectErr != nil && !errors.Is(msg.inspectErr, sheet.ErrUnsupported) {
			m.log.Warn().Err(msg.inspectErr).Msg("Workbook could not be inspected")
		}
		return m, nil

	case progressMsg:
		if m.screen == screenConverting {
			m.percent = float64(msg)
			return m, waitForProgress(m.progressChan, m.resultChan)
		}
		return m, nil

	case waitForProgressMsg:
		return m, waitForProgress(m.progressChan, m.resultChan)

	case conversionCompleteMsg:
		m.progressChan = nil
		m.resultChan = nil
		m.percent = m.orch.Progress()
		if api.IsUnauthorized(msg.err) {
			return m.showLogin()
		}
		m.screen = screenForm
		if msg.err == nil && msg.saved != "" {
			m.notice = "Saved " + msg.saved
		}
		return m, nil
	}

	var cmds []tea.Cmd

	// The picker reads directories asynchronously, so it sees every
	// non-key message even while hidden.
	if _, isKey := msg.(tea.KeyMsg); !isKey || m.screen == screenFilePicker {
		var cmd tea.Cmd
		m.filepicker, cmd = m.filepicker.Update(msg)
		cmds = append(cmds, cmd)

		if m.screen == screenFilePicker {
			if didSelect, path := m.filepicker.DidSelectFile(msg); didSelect {
				return m, m.loadFile(path)
			}
			if didSelect, _ := m.filepicker.DidSelectDisabledFile(msg); didSelect {
				m.orch.RejectFile()
				m.screen = screenForm
				return m, nil
			}
		}
	}

	switch m.screen {
	case screenForm:
		if len(m.rows) > 0 {
			var cmd tea.Cmd
			in := m.focused()
			*in, cmd = in.Update(msg)
			cmds = append(cmds, cmd)
		}
	case screenLogin:
		var cmd tea.Cmd
		m.login, cmd = m.login.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Next):
		return m, m.setFocus(m.focus + 1)

	case key.Matches(msg, m.keys.Prev):
		return m, m.setFocus(m.focus - 1)

	case key.Matches(msg, m.keys.AddRow):
		if err := m.orch.Edit(func(e *header.Editor) error {
			e.Add()
			return nil
		}); err != nil {
			return m, nil
		}
		m.rows = append(m.rows, newFieldRow())
		return m, m.setFocus(2 * (len(m.rows) - 1))

	case key.Matches(msg, m.keys.RemoveRow):
		row := m.focus / 2
		err := m.orch.Edit(func(e *header.Editor) error {
			if !e.CanRemove() {
				return errLastRow
			}
			return e.Remove(row)
		})
		if err != nil {
			return m, nil
		}
		rows := make([]fieldRow, 0, len(m.rows)-1)
		rows = append(rows, m.rows[:row]...)
		m.rows = append(rows, m.rows[row+1:]...)
		focus := 2 * row
		if focus >= 2*len(m.rows) {
			focus = 2*len(m.rows) - 2
		}
		return m, m.setFocus(focus)

	case key.Matches(msg, m.keys.PickFile):
		m.screen = screenFilePicker
		m.notice = ""
		return m, m.filepicker.Init()

	case key.Matches(msg, m.keys.RemoveFile):
		m.orch.RemoveFile()
		m.summary = nil
		m.summaryErr = nil
		m.fileErr = ""
		return m, nil

	case key.Matches(msg, m.keys.Escape):
		m.opts.Escape = !m.opts.Escape
		return m, nil

	case key.Matches(msg, m.keys.Login):
		return m.showLogin()

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.Convert):
		return m.submit()
	}

	return m.updateFocused(msg)
}

var errLastRow = errors.New("the last row cannot be removed")

// updateFocused types into the focused input and pushes the change to the
// orchestrator's editor.
func (m Model) updateFocused(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	row, isValue := m.focus/2, m.focus%2 == 1
	in := m.focused()
	before := in.Value()

	var cmd tea.Cmd
	*in, cmd = in.Update(msg)

	after := in.Value()
	if after == before {
		return m, cmd
	}
	u := header.Name(after)
	if isValue {
		u = header.Value(after)
	}
	if err := m.orch.Edit(func(e *header.Editor) error { return e.Update(row, u) }); err != nil {
		in.SetValue(before)
	}
	return m, cmd
}

func (m *Model) focused() *textinput.Model {
	row := &m.rows[m.focus/2]
	if m.focus%2 == 1 {
		return &row.value
	}
	return &row.name
}

// setFocus moves focus to input i, wrapping around.
func (m *Model) setFocus(i int) tea.Cmd {
	n := 2 * len(m.rows)
	if n == 0 {
		return nil
	}
	i = ((i % n) + n) % n
	for r := range m.rows {
		m.rows[r].name.Blur()
		m.rows[r].value.Blur()
	}
	m.focus = i
	return m.focused().Focus()
}

func (m Model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.login.Blur()
		m.screen = screenForm
		return m, nil
	case msg.Type == tea.KeyEnter:
		token := strings.TrimSpace(m.login.Value())
		if token == "" {
			return m, nil
		}
		m.client.Credentials().SetToken(token)
		m.login.Reset()
		m.login.Blur()
		m.screen = screenForm
		m.notice = "Session token updated"
		m.log.Info().Msg("Session token updated")
		return m, checkHealth(m.client)
	}

	var cmd tea.Cmd
	m.login, cmd = m.login.Update(msg)
	return m, cmd
}

func (m Model) showLogin() (tea.Model, tea.Cmd) {
	m.screen = screenLogin
	m.login.Reset()
	return m, m.login.Focus()
}

func (m Model) loadFile(path string) tea.Cmd {
	orch := m.orch
	return func() tea.Msg {
		candidate, err := upload.FromPath(path)
		if err != nil {
			return fileLoadedMsg{err: err}
		}
		if err := orch.SelectFile([]types.SelectedFile{candidate}); err != nil {
			return fileLoadedMsg{err: err}
		}
		f := orch.File()
		if f == nil {
			return fileLoadedMsg{}
		}
		summary, err := sheet.Inspect(*f)
		return fileLoadedMsg{summary: summary, inspectErr: err}
	}
}

func checkHealth(c *api.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), healthTimeout)
		defer cancel()
		h, err := c.Health(ctx)
		if err != nil {
			return healthMsg{err: err}
		}
		return healthMsg{healthy: h.Status == api.StatusHealthy}
	}
}

// submit starts a conversion in the background. A refused submit is still
// passed to the orchestrator so it records why.
func (m Model) submit() (tea.Model, tea.Cmd) {
	m.notice = ""
	if !m.orch.Ready() {
		_ = m.orch.Submit(context.Background())
		return m, nil
	}

	m.screen = screenConverting
	m.percent = 0
	m.progressChan = make(chan float64, 100)
	m.resultChan = make(chan conversionCompleteMsg, 1)

	// Capture channels for the goroutine
	progressChan := m.progressChan
	resultChan := m.resultChan
	orch := m.orch
	saved := m.saved

	orch.OnProgress = func(p float64) {
		select {
		case progressChan <- p:
		default:
		}
	}

	go func() {
		err := orch.Submit(context.Background())

		// Submit has joined the ticker, so nothing sends on progressChan
		// past this point.
		resultChan <- conversionCompleteMsg{err: err, saved: saved.take()}
		close(progressChan)
		close(resultChan)
	}()

	return m, waitForProgress(progressChan, resultChan)
}

func waitForProgress(progressChan chan float64, resultChan chan conversionCompleteMsg) tea.Cmd {
	return func() tea.Msg {
		if progressChan == nil {
			return nil
		}

		p, ok := <-progressChan
		if !ok {
			// Progress channel closed, check result
			res, ok := <-resultChan
			if ok {
				return res
			}
			return nil
		}

		return progressMsg(p)
	}
}

func (m Model) View() string {
	switch m.screen {
	case screenFilePicker:
		return m.viewFilePicker()
	case screenLogin:
		return m.viewLogin()
	case screenConverting:
		return m.viewConverting()
	}
	return m.viewForm()
}

func (m Model) viewForm() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("sheet2xml - Spreadsheet to XML"))
	s.WriteString("\n")
	s.WriteString(SubtitleStyle.Render(m.serviceLine()))
	s.WriteString("\n")

	if msg := m.orch.Err(); msg != "" {
		s.WriteString(ErrorStyle.Render("✗ " + msg))
		s.WriteString("\n\n")
	}
	if m.notice != "" {
		s.WriteString(SuccessStyle.Render("✓ " + m.notice))
		s.WriteString("\n\n")
	}

	s.WriteString(m.viewFile())
	s.WriteString("\n")
	s.WriteString(m.viewFields())
	s.WriteString("\n")

	label, style := ConvertLabel, DisabledButtonStyle
	if m.orch.Ready() {
		style = ButtonStyle
	}
	s.WriteString(style.Render(label))
	s.WriteString("\n")
	s.WriteString(HelpStyle.Render(m.help.View(m.keys)))

	return s.String()
}

func (m Model) serviceLine() string {
	switch m.health {
	case healthUp:
		return "Service: online • " + m.client.BaseURL()
	case healthDown:
		return "Service: unreachable • " + m.client.BaseURL()
	}
	return "Service: checking • " + m.client.BaseURL()
}

func (m Model) viewFile() string {
	var s strings.Builder
	s.WriteString(LabelStyle.Render("Spreadsheet"))
	s.WriteString("\n")

	if f := m.orch.File(); f != nil {
		s.WriteString(fmt.Sprintf("  %s (%s)\n", f.Name, humanize.IBytes(uint64(f.Size))))
		s.WriteString(m.viewSummary())
	} else {
		s.WriteString(SubtitleStyle.Render("  No file selected. Excel files (.xls, .xlsx) up to 10MB."))
		s.WriteString("\n")
	}

	sel := m.orch.SelectorState()
	if sel.Rejected {
		s.WriteString(FieldErrorStyle.Render("  " + upload.MsgRejected))
		s.WriteString("\n")
	}
	if sel.Err != "" {
		s.WriteString(FieldErrorStyle.Render("  " + sel.Err))
		s.WriteString("\n")
	} else if m.fileErr != "" {
		s.WriteString(FieldErrorStyle.Render("  " + m.fileErr))
		s.WriteString("\n")
	}
	return s.String()
}

func (m Model) viewSummary() string {
	if m.summaryErr != nil {
		if errors.Is(m.summaryErr, sheet.ErrUnsupported) {
			return SubtitleStyle.Render("  Legacy .xls workbooks are not previewed locally") + "\n"
		}
		return WarningStyle.Render("  Could not read workbook: "+m.summaryErr.Error()) + "\n"
	}
	if m.summary == nil {
		return ""
	}

	sum := m.summary
	var s strings.Builder
	s.WriteString(fmt.Sprintf("  Sheet %q • %d data row(s)\n", sum.SheetName, sum.Rows))
	s.WriteString(fmt.Sprintf("  Columns: %s\n", strings.Join(sum.Columns, ", ")))
	if strings.Join(sum.Elements, ",") != strings.Join(sum.Columns, ",") {
		s.WriteString(fmt.Sprintf("  Elements: %s\n", strings.Join(sum.Elements, ", ")))
	}
	if sum.HeaderMismatch() {
		s.WriteString(WarningStyle.Render(fmt.Sprintf(
			"  Row %d looks like the header row, but column names are read from row %d",
			sum.DetectedHeader+1, sum.HeaderRow+1)))
		s.WriteString("\n")
	}
	return s.String()
}

func (m Model) viewFields() string {
	var (
		errs     []string
		preview  string
		reserved bool
	)
	m.orch.ViewFields(func(e *header.Editor) {
		errs = e.Errors()
		reserved = e.HasReservedMarkup()
		if m.opts.Escape {
			preview = e.EscapedPreview()
		} else {
			preview = e.Preview()
		}
	})

	var s strings.Builder
	s.WriteString(LabelStyle.Render("Header fields"))
	s.WriteString("\n")
	for i, row := range m.rows {
		s.WriteString(row.name.View())
		s.WriteString(row.value.View())
		s.WriteString("\n")
		if i < len(errs) && errs[i] != "" {
			s.WriteString(FieldErrorStyle.Render("    " + errs[i]))
			s.WriteString("\n")
		}
	}

	if preview == "" {
		return s.String()
	}

	s.WriteString("\n")
	s.WriteString(LabelStyle.Render("Preview"))
	s.WriteString("\n")
	if m.opts.Highlight {
		preview = highlightXML(preview, m.opts.Theme)
	}
	s.WriteString(PreviewStyle.Render(preview))
	s.WriteString("\n")
	if reserved && !m.opts.Escape {
		s.WriteString(WarningStyle.Render("Values containing <, > or & are shown verbatim and are not well-formed XML"))
		s.WriteString("\n")
	}
	return s.String()
}

func (m Model) viewFilePicker() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("Choose a spreadsheet"))
	s.WriteString("\n")
	s.WriteString(SubtitleStyle.Render("Excel files (.xls or .xlsx), less than 10MB"))
	s.WriteString("\n\n")
	s.WriteString(m.filepicker.View())
	s.WriteString("\n\n")
	s.WriteString(HelpStyle.Render("enter: select • esc: back • C-c: quit"))

	return s.String()
}

func (m Model) viewLogin() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("Sign in"))
	s.WriteString("\n")
	s.WriteString(SubtitleStyle.Render("Paste a session token for " + m.client.BaseURL()))
	s.WriteString("\n\n")
	s.WriteString(m.login.View())
	s.WriteString("\n\n")
	s.WriteString(HelpStyle.Render("enter: save • esc: back"))

	return BoxStyle.Render(s.String())
}

func (m Model) viewConverting() string {
	var s strings.Builder

	name := ""
	if f := m.orch.File(); f != nil {
		name = f.Name
	}
	s.WriteString(TitleStyle.Render("Converting " + name))
	s.WriteString("\n\n")
	s.WriteString(renderProgress(m.progress, m.percent))
	s.WriteString("\n\n")
	s.WriteString(DisabledButtonStyle.Render(ConvertingLabel))

	return BoxStyle.Render(s.String())
}
