package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"parallelmind/internal/domain"
	"parallelmind/internal/ports"
	"parallelmind/internal/speakers"
	"parallelmind/internal/ui"
)

// Capture is the part of the capture controller the TUI drives.
type Capture interface {
	Start(ctx context.Context) error
	Stop() error
	Upload(ctx context.Context) (domain.UploadResult, error)
	Discard() error
	Abort() error
	Status() domain.CaptureStatus
}

// Conversations fetches conversation snapshots.
type Conversations interface {
	Fetch(ctx context.Context, id domain.ConversationID) (domain.Conversation, error)
}

// Insights runs insight requests for one conversation.
type Insights interface {
	ConversationID() domain.ConversationID
	Summarize(ctx context.Context) (domain.Summary, error)
	SuggestReply(ctx context.Context, query string) (domain.ReplySuggestions, error)
	Search(ctx context.Context, query string) (domain.SearchResults, error)
}

// InsightsFactory builds the insight runner for a newly opened conversation.
type InsightsFactory func(id domain.ConversationID, events ports.InsightEvents) Insights

// Deps are the collaborators of the model.
type Deps struct {
	Capture       Capture
	Conversations Conversations
	NewInsights   InsightsFactory
	Events        *Events

	// Speakers renames transcript labels; nil shows them as received.
	Speakers *speakers.Names
}

// Model is the root bubbletea model.
type Model struct {
	ctx  context.Context
	deps Deps

	// Capture
	status     domain.CaptureStatus
	statusText string

	// Conversation
	conversation  *domain.Conversation
	insights      Insights
	insightStates map[domain.InsightKind]domain.InsightState
	summary       *domain.Summary
	suggestions   *domain.ReplySuggestions
	search        *domain.SearchResults

	// Search prompt
	searching bool
	query     string

	errorMessage   string
	errorTransient bool

	width  int
	height int
}

// New creates a model. When initial is not empty that conversation is
// opened on start.
func New(ctx context.Context, deps Deps, initial domain.ConversationID) Model {
	m := Model{
		ctx:           ctx,
		deps:          deps,
		statusText:    "Press space to record",
		insightStates: map[domain.InsightKind]domain.InsightState{},
	}
	if deps.Capture != nil {
		m.status = deps.Capture.Status()
	}
	if initial != "" {
		m.openConversation(initial)
	}
	return m
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.deps.Events.next()}
	if m.insights != nil {
		cmds = append(cmds, fetchCmd(m.ctx, m.deps.Conversations, m.insights.ConversationID()))
	}
	return tea.Batch(cmds...)
}

func startCmd(ctx context.Context, capture Capture) tea.Cmd {
	return func() tea.Msg {
		if err := capture.Start(ctx); err != nil {
			return ActionErrorMsg{Err: err}
		}
		return nil
	}
}

func stopCmd(capture Capture) tea.Cmd {
	return func() tea.Msg {
		if err := capture.Stop(); err != nil {
			return ActionErrorMsg{Err: err}
		}
		return nil
	}
}

func uploadCmd(ctx context.Context, capture Capture) tea.Cmd {
	return func() tea.Msg {
		result, err := capture.Upload(ctx)
		return UploadDoneMsg{Result: result, Err: err}
	}
}

func discardCmd(capture Capture) tea.Cmd {
	return func() tea.Msg {
		if err := capture.Discard(); err != nil {
			return ActionErrorMsg{Err: err}
		}
		return nil
	}
}

func fetchCmd(ctx context.Context, conversations Conversations, id domain.ConversationID) tea.Cmd {
	return func() tea.Msg {
		conv, err := conversations.Fetch(ctx, id)
		return ConversationLoadedMsg{Requested: id, Conversation: conv, Err: err}
	}
}

func summarizeCmd(ctx context.Context, insights Insights) tea.Cmd {
	return func() tea.Msg {
		summary, err := insights.Summarize(ctx)
		return SummaryMsg{Summary: summary, Err: err}
	}
}

func suggestCmd(ctx context.Context, insights Insights) tea.Cmd {
	return func() tea.Msg {
		suggestions, err := insights.SuggestReply(ctx, "")
		return SuggestionsMsg{Suggestions: suggestions, Err: err}
	}
}

func searchCmd(ctx context.Context, insights Insights, query string) tea.Cmd {
	return func() tea.Msg {
		results, err := insights.Search(ctx, query)
		return SearchMsg{Results: results, Err: err}
	}
}

func clearTransientErrorCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return ClearTransientErrorMsg{}
	})
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case CaptureStateMsg:
		m.status = m.deps.Capture.Status()
		m.status.State = msg.State
		if text := reasonText(msg.Reason); text != "" {
			m.statusText = text
		}
		return m, m.deps.Events.next()

	case ElapsedMsg:
		m.status.ElapsedSeconds = msg.Seconds
		return m, m.deps.Events.next()

	case UploadProgressMsg:
		m.status.UploadPercent = msg.Percent
		return m, m.deps.Events.next()

	case SessionErrorMsg:
		return m, tea.Batch(m.setError(msg.Detail, true), m.deps.Events.next())

	case InsightChangedMsg:
		m.insightStates[msg.State.Kind] = msg.State
		return m, m.deps.Events.next()

	case eventsClosedMsg:
		return m, nil

	case ActionErrorMsg:
		return m, m.setError(msg.Err.Error(), true)

	case UploadDoneMsg:
		m.status = m.deps.Capture.Status()
		if msg.Err != nil {
			// The session reports upload failures itself.
			return m, nil
		}
		m.statusText = "Uploaded as conversation " + string(msg.Result.ConversationID)
		m.openConversation(msg.Result.ConversationID)
		return m, fetchCmd(m.ctx, m.deps.Conversations, msg.Result.ConversationID)

	case ConversationLoadedMsg:
		if msg.Err != nil {
			return m, m.setError(msg.Err.Error(), true)
		}
		requested := msg.Requested
		if requested == "" {
			requested = msg.Conversation.ID
		}
		if m.insights == nil || requested != m.insights.ConversationID() {
			return m, nil
		}
		// Insights follow the id the backend returned.
		m.openConversation(msg.Conversation.ID)
		conv := msg.Conversation
		m.conversation = &conv
		return m, nil

	case SummaryMsg:
		if msg.Err != nil {
			return m, m.insightError(msg.Err)
		}
		m.summary = &msg.Summary
		return m, nil

	case SuggestionsMsg:
		if msg.Err != nil {
			return m, m.insightError(msg.Err)
		}
		m.suggestions = &msg.Suggestions
		return m, nil

	case SearchMsg:
		if msg.Err != nil {
			return m, m.insightError(msg.Err)
		}
		m.search = &msg.Results
		return m, nil

	case ClearTransientErrorMsg:
		if m.errorTransient {
			m.errorMessage = ""
			m.errorTransient = false
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searching {
		return m.handleSearchKey(msg)
	}

	switch msg.String() {
	case KeyQuit, KeyCtrlC:
		_ = m.deps.Capture.Abort()
		m.deps.Events.Close()
		return m, tea.Quit

	case KeyRecord:
		switch m.status.State {
		case domain.CaptureStateIdle:
			return m, startCmd(m.ctx, m.deps.Capture)
		case domain.CaptureStateRecording:
			return m, stopCmd(m.deps.Capture)
		}
		return m, nil

	case KeyUpload:
		if m.status.State != domain.CaptureStateStopped {
			return m, nil
		}
		return m, uploadCmd(m.ctx, m.deps.Capture)

	case KeyDiscard:
		if m.status.State != domain.CaptureStateStopped {
			return m, nil
		}
		return m, discardCmd(m.deps.Capture)

	case KeyRefresh:
		if m.insights == nil {
			return m, nil
		}
		return m, fetchCmd(m.ctx, m.deps.Conversations, m.insights.ConversationID())

	case KeySummarize:
		if m.insights == nil {
			return m, nil
		}
		return m, summarizeCmd(m.ctx, m.insights)

	case KeySuggest:
		if m.insights == nil {
			return m, nil
		}
		return m, suggestCmd(m.ctx, m.insights)

	case KeySearch:
		if m.insights == nil {
			return m, nil
		}
		m.searching = true
		m.query = ""
		return m, nil
	}

	return m, nil
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.searching = false
		m.query = ""
		return m, nil
	case tea.KeyEnter:
		m.searching = false
		query := strings.TrimSpace(m.query)
		if query == "" {
			return m, nil
		}
		return m, searchCmd(m.ctx, m.insights, query)
	case tea.KeyBackspace:
		if r := []rune(m.query); len(r) > 0 {
			m.query = string(r[:len(r)-1])
		}
		return m, nil
	case tea.KeySpace:
		m.query += " "
		return m, nil
	case tea.KeyRunes:
		m.query += string(msg.Runes)
		return m, nil
	case tea.KeyCtrlC:
		_ = m.deps.Capture.Abort()
		m.deps.Events.Close()
		return m, tea.Quit
	}
	return m, nil
}

// openConversation points insight requests at id, dropping results that
// belonged to a previous conversation.
func (m *Model) openConversation(id domain.ConversationID) {
	if m.insights != nil && m.insights.ConversationID() == id {
		return
	}
	m.insights = m.deps.NewInsights(id, m.deps.Events)
	m.conversation = nil
	m.summary = nil
	m.suggestions = nil
	m.search = nil
	m.insightStates = map[domain.InsightKind]domain.InsightState{}
}

// insightError hides duplicate-request rejections; the running request
// will deliver its own result.
func (m *Model) insightError(err error) tea.Cmd {
	if errors.Is(err, domain.ErrInsightBusy) || errors.Is(err, context.Canceled) {
		return nil
	}
	return m.setError(err.Error(), true)
}

func (m *Model) setError(message string, transient bool) tea.Cmd {
	m.errorMessage = message
	m.errorTransient = transient
	if transient {
		return clearTransientErrorCmd()
	}
	return nil
}

func reasonText(reason domain.CaptureReason) string {
	switch reason {
	case domain.CaptureReasonRecordingStarted:
		return "Recording... press space to stop"
	case domain.CaptureReasonRecordingStopped:
		return "Stopped. u to upload, d to discard"
	case domain.CaptureReasonDeviceLost:
		return "Microphone lost. u to upload, d to discard"
	case domain.CaptureReasonUploadStarted:
		return "Uploading..."
	case domain.CaptureReasonUploadFailed:
		return "Upload failed. u to retry, d to discard"
	case domain.CaptureReasonRecordingDiscarded:
		return "Recording discarded"
	default:
		return ""
	}
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, ui.TitleStyle.Render("PARALLELMIND"))
	sections = append(sections, ui.CaptureLine(m.status)+"  "+ui.DimStyle.Render(m.statusText))
	sections = append(sections, ui.Divider(m.width))

	if m.insights != nil {
		if m.conversation != nil {
			sections = append(sections, ui.ConversationHeader(*m.conversation))
			sections = append(sections, m.renderTranscript())
		} else {
			sections = append(sections, ui.DimStyle.Render("Loading conversation "+string(m.insights.ConversationID())+"..."))
		}
		sections = append(sections, ui.InsightStates(m.orderedInsightStates()))
		if m.summary != nil {
			sections = append(sections, ui.SummaryBlock(*m.summary))
		}
		if m.suggestions != nil {
			sections = append(sections, ui.SuggestionsBlock(*m.suggestions))
		}
		if m.search != nil {
			sections = append(sections, ui.SearchBlock(*m.search))
		}
		sections = append(sections, ui.Divider(m.width))
	}

	if m.errorMessage != "" {
		sections = append(sections, ui.ErrorStyle.Render("Error: ")+m.errorMessage)
	}
	if m.searching {
		sections = append(sections, ui.FooterKeyStyle.Render("search> ")+m.query+"█")
	}
	sections = append(sections, ui.Footer(m.footerBindings()))

	return strings.Join(sections, "\n")
}

func (m Model) renderTranscript() string {
	segments := m.conversation.Segments
	limit := m.transcriptVisibleLines()
	if len(segments) > limit {
		segments = segments[len(segments)-limit:]
	}
	return ui.Transcript(m.deps.Speakers.Segments(segments))
}

func (m Model) transcriptVisibleLines() int {
	if m.height == 0 {
		return 10
	}
	return max(3, m.height/3)
}

func (m Model) orderedInsightStates() []domain.InsightState {
	states := make([]domain.InsightState, 0, len(domain.InsightKinds))
	for _, kind := range domain.InsightKinds {
		state, ok := m.insightStates[kind]
		if !ok {
			state = domain.InsightState{Kind: kind}
		}
		states = append(states, state)
	}
	return states
}

func (m Model) footerBindings() [][2]string {
	var bindings [][2]string
	switch m.status.State {
	case domain.CaptureStateIdle:
		bindings = append(bindings, [2]string{"space", "record"})
	case domain.CaptureStateRecording:
		bindings = append(bindings, [2]string{"space", "stop"})
	case domain.CaptureStateStopped:
		bindings = append(bindings, [2]string{"u", "upload"}, [2]string{"d", "discard"})
	}
	if m.insights != nil {
		bindings = append(bindings,
			[2]string{"r", "refresh"},
			[2]string{"s", "summarize"},
			[2]string{"g", "suggest"},
			[2]string{"/", "search"},
		)
	}
	return append(bindings, [2]string{"q", "quit"})
}
