package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"parallelmind/internal/domain"
)

// Events turns capture and insight callbacks into bubbletea messages. It
// implements ports.CaptureEvents and ports.InsightEvents.
type Events struct {
	ch   chan tea.Msg
	done chan struct{}
	once sync.Once
}

func NewEvents() *Events {
	return &Events{ch: make(chan tea.Msg, 64), done: make(chan struct{})}
}

func (e *Events) CaptureStateChanged(state domain.CaptureState, reason domain.CaptureReason) {
	e.send(CaptureStateMsg{State: state, Reason: reason})
}

func (e *Events) ElapsedChanged(seconds int) {
	e.send(ElapsedMsg{Seconds: seconds})
}

func (e *Events) UploadProgress(percent int) {
	e.send(UploadProgressMsg{Percent: percent})
}

// UploadCompleted is handled through the upload command's own result.
func (e *Events) UploadCompleted(domain.UploadResult) {}

func (e *Events) SessionError(code domain.ErrorCode, detail string) {
	e.send(SessionErrorMsg{Code: code, Detail: detail})
}

func (e *Events) InsightChanged(state domain.InsightState) {
	e.send(InsightChangedMsg{State: state})
}

// Close stops delivery. Pending and later callbacks are dropped.
func (e *Events) Close() {
	e.once.Do(func() { close(e.done) })
}

func (e *Events) send(msg tea.Msg) {
	select {
	case e.ch <- msg:
	case <-e.done:
	}
}

// next waits for the next event.
func (e *Events) next() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-e.ch:
			return msg
		case <-e.done:
			return eventsClosedMsg{}
		}
	}
}
