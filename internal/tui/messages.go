package tui

import "parallelmind/internal/domain"

// CaptureStateMsg mirrors a capture state transition.
type CaptureStateMsg struct {
	State  domain.CaptureState
	Reason domain.CaptureReason
}

// ElapsedMsg carries the recording timer in whole seconds.
type ElapsedMsg struct {
	Seconds int
}

// UploadProgressMsg carries the upload percentage.
type UploadProgressMsg struct {
	Percent int
}

// SessionErrorMsg carries an error reported by the capture session.
type SessionErrorMsg struct {
	Code   domain.ErrorCode
	Detail string
}

// InsightChangedMsg carries the busy/result state of one insight kind.
type InsightChangedMsg struct {
	State domain.InsightState
}

// ActionErrorMsg is returned when a key-triggered action fails.
type ActionErrorMsg struct {
	Err error
}

// UploadDoneMsg is returned when an upload finishes.
type UploadDoneMsg struct {
	Result domain.UploadResult
	Err    error
}

// ConversationLoadedMsg carries a fetched conversation snapshot.
type ConversationLoadedMsg struct {
	// Requested is the id the fetch was issued for. The backend may spell
	// it differently in Conversation.ID.
	Requested    domain.ConversationID
	Conversation domain.Conversation
	Err          error
}

type SummaryMsg struct {
	Summary domain.Summary
	Err     error
}

type SuggestionsMsg struct {
	Suggestions domain.ReplySuggestions
	Err         error
}

type SearchMsg struct {
	Results domain.SearchResults
	Err     error
}

// ClearTransientErrorMsg clears a transient error after a timeout.
type ClearTransientErrorMsg struct{}

type eventsClosedMsg struct{}
