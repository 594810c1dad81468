package ports

import (
	"context"
	"io"
	"time"

	"parallelmind/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session holding the device.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture acquires the microphone exclusively.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// ProgressFunc observes bytes handed to the transport.
type ProgressFunc func(sent, total int64)

// Uploader transfers a finalized recording and creates a conversation.
type Uploader interface {
	Upload(ctx context.Context, audio domain.FinalizedAudio, progress ProgressFunc) (domain.UploadResult, error)
}

// ConversationAPI reads conversation resources.
type ConversationAPI interface {
	GetConversation(ctx context.Context, id domain.ConversationID) (domain.Conversation, error)
	ListConversations(ctx context.Context, skip, limit int) (domain.ConversationPage, error)
	ConversationStatus(ctx context.Context, id domain.ConversationID) (domain.StatusInfo, error)
}

// InsightAPI requests AI-derived artifacts for a conversation.
type InsightAPI interface {
	Summarize(ctx context.Context, id domain.ConversationID) (domain.Summary, error)
	SuggestReply(ctx context.Context, id domain.ConversationID, query string) (domain.ReplySuggestions, error)
	Search(ctx context.Context, req domain.SearchRequest) (domain.SearchResults, error)
}

// SuggestionStream is an open streaming-suggestion connection.
type SuggestionStream interface {
	Suggest(text string, id domain.ConversationID, topK int) error
	Ping() error
	Events() <-chan domain.SuggestionEvent
	Wait() error
	Close() error
}

// Ticker delivers wall-clock ticks.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock abstracts time so elapsed tracking can be tested.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// CaptureEvents receives capture lifecycle updates.
type CaptureEvents interface {
	CaptureStateChanged(state domain.CaptureState, reason domain.CaptureReason)
	ElapsedChanged(seconds int)
	UploadProgress(percent int)
	UploadCompleted(result domain.UploadResult)
	SessionError(code domain.ErrorCode, detail string)
}

// InsightEvents receives insight busy/result changes.
type InsightEvents interface {
	InsightChanged(state domain.InsightState)
}

// SuggestionStreamer opens streaming-suggestion connections.
type SuggestionStreamer interface {
	OpenSuggestionStream(ctx context.Context) (SuggestionStream, error)
}
