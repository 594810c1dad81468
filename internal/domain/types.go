package domain

import (
	"strings"
	"time"
)

// CaptureState models the record/upload lifecycle.
type CaptureState string

const (
	CaptureStateIdle      CaptureState = "idle"
	CaptureStateRecording CaptureState = "recording"
	CaptureStateStopped   CaptureState = "stopped"
	CaptureStateUploading CaptureState = "uploading"
)

// CaptureReason provides a structured reason for state transitions.
type CaptureReason string

const (
	CaptureReasonReady              CaptureReason = "ready"
	CaptureReasonRecordingStarted   CaptureReason = "recording_started"
	CaptureReasonRecordingStopped   CaptureReason = "recording_stopped"
	CaptureReasonDeviceLost         CaptureReason = "device_lost"
	CaptureReasonUploadStarted      CaptureReason = "upload_started"
	CaptureReasonUploadSucceeded    CaptureReason = "upload_succeeded"
	CaptureReasonUploadFailed       CaptureReason = "upload_failed"
	CaptureReasonRecordingDiscarded CaptureReason = "recording_discarded"
)

// ErrorCode identifies which surface produced an error event.
type ErrorCode string

const (
	ErrorCodeStartup   ErrorCode = "startup"
	ErrorCodeDevice    ErrorCode = "device"
	ErrorCodeAudioStop ErrorCode = "audio_stop"
	ErrorCodeUpload    ErrorCode = "upload"
	ErrorCodeFetch     ErrorCode = "fetch"
	ErrorCodeInsight   ErrorCode = "insight"
)

// MediaTypeWAV is the media type of every finalized recording.
const MediaTypeWAV = "audio/wav"

// FinalizedAudio is the immutable artifact produced once recording stops.
type FinalizedAudio struct {
	Data      []byte        `json:"-"`
	MediaType string        `json:"mediaType"`
	Duration  time.Duration `json:"duration"`
}

// Size returns the payload length in bytes.
func (a FinalizedAudio) Size() int64 {
	return int64(len(a.Data))
}

// CaptureStatus summarizes the capture session for the UI.
type CaptureStatus struct {
	State          CaptureState `json:"state"`
	ElapsedSeconds int          `json:"elapsedSeconds"`
	HasAudio       bool         `json:"hasAudio"`
	AudioBytes     int64        `json:"audioBytes"`
	UploadPercent  int          `json:"uploadPercent"`
}

// ConversationID identifies a server-side conversation. It is opaque to the client.
type ConversationID string

// ConversationStatus is the server-owned processing state.
type ConversationStatus string

const (
	StatusUploaded   ConversationStatus = "uploaded"
	StatusProcessing ConversationStatus = "processing"
	StatusProcessed  ConversationStatus = "processed"
	StatusError      ConversationStatus = "error"
)

// ParseConversationStatus accepts only the closed status set.
func ParseConversationStatus(raw string) (ConversationStatus, bool) {
	switch s := ConversationStatus(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusUploaded, StatusProcessing, StatusProcessed, StatusError:
		return s, true
	default:
		return "", false
	}
}

// UploadResult is returned once the backend has created the conversation.
type UploadResult struct {
	ConversationID ConversationID     `json:"conversationId"`
	Status         ConversationStatus `json:"status"`
	Message        string             `json:"message,omitempty"`
}

// Segment is one diarized, transcribed span of a conversation.
type Segment struct {
	SpeakerLabel string   `json:"speakerLabel" yaml:"speaker"`
	Text         string   `json:"text" yaml:"text"`
	StartTime    float64  `json:"startTime" yaml:"start"`
	EndTime      float64  `json:"endTime" yaml:"end"`
	Confidence   *float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`
}

// Conversation is a full snapshot of the server-side resource.
type Conversation struct {
	ID        ConversationID     `json:"id" yaml:"id"`
	Filename  string             `json:"filename" yaml:"filename"`
	Status    ConversationStatus `json:"status" yaml:"status"`
	CreatedAt time.Time          `json:"createdAt" yaml:"created_at"`
	UpdatedAt *time.Time         `json:"updatedAt,omitempty" yaml:"updated_at,omitempty"`
	Segments  []Segment          `json:"segments" yaml:"segments"`
}

// ConversationSummary is the list-view shape of a conversation.
type ConversationSummary struct {
	ID           ConversationID     `json:"id" yaml:"id"`
	Filename     string             `json:"filename" yaml:"filename"`
	Status       ConversationStatus `json:"status" yaml:"status"`
	CreatedAt    time.Time          `json:"createdAt" yaml:"created_at"`
	SegmentCount int                `json:"segmentCount" yaml:"segments"`
}

// ConversationPage is one page of the conversation list.
type ConversationPage struct {
	Conversations []ConversationSummary `json:"conversations" yaml:"conversations"`
	Total         int                   `json:"total" yaml:"total"`
}

// StatusInfo is the lightweight status view of a conversation.
type StatusInfo struct {
	ConversationID ConversationID     `json:"conversationId"`
	Status         ConversationStatus `json:"status"`
	Filename       string             `json:"filename"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      *time.Time         `json:"updatedAt,omitempty"`
}

// InsightKind identifies one of the independent insight operations.
type InsightKind string

const (
	InsightSummary    InsightKind = "summary"
	InsightSuggestion InsightKind = "suggestion"
	InsightSearch     InsightKind = "search"
)

// InsightKinds lists every kind in display order.
var InsightKinds = []InsightKind{InsightSummary, InsightSuggestion, InsightSearch}

// Summary is the result of summarizing a conversation.
type Summary struct {
	Summary   string   `json:"summary" yaml:"summary"`
	KeyPoints []string `json:"keyPoints" yaml:"key_points"`
}

// ReplySuggestions is the result of asking for suggested replies.
type ReplySuggestions struct {
	Replies         []string  `json:"replies" yaml:"replies"`
	ContextSegments []Segment `json:"contextSegments" yaml:"context"`
}

// SearchHit is one matching segment.
type SearchHit struct {
	SpeakerLabel    string         `json:"speakerLabel" yaml:"speaker"`
	Text            string         `json:"text" yaml:"text"`
	StartTime       float64        `json:"startTime" yaml:"start"`
	EndTime         float64        `json:"endTime" yaml:"end"`
	SimilarityScore float64        `json:"similarityScore" yaml:"score"`
	ConversationID  ConversationID `json:"conversationId,omitempty" yaml:"conversation_id,omitempty"`
}

// SearchResults is the result of a search.
type SearchResults struct {
	Query   string      `json:"query" yaml:"query"`
	Results []SearchHit `json:"results" yaml:"results"`
}

// SearchRequest scopes a search.
type SearchRequest struct {
	Query          string
	ConversationID ConversationID
	Limit          int
}

// InsightState is the busy/result view of one kind.
type InsightState struct {
	Kind      InsightKind `json:"kind"`
	Busy      bool        `json:"busy"`
	HasResult bool        `json:"hasResult"`
	LastError string      `json:"lastError,omitempty"`
}

// SuggestionEventType names websocket stream messages.
type SuggestionEventType string

const (
	SuggestionEventConnected SuggestionEventType = "connected"
	SuggestionEventContext   SuggestionEventType = "context"
	SuggestionEventChunk     SuggestionEventType = "suggestion_chunk"
	SuggestionEventComplete  SuggestionEventType = "suggestion_complete"
	SuggestionEventError     SuggestionEventType = "error"
	SuggestionEventPong      SuggestionEventType = "pong"
)

// SuggestionSource is a memory the backend used as context.
type SuggestionSource struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
}

// SuggestionEvent is one message of the streaming suggestion protocol.
type SuggestionEvent struct {
	Type    SuggestionEventType `json:"type"`
	Content string              `json:"content,omitempty"`
	Done    bool                `json:"done,omitempty"`
	Sources []SuggestionSource  `json:"sources,omitempty"`
}
