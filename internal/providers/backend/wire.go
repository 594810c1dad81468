package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"parallelmind/internal/domain"
)

// wireID accepts the backend's integer ids as well as strings.
type wireID string

func (w *wireID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*w = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*w = wireID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("conversation id: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*w = wireID(strconv.FormatInt(i, 10))
		return nil
	}
	*w = wireID(n.String())
	return nil
}

// wireTime accepts RFC 3339 and the naive ISO timestamps the backend emits.
type wireTime struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (w *wireTime) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil || strings.TrimSpace(*raw) == "" {
		w.Time = time.Time{}
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(*raw)); err == nil {
			w.Time = t
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", *raw)
}

func (w *wireTime) ptr() *time.Time {
	if w == nil || w.IsZero() {
		return nil
	}
	t := w.Time
	return &t
}

type wireSegment struct {
	SpeakerLabel string   `json:"speaker_label"`
	Text         string   `json:"text"`
	StartTime    float64  `json:"start_time"`
	EndTime      float64  `json:"end_time"`
	Confidence   *float64 `json:"confidence"`
}

func (s wireSegment) toDomain() domain.Segment {
	return domain.Segment{
		SpeakerLabel: s.SpeakerLabel,
		Text:         s.Text,
		StartTime:    s.StartTime,
		EndTime:      s.EndTime,
		Confidence:   s.Confidence,
	}
}

func segmentsToDomain(in []wireSegment) []domain.Segment {
	out := make([]domain.Segment, 0, len(in))
	for _, seg := range in {
		out = append(out, seg.toDomain())
	}
	return out
}

type wireConversation struct {
	ID        wireID        `json:"id"`
	Filename  string        `json:"filename"`
	Status    string        `json:"status"`
	CreatedAt wireTime      `json:"created_at"`
	UpdatedAt *wireTime     `json:"updated_at"`
	Segments  []wireSegment `json:"segments"`
}

func (c wireConversation) toDomain() (domain.Conversation, error) {
	if c.ID == "" {
		return domain.Conversation{}, errors.New("conversation has no id")
	}
	status, err := parseStatus(c.Status)
	if err != nil {
		return domain.Conversation{}, err
	}
	return domain.Conversation{
		ID:        domain.ConversationID(c.ID),
		Filename:  c.Filename,
		Status:    status,
		CreatedAt: c.CreatedAt.Time,
		UpdatedAt: c.UpdatedAt.ptr(),
		Segments:  segmentsToDomain(c.Segments),
	}, nil
}

type wireConversationList struct {
	Conversations []wireConversation `json:"conversations"`
	Total         int                `json:"total"`
}

type wireStatus struct {
	ConversationID wireID    `json:"conversation_id"`
	Status         string    `json:"status"`
	Filename       string    `json:"filename"`
	CreatedAt      wireTime  `json:"created_at"`
	UpdatedAt      *wireTime `json:"updated_at"`
}

type wireUpload struct {
	ConversationID wireID `json:"conversation_id"`
	Message        string `json:"message"`
	Status         string `json:"status"`
}

type wireSummary struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
}

type wireSuggestions struct {
	Replies         []string      `json:"replies"`
	ContextSegments []wireSegment `json:"context_segments"`
}

type wireSearchHit struct {
	Text            string  `json:"text"`
	SpeakerLabel    string  `json:"speaker_label"`
	StartTime       float64 `json:"start_time"`
	EndTime         float64 `json:"end_time"`
	SimilarityScore float64 `json:"similarity_score"`
	ConversationID  wireID  `json:"conversation_id"`
}

type wireSearch struct {
	Query   string          `json:"query"`
	Results []wireSearchHit `json:"results"`
	Total   int             `json:"total"`
}

type wireHealth struct {
	Status string `json:"status"`
}

// parseStatus rejects anything outside the closed status set.
func parseStatus(raw string) (domain.ConversationStatus, error) {
	status, ok := domain.ParseConversationStatus(raw)
	if !ok {
		return "", fmt.Errorf("unknown conversation status %q", raw)
	}
	return status, nil
}
