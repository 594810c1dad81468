package backend

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"parallelmind/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	logger, _ := test.NewNullLogger()
	return NewClient(Config{BaseURL: server.URL + "/", Timeout: 5 * time.Second}, logger)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestNewClientDefaults(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{}, nil)
	if c.BaseURL() != "http://localhost:8000" {
		t.Fatalf("unexpected base url: %q", c.BaseURL())
	}
	if c.httpClient.Timeout != 60*time.Second {
		t.Fatalf("unexpected timeout: %s", c.httpClient.Timeout)
	}
}

func TestGetConversationDecodesSnapshot(t *testing.T) {
	t.Parallel()

	var requestID string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/conversations/12" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		requestID = r.Header.Get("X-Request-Id")
		writeJSON(w, http.StatusOK, map[string]any{
			"id":         12,
			"filename":   "standup.wav",
			"status":     "processed",
			"created_at": "2024-05-01T09:00:00.123456",
			"updated_at": nil,
			"segments": []map[string]any{
				{"id": 1, "conversation_id": 12, "speaker_label": "SPEAKER_00", "text": "The project deadline is Friday", "start_time": 0, "end_time": 2.5, "confidence": 0.93},
				{"id": 2, "conversation_id": 12, "speaker_label": "SPEAKER_01", "text": "OK", "start_time": 2.5, "end_time": 3},
			},
		})
	})

	conv, err := c.GetConversation(context.Background(), "12")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if conv.ID != "12" || conv.Status != domain.StatusProcessed || conv.Filename != "standup.wav" {
		t.Fatalf("unexpected conversation: %+v", conv)
	}
	if conv.CreatedAt.IsZero() || conv.UpdatedAt != nil {
		t.Fatalf("unexpected timestamps: %v %v", conv.CreatedAt, conv.UpdatedAt)
	}
	if len(conv.Segments) != 2 || conv.Segments[0].Confidence == nil || conv.Segments[1].Confidence != nil {
		t.Fatalf("unexpected segments: %+v", conv.Segments)
	}
	if requestID == "" {
		t.Fatalf("expected request id header")
	}
}

func TestGetConversationErrors(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/conversations/404":
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Conversation not found"})
		case "/api/conversations/500":
			writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "boom"})
		case "/api/conversations/weird":
			writeJSON(w, http.StatusOK, map[string]any{"id": 1, "status": "archived", "created_at": "2024-05-01T09:00:00Z"})
		case "/api/conversations/garbage":
			_, _ = io.WriteString(w, "<html>")
		case "/api/conversations/anonymous":
			writeJSON(w, http.StatusOK, map[string]any{"status": "processed", "created_at": "2024-05-01T09:00:00Z"})
		}
	})

	_, err := c.GetConversation(context.Background(), "404")
	if !domain.IsKind(err, domain.KindNotFound) || !strings.Contains(err.Error(), "Conversation not found") {
		t.Fatalf("expected NotFound with detail, got %v", err)
	}
	if _, err := c.GetConversation(context.Background(), "500"); !domain.IsKind(err, domain.KindTransport) {
		t.Fatalf("expected Transport for 500, got %v", err)
	}
	if _, err := c.GetConversation(context.Background(), "weird"); !domain.IsKind(err, domain.KindTransport) {
		t.Fatalf("expected Transport for unknown status, got %v", err)
	}
	if _, err := c.GetConversation(context.Background(), "garbage"); !domain.IsKind(err, domain.KindTransport) {
		t.Fatalf("expected Transport for malformed body, got %v", err)
	}
	if _, err := c.GetConversation(context.Background(), "anonymous"); !domain.IsKind(err, domain.KindTransport) {
		t.Fatalf("expected Transport for a conversation without id, got %v", err)
	}
	if _, err := c.GetConversation(context.Background(), " "); !domain.IsKind(err, domain.KindPreconditionNotMet) {
		t.Fatalf("expected PreconditionNotMet for empty id, got %v", err)
	}
}

func TestTransportErrorWhenBackendDown(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	base := server.URL
	server.Close()

	c := NewClient(Config{BaseURL: base, Timeout: time.Second}, nil)
	if _, err := c.Health(context.Background()); !domain.IsKind(err, domain.KindTransport) {
		t.Fatalf("expected Transport, got %v", err)
	}
}

func TestListConversationsAndStatus(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/conversations":
			if r.URL.Query().Get("skip") != "10" || r.URL.Query().Get("limit") != "5" {
				t.Errorf("unexpected paging: %s", r.URL.RawQuery)
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"total": 11,
				"conversations": []map[string]any{
					{"id": 3, "filename": "a.wav", "status": "processing", "created_at": "2024-05-01T09:00:00", "segments": []any{}},
					{"id": 4, "filename": "b.wav", "status": "processed", "created_at": "2024-05-02T09:00:00", "segments": []map[string]any{{"speaker_label": "A", "text": "x", "start_time": 0, "end_time": 1}}},
				},
			})
		case "/api/conversations/4/status":
			writeJSON(w, http.StatusOK, map[string]any{
				"conversation_id": 4,
				"status":          "processed",
				"filename":        "b.wav",
				"created_at":      "2024-05-02T09:00:00",
				"updated_at":      "2024-05-02T09:05:00",
			})
		}
	})

	page, err := c.ListConversations(context.Background(), 10, 5)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if page.Total != 11 || len(page.Conversations) != 2 {
		t.Fatalf("unexpected page: %+v", page)
	}
	if page.Conversations[1].ID != "4" || page.Conversations[1].SegmentCount != 1 {
		t.Fatalf("unexpected summary: %+v", page.Conversations[1])
	}

	status, err := c.ConversationStatus(context.Background(), "4")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if status.ConversationID != "4" || status.Status != domain.StatusProcessed || status.UpdatedAt == nil {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestUploadSendsMultipartAndReportsProgress(t *testing.T) {
	t.Parallel()

	payload := []byte(strings.Repeat("a", 64<<10))
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/upload" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "multipart/form-data" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
			return
		}
		reader := multipart.NewReader(r.Body, params["boundary"])
		part, err := reader.NextPart()
		if err != nil {
			t.Errorf("read part: %v", err)
			return
		}
		if part.FormName() != "file" || !strings.HasSuffix(part.FileName(), ".wav") || part.Header.Get("Content-Type") != "audio/wav" {
			t.Errorf("unexpected part: name=%q file=%q type=%q", part.FormName(), part.FileName(), part.Header.Get("Content-Type"))
		}
		got, _ := io.ReadAll(part)
		if len(got) != len(payload) {
			t.Errorf("expected %d bytes, got %d", len(payload), len(got))
		}
		writeJSON(w, http.StatusOK, map[string]any{"conversation_id": 77, "message": "File uploaded successfully", "status": "uploaded"})
	})

	var (
		mu       sync.Mutex
		progress []int64
		total    int64
	)
	result, err := c.Upload(context.Background(), domain.FinalizedAudio{Data: payload, MediaType: domain.MediaTypeWAV}, func(sent, all int64) {
		mu.Lock()
		defer mu.Unlock()
		progress = append(progress, sent)
		total = all
	})
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if result.ConversationID != "77" || result.Status != domain.StatusUploaded {
		t.Fatalf("unexpected result: %+v", result)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(progress) == 0 || progress[len(progress)-1] != total {
		t.Fatalf("expected progress to reach the body size %d, got %v", total, progress)
	}
	for i := 1; i < len(progress); i++ {
		if progress[i] < progress[i-1] {
			t.Fatalf("progress went backwards: %v", progress)
		}
	}
}

func TestUploadServerErrorAndBadResponse(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "File must be an audio file"})
	})
	_, err := c.Upload(context.Background(), domain.FinalizedAudio{Data: []byte("x")}, nil)
	if !domain.IsKind(err, domain.KindTransport) || !strings.Contains(err.Error(), "File must be an audio file") {
		t.Fatalf("expected Transport with detail, got %v", err)
	}

	bad := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"conversation_id": 1, "status": "queued"})
	})
	if _, err := bad.Upload(context.Background(), domain.FinalizedAudio{Data: []byte("x")}, nil); !domain.IsKind(err, domain.KindTransport) {
		t.Fatalf("expected Transport for unknown status, got %v", err)
	}
}

func TestInsightEndpoints(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/conversations/9/summarize":
			writeJSON(w, http.StatusOK, map[string]any{"summary": "Deadline is Friday", "key_points": []string{"ship Friday"}})
		case r.Method == http.MethodPost && r.URL.Path == "/api/conversations/9/suggest-reply":
			if r.URL.Query().Get("query") != "what now" {
				t.Errorf("unexpected query %q", r.URL.RawQuery)
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"replies":          []string{"Let's confirm Friday"},
				"context_segments": []map[string]any{{"speaker_label": "SPEAKER_00", "text": "deadline", "start_time": 0, "end_time": 1}},
			})
		case r.Method == http.MethodGet && r.URL.Path == "/api/search":
			q := r.URL.Query()
			if q.Get("query") != "deadline" || q.Get("conversation_id") != "9" || q.Get("limit") != "3" {
				t.Errorf("unexpected search params %q", r.URL.RawQuery)
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"query": "deadline",
				"total": 1,
				"results": []map[string]any{{
					"text": "The project deadline is Friday", "speaker_label": "SPEAKER_00",
					"start_time": 0, "end_time": 2.5, "similarity_score": 0.91, "conversation_id": "9",
				}},
			})
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	})

	summary, err := c.Summarize(context.Background(), "9")
	if err != nil || summary.Summary != "Deadline is Friday" || len(summary.KeyPoints) != 1 {
		t.Fatalf("unexpected summary %+v err=%v", summary, err)
	}

	replies, err := c.SuggestReply(context.Background(), "9", "what now")
	if err != nil || len(replies.Replies) != 1 || len(replies.ContextSegments) != 1 {
		t.Fatalf("unexpected replies %+v err=%v", replies, err)
	}

	results, err := c.Search(context.Background(), domain.SearchRequest{Query: "deadline", ConversationID: "9", Limit: 3})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results.Results) != 1 || results.Results[0].ConversationID != "9" || results.Results[0].SimilarityScore != 0.91 {
		t.Fatalf("unexpected results: %+v", results)
	}

	if _, err := c.Search(context.Background(), domain.SearchRequest{}); !domain.IsKind(err, domain.KindPreconditionNotMet) {
		t.Fatalf("expected PreconditionNotMet for empty query, got %v", err)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "healthy", "timestamp": "2024-05-01T09:00:00"})
	})
	status, err := c.Health(context.Background())
	if err != nil || status != "healthy" {
		t.Fatalf("unexpected health %q err=%v", status, err)
	}
}

func TestWireIDAcceptsNumbersAndStrings(t *testing.T) {
	t.Parallel()

	var payload struct {
		A wireID `json:"a"`
		B wireID `json:"b"`
		C wireID `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a": 42, "b": " 7 ", "c": null}`), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.A != "42" || payload.B != "7" || payload.C != "" {
		t.Fatalf("unexpected ids: %+v", payload)
	}
}

func TestWireTimeFormats(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{`"2024-05-01T09:00:00Z"`, `"2024-05-01T09:00:00.5"`, `"2024-05-01 09:00:00"`} {
		var wt wireTime
		if err := json.Unmarshal([]byte(raw), &wt); err != nil || wt.IsZero() {
			t.Fatalf("failed to parse %s: %v", raw, err)
		}
	}
	var wt wireTime
	if err := json.Unmarshal([]byte(`"yesterday"`), &wt); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}
