package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"parallelmind/internal/domain"
)

type fakeConversationAPI struct {
	mu    sync.Mutex
	convs map[domain.ConversationID]domain.Conversation
	err   error
	calls int
}

func (f *fakeConversationAPI) GetConversation(_ context.Context, id domain.ConversationID) (domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return domain.Conversation{}, f.err
	}
	conv, ok := f.convs[id]
	if !ok {
		return domain.Conversation{}, domain.E(domain.KindNotFound, "fake.GetConversation", "conversation not found", nil)
	}
	return conv, nil
}

func (f *fakeConversationAPI) ListConversations(context.Context, int, int) (domain.ConversationPage, error) {
	return domain.ConversationPage{}, nil
}

func (f *fakeConversationAPI) ConversationStatus(context.Context, domain.ConversationID) (domain.StatusInfo, error) {
	return domain.StatusInfo{}, nil
}

func (f *fakeConversationAPI) put(conv domain.Conversation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.convs == nil {
		f.convs = map[domain.ConversationID]domain.Conversation{}
	}
	f.convs[conv.ID] = conv
}

func (f *fakeConversationAPI) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func TestConversationResourceFetchReplacesSnapshot(t *testing.T) {
	t.Parallel()

	api := &fakeConversationAPI{}
	api.put(domain.Conversation{ID: "1", Status: domain.StatusProcessing})
	api.put(domain.Conversation{ID: "2", Status: domain.StatusProcessed, Segments: []domain.Segment{{SpeakerLabel: "A", Text: "hi"}}})
	res := NewConversationResource(api, quietLogger())

	if _, ok := res.Snapshot(); ok {
		t.Fatalf("expected no snapshot before fetch")
	}
	if _, err := res.Fetch(context.Background(), "1"); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	got, err := res.Fetch(context.Background(), "2")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if got.ID != "2" || len(got.Segments) != 1 {
		t.Fatalf("unexpected conversation: %+v", got)
	}

	snap, ok := res.Snapshot()
	if !ok || snap.ID != "2" || snap.Status != domain.StatusProcessed {
		t.Fatalf("expected snapshot of conversation 2, got %+v", snap)
	}

	snap.Segments[0].Text = "mutated"
	again, _ := res.Snapshot()
	if again.Segments[0].Text != "hi" {
		t.Fatalf("snapshot must not be mutable through a returned copy")
	}
}

func TestConversationResourceRefetchSeesServerStatus(t *testing.T) {
	t.Parallel()

	api := &fakeConversationAPI{}
	api.put(domain.Conversation{ID: "5", Status: domain.StatusProcessing})
	res := NewConversationResource(api, quietLogger())

	if _, err := res.Fetch(context.Background(), "5"); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	api.put(domain.Conversation{ID: "5", Status: domain.StatusProcessed})

	if snap, _ := res.Snapshot(); snap.Status != domain.StatusProcessing {
		t.Fatalf("snapshot must only change on explicit fetch, got %s", snap.Status)
	}
	if _, err := res.Fetch(context.Background(), "5"); err != nil {
		t.Fatalf("refetch failed: %v", err)
	}
	if snap, _ := res.Snapshot(); snap.Status != domain.StatusProcessed {
		t.Fatalf("expected processed after refetch, got %s", snap.Status)
	}
}

func TestConversationResourceErrors(t *testing.T) {
	t.Parallel()

	api := &fakeConversationAPI{}
	api.put(domain.Conversation{ID: "1", Status: domain.StatusUploaded})
	res := NewConversationResource(api, quietLogger())
	if _, err := res.Fetch(context.Background(), "1"); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	if _, err := res.Fetch(context.Background(), "404"); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}

	api.setErr(errors.New("dial tcp: connection refused"))
	if _, err := res.Fetch(context.Background(), "1"); !domain.IsKind(err, domain.KindTransport) {
		t.Fatalf("expected Transport, got %v", err)
	}

	if snap, ok := res.Snapshot(); !ok || snap.ID != "1" {
		t.Fatalf("failed fetches must keep the previous snapshot, got %+v", snap)
	}

	calls := api.calls
	if _, err := res.Fetch(context.Background(), "  "); !domain.IsKind(err, domain.KindPreconditionNotMet) {
		t.Fatalf("expected PreconditionNotMet for empty id, got %v", err)
	}
	if api.calls != calls {
		t.Fatalf("empty id must not reach the backend")
	}

	res.Clear()
	if _, ok := res.Snapshot(); ok {
		t.Fatalf("expected snapshot cleared")
	}
}
