package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"parallelmind/internal/domain"
	"parallelmind/internal/ports"
)

type fakeSuggestionStream struct {
	events  chan domain.SuggestionEvent
	waitErr error

	mu       sync.Mutex
	sent     []string
	topK     int
	closed   int
	sendErr  error
	onSubmit []domain.SuggestionEvent
	hangUp   bool
}

func newFakeSuggestionStream(reply ...domain.SuggestionEvent) *fakeSuggestionStream {
	return &fakeSuggestionStream{events: make(chan domain.SuggestionEvent, 16), onSubmit: reply}
}

func (f *fakeSuggestionStream) Suggest(text string, _ domain.ConversationID, topK int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, text)
	f.topK = topK
	for _, event := range f.onSubmit {
		f.events <- event
	}
	if f.hangUp {
		close(f.events)
	}
	return nil
}

func (f *fakeSuggestionStream) Ping() error                           { return nil }
func (f *fakeSuggestionStream) Events() <-chan domain.SuggestionEvent { return f.events }
func (f *fakeSuggestionStream) Wait() error                           { return f.waitErr }

func (f *fakeSuggestionStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

type fakeStreamOpener struct {
	stream *fakeSuggestionStream
	err    error
}

func (f *fakeStreamOpener) OpenSuggestionStream(context.Context) (ports.SuggestionStream, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.stream, nil
}

func TestSuggestionAggregatorPrefersCompleteContent(t *testing.T) {
	t.Parallel()

	agg := newSuggestionAggregator()
	agg.Add(domain.SuggestionEvent{Type: domain.SuggestionEventContext, Sources: []domain.SuggestionSource{{ID: "s1", Similarity: 0.9}}})
	agg.Add(domain.SuggestionEvent{Type: domain.SuggestionEventChunk, Content: "Let's "})
	agg.Add(domain.SuggestionEvent{Type: domain.SuggestionEventChunk, Content: "ship"})

	if got := agg.Result(); got.Text != "Let's ship" || len(got.Sources) != 1 {
		t.Fatalf("unexpected partial result: %+v", got)
	}

	agg.Add(domain.SuggestionEvent{Type: domain.SuggestionEventComplete, Content: "Let's ship Friday."})
	if got := agg.Result(); got.Text != "Let's ship Friday." || !agg.Complete() {
		t.Fatalf("unexpected final result: %+v", got)
	}
}

func TestSuggestionStreamerForwardsChunks(t *testing.T) {
	t.Parallel()

	stream := newFakeSuggestionStream(
		domain.SuggestionEvent{Type: domain.SuggestionEventContext, Sources: []domain.SuggestionSource{{ID: "m1", Text: "deadline", Similarity: 0.8}}},
		domain.SuggestionEvent{Type: domain.SuggestionEventChunk, Content: "Sure, "},
		domain.SuggestionEvent{Type: domain.SuggestionEventChunk, Content: "Friday works."},
		domain.SuggestionEvent{Type: domain.SuggestionEventComplete},
	)
	s := NewSuggestionStreamer(&fakeStreamOpener{stream: stream}, 3, quietLogger())

	var chunks []string
	got, err := s.Stream(context.Background(), "9", "", func(c string) { chunks = append(chunks, c) })
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	if got.Text != "Sure, Friday works." || len(got.Sources) != 1 {
		t.Fatalf("unexpected result: %+v", got)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected two chunks, got %q", chunks)
	}
	if len(stream.sent) != 1 || stream.sent[0] != DefaultSuggestPrompt || stream.topK != 3 {
		t.Fatalf("unexpected request: sent=%q topK=%d", stream.sent, stream.topK)
	}
	if stream.closed != 1 {
		t.Fatalf("expected stream closed once, got %d", stream.closed)
	}
}

func TestSuggestionStreamerErrors(t *testing.T) {
	t.Parallel()

	failing := NewSuggestionStreamer(&fakeStreamOpener{err: errors.New("dial refused")}, 0, quietLogger())
	if _, err := failing.Stream(context.Background(), "1", "hi", nil); !domain.IsKind(err, domain.KindTransport) {
		t.Fatalf("expected Transport on dial failure, got %v", err)
	}

	serverErr := newFakeSuggestionStream(domain.SuggestionEvent{Type: domain.SuggestionEventError, Content: "model unavailable"})
	s := NewSuggestionStreamer(&fakeStreamOpener{stream: serverErr}, 0, quietLogger())
	_, err := s.Stream(context.Background(), "1", "hi", nil)
	if !domain.IsKind(err, domain.KindTransport) || err.Error() != "SuggestionStreamer.Stream: model unavailable" {
		t.Fatalf("expected server error surfaced, got %v", err)
	}

	early := newFakeSuggestionStream(domain.SuggestionEvent{Type: domain.SuggestionEventChunk, Content: "half"})
	early.hangUp = true
	_, err = NewSuggestionStreamer(&fakeStreamOpener{stream: early}, 0, quietLogger()).Stream(context.Background(), "1", "hi", nil)
	if err == nil {
		t.Fatalf("expected error when stream closes early")
	}
}

func TestSuggestionStreamerAbandonedByContext(t *testing.T) {
	t.Parallel()

	stream := newFakeSuggestionStream()
	s := NewSuggestionStreamer(&fakeStreamOpener{stream: stream}, 0, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Stream(ctx, "1", "hi", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	s.mu.Lock()
	busy := s.busy
	s.mu.Unlock()
	if busy {
		t.Fatalf("busy must clear after an abandoned stream")
	}
}
