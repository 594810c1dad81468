package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"parallelmind/internal/domain"
	"parallelmind/internal/ports"
)

// StreamedSuggestion is the assembled result of a streaming suggestion.
type StreamedSuggestion struct {
	Text    string                    `json:"text" yaml:"text"`
	Sources []domain.SuggestionSource `json:"sources,omitempty" yaml:"sources,omitempty"`
}

// suggestionAggregator assembles suggestion chunks. A complete message wins
// over the accumulated chunks when it carries content.
type suggestionAggregator struct {
	mu       sync.Mutex
	chunks   []string
	final    string
	sources  []domain.SuggestionSource
	complete bool
}

func newSuggestionAggregator() *suggestionAggregator {
	return &suggestionAggregator{}
}

func (a *suggestionAggregator) Add(event domain.SuggestionEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch event.Type {
	case domain.SuggestionEventContext:
		a.sources = append([]domain.SuggestionSource(nil), event.Sources...)
	case domain.SuggestionEventChunk:
		if event.Content != "" {
			a.chunks = append(a.chunks, event.Content)
		}
	case domain.SuggestionEventComplete:
		a.complete = true
		a.final = strings.TrimSpace(event.Content)
		if len(event.Sources) > 0 {
			a.sources = append([]domain.SuggestionSource(nil), event.Sources...)
		}
	}
}

func (a *suggestionAggregator) Result() StreamedSuggestion {
	a.mu.Lock()
	defer a.mu.Unlock()

	text := a.final
	if text == "" {
		text = strings.TrimSpace(strings.Join(a.chunks, ""))
	}
	return StreamedSuggestion{Text: text, Sources: append([]domain.SuggestionSource(nil), a.sources...)}
}

func (a *suggestionAggregator) Complete() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.complete
}

// SuggestionStreamer runs one streamed suggestion at a time over a fresh
// connection.
type SuggestionStreamer struct {
	opener ports.SuggestionStreamer
	topK   int
	log    logrus.FieldLogger

	mu   sync.Mutex
	busy bool
}

func NewSuggestionStreamer(opener ports.SuggestionStreamer, topK int, log logrus.FieldLogger) *SuggestionStreamer {
	if topK <= 0 {
		topK = 5
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SuggestionStreamer{opener: opener, topK: topK, log: log.WithField("component", "suggest-stream")}
}

// Stream sends text and forwards every chunk to onChunk until the backend
// completes, reports an error, or ctx ends.
func (s *SuggestionStreamer) Stream(
	ctx context.Context,
	id domain.ConversationID,
	text string,
	onChunk func(string),
) (StreamedSuggestion, error) {
	const op = "SuggestionStreamer.Stream"

	text = strings.TrimSpace(text)
	if text == "" {
		text = DefaultSuggestPrompt
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return StreamedSuggestion{}, domain.E(domain.KindPreconditionNotMet, op, "suggestion already streaming", domain.ErrInsightBusy)
	}
	s.busy = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	stream, err := s.opener.OpenSuggestionStream(ctx)
	if err != nil {
		return StreamedSuggestion{}, asTransport(op, "open suggestion stream", err)
	}
	defer stream.Close()

	if err := stream.Suggest(text, id, s.topK); err != nil {
		return StreamedSuggestion{}, asTransport(op, "send suggestion request", err)
	}

	agg := newSuggestionAggregator()
	for {
		select {
		case <-ctx.Done():
			return agg.Result(), domain.E(domain.KindTransport, op, "suggestion stream abandoned", ctx.Err())
		case event, ok := <-stream.Events():
			if !ok {
				if agg.Complete() {
					return agg.Result(), nil
				}
				waitErr := stream.Wait()
				if waitErr == nil {
					waitErr = errors.New("stream closed before completion")
				}
				return agg.Result(), asTransport(op, "suggestion stream ended", waitErr)
			}
			agg.Add(event)
			switch event.Type {
			case domain.SuggestionEventChunk:
				if onChunk != nil && event.Content != "" {
					onChunk(event.Content)
				}
			case domain.SuggestionEventError:
				return agg.Result(), domain.E(domain.KindTransport, op, event.Content, nil)
			case domain.SuggestionEventComplete:
				s.log.WithField("sources", len(agg.Result().Sources)).Debug("suggestion complete")
				return agg.Result(), nil
			}
		}
	}
}

func asTransport(op, msg string, err error) error {
	if _, kinded := domain.KindOf(err); kinded {
		return err
	}
	return domain.E(domain.KindTransport, op, msg, err)
}
