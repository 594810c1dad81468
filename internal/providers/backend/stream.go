package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"parallelmind/internal/domain"
	"parallelmind/internal/ports"
)

const streamPath = "/api/events/stream"

// OpenSuggestionStream dials the streaming-suggestion websocket.
func (c *Client) OpenSuggestionStream(ctx context.Context) (ports.SuggestionStream, error) {
	const op = "backend.OpenSuggestionStream"

	wsURL, err := streamURL(c.cfg.BaseURL)
	if err != nil {
		return nil, domain.E(domain.KindTransport, op, "invalid backend URL", err)
	}

	headers := http.Header{}
	requestID := uuid.NewString()
	headers.Set(requestIDHeader, requestID)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		c.log.WithError(err).WithField("request_id", requestID).Warn("suggestion stream dial failed")
		return nil, domain.E(domain.KindTransport, op, "connect to suggestion stream", err)
	}
	c.log.WithField("request_id", requestID).Debug("suggestion stream connected")

	session := &suggestionSession{
		conn:    conn,
		events:  make(chan domain.SuggestionEvent, 64),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}
	go session.readLoop()
	go func() {
		select {
		case <-ctx.Done():
			_ = session.Close()
		case <-session.done:
		}
	}()
	return session, nil
}

type suggestionSession struct {
	conn *websocket.Conn

	events  chan domain.SuggestionEvent
	done    chan struct{}
	closing chan struct{}

	sendMu sync.Mutex

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
}

type outboundMessage struct {
	Type           string `json:"type"`
	Text           string `json:"text,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	TopK           int    `json:"top_k,omitempty"`
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Content string          `json:"content"`
	Done    bool            `json:"done"`
	Sources []inboundSource `json:"sources"`
}

type inboundSource struct {
	ID         wireID  `json:"id"`
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
}

func (s *suggestionSession) Suggest(text string, id domain.ConversationID, topK int) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("suggestion text is empty")
	}
	return s.send(outboundMessage{Type: "suggest", Text: text, ConversationID: string(id), TopK: topK})
}

func (s *suggestionSession) Ping() error {
	return s.send(outboundMessage{Type: "ping"})
}

func (s *suggestionSession) send(msg outboundMessage) error {
	select {
	case <-s.done:
		if err := s.waitErr(); err != nil {
			return err
		}
		return errors.New("suggestion stream closed")
	default:
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}
	return nil
}

func (s *suggestionSession) Events() <-chan domain.SuggestionEvent {
	return s.events
}

func (s *suggestionSession) Wait() error {
	<-s.done
	return s.waitErr()
}

func (s *suggestionSession) Close() error {
	s.closeOnce.Do(func() {
		close(s.closing)
		s.sendMu.Lock()
		_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.sendMu.Unlock()
		_ = s.conn.Close()
	})
	<-s.done
	return s.waitErr()
}

func (s *suggestionSession) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *suggestionSession) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) || errors.Is(err, net.ErrClosed) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = fmt.Errorf("read suggestion event: %w", err)
	}
}

func (s *suggestionSession) readLoop() {
	defer func() {
		close(s.events)
		close(s.done)
	}()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(err)
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}
		event, ok := toEvent(msg)
		if !ok {
			continue
		}
		select {
		case s.events <- event:
		case <-s.closing:
			return
		}
	}
}

func toEvent(msg inboundMessage) (domain.SuggestionEvent, bool) {
	event := domain.SuggestionEvent{
		Type:    domain.SuggestionEventType(msg.Type),
		Content: msg.Content,
		Done:    msg.Done,
	}
	switch event.Type {
	case domain.SuggestionEventConnected, domain.SuggestionEventChunk, domain.SuggestionEventError, domain.SuggestionEventPong:
	case domain.SuggestionEventContext, domain.SuggestionEventComplete:
		for _, src := range msg.Sources {
			event.Sources = append(event.Sources, domain.SuggestionSource{
				ID:         string(src.ID),
				Text:       src.Text,
				Similarity: src.Similarity,
			})
		}
	default:
		return domain.SuggestionEvent{}, false
	}
	return event, true
}

func streamURL(base string) (string, error) {
	base = strings.TrimSpace(base)
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	u, err := url.Parse(base + streamPath)
	if err != nil {
		return "", err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return u.String(), nil
}
