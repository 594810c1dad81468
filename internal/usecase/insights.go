package usecase

import (
	"context"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"parallelmind/internal/domain"
	"parallelmind/internal/ports"
)

// DefaultSuggestPrompt is sent when SuggestReply is called without a query.
const DefaultSuggestPrompt = "What should I say next?"

// SnapshotSource provides the conversation snapshot insights are gated on.
type SnapshotSource interface {
	Snapshot() (domain.Conversation, bool)
}

// InsightConfig tunes insight requests.
type InsightConfig struct {
	SuggestPrompt string
	SearchLimit   int
}

type insightSlot[T any] struct {
	busy    bool
	result  *T
	lastErr error
}

// InsightOrchestrator runs summary, suggestion and search requests for one
// conversation. Each kind has its own busy flag and last result; kinds never
// affect each other. Construct one per displayed conversation.
type InsightOrchestrator struct {
	id        domain.ConversationID
	snapshots SnapshotSource
	api       ports.InsightAPI
	events    ports.InsightEvents
	cfg       InsightConfig
	log       logrus.FieldLogger

	mu         sync.Mutex
	summary    insightSlot[domain.Summary]
	suggestion insightSlot[domain.ReplySuggestions]
	search     insightSlot[domain.SearchResults]
}

func NewInsightOrchestrator(
	id domain.ConversationID,
	snapshots SnapshotSource,
	api ports.InsightAPI,
	events ports.InsightEvents,
	cfg InsightConfig,
	log logrus.FieldLogger,
) *InsightOrchestrator {
	if strings.TrimSpace(cfg.SuggestPrompt) == "" {
		cfg.SuggestPrompt = DefaultSuggestPrompt
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = 10
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &InsightOrchestrator{
		id:        id,
		snapshots: snapshots,
		api:       api,
		events:    events,
		cfg:       cfg,
		log:       log.WithFields(logrus.Fields{"component": "insights", "conversation": id}),
	}
}

func (o *InsightOrchestrator) ConversationID() domain.ConversationID { return o.id }

// Summarize requires a processed conversation.
func (o *InsightOrchestrator) Summarize(ctx context.Context) (domain.Summary, error) {
	return runInsight(ctx, o, &o.summary, domain.InsightSummary, "InsightOrchestrator.Summarize",
		o.requireProcessed,
		func(ctx context.Context) (domain.Summary, error) {
			return o.api.Summarize(ctx, o.id)
		})
}

// SuggestReply requires a processed conversation. An empty query uses the
// configured default prompt.
func (o *InsightOrchestrator) SuggestReply(ctx context.Context, query string) (domain.ReplySuggestions, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		query = o.cfg.SuggestPrompt
	}
	return runInsight(ctx, o, &o.suggestion, domain.InsightSuggestion, "InsightOrchestrator.SuggestReply",
		o.requireProcessed,
		func(ctx context.Context) (domain.ReplySuggestions, error) {
			return o.api.SuggestReply(ctx, o.id, query)
		})
}

// Search requires a non-empty query and is scoped to this conversation.
func (o *InsightOrchestrator) Search(ctx context.Context, query string) (domain.SearchResults, error) {
	const op = "InsightOrchestrator.Search"
	query = strings.TrimSpace(query)
	return runInsight(ctx, o, &o.search, domain.InsightSearch, op,
		func(op string) error {
			if query == "" {
				return domain.E(domain.KindPreconditionNotMet, op, "search query is empty", nil)
			}
			return nil
		},
		func(ctx context.Context) (domain.SearchResults, error) {
			return o.api.Search(ctx, domain.SearchRequest{
				Query:          query,
				ConversationID: o.id,
				Limit:          o.cfg.SearchLimit,
			})
		})
}

func (o *InsightOrchestrator) SummaryResult() (domain.Summary, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return resultOf(&o.summary)
}

func (o *InsightOrchestrator) SuggestionResult() (domain.ReplySuggestions, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return resultOf(&o.suggestion)
}

func (o *InsightOrchestrator) SearchResult() (domain.SearchResults, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return resultOf(&o.search)
}

// State reports busy and result presence for one kind.
func (o *InsightOrchestrator) State(kind domain.InsightKind) domain.InsightState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stateLocked(kind)
}

// States reports every kind in display order.
func (o *InsightOrchestrator) States() []domain.InsightState {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]domain.InsightState, 0, len(domain.InsightKinds))
	for _, kind := range domain.InsightKinds {
		out = append(out, o.stateLocked(kind))
	}
	return out
}

func (o *InsightOrchestrator) stateLocked(kind domain.InsightKind) domain.InsightState {
	switch kind {
	case domain.InsightSummary:
		return slotState(kind, &o.summary)
	case domain.InsightSuggestion:
		return slotState(kind, &o.suggestion)
	case domain.InsightSearch:
		return slotState(kind, &o.search)
	default:
		return domain.InsightState{Kind: kind}
	}
}

func (o *InsightOrchestrator) requireProcessed(op string) error {
	conv, ok := o.snapshots.Snapshot()
	if !ok || conv.ID != o.id {
		return domain.E(domain.KindPreconditionNotMet, op, "conversation "+string(o.id)+" is not loaded", nil)
	}
	if conv.Status != domain.StatusProcessed {
		return domain.E(domain.KindPreconditionNotMet, op, "conversation is "+string(conv.Status)+", not processed", nil)
	}
	return nil
}

func (o *InsightOrchestrator) publish(kind domain.InsightKind) {
	if o.events == nil {
		return
	}
	o.events.InsightChanged(o.State(kind))
}

// runInsight applies the shared busy/result discipline: reject while busy,
// check the precondition before any request, clear busy on every exit and
// overwrite the result only on success.
func runInsight[T any](
	ctx context.Context,
	o *InsightOrchestrator,
	slot *insightSlot[T],
	kind domain.InsightKind,
	op string,
	precondition func(op string) error,
	call func(context.Context) (T, error),
) (T, error) {
	var zero T

	o.mu.Lock()
	if slot.busy {
		o.mu.Unlock()
		return zero, domain.E(domain.KindPreconditionNotMet, op, string(kind)+" already in progress", domain.ErrInsightBusy)
	}
	if err := precondition(op); err != nil {
		o.mu.Unlock()
		return zero, err
	}
	slot.busy = true
	o.mu.Unlock()
	o.publish(kind)

	var (
		result T
		err    error
		ok     bool
	)
	defer func() {
		o.mu.Lock()
		slot.busy = false
		if ok {
			stored := result
			slot.result = &stored
			slot.lastErr = nil
		} else if err != nil {
			slot.lastErr = err
		}
		o.mu.Unlock()
		o.publish(kind)
	}()

	result, err = call(ctx)
	if err != nil {
		if _, kinded := domain.KindOf(err); !kinded {
			err = domain.E(domain.KindTransport, op, string(kind)+" request failed", err)
		}
		o.log.WithError(err).WithField("kind", kind).Warn("insight failed")
		return zero, err
	}
	ok = true
	return result, nil
}

func resultOf[T any](slot *insightSlot[T]) (T, bool) {
	if slot.result == nil {
		var zero T
		return zero, false
	}
	return *slot.result, true
}

func slotState[T any](kind domain.InsightKind, slot *insightSlot[T]) domain.InsightState {
	state := domain.InsightState{Kind: kind, Busy: slot.busy, HasResult: slot.result != nil}
	if slot.lastErr != nil {
		state.LastError = slot.lastErr.Error()
	}
	return state
}
