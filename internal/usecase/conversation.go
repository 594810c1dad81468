package usecase

import (
	"context"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"parallelmind/internal/domain"
	"parallelmind/internal/ports"
)

// ConversationResource holds the most recently fetched conversation snapshot.
// It never polls; every refresh is caller-driven.
type ConversationResource struct {
	api ports.ConversationAPI
	log logrus.FieldLogger

	mu       sync.RWMutex
	snapshot *domain.Conversation
}

func NewConversationResource(api ports.ConversationAPI, log logrus.FieldLogger) *ConversationResource {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ConversationResource{api: api, log: log.WithField("component", "conversation")}
}

// Fetch loads the conversation and replaces the held snapshot. A failed fetch
// leaves the previous snapshot in place.
func (r *ConversationResource) Fetch(ctx context.Context, id domain.ConversationID) (domain.Conversation, error) {
	const op = "ConversationResource.Fetch"

	id = domain.ConversationID(strings.TrimSpace(string(id)))
	if id == "" {
		return domain.Conversation{}, domain.E(domain.KindPreconditionNotMet, op, "conversation id is required", nil)
	}

	conv, err := r.api.GetConversation(ctx, id)
	if err != nil {
		if !domain.IsKind(err, domain.KindNotFound) && !domain.IsKind(err, domain.KindTransport) {
			err = domain.E(domain.KindTransport, op, "fetch conversation", err)
		}
		r.log.WithError(err).WithField("conversation", id).Warn("fetch failed")
		return domain.Conversation{}, err
	}

	held := cloneConversation(conv)
	r.mu.Lock()
	r.snapshot = &held
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{
		"conversation": conv.ID,
		"status":       conv.Status,
		"segments":     len(conv.Segments),
	}).Debug("snapshot replaced")
	return cloneConversation(held), nil
}

// Snapshot returns a copy of the held conversation, if any.
func (r *ConversationResource) Snapshot() (domain.Conversation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.snapshot == nil {
		return domain.Conversation{}, false
	}
	return cloneConversation(*r.snapshot), true
}

// Clear drops the held snapshot, e.g. when navigating away.
func (r *ConversationResource) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshot = nil
}

func cloneConversation(conv domain.Conversation) domain.Conversation {
	out := conv
	out.Segments = append([]domain.Segment(nil), conv.Segments...)
	if conv.UpdatedAt != nil {
		updated := *conv.UpdatedAt
		out.UpdatedAt = &updated
	}
	return out
}
