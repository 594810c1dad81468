package backend

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"parallelmind/internal/domain"
)

func (c *Client) GetConversation(ctx context.Context, id domain.ConversationID) (domain.Conversation, error) {
	const op = "backend.GetConversation"

	path, err := conversationPath(id, "")
	if err != nil {
		return domain.Conversation{}, domain.E(domain.KindPreconditionNotMet, op, err.Error(), nil)
	}
	var resp wireConversation
	if err := c.getJSON(ctx, op, path, nil, &resp); err != nil {
		return domain.Conversation{}, err
	}
	conv, err := resp.toDomain()
	if err != nil {
		return domain.Conversation{}, domain.E(domain.KindTransport, op, "invalid conversation", err)
	}
	return conv, nil
}

// ListConversations returns one page, newest first as the backend orders it.
func (c *Client) ListConversations(ctx context.Context, skip, limit int) (domain.ConversationPage, error) {
	const op = "backend.ListConversations"

	query := url.Values{}
	if skip > 0 {
		query.Set("skip", strconv.Itoa(skip))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var resp wireConversationList
	if err := c.getJSON(ctx, op, "/api/conversations", query, &resp); err != nil {
		return domain.ConversationPage{}, err
	}

	page := domain.ConversationPage{Total: resp.Total}
	for _, wc := range resp.Conversations {
		conv, err := wc.toDomain()
		if err != nil {
			return domain.ConversationPage{}, domain.E(domain.KindTransport, op, "invalid conversation in list", err)
		}
		page.Conversations = append(page.Conversations, domain.ConversationSummary{
			ID:           conv.ID,
			Filename:     conv.Filename,
			Status:       conv.Status,
			CreatedAt:    conv.CreatedAt,
			SegmentCount: len(conv.Segments),
		})
	}
	return page, nil
}

func (c *Client) ConversationStatus(ctx context.Context, id domain.ConversationID) (domain.StatusInfo, error) {
	const op = "backend.ConversationStatus"

	path, err := conversationPath(id, "/status")
	if err != nil {
		return domain.StatusInfo{}, domain.E(domain.KindPreconditionNotMet, op, err.Error(), nil)
	}
	var resp wireStatus
	if err := c.getJSON(ctx, op, path, nil, &resp); err != nil {
		return domain.StatusInfo{}, err
	}
	status, err := parseStatus(resp.Status)
	if err != nil {
		return domain.StatusInfo{}, domain.E(domain.KindTransport, op, "invalid status response", err)
	}
	convID := domain.ConversationID(resp.ConversationID)
	if convID == "" {
		convID = id
	}
	return domain.StatusInfo{
		ConversationID: convID,
		Status:         status,
		Filename:       resp.Filename,
		CreatedAt:      resp.CreatedAt.Time,
		UpdatedAt:      resp.UpdatedAt.ptr(),
	}, nil
}

// Health reports the backend's self-declared status.
func (c *Client) Health(ctx context.Context) (string, error) {
	const op = "backend.Health"

	var resp wireHealth
	if err := c.getJSON(ctx, op, "/health", nil, &resp); err != nil {
		return "", err
	}
	status := strings.TrimSpace(resp.Status)
	if status == "" {
		return "", domain.E(domain.KindTransport, op, "health response has no status", nil)
	}
	return status, nil
}
