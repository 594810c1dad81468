package backend

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"parallelmind/internal/domain"
)

func (c *Client) Summarize(ctx context.Context, id domain.ConversationID) (domain.Summary, error) {
	const op = "backend.Summarize"

	path, err := conversationPath(id, "/summarize")
	if err != nil {
		return domain.Summary{}, domain.E(domain.KindPreconditionNotMet, op, err.Error(), nil)
	}
	var resp wireSummary
	if err := c.postJSON(ctx, op, path, nil, &resp); err != nil {
		return domain.Summary{}, err
	}
	return domain.Summary{Summary: resp.Summary, KeyPoints: nonNil(resp.KeyPoints)}, nil
}

func (c *Client) SuggestReply(ctx context.Context, id domain.ConversationID, query string) (domain.ReplySuggestions, error) {
	const op = "backend.SuggestReply"

	path, err := conversationPath(id, "/suggest-reply")
	if err != nil {
		return domain.ReplySuggestions{}, domain.E(domain.KindPreconditionNotMet, op, err.Error(), nil)
	}
	params := url.Values{}
	if q := strings.TrimSpace(query); q != "" {
		params.Set("query", q)
	}
	var resp wireSuggestions
	if err := c.postJSON(ctx, op, path, params, &resp); err != nil {
		return domain.ReplySuggestions{}, err
	}
	return domain.ReplySuggestions{
		Replies:         nonNil(resp.Replies),
		ContextSegments: segmentsToDomain(resp.ContextSegments),
	}, nil
}

func (c *Client) Search(ctx context.Context, req domain.SearchRequest) (domain.SearchResults, error) {
	const op = "backend.Search"

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return domain.SearchResults{}, domain.E(domain.KindPreconditionNotMet, op, "search query is empty", nil)
	}
	params := url.Values{"query": {query}}
	if id := strings.TrimSpace(string(req.ConversationID)); id != "" {
		params.Set("conversation_id", id)
	}
	if req.Limit > 0 {
		params.Set("limit", strconv.Itoa(req.Limit))
	}

	var resp wireSearch
	if err := c.getJSON(ctx, op, "/api/search", params, &resp); err != nil {
		return domain.SearchResults{}, err
	}

	out := domain.SearchResults{Query: resp.Query, Results: make([]domain.SearchHit, 0, len(resp.Results))}
	if out.Query == "" {
		out.Query = query
	}
	for _, hit := range resp.Results {
		out.Results = append(out.Results, domain.SearchHit{
			SpeakerLabel:    hit.SpeakerLabel,
			Text:            hit.Text,
			StartTime:       hit.StartTime,
			EndTime:         hit.EndTime,
			SimilarityScore: hit.SimilarityScore,
			ConversationID:  domain.ConversationID(hit.ConversationID),
		})
	}
	return out, nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
