package main

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"parallelmind/internal/bootstrap"
	"parallelmind/internal/domain"
)

func newMCPCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve conversation tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			services, err := c.services(nil)
			if err != nil {
				return err
			}
			// stdout carries the protocol.
			services.Log.SetOutput(cmd.ErrOrStderr())
			return server.ServeStdio(newMCPServer(services))
		},
	}
}

// conversationTools exposes read and insight operations to agents.
type conversationTools struct {
	services bootstrap.Services
}

func newMCPServer(services bootstrap.Services) *server.MCPServer {
	tools := &conversationTools{services: services}
	s := server.NewMCPServer("parallelmind", version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("get_conversation",
		mcp.WithDescription("Fetch a conversation with its diarized transcript"),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation id")),
	), tools.getConversation)

	s.AddTool(mcp.NewTool("list_conversations",
		mcp.WithDescription("List conversations, newest first"),
		mcp.WithNumber("skip", mcp.Description("Number of conversations to skip")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of conversations")),
	), tools.listConversations)

	s.AddTool(mcp.NewTool("summarize_conversation",
		mcp.WithDescription("Summarize a processed conversation"),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation id")),
	), tools.summarize)

	s.AddTool(mcp.NewTool("suggest_reply",
		mcp.WithDescription("Suggest what to say next in a processed conversation"),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation id")),
		mcp.WithString("query", mcp.Description("What the reply should address")),
	), tools.suggestReply)

	s.AddTool(mcp.NewTool("search_conversation",
		mcp.WithDescription("Search transcript segments by meaning"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
		mcp.WithString("conversation_id", mcp.Description("Restrict the search to one conversation")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results")),
	), tools.search)

	return s
}

func (t *conversationTools) getConversation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	conv, err := t.services.Conversations.Fetch(ctx, conversationArg(id))
	return jsonResult(t.services.Speakers.Conversation(conv), err)
}

func (t *conversationTools) listConversations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page, err := t.services.Backend.ListConversations(ctx, req.GetInt("skip", 0), req.GetInt("limit", 20))
	return jsonResult(page, err)
}

func (t *conversationTools) summarize(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	insights, err := openInsights(ctx, t.services, conversationArg(id))
	if err != nil {
		return jsonResult(nil, err)
	}
	summary, err := insights.Summarize(ctx)
	return jsonResult(summary, err)
}

func (t *conversationTools) suggestReply(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	insights, err := openInsights(ctx, t.services, conversationArg(id))
	if err != nil {
		return jsonResult(nil, err)
	}
	suggestions, err := insights.SuggestReply(ctx, req.GetString("query", ""))
	return jsonResult(suggestions, err)
}

func (t *conversationTools) search(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := req.GetInt("limit", t.services.Config.Insights.SearchLimit)
	results, err := t.services.Backend.Search(ctx, domain.SearchRequest{
		Query:          query,
		ConversationID: conversationArg(req.GetString("conversation_id", "")),
		Limit:          limit,
	})
	return jsonResult(results, err)
}

// jsonResult reports domain failures as tool errors so the agent sees them.
func jsonResult(value any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(raw)), nil
}

