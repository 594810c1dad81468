package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"parallelmind/internal/domain"
	"parallelmind/internal/ui"
)

func newListCmd(c *cli) *cobra.Command {
	var skip, limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List conversations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			services, err := c.services(nil)
			if err != nil {
				return err
			}
			page, err := services.Backend.ListConversations(cmd.Context(), skip, limit)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), c.output, page, func() string {
				return ui.ConversationTable(page)
			})
		},
	}
	cmd.Flags().IntVar(&skip, "skip", 0, "Number of conversations to skip")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of conversations to list")
	return cmd
}

func newShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show <conversation-id>",
		Short: "Show a conversation and its transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := c.services(nil)
			if err != nil {
				return err
			}
			conv, err := services.Conversations.Fetch(cmd.Context(), conversationArg(args[0]))
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), c.output, conv, func() string {
				return ui.ConversationHeader(conv) + "\n\n" + ui.Transcript(services.Speakers.Segments(conv.Segments))
			})
		},
	}
}

func newStatusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status <conversation-id>",
		Short: "Show the processing status of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := c.services(nil)
			if err != nil {
				return err
			}
			info, err := services.Backend.ConversationStatus(cmd.Context(), conversationArg(args[0]))
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), c.output, info, func() string {
				return fmt.Sprintf("%s  %s  %s", info.ConversationID, ui.StatusBadge(info.Status), info.Filename)
			})
		},
	}
}

func newPingCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			services, err := c.services(nil)
			if err != nil {
				return err
			}
			status, err := services.Backend.Health(cmd.Context())
			if err != nil {
				return err
			}
			result := map[string]string{"backend": services.Backend.BaseURL(), "status": status}
			return render(cmd.OutOrStdout(), c.output, result, func() string {
				return services.Backend.BaseURL() + ": " + status
			})
		},
	}
}

func conversationArg(raw string) domain.ConversationID {
	return domain.ConversationID(strings.TrimSpace(raw))
}
