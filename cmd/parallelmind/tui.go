package main

import (
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"parallelmind/internal/domain"
	"parallelmind/internal/ports"
	"parallelmind/internal/tui"
)

func newTUICmd(c *cli) *cobra.Command {
	var conversation string
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Interactive terminal interface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			events := tui.NewEvents()
			defer events.Close()

			services, err := c.services(events)
			if err != nil {
				return err
			}
			// Logs would corrupt the screen.
			services.Log.SetOutput(io.Discard)

			model := tui.New(cmd.Context(), tui.Deps{
				Capture:       services.Capture,
				Conversations: services.Conversations,
				NewInsights: func(id domain.ConversationID, insightEvents ports.InsightEvents) tui.Insights {
					return services.Insights(id, insightEvents)
				},
				Speakers: services.Speakers,
				Events:   events,
			}, conversationArg(conversation))

			_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}
	cmd.Flags().StringVar(&conversation, "conversation", "", "Open this conversation on start")
	return cmd
}
