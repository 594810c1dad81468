package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"parallelmind/internal/bootstrap"
	"parallelmind/internal/domain"
	"parallelmind/internal/ui"
	"parallelmind/internal/usecase"
)

// openInsights fetches the conversation snapshot insights are gated on. The
// orchestrator is keyed by the id the backend returned, which may differ in
// spelling from the one typed (007 and 7).
func openInsights(ctx context.Context, services bootstrap.Services, id domain.ConversationID) (*usecase.InsightOrchestrator, error) {
	conv, err := services.Conversations.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	return services.Insights(conv.ID, nil), nil
}

func newSummarizeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "summarize <conversation-id>",
		Short: "Summarize a processed conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := c.services(nil)
			if err != nil {
				return err
			}
			insights, err := openInsights(cmd.Context(), services, conversationArg(args[0]))
			if err != nil {
				return err
			}
			summary, err := insights.Summarize(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), c.output, summary, func() string {
				return ui.SummaryBlock(summary)
			})
		},
	}
}

func newSuggestCmd(c *cli) *cobra.Command {
	var stream bool
	cmd := &cobra.Command{
		Use:   "suggest <conversation-id> [query]",
		Short: "Suggest replies for a processed conversation",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := c.services(nil)
			if err != nil {
				return err
			}
			id := conversationArg(args[0])
			query := ""
			if len(args) == 2 {
				query = args[1]
			}

			if stream {
				out := cmd.OutOrStdout()
				result, err := services.Streamer.Stream(cmd.Context(), id, query, func(chunk string) {
					fmt.Fprint(out, chunk)
				})
				fmt.Fprintln(out)
				if err != nil {
					return err
				}
				if len(result.Sources) > 0 && c.output == "text" {
					fmt.Fprintln(out, ui.DimStyle.Render(fmt.Sprintf("(%d sources)", len(result.Sources))))
				}
				return nil
			}

			insights, err := openInsights(cmd.Context(), services, id)
			if err != nil {
				return err
			}
			suggestions, err := insights.SuggestReply(cmd.Context(), query)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), c.output, suggestions, func() string {
				return ui.SuggestionsBlock(suggestions)
			})
		},
	}
	cmd.Flags().BoolVar(&stream, "stream", false, "Stream the suggestion as it is generated")
	return cmd
}

func newSearchCmd(c *cli) *cobra.Command {
	var (
		conversation string
		limit        int
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search conversation segments by meaning",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if limit > 0 {
				cfg.Insights.SearchLimit = limit
			}
			services := bootstrap.Assemble(cfg, nil)
			query := strings.Join(args, " ")

			var results domain.SearchResults
			if id := conversationArg(conversation); id != "" {
				results, err = services.Insights(id, nil).Search(cmd.Context(), query)
			} else {
				results, err = services.Backend.Search(cmd.Context(), domain.SearchRequest{
					Query: query,
					Limit: cfg.Insights.SearchLimit,
				})
			}
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), c.output, results, func() string {
				return ui.SearchBlock(results)
			})
		},
	}
	cmd.Flags().StringVar(&conversation, "conversation", "", "Restrict the search to one conversation")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results (default from config)")
	return cmd
}

// insightReport is the combined output of the insights command. A kind
// that failed carries its error instead of a result.
type insightReport struct {
	Summary     *domain.Summary          `json:"summary,omitempty" yaml:"summary,omitempty"`
	Suggestions *domain.ReplySuggestions `json:"suggestions,omitempty" yaml:"suggestions,omitempty"`
	Search      *domain.SearchResults    `json:"search,omitempty" yaml:"search,omitempty"`
	Errors      map[string]string        `json:"errors,omitempty" yaml:"errors,omitempty"`
}

func newInsightsCmd(c *cli) *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "insights <conversation-id>",
		Short: "Run summary, suggestions and search together",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := c.services(nil)
			if err != nil {
				return err
			}
			insights, err := openInsights(cmd.Context(), services, conversationArg(args[0]))
			if err != nil {
				return err
			}
			report := runAllInsights(cmd.Context(), insights, query)
			if report.Summary == nil && report.Suggestions == nil && report.Search == nil {
				return errors.New("every insight request failed: " + joinErrors(report.Errors))
			}
			return render(cmd.OutOrStdout(), c.output, report, func() string {
				return report.text()
			})
		},
	}
	cmd.Flags().StringVar(&query, "query", "", "Also search for this text")
	return cmd
}

// runAllInsights issues each kind concurrently. Kinds fail independently,
// so no goroutine returns an error to the group.
func runAllInsights(ctx context.Context, insights *usecase.InsightOrchestrator, query string) insightReport {
	var (
		g      errgroup.Group
		mu     sync.Mutex
		report = insightReport{Errors: map[string]string{}}
	)
	fail := func(kind domain.InsightKind, err error) {
		mu.Lock()
		defer mu.Unlock()
		report.Errors[string(kind)] = err.Error()
	}

	g.Go(func() error {
		summary, err := insights.Summarize(ctx)
		if err != nil {
			fail(domain.InsightSummary, err)
			return nil
		}
		mu.Lock()
		report.Summary = &summary
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		suggestions, err := insights.SuggestReply(ctx, "")
		if err != nil {
			fail(domain.InsightSuggestion, err)
			return nil
		}
		mu.Lock()
		report.Suggestions = &suggestions
		mu.Unlock()
		return nil
	})
	if strings.TrimSpace(query) != "" {
		g.Go(func() error {
			results, err := insights.Search(ctx, query)
			if err != nil {
				fail(domain.InsightSearch, err)
				return nil
			}
			mu.Lock()
			report.Search = &results
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(report.Errors) == 0 {
		report.Errors = nil
	}
	return report
}

func (r insightReport) text() string {
	var sections []string
	if r.Summary != nil {
		sections = append(sections, ui.SummaryBlock(*r.Summary))
	}
	if r.Suggestions != nil {
		sections = append(sections, ui.SuggestionsBlock(*r.Suggestions))
	}
	if r.Search != nil {
		sections = append(sections, ui.SearchBlock(*r.Search))
	}
	for _, kind := range domain.InsightKinds {
		if msg, ok := r.Errors[string(kind)]; ok {
			sections = append(sections, ui.ErrorStyle.Render(string(kind)+" failed: ")+msg)
		}
	}
	return strings.Join(sections, "\n\n")
}

func joinErrors(errs map[string]string) string {
	parts := make([]string, 0, len(errs))
	for _, kind := range domain.InsightKinds {
		if msg, ok := errs[string(kind)]; ok {
			parts = append(parts, string(kind)+": "+msg)
		}
	}
	return strings.Join(parts, "; ")
}
