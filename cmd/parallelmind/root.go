package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"parallelmind/internal/bootstrap"
	"parallelmind/internal/config"
	"parallelmind/internal/ports"
)

var (
	version = "dev"
	commit  = "unknown"
)

// cli holds the persistent flags shared by every command.
type cli struct {
	configPath string
	apiBase    string
	logLevel   string
	output     string
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "parallelmind",
		Short: "Record conversations and ask for summaries, replies and search",
		Long: `parallelmind records a conversation from the microphone, uploads it for
transcription and diarization, and asks the backend for insights.

Quick Start:
  parallelmind record --duration 2m      # Record, then upload
  parallelmind list                      # List conversations
  parallelmind show <id>                 # Show a transcript
  parallelmind insights <id>             # Summary and suggested replies`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "Config file (default ~/.config/parallelmind/config.yaml)")
	root.PersistentFlags().StringVar(&c.apiBase, "api", "", "Backend base URL")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	root.PersistentFlags().StringVarP(&c.output, "output", "o", "text", "Output format (text, json, yaml)")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(
		newRecordCmd(c),
		newUploadCmd(c),
		newListCmd(c),
		newShowCmd(c),
		newStatusCmd(c),
		newSummarizeCmd(c),
		newSuggestCmd(c),
		newSearchCmd(c),
		newInsightsCmd(c),
		newPingCmd(c),
		newTUICmd(c),
		newMCPCmd(c),
	)
	return root
}

func (c *cli) loadConfig() (config.Config, error) {
	if c.configPath != "" {
		if err := os.Setenv("PARALLELMIND_CONFIG", c.configPath); err != nil {
			return config.Config{}, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if api := strings.TrimSpace(c.apiBase); api != "" {
		cfg.Backend.BaseURL = strings.TrimRight(api, "/")
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	return cfg, nil
}

// services wires the runtime graph for one command invocation.
func (c *cli) services(events ports.CaptureEvents) (bootstrap.Services, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return bootstrap.Services{}, err
	}
	return bootstrap.Assemble(cfg, events), nil
}
