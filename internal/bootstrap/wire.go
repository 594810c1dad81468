package bootstrap

import (
	"github.com/sirupsen/logrus"

	"parallelmind/internal/audio"
	"parallelmind/internal/config"
	"parallelmind/internal/domain"
	"parallelmind/internal/logging"
	"parallelmind/internal/ports"
	"parallelmind/internal/providers/backend"
	"parallelmind/internal/speakers"
	"parallelmind/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Config        config.Config
	Log           *logrus.Logger
	Backend       *backend.Client
	Capture       *usecase.CaptureController
	Conversations *usecase.ConversationResource
	Streamer      *usecase.SuggestionStreamer
	Speakers      *speakers.Names
}

// Build loads configuration and wires every dependency for the current runtime.
func Build(events ports.CaptureEvents) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	return Assemble(cfg, events), nil
}

// Assemble wires the runtime graph from an already resolved configuration.
func Assemble(cfg config.Config, events ports.CaptureEvents) Services {
	log := logging.New(cfg.Log.Level, cfg.Log.Format)

	client := backend.NewClient(backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout,
	}, log)

	capture := usecase.NewCaptureController(
		audio.NewMicrophone(cfg.Audio.RecorderCommand, log),
		client,
		events,
		usecase.SystemClock{},
		usecase.CaptureConfig{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			ChunkSize: cfg.Session.ChunkSize,
		},
		log,
	)

	if cfg.Path != "" {
		log.WithField("path", cfg.Path).Debug("config file loaded")
	}

	names, err := speakers.Load(cfg.Transcript.SpeakerNames)
	if err != nil {
		log.WithError(err).Warn("speaker names ignored")
		names = &speakers.Names{}
	}

	return Services{
		Config:        cfg,
		Log:           log,
		Backend:       client,
		Capture:       capture,
		Conversations: usecase.NewConversationResource(client, log),
		Streamer:      usecase.NewSuggestionStreamer(client, cfg.Insights.StreamTopK, log),
		Speakers:      names,
	}
}

// Insights builds an orchestrator for one conversation, gated on the shared
// conversation snapshot.
func (s Services) Insights(id domain.ConversationID, events ports.InsightEvents) *usecase.InsightOrchestrator {
	return usecase.NewInsightOrchestrator(
		id,
		s.Conversations,
		s.Backend,
		events,
		usecase.InsightConfig{
			SuggestPrompt: s.Config.Insights.SuggestPrompt,
			SearchLimit:   s.Config.Insights.SearchLimit,
		},
		s.Log,
	)
}
