package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultBaseURL       = "http://localhost:8000"
	defaultHTTPTimeout   = 60 * time.Second
	defaultSampleRate    = 16000
	defaultChannels      = 1
	defaultChunkSize     = 4096
	defaultSearchLimit   = 10
	defaultStreamTopK    = 5
	defaultSuggestPrompt = "What should I say next?"
)

// Config stores runtime configuration for the client.
type Config struct {
	Backend    BackendConfig    `yaml:"backend"`
	Audio      AudioConfig      `yaml:"audio"`
	Session    SessionConfig    `yaml:"session"`
	Insights   InsightsConfig   `yaml:"insights"`
	Transcript TranscriptConfig `yaml:"transcript"`
	Log        LogConfig        `yaml:"log"`

	// Path is the config file that was read, if any.
	Path string `yaml:"-"`
}

type BackendConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type AudioConfig struct {
	RecorderCommand string `yaml:"recorder_command"`
	InputFormat     string `yaml:"input_format"`
	InputDevice     string `yaml:"input_device"`
	SampleRate      int    `yaml:"sample_rate"`
	Channels        int    `yaml:"channels"`
}

type SessionConfig struct {
	ChunkSize int `yaml:"chunk_size"`
}

type InsightsConfig struct {
	SuggestPrompt string `yaml:"suggest_prompt"`
	SearchLimit   int    `yaml:"search_limit"`
	StreamTopK    int    `yaml:"stream_top_k"`
}

// TranscriptConfig controls how transcripts are displayed.
type TranscriptConfig struct {
	// SpeakerNames is a file mapping speaker labels to display names.
	SpeakerNames string `yaml:"speaker_names"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() Config {
	return Config{
		Backend: BackendConfig{
			BaseURL: defaultBaseURL,
			Timeout: defaultHTTPTimeout,
		},
		Audio: AudioConfig{
			RecorderCommand: "ffmpeg",
			InputFormat:     "pulse",
			InputDevice:     "default",
			SampleRate:      defaultSampleRate,
			Channels:        defaultChannels,
		},
		Session: SessionConfig{ChunkSize: defaultChunkSize},
		Insights: InsightsConfig{
			SuggestPrompt: defaultSuggestPrompt,
			SearchLimit:   defaultSearchLimit,
			StreamTopK:    defaultStreamTopK,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load resolves configuration from defaults, then the YAML file, then
// environment variables.
func Load() (Config, error) {
	cfg := Defaults()

	path, explicit, err := configPath()
	if err != nil {
		return Config{}, err
	}
	if err := mergeFile(&cfg, path, explicit); err != nil {
		return Config{}, err
	}
	if cfg.Transcript.SpeakerNames == "" {
		cfg.Transcript.SpeakerNames = filepath.Join(filepath.Dir(path), "speakers")
	}

	cfg.Backend.BaseURL = envOrDefault("PARALLELMIND_API_BASE", cfg.Backend.BaseURL)
	cfg.Backend.Timeout = time.Duration(envOrDefaultInt("PARALLELMIND_HTTP_TIMEOUT_SECONDS", int(cfg.Backend.Timeout/time.Second))) * time.Second

	cfg.Audio.RecorderCommand = envOrDefault("PARALLELMIND_FFMPEG_COMMAND", cfg.Audio.RecorderCommand)
	cfg.Audio.InputFormat = envOrDefault("PARALLELMIND_AUDIO_INPUT_FORMAT", cfg.Audio.InputFormat)
	cfg.Audio.InputDevice = firstNonEmpty(
		os.Getenv("PARALLELMIND_AUDIO_INPUT_DEVICE"),
		os.Getenv("PULSE_SOURCE"),
		cfg.Audio.InputDevice,
	)
	cfg.Audio.SampleRate = envOrDefaultInt("PARALLELMIND_SAMPLE_RATE", cfg.Audio.SampleRate)
	cfg.Audio.Channels = envOrDefaultInt("PARALLELMIND_CHANNELS", cfg.Audio.Channels)

	cfg.Session.ChunkSize = envOrDefaultInt("PARALLELMIND_AUDIO_CHUNK_SIZE", cfg.Session.ChunkSize)

	cfg.Insights.SuggestPrompt = envOrDefault("PARALLELMIND_SUGGEST_PROMPT", cfg.Insights.SuggestPrompt)
	cfg.Insights.SearchLimit = envOrDefaultInt("PARALLELMIND_SEARCH_LIMIT", cfg.Insights.SearchLimit)
	cfg.Insights.StreamTopK = envOrDefaultInt("PARALLELMIND_STREAM_TOP_K", cfg.Insights.StreamTopK)

	cfg.Transcript.SpeakerNames = envOrDefault("PARALLELMIND_SPEAKER_NAMES", cfg.Transcript.SpeakerNames)

	cfg.Log.Level = envOrDefault("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envOrDefault("LOG_FORMAT", cfg.Log.Format)

	normalize(&cfg)
	return cfg, nil
}

func configPath() (string, bool, error) {
	if path := strings.TrimSpace(os.Getenv("PARALLELMIND_CONFIG")); path != "" {
		return path, true, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", false, errors.New("could not determine home directory")
	}
	return filepath.Join(home, ".config", "parallelmind", "config.yaml"), false, nil
}

// mergeFile overlays the non-zero values of the YAML file onto cfg. A
// missing default file is not an error; a missing explicit one is.
func mergeFile(cfg *Config, path string, explicit bool) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var file Config
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	overlayString(&cfg.Backend.BaseURL, file.Backend.BaseURL)
	if file.Backend.Timeout > 0 {
		cfg.Backend.Timeout = file.Backend.Timeout
	}
	overlayString(&cfg.Audio.RecorderCommand, file.Audio.RecorderCommand)
	overlayString(&cfg.Audio.InputFormat, file.Audio.InputFormat)
	overlayString(&cfg.Audio.InputDevice, file.Audio.InputDevice)
	overlayInt(&cfg.Audio.SampleRate, file.Audio.SampleRate)
	overlayInt(&cfg.Audio.Channels, file.Audio.Channels)
	overlayInt(&cfg.Session.ChunkSize, file.Session.ChunkSize)
	overlayString(&cfg.Insights.SuggestPrompt, file.Insights.SuggestPrompt)
	overlayInt(&cfg.Insights.SearchLimit, file.Insights.SearchLimit)
	overlayInt(&cfg.Insights.StreamTopK, file.Insights.StreamTopK)
	overlayString(&cfg.Transcript.SpeakerNames, file.Transcript.SpeakerNames)
	overlayString(&cfg.Log.Level, file.Log.Level)
	overlayString(&cfg.Log.Format, file.Log.Format)

	cfg.Path = path
	return nil
}

func normalize(cfg *Config) {
	cfg.Backend.BaseURL = strings.TrimRight(cfg.Backend.BaseURL, "/")
	if cfg.Backend.BaseURL == "" {
		cfg.Backend.BaseURL = defaultBaseURL
	}
	if cfg.Backend.Timeout <= 0 {
		cfg.Backend.Timeout = defaultHTTPTimeout
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = defaultSampleRate
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = defaultChannels
	}
	if cfg.Session.ChunkSize < 256 {
		cfg.Session.ChunkSize = defaultChunkSize
	}
	if cfg.Insights.SearchLimit <= 0 {
		cfg.Insights.SearchLimit = defaultSearchLimit
	}
	if cfg.Insights.StreamTopK <= 0 {
		cfg.Insights.StreamTopK = defaultStreamTopK
	}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)
}

func overlayString(dst *string, value string) {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		*dst = trimmed
	}
}

func overlayInt(dst *int, value int) {
	if value != 0 {
		*dst = value
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
