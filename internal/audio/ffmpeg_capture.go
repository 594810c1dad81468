package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"parallelmind/internal/domain"
	"parallelmind/internal/ports"
)

const (
	defaultSampleRate  = 16000
	defaultChannels    = 1
	defaultInputFormat = "pulse"
	defaultInputDevice = "default"

	startupProbe = 250 * time.Millisecond
	stopGrace    = 1200 * time.Millisecond
)

// Microphone holds the input device through an ffmpeg subprocess that writes
// raw PCM s16le to stdout. One Microphone may have at most one live session.
type Microphone struct {
	command string
	log     logrus.FieldLogger

	mu   sync.Mutex
	live *micSession
}

func NewMicrophone(command string, log logrus.FieldLogger) *Microphone {
	if command == "" {
		command = "ffmpeg"
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Microphone{command: command, log: log.WithField("component", "microphone")}
}

// Start acquires the device. Every failure is reported as DeviceUnavailable.
func (m *Microphone) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	const op = "Microphone.Start"

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.live != nil && !m.live.stopped() {
		return nil, domain.E(domain.KindDeviceUnavailable, op, "device already in use", nil)
	}

	cfg = withDefaults(cfg)
	cmd := exec.CommandContext(ctx, m.command, captureArgs(cfg)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, domain.E(domain.KindDeviceUnavailable, op, "open capture pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, domain.E(domain.KindDeviceUnavailable, op, "launch recorder", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		detail := trimOutput(stderr.String())
		if err == nil {
			err = errors.New("recorder exited before capture started")
		}
		m.log.WithError(err).WithField("stderr", detail).Warn("device acquisition failed")
		return nil, domain.E(domain.KindDeviceUnavailable, op, detail, err)
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-waitErr
		return nil, domain.E(domain.KindDeviceUnavailable, op, "acquisition abandoned", ctx.Err())
	case <-time.After(startupProbe):
	}

	session := &micSession{
		stdout:  stdout,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
		done:    make(chan struct{}),
	}
	m.live = session
	m.log.WithFields(logrus.Fields{
		"device":     cfg.InputDevice,
		"format":     cfg.InputFormat,
		"sampleRate": cfg.SampleRate,
		"channels":   cfg.Channels,
	}).Info("device acquired")
	return session, nil
}

func withDefaults(cfg ports.AudioConfig) ports.AudioConfig {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = defaultSampleRate
	}
	if cfg.Channels <= 0 {
		cfg.Channels = defaultChannels
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = defaultInputFormat
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = defaultInputDevice
	}
	return cfg
}

func captureArgs(cfg ports.AudioConfig) []string {
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}
}

type micSession struct {
	stdout io.ReadCloser
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	stopOnce sync.Once
	stopErr  error
	done     chan struct{}
}

func (s *micSession) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *micSession) Close() error {
	return s.Stop()
}

// Stop interrupts the recorder, escalating to kill after a grace period.
// Safe to call more than once.
func (s *micSession) Stop() error {
	s.stopOnce.Do(func() {
		defer close(s.done)
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = ignoreExitStatus(err)
			}
		case <-time.After(stopGrace):
			if s.process != nil {
				_ = s.process.Kill()
			}
			if err, ok := <-s.waitErr; ok {
				s.stopErr = ignoreExitStatus(err)
			}
		}

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) && s.stopErr == nil {
			s.stopErr = closeErr
		}
		if s.stopErr != nil && s.stderr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, trimOutput(s.stderr.String()))
		}
	})
	return s.stopErr
}

func (s *micSession) stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// ignoreExitStatus treats a non-zero exit after interrupt as a clean stop.
func ignoreExitStatus(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func trimOutput(input string) string {
	return string(bytes.TrimSpace([]byte(input)))
}
