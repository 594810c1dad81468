package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"parallelmind/internal/domain"
	"parallelmind/internal/ports"
)

// CaptureConfig controls device capture.
type CaptureConfig struct {
	Audio     ports.AudioConfig
	ChunkSize int
}

// CaptureController owns one capture session: it records from the device,
// finalizes the audio and uploads it. Transitions are totally ordered; a
// transition attempted while another is in flight fails with
// PreconditionNotMet.
type CaptureController struct {
	audio     ports.AudioCapture
	uploader  ports.Uploader
	events    ports.CaptureEvents
	clock     ports.Clock
	finalizer audioFinalizer
	cfg       CaptureConfig
	log       logrus.FieldLogger

	mu            sync.Mutex
	state         domain.CaptureState
	pending       bool
	cancelAcquire context.CancelFunc
	abandoned     bool
	elapsed       int
	rec           *activeRecording
	finalized     *domain.FinalizedAudio
	uploadPercent int
}

func NewCaptureController(
	audio ports.AudioCapture,
	uploader ports.Uploader,
	events ports.CaptureEvents,
	clock ports.Clock,
	cfg CaptureConfig,
	log logrus.FieldLogger,
) *CaptureController {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if events == nil {
		events = noopCaptureEvents{}
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CaptureController{
		audio:     audio,
		uploader:  uploader,
		events:    events,
		clock:     clock,
		finalizer: newAudioFinalizer(cfg.Audio),
		cfg:       cfg,
		log:       log.WithField("component", "capture"),
		state:     domain.CaptureStateIdle,
	}
}

// Start acquires the device and begins recording. Valid only from Idle.
// Abort while the device is being acquired abandons the attempt.
func (c *CaptureController) Start(ctx context.Context) error {
	const op = "CaptureController.Start"

	recCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if err := c.require(op, domain.CaptureStateIdle); err != nil {
		c.mu.Unlock()
		cancel()
		return err
	}
	c.pending = true
	c.cancelAcquire = cancel
	c.abandoned = false
	c.mu.Unlock()

	session, err := c.audio.Start(recCtx, c.cfg.Audio)

	c.mu.Lock()
	abandoned := c.abandoned
	c.pending = false
	c.cancelAcquire = nil
	c.abandoned = false
	var rec *activeRecording
	if err == nil && !abandoned {
		rec = &activeRecording{
			cancel:    cancel,
			audio:     session,
			ticker:    c.clock.NewTicker(time.Second),
			startedAt: c.clock.Now(),
			pumpDone:  make(chan struct{}),
			tickDone:  make(chan struct{}),
			stopTick:  make(chan struct{}),
			finished:  make(chan struct{}),
		}
		c.rec = rec
		c.state = domain.CaptureStateRecording
		c.elapsed = 0
		c.uploadPercent = 0
	}
	c.mu.Unlock()

	if abandoned {
		if err == nil {
			if stopErr := session.Stop(); stopErr != nil {
				c.log.WithError(stopErr).Warn("device did not stop cleanly")
			}
		}
		cancel()
		c.log.Info("device acquisition abandoned")
		return domain.E(domain.KindDeviceUnavailable, op, "device acquisition abandoned", context.Canceled)
	}
	if err != nil {
		cancel()
		if !domain.IsKind(err, domain.KindDeviceUnavailable) {
			err = domain.E(domain.KindDeviceUnavailable, op, "microphone unavailable", err)
		}
		c.log.WithError(err).Warn("recording not started")
		c.events.SessionError(domain.ErrorCodeDevice, err.Error())
		return err
	}

	go c.runPump(rec)
	go c.runTicker(rec)

	c.log.Info("recording started")
	c.events.CaptureStateChanged(domain.CaptureStateRecording, domain.CaptureReasonRecordingStarted)
	c.events.ElapsedChanged(0)
	return nil
}

// Stop releases the device and finalizes the recorded audio. If the device
// has already ended the recording, Stop waits for that stop to complete.
func (c *CaptureController) Stop() error {
	const op = "CaptureController.Stop"

	c.mu.Lock()
	if err := c.require(op, domain.CaptureStateRecording); err != nil {
		c.mu.Unlock()
		return err
	}
	rec := c.rec
	if rec.finishing {
		c.mu.Unlock()
		<-rec.finished
		return nil
	}
	rec.finishing = true
	c.mu.Unlock()

	c.finishRecording(rec, domain.CaptureReasonRecordingStopped)
	return nil
}

// Upload transfers the finalized audio. On success the session returns to
// Idle; on failure it returns to Stopped with the audio retained.
func (c *CaptureController) Upload(ctx context.Context) (domain.UploadResult, error) {
	const op = "CaptureController.Upload"

	c.mu.Lock()
	if err := c.require(op, domain.CaptureStateStopped); err != nil {
		c.mu.Unlock()
		return domain.UploadResult{}, err
	}
	if c.finalized == nil {
		c.mu.Unlock()
		return domain.UploadResult{}, domain.E(domain.KindPreconditionNotMet, op, "no finalized audio", domain.ErrInvalidTransition)
	}
	payload := *c.finalized
	c.state = domain.CaptureStateUploading
	c.uploadPercent = 0
	c.mu.Unlock()

	c.events.CaptureStateChanged(domain.CaptureStateUploading, domain.CaptureReasonUploadStarted)

	job := NewUploadJob(c.uploader, func(percent int) {
		c.mu.Lock()
		c.uploadPercent = percent
		c.mu.Unlock()
		c.events.UploadProgress(percent)
	})
	result, err := job.Run(ctx, payload)
	if err != nil {
		c.mu.Lock()
		c.state = domain.CaptureStateStopped
		c.mu.Unlock()

		c.log.WithError(err).WithField("bytes", payload.Size()).Warn("upload failed; audio retained")
		c.events.SessionError(domain.ErrorCodeUpload, err.Error())
		c.events.CaptureStateChanged(domain.CaptureStateStopped, domain.CaptureReasonUploadFailed)
		return domain.UploadResult{}, err
	}

	c.mu.Lock()
	c.state = domain.CaptureStateIdle
	c.finalized = nil
	c.elapsed = 0
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{
		"conversation": result.ConversationID,
		"status":       result.Status,
	}).Info("upload complete")
	c.events.UploadCompleted(result)
	c.events.ElapsedChanged(0)
	c.events.CaptureStateChanged(domain.CaptureStateIdle, domain.CaptureReasonUploadSucceeded)
	return result, nil
}

// Discard drops the finalized audio. Valid only from Stopped.
func (c *CaptureController) Discard() error {
	const op = "CaptureController.Discard"

	c.mu.Lock()
	if err := c.require(op, domain.CaptureStateStopped); err != nil {
		c.mu.Unlock()
		return err
	}
	c.state = domain.CaptureStateIdle
	c.finalized = nil
	c.elapsed = 0
	c.mu.Unlock()

	c.events.ElapsedChanged(0)
	c.events.CaptureStateChanged(domain.CaptureStateIdle, domain.CaptureReasonRecordingDiscarded)
	return nil
}

// Abort abandons the session from Recording or Stopped and ends in Idle
// with the device released. While the device is still being acquired it
// cancels the acquisition instead; Start then fails.
func (c *CaptureController) Abort() error {
	c.mu.Lock()
	if c.pending && c.cancelAcquire != nil {
		c.abandoned = true
		c.cancelAcquire()
		c.mu.Unlock()
		return nil
	}
	state := c.state
	c.mu.Unlock()

	switch state {
	case domain.CaptureStateRecording:
		if err := c.Stop(); err != nil {
			return err
		}
		return c.Discard()
	case domain.CaptureStateStopped:
		return c.Discard()
	default:
		return domain.E(domain.KindPreconditionNotMet, "CaptureController.Abort", "nothing to abort", domain.ErrInvalidTransition)
	}
}

// Status returns a snapshot of the session.
func (c *CaptureController) Status() domain.CaptureStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	status := domain.CaptureStatus{
		State:          c.state,
		ElapsedSeconds: c.elapsed,
		HasAudio:       c.finalized != nil,
	}
	if c.finalized != nil {
		status.AudioBytes = c.finalized.Size()
	}
	if c.state == domain.CaptureStateUploading {
		status.UploadPercent = c.uploadPercent
	}
	return status
}

// FinalizedAudio returns the retained recording while one exists.
func (c *CaptureController) FinalizedAudio() (domain.FinalizedAudio, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finalized == nil {
		return domain.FinalizedAudio{}, false
	}
	return *c.finalized, true
}

// WaitStopped blocks until the session leaves Recording or ctx ends.
func (c *CaptureController) WaitStopped(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if c.Status().State != domain.CaptureStateRecording {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *CaptureController) require(op string, want domain.CaptureState) error {
	if c.pending || c.state != want {
		return domain.E(domain.KindPreconditionNotMet, op, "capture is "+string(c.state), domain.ErrInvalidTransition)
	}
	return nil
}

func (c *CaptureController) runPump(rec *activeRecording) {
	err := pumpAudioChunks(rec.audio, rec, c.cfg.ChunkSize, rec.pumpDone)

	c.mu.Lock()
	if rec.finishing {
		c.mu.Unlock()
		return
	}
	rec.finishing = true
	c.mu.Unlock()

	entry := c.log.WithField("chunks", rec.chunkCount())
	if err != nil && !errors.Is(err, io.EOF) {
		entry = entry.WithError(err)
	}
	entry.Warn("device ended recording")
	c.events.SessionError(domain.ErrorCodeDevice, "recording device stopped unexpectedly")
	c.finishRecording(rec, domain.CaptureReasonDeviceLost)
}

func (c *CaptureController) runTicker(rec *activeRecording) {
	defer close(rec.tickDone)
	for {
		select {
		case <-rec.stopTick:
			return
		case now := <-rec.ticker.C():
			seconds := int(now.Sub(rec.startedAt) / time.Second)

			c.mu.Lock()
			changed := c.rec == rec && c.state == domain.CaptureStateRecording && seconds > c.elapsed
			if changed {
				c.elapsed = seconds
			}
			c.mu.Unlock()

			if changed {
				c.events.ElapsedChanged(seconds)
			}
		}
	}
}

// finishRecording runs the Recording -> Stopped edge. The caller must have
// set rec.finishing under c.mu.
func (c *CaptureController) finishRecording(rec *activeRecording, reason domain.CaptureReason) {
	close(rec.stopTick)
	rec.ticker.Stop()
	<-rec.tickDone

	if err := rec.audio.Stop(); err != nil {
		c.log.WithError(err).Warn("device did not stop cleanly")
		c.events.SessionError(domain.ErrorCodeAudioStop, "failed to stop audio capture cleanly")
	}
	rec.cancel()
	<-rec.pumpDone

	audio := c.finalizer.Finalize(rec.takeChunks())

	c.mu.Lock()
	c.rec = nil
	c.state = domain.CaptureStateStopped
	c.finalized = &audio
	c.mu.Unlock()
	close(rec.finished)

	c.log.WithFields(logrus.Fields{
		"bytes":    audio.Size(),
		"duration": audio.Duration.String(),
		"reason":   reason,
	}).Info("recording stopped")
	c.events.CaptureStateChanged(domain.CaptureStateStopped, reason)
}

type noopCaptureEvents struct{}

func (noopCaptureEvents) CaptureStateChanged(domain.CaptureState, domain.CaptureReason) {}
func (noopCaptureEvents) ElapsedChanged(int)                                            {}
func (noopCaptureEvents) UploadProgress(int)                                            {}
func (noopCaptureEvents) UploadCompleted(domain.UploadResult)                           {}
func (noopCaptureEvents) SessionError(domain.ErrorCode, string)                         {}
