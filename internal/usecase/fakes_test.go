package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"parallelmind/internal/domain"
	"parallelmind/internal/ports"
)

func quietLogger() logrus.FieldLogger {
	logger, _ := test.NewNullLogger()
	return logger
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type fakeAudioCapture struct {
	mu       sync.Mutex
	sessions []*fakeAudioSession
	err      error
	calls    int

	// acquiring, when set, makes Start signal on it and then block until
	// ctx ends, like a device that never answers.
	acquiring chan struct{}
}

func (f *fakeAudioCapture) Start(ctx context.Context, _ ports.AudioConfig) (ports.AudioSession, error) {
	f.mu.Lock()
	acquiring := f.acquiring
	f.mu.Unlock()
	if acquiring != nil {
		acquiring <- struct{}{}
		<-ctx.Done()
		return nil, ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no audio session configured")
	}
	session := f.sessions[f.calls]
	f.calls++
	session.markStarted()
	return session, nil
}

// fakeAudioSession behaves like a live device: Read blocks until a chunk is
// fed, the device ends, or Stop is called.
type fakeAudioSession struct {
	chunks  chan []byte
	stopped chan struct{}

	mu        sync.Mutex
	started   bool
	stopCalls int
	stopErr   error
	stopOnce  sync.Once
	endOnce   sync.Once

	// stopGate, when set, holds Stop until it is closed.
	stopGate chan struct{}
}

func newFakeAudioSession(chunks ...[]byte) *fakeAudioSession {
	s := &fakeAudioSession{
		chunks:  make(chan []byte, 64),
		stopped: make(chan struct{}),
	}
	for _, chunk := range chunks {
		s.chunks <- chunk
	}
	return s
}

func (f *fakeAudioSession) markStarted() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
}

func (f *fakeAudioSession) Read(p []byte) (int, error) {
	select {
	case chunk, ok := <-f.chunks:
		if !ok {
			return 0, io.EOF
		}
		return copy(p, chunk), nil
	default:
	}
	select {
	case chunk, ok := <-f.chunks:
		if !ok {
			return 0, io.EOF
		}
		return copy(p, chunk), nil
	case <-f.stopped:
		return 0, io.EOF
	}
}

func (f *fakeAudioSession) Close() error { return f.Stop() }

func (f *fakeAudioSession) Stop() error {
	f.mu.Lock()
	f.stopCalls++
	err := f.stopErr
	gate := f.stopGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.stopOnce.Do(func() { close(f.stopped) })
	return err
}

// endDevice simulates the device going away without a Stop call.
func (f *fakeAudioSession) endDevice() {
	f.endOnce.Do(func() { close(f.chunks) })
}

func (f *fakeAudioSession) held() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started && f.stopCalls == 0
}

func (f *fakeAudioSession) stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	ticker *fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(_ time.Duration) ports.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticker = &fakeTicker{ch: make(chan time.Time)}
	return c.ticker
}

// tick delivers a tick at base+seconds and blocks until it is received.
func (c *fakeClock) tick(seconds int) {
	c.mu.Lock()
	ticker := c.ticker
	at := c.now.Add(time.Duration(seconds) * time.Second)
	c.mu.Unlock()
	ticker.ch <- at
}

func (c *fakeClock) tickerStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticker != nil && c.ticker.isStopped()
}

type fakeTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *fakeTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type fakeUploader struct {
	mu       sync.Mutex
	steps    []int64
	err      error
	result   domain.UploadResult
	payloads [][]byte
	block    chan struct{}
}

func (f *fakeUploader) Upload(ctx context.Context, audio domain.FinalizedAudio, progress ports.ProgressFunc) (domain.UploadResult, error) {
	f.mu.Lock()
	f.payloads = append(f.payloads, append([]byte(nil), audio.Data...))
	steps := append([]int64(nil), f.steps...)
	err := f.err
	result := f.result
	block := f.block
	f.mu.Unlock()

	for _, sent := range steps {
		progress(sent, audio.Size())
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return domain.UploadResult{}, ctx.Err()
		}
	}
	if err != nil {
		return domain.UploadResult{}, err
	}
	return result, nil
}

func (f *fakeUploader) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeUploader) uploadedPayloads() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.payloads...)
}

type stateEvent struct {
	state  domain.CaptureState
	reason domain.CaptureReason
}

type errorEvent struct {
	code   domain.ErrorCode
	detail string
}

type fakeCaptureEvents struct {
	mu        sync.Mutex
	states    []stateEvent
	elapsed   []int
	progress  []int
	completed []domain.UploadResult
	errors    []errorEvent
}

func (f *fakeCaptureEvents) CaptureStateChanged(state domain.CaptureState, reason domain.CaptureReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, stateEvent{state: state, reason: reason})
}

func (f *fakeCaptureEvents) ElapsedChanged(seconds int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.elapsed = append(f.elapsed, seconds)
}

func (f *fakeCaptureEvents) UploadProgress(percent int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress = append(f.progress, percent)
}

func (f *fakeCaptureEvents) UploadCompleted(result domain.UploadResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, result)
}

func (f *fakeCaptureEvents) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errorEvent{code: code, detail: detail})
}

func (f *fakeCaptureEvents) snapshotStates() []stateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]stateEvent(nil), f.states...)
}

func (f *fakeCaptureEvents) snapshotProgress() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.progress...)
}

func (f *fakeCaptureEvents) snapshotErrors() []errorEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]errorEvent(nil), f.errors...)
}

func (f *fakeCaptureEvents) lastState() stateEvent {
	states := f.snapshotStates()
	if len(states) == 0 {
		return stateEvent{}
	}
	return states[len(states)-1]
}
