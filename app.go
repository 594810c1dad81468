package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"parallelmind/internal/bootstrap"
	"parallelmind/internal/domain"
	"parallelmind/internal/ui"
	"parallelmind/internal/usecase"
)

const (
	eventCapture        = "parallelmind:capture"
	eventElapsed        = "parallelmind:elapsed"
	eventUploadProgress = "parallelmind:upload-progress"
	eventUploadComplete = "parallelmind:upload-complete"
	eventInsight        = "parallelmind:insight"
	eventSuggestChunk   = "parallelmind:suggestion-chunk"
	eventError          = "parallelmind:error"
)

// App is the Wails application root.
type App struct {
	ctx  context.Context
	emit func(ctx context.Context, name string, data ...interface{})

	services bootstrap.Services
	bootErr  error

	mu       sync.Mutex
	insights *usecase.InsightOrchestrator
}

func NewApp() *App {
	return &App{emit: runtime.EventsEmit}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	a.CaptureStateChanged(domain.CaptureStateIdle, domain.CaptureReasonReady)
}

func (a *App) shutdown(_ context.Context) {
	if a.services.Capture == nil {
		return
	}
	if err := a.services.Capture.Abort(); err != nil && !errors.Is(err, domain.ErrInvalidTransition) {
		a.services.Log.WithError(err).Warn("release device on shutdown")
	}
}

// StartRecording acquires the microphone and starts the capture timer.
func (a *App) StartRecording() (domain.CaptureStatus, error) {
	if err := a.requireReady(); err != nil {
		return domain.CaptureStatus{}, err
	}
	if err := a.services.Capture.Start(a.ctx); err != nil {
		return a.services.Capture.Status(), err
	}
	return a.services.Capture.Status(), nil
}

// StopRecording releases the device and finalizes the recording.
func (a *App) StopRecording() (domain.CaptureStatus, error) {
	if err := a.requireReady(); err != nil {
		return domain.CaptureStatus{}, err
	}
	if err := a.services.Capture.Stop(); err != nil {
		return a.services.Capture.Status(), err
	}
	return a.services.Capture.Status(), nil
}

// UploadRecording transfers the finalized recording. The recording is kept
// for a retry when the upload fails.
func (a *App) UploadRecording() (domain.UploadResult, error) {
	if err := a.requireReady(); err != nil {
		return domain.UploadResult{}, err
	}
	return a.services.Capture.Upload(a.ctx)
}

// DiscardRecording drops a stopped recording without uploading it.
func (a *App) DiscardRecording() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Capture.Discard()
}

// AbortRecording leaves the capture screen, releasing the device if held.
func (a *App) AbortRecording() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.services.Capture.Abort(); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return nil
		}
		return err
	}
	return nil
}

// GetCaptureStatus returns the current capture session status.
func (a *App) GetCaptureStatus() domain.CaptureStatus {
	if a.services.Capture == nil {
		return domain.CaptureStatus{State: domain.CaptureStateIdle}
	}
	return a.services.Capture.Status()
}

// OpenConversation fetches a conversation and makes it the target of
// insight requests. Insights are keyed by the id the backend returns, so
// 007 and 7 open the same conversation. Opening a different conversation
// starts with fresh insight state.
func (a *App) OpenConversation(id string) (domain.Conversation, error) {
	if err := a.requireReady(); err != nil {
		return domain.Conversation{}, err
	}
	convID := domain.ConversationID(strings.TrimSpace(id))

	conv, err := a.fetch(convID)
	if err != nil {
		a.mu.Lock()
		if a.insights != nil && a.insights.ConversationID() != convID {
			a.services.Conversations.Clear()
			a.insights = nil
		}
		a.mu.Unlock()
		return domain.Conversation{}, err
	}

	a.mu.Lock()
	if a.insights == nil || a.insights.ConversationID() != conv.ID {
		a.insights = a.services.Insights(conv.ID, a)
	}
	a.mu.Unlock()
	return conv, nil
}

// RefreshConversation re-fetches the open conversation, picking up status
// changes made by the backend.
func (a *App) RefreshConversation() (domain.Conversation, error) {
	orchestrator, err := a.currentInsights()
	if err != nil {
		return domain.Conversation{}, err
	}
	return a.fetch(orchestrator.ConversationID())
}

func (a *App) fetch(id domain.ConversationID) (domain.Conversation, error) {
	conv, err := a.services.Conversations.Fetch(a.ctx, id)
	if err != nil {
		a.SessionError(domain.ErrorCodeFetch, err.Error())
		return domain.Conversation{}, err
	}
	return a.services.Speakers.Conversation(conv), nil
}

// Summarize requests a summary of the open conversation.
func (a *App) Summarize() (domain.Summary, error) {
	orchestrator, err := a.currentInsights()
	if err != nil {
		return domain.Summary{}, err
	}
	result, err := orchestrator.Summarize(a.ctx)
	a.reportInsightError(err)
	return result, err
}

// SuggestReply requests suggested replies for the open conversation.
func (a *App) SuggestReply(query string) (domain.ReplySuggestions, error) {
	orchestrator, err := a.currentInsights()
	if err != nil {
		return domain.ReplySuggestions{}, err
	}
	result, err := orchestrator.SuggestReply(a.ctx, query)
	a.reportInsightError(err)
	return result, err
}

// StreamSuggestion streams a suggestion for the open conversation, emitting
// each chunk as it arrives.
func (a *App) StreamSuggestion(text string) (usecase.StreamedSuggestion, error) {
	orchestrator, err := a.currentInsights()
	if err != nil {
		return usecase.StreamedSuggestion{}, err
	}
	result, err := a.services.Streamer.Stream(a.ctx, orchestrator.ConversationID(), text, func(chunk string) {
		a.send(eventSuggestChunk, map[string]string{"content": chunk})
	})
	a.reportInsightError(err)
	return result, err
}

// Search runs a semantic search scoped to the open conversation.
func (a *App) Search(query string) (domain.SearchResults, error) {
	orchestrator, err := a.currentInsights()
	if err != nil {
		return domain.SearchResults{}, err
	}
	result, err := orchestrator.Search(a.ctx, query)
	a.reportInsightError(err)
	return result, err
}

// GetInsightStatus returns the busy/result state of every insight kind.
func (a *App) GetInsightStatus() []domain.InsightState {
	a.mu.Lock()
	orchestrator := a.insights
	a.mu.Unlock()

	if orchestrator == nil {
		states := make([]domain.InsightState, 0, len(domain.InsightKinds))
		for _, kind := range domain.InsightKinds {
			states = append(states, domain.InsightState{Kind: kind})
		}
		return states
	}
	return orchestrator.States()
}

// CopyReply places a suggested reply on the clipboard.
func (a *App) CopyReply(text string) error {
	if a.ctx == nil {
		return fmt.Errorf("application is not initialized")
	}
	return runtime.ClipboardSetText(a.ctx, text)
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	cfg := a.services.Config
	return map[string]string{
		"backend":          cfg.Backend.BaseURL,
		"audioInput":       cfg.Audio.InputDevice,
		"audioInputFormat": cfg.Audio.InputFormat,
		"configFile":       cfg.Path,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.services.Capture == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

func (a *App) currentInsights() (*usecase.InsightOrchestrator, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.insights == nil {
		return nil, domain.E(domain.KindPreconditionNotMet, "App.insights", "no conversation is open", nil)
	}
	return a.insights, nil
}

// reportInsightError surfaces failures but not rejected requests; those
// leave the screen unchanged.
func (a *App) reportInsightError(err error) {
	if err == nil || domain.IsKind(err, domain.KindPreconditionNotMet) {
		return
	}
	a.SessionError(domain.ErrorCodeInsight, err.Error())
}

func (a *App) send(name string, data any) {
	if a.ctx == nil || a.emit == nil {
		return
	}
	a.emit(a.ctx, name, data)
}

// CaptureStateChanged emits capture lifecycle updates to the frontend.
func (a *App) CaptureStateChanged(state domain.CaptureState, reason domain.CaptureReason) {
	a.send(eventCapture, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": captureReasonMessage(reason),
	})
}

// ElapsedChanged emits the recording timer.
func (a *App) ElapsedChanged(seconds int) {
	a.send(eventElapsed, map[string]any{"seconds": seconds, "label": ui.FormatElapsed(seconds)})
}

func (a *App) UploadProgress(percent int) {
	a.send(eventUploadProgress, map[string]int{"percent": percent})
}

func (a *App) UploadCompleted(result domain.UploadResult) {
	a.send(eventUploadComplete, result)
}

// InsightChanged emits busy/result changes for one insight kind.
func (a *App) InsightChanged(state domain.InsightState) {
	a.send(eventInsight, state)
}

// SessionError emits errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	a.send(eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func captureReasonMessage(reason domain.CaptureReason) string {
	switch reason {
	case domain.CaptureReasonReady:
		return "Ready to record"
	case domain.CaptureReasonRecordingStarted:
		return "Recording started"
	case domain.CaptureReasonRecordingStopped:
		return "Recording stopped"
	case domain.CaptureReasonDeviceLost:
		return "Microphone disconnected; recording stopped"
	case domain.CaptureReasonUploadStarted:
		return "Uploading..."
	case domain.CaptureReasonUploadSucceeded:
		return "Upload complete"
	case domain.CaptureReasonUploadFailed:
		return "Upload failed; recording kept for retry"
	case domain.CaptureReasonRecordingDiscarded:
		return "Recording discarded"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeDevice:
		return "Microphone unavailable"
	case domain.ErrorCodeAudioStop:
		return "Audio stop issue"
	case domain.ErrorCodeUpload:
		return "Upload failed"
	case domain.ErrorCodeFetch:
		return "Could not load conversation"
	case domain.ErrorCodeInsight:
		return "Insight request failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
