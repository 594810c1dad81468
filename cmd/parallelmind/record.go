package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"parallelmind/internal/domain"
	"parallelmind/internal/ui"
	"parallelmind/internal/usecase"
)

// consoleEvents prints capture progress on one status line.
type consoleEvents struct {
	mu    sync.Mutex
	w     io.Writer
	state domain.CaptureState
}

func (e *consoleEvents) CaptureStateChanged(state domain.CaptureState, _ domain.CaptureReason) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = state
	e.line(domain.CaptureStatus{State: state})
}

func (e *consoleEvents) ElapsedChanged(seconds int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == domain.CaptureStateRecording {
		e.line(domain.CaptureStatus{State: e.state, ElapsedSeconds: seconds})
	}
}

func (e *consoleEvents) UploadProgress(percent int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.line(domain.CaptureStatus{State: domain.CaptureStateUploading, UploadPercent: percent})
}

func (e *consoleEvents) UploadCompleted(domain.UploadResult) {}

func (e *consoleEvents) SessionError(code domain.ErrorCode, detail string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fmt.Fprintf(e.w, "\n%s %s\n", ui.ErrorStyle.Render(string(code)+":"), detail)
}

func (e *consoleEvents) line(status domain.CaptureStatus) {
	fmt.Fprintf(e.w, "\r\033[K%s", ui.CaptureLine(status))
}

func newRecordCmd(c *cli) *cobra.Command {
	var (
		duration time.Duration
		noUpload bool
		save     string
	)
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record from the microphone and upload the conversation",
		Long: `Record from the microphone until the duration elapses or Ctrl-C is
pressed, then upload the recording. With --no-upload the recording is only
saved (see --save) or discarded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			events := &consoleEvents{w: cmd.ErrOrStderr()}
			services, err := c.services(events)
			if err != nil {
				return err
			}
			capture := services.Capture

			// Ctrl-C ends the recording through Stop, not by killing the device.
			if err := capture.Start(context.WithoutCancel(cmd.Context())); err != nil {
				return err
			}

			waitCtx := cmd.Context()
			if duration > 0 {
				var cancel context.CancelFunc
				waitCtx, cancel = context.WithTimeout(waitCtx, duration)
				defer cancel()
			}
			// Returns early when the device goes away.
			_ = capture.WaitStopped(waitCtx)

			if capture.Status().State == domain.CaptureStateRecording {
				if err := capture.Stop(); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.ErrOrStderr())

			audio, ok := capture.FinalizedAudio()
			if !ok {
				return errors.New("no recording was captured")
			}
			if save != "" {
				if err := os.WriteFile(save, audio.Data, 0o600); err != nil {
					return fmt.Errorf("save recording: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "saved %s (%s)\n", save, audio.Duration.Round(time.Second))
			}
			if noUpload {
				return capture.Discard()
			}

			// The recording is uploaded even after Ctrl-C.
			result, err := capture.Upload(context.WithoutCancel(cmd.Context()))
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				if save == "" {
					fmt.Fprintln(cmd.ErrOrStderr(), "the recording was not saved; rerun with --save to keep it")
				}
				return err
			}
			return render(cmd.OutOrStdout(), c.output, result, func() string {
				return fmt.Sprintf("conversation %s (%s)", result.ConversationID, result.Status)
			})
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", 0, "Stop automatically after this long (0 waits for Ctrl-C)")
	cmd.Flags().BoolVar(&noUpload, "no-upload", false, "Do not upload the recording")
	cmd.Flags().StringVar(&save, "save", "", "Also write the recording to this WAV file")
	return cmd
}

func newUploadCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file.wav>",
		Short: "Upload an existing WAV recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read recording: %w", err)
			}
			services, err := c.services(nil)
			if err != nil {
				return err
			}

			progress := &consoleEvents{w: cmd.ErrOrStderr()}
			job := usecase.NewUploadJob(services.Backend, progress.UploadProgress)
			result, err := job.Run(cmd.Context(), domain.FinalizedAudio{Data: data, MediaType: domain.MediaTypeWAV})
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), c.output, result, func() string {
				return fmt.Sprintf("conversation %s (%s)", result.ConversationID, result.Status)
			})
		},
	}
}
