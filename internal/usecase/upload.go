package usecase

import (
	"context"
	"strings"
	"sync"

	"parallelmind/internal/domain"
	"parallelmind/internal/ports"
)

// UploadJob is one transfer attempt of a finalized recording. Jobs are never
// retried; a retry is a new job over the same payload.
type UploadJob struct {
	uploader  ports.Uploader
	onPercent func(int)

	mu       sync.Mutex
	last     int
	finished bool
}

// NewUploadJob creates a job. onPercent receives each strictly increasing
// progress value and may be nil.
func NewUploadJob(uploader ports.Uploader, onPercent func(int)) *UploadJob {
	if onPercent == nil {
		onPercent = func(int) {}
	}
	return &UploadJob{uploader: uploader, onPercent: onPercent, last: -1}
}

// Run transfers the payload. Any failure is reported as TransferFailed.
func (j *UploadJob) Run(ctx context.Context, audio domain.FinalizedAudio) (domain.UploadResult, error) {
	const op = "UploadJob.Run"

	if len(audio.Data) == 0 {
		return domain.UploadResult{}, domain.E(domain.KindPreconditionNotMet, op, "no audio to upload", nil)
	}

	result, err := j.uploader.Upload(ctx, audio, j.observe)
	j.mu.Lock()
	j.finished = true
	j.mu.Unlock()

	if err != nil {
		return domain.UploadResult{}, domain.E(domain.KindTransferFailed, op, "upload failed", err)
	}
	if strings.TrimSpace(string(result.ConversationID)) == "" {
		return domain.UploadResult{}, domain.E(domain.KindTransferFailed, op, "server returned no conversation id", nil)
	}

	j.report(100)
	return result, nil
}

// Percent returns the last reported progress, or 0 before any progress.
func (j *UploadJob) Percent() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.last < 0 {
		return 0
	}
	return j.last
}

func (j *UploadJob) observe(sent, total int64) {
	j.mu.Lock()
	finished := j.finished
	j.mu.Unlock()
	if finished {
		return
	}
	j.report(progressPercent(sent, total))
}

func (j *UploadJob) report(percent int) {
	j.mu.Lock()
	if percent <= j.last {
		j.mu.Unlock()
		return
	}
	j.last = percent
	j.mu.Unlock()
	j.onPercent(percent)
}

// progressPercent is floor(sent*100/total) clamped to [0,100].
func progressPercent(sent, total int64) int {
	if total <= 0 || sent <= 0 {
		return 0
	}
	if sent >= total {
		return 100
	}
	return int(sent * 100 / total)
}
