package usecase

import (
	"sync"
	"time"

	"parallelmind/internal/ports"
)

// activeRecording is the device-holding part of a capture session. It exists
// only while the session is Recording.
type activeRecording struct {
	cancel    func()
	audio     ports.AudioSession
	ticker    ports.Ticker
	startedAt time.Time

	chunksMu sync.Mutex
	chunks   [][]byte

	finishing bool
	pumpDone  chan struct{}
	tickDone  chan struct{}
	stopTick  chan struct{}
	// finished is closed once the session has reached Stopped.
	finished chan struct{}
}

func (r *activeRecording) appendChunk(chunk []byte) {
	r.chunksMu.Lock()
	defer r.chunksMu.Unlock()
	r.chunks = append(r.chunks, chunk)
}

// takeChunks hands the chunks over exactly once and leaves the buffer empty.
func (r *activeRecording) takeChunks() [][]byte {
	r.chunksMu.Lock()
	defer r.chunksMu.Unlock()
	chunks := r.chunks
	r.chunks = nil
	return chunks
}

func (r *activeRecording) chunkCount() int {
	r.chunksMu.Lock()
	defer r.chunksMu.Unlock()
	return len(r.chunks)
}
