package usecase

import (
	"errors"
	"io"
	"os"

	"parallelmind/internal/ports"
)

// pumpAudioChunks copies device reads into the recording until the device
// stops producing. A clean end of stream is returned as io.EOF.
func pumpAudioChunks(audio ports.AudioSession, rec *activeRecording, chunkSize int, done chan struct{}) error {
	defer close(done)

	if chunkSize < 256 {
		chunkSize = 4096
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := audio.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			rec.appendChunk(chunk)
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return io.EOF
			}
			return err
		}
	}
}
