package usecase

import (
	"bytes"
	"encoding/binary"
	"time"

	"parallelmind/internal/domain"
	"parallelmind/internal/ports"
)

const bitsPerSample = 16

// audioFinalizer turns accumulated PCM chunks into the immutable upload artifact.
type audioFinalizer struct {
	sampleRate int
	channels   int
}

func newAudioFinalizer(cfg ports.AudioConfig) audioFinalizer {
	f := audioFinalizer{sampleRate: cfg.SampleRate, channels: cfg.Channels}
	if f.sampleRate <= 0 {
		f.sampleRate = 16000
	}
	if f.channels <= 0 {
		f.channels = 1
	}
	return f
}

// Finalize concatenates chunks in order and wraps them in a WAV container.
func (f audioFinalizer) Finalize(chunks [][]byte) domain.FinalizedAudio {
	var pcmLen int
	for _, chunk := range chunks {
		pcmLen += len(chunk)
	}

	var buf bytes.Buffer
	buf.Grow(44 + pcmLen)
	f.writeHeader(&buf, pcmLen)
	for _, chunk := range chunks {
		buf.Write(chunk)
	}

	return domain.FinalizedAudio{
		Data:      buf.Bytes(),
		MediaType: domain.MediaTypeWAV,
		Duration:  f.duration(pcmLen),
	}
}

func (f audioFinalizer) duration(pcmLen int) time.Duration {
	bytesPerSecond := f.sampleRate * f.channels * bitsPerSample / 8
	if bytesPerSecond == 0 {
		return 0
	}
	return time.Duration(int64(pcmLen) * int64(time.Second) / int64(bytesPerSecond))
}

func (f audioFinalizer) writeHeader(buf *bytes.Buffer, pcmLen int) {
	blockAlign := f.channels * bitsPerSample / 8
	le := binary.LittleEndian

	buf.WriteString("RIFF")
	_ = binary.Write(buf, le, uint32(36+pcmLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(buf, le, uint32(16))
	_ = binary.Write(buf, le, uint16(1)) // PCM
	_ = binary.Write(buf, le, uint16(f.channels))
	_ = binary.Write(buf, le, uint32(f.sampleRate))
	_ = binary.Write(buf, le, uint32(f.sampleRate*blockAlign))
	_ = binary.Write(buf, le, uint16(blockAlign))
	_ = binary.Write(buf, le, uint16(bitsPerSample))

	buf.WriteString("data")
	_ = binary.Write(buf, le, uint32(pcmLen))
}
