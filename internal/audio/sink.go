package audio

import (
	"fmt"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// OtoSink renders PCM16LE mono through the default output device. It keeps
// the device player running continuously, feeding silence when the buffer is
// empty, so Reset can cut queued audio without reopening the device.
type OtoSink struct {
	player *oto.Player
	buf    *pcmBuffer
	rate   int
}

// NewOtoSink opens the output device at sampleRate mono s16le.
func NewOtoSink(sampleRate int) (*OtoSink, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("audio: open output device: %w", err)
	}
	<-ready

	buf := &pcmBuffer{}
	player := ctx.NewPlayer(buf)
	player.Play()
	return &OtoSink{player: player, buf: buf, rate: sampleRate}, nil
}

func (s *OtoSink) WritePCM(pcm []byte) { s.buf.Append(pcm) }

// FlushTail pads a short silence tail so the device drains the final chunk
// without clipping.
func (s *OtoSink) FlushTail() {
	tail := make([]byte, s.rate/5*2) // ~200ms of s16 mono silence
	s.buf.Append(tail)
}

// Reset drops all queued audio immediately.
func (s *OtoSink) Reset() { s.buf.Clear() }

func (s *OtoSink) Close() error { return s.player.Close() }

// pcmBuffer is an unbounded FIFO that yields silence when empty, keeping the
// oto player's reader from ever returning EOF.
type pcmBuffer struct {
	mu   sync.Mutex
	data []byte
}

func (b *pcmBuffer) Append(p []byte) {
	b.mu.Lock()
	b.data = append(b.data, p...)
	b.mu.Unlock()
}

func (b *pcmBuffer) Clear() {
	b.mu.Lock()
	b.data = b.data[:0]
	b.mu.Unlock()
}

func (b *pcmBuffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.data) == 0 {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	n := copy(p, b.data)
	b.data = b.data[n:]
	return n, nil
}
