package playback

import (
	"io"
	"log"
	"sync"
)

// Sink consumes PCM bytes and performs delivery (e.g. a speaker device).
// Implementations should buffer internally and pace delivery.
type Sink interface {
	WritePCM(pcm []byte)
	// FlushTail lets the sink drain naturally after the final chunk.
	FlushTail()
	// Reset drops any queued audio immediately (used for barge-in).
	Reset()
}

// handle is one in-flight reply rendering. Closing stop aborts the copier
// and suppresses its onDone.
type handle struct {
	stop chan struct{}
}

// Channel renders one byte stream at a time. Play implicitly stops any
// previous handle; Stop suppresses the pending completion callback so a
// cancelled playback can never fire completion logic for a later turn.
type Channel struct {
	sink Sink

	mu      sync.Mutex
	current *handle
}

func NewChannel(sink Sink) *Channel {
	if sink == nil {
		sink = nopSink{}
	}
	return &Channel{sink: sink}
}

// Play begins rendering stream, taking ownership of it. onDone fires exactly
// once when playback finishes naturally, and never after Stop.
func (c *Channel) Play(stream io.ReadCloser, onDone func()) {
	h := &handle{stop: make(chan struct{})}

	c.mu.Lock()
	prev := c.current
	c.current = h
	c.mu.Unlock()
	if prev != nil {
		close(prev.stop)
		c.sink.Reset()
	}

	go c.consume(h, stream, onDone)
}

// Stop aborts any in-flight playback immediately. No-op when idle.
func (c *Channel) Stop() {
	c.mu.Lock()
	h := c.current
	c.current = nil
	c.mu.Unlock()
	if h == nil {
		return
	}
	close(h.stop)
	c.sink.Reset()
}

// Active reports whether a handle is live.
func (c *Channel) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

func (c *Channel) consume(h *handle, stream io.ReadCloser, onDone func()) {
	defer stream.Close()

	buf := make([]byte, 4096)
	for {
		select {
		case <-h.stop:
			return
		default:
		}
		n, rerr := stream.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case <-h.stop:
				return
			default:
			}
			c.sink.WritePCM(chunk)
		}
		if rerr != nil {
			if rerr != io.EOF {
				log.Printf("playback: stream read error: %v", rerr)
			}
			break
		}
	}

	// Natural end: fire onDone only if this handle is still the live one.
	c.mu.Lock()
	still := c.current == h
	if still {
		c.current = nil
	}
	c.mu.Unlock()
	if !still {
		return
	}
	c.sink.FlushTail()
	if onDone != nil {
		onDone()
	}
}

type nopSink struct{}

func (nopSink) WritePCM([]byte) {}
func (nopSink) FlushTail()      {}
func (nopSink) Reset()          {}
