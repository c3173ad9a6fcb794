package playback

import (
	"bytes"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type recordSink struct {
	mu     sync.Mutex
	wrote  []byte
	resets int32
}

func (s *recordSink) WritePCM(p []byte) {
	s.mu.Lock()
	s.wrote = append(s.wrote, p...)
	s.mu.Unlock()
}
func (s *recordSink) FlushTail() {}
func (s *recordSink) Reset()     { atomic.AddInt32(&s.resets, 1) }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestChannel_PlayFiresOnDoneOnce(t *testing.T) {
	sink := &recordSink{}
	c := NewChannel(sink)
	var done int32
	c.Play(io.NopCloser(bytes.NewReader([]byte{1, 2, 3, 4})), func() { atomic.AddInt32(&done, 1) })
	waitFor(t, func() bool { return atomic.LoadInt32(&done) == 1 })
	time.Sleep(20 * time.Millisecond)
	if n := atomic.LoadInt32(&done); n != 1 {
		t.Fatalf("onDone fired %d times", n)
	}
	sink.mu.Lock()
	got := len(sink.wrote)
	sink.mu.Unlock()
	if got != 4 {
		t.Fatalf("expected 4 bytes written, got %d", got)
	}
	if c.Active() {
		t.Fatalf("channel should be idle after natural completion")
	}
}

func TestChannel_StopSuppressesOnDone(t *testing.T) {
	sink := &recordSink{}
	c := NewChannel(sink)
	pr, pw := io.Pipe()
	var done int32
	c.Play(pr, func() { atomic.AddInt32(&done, 1) })

	_, _ = pw.Write([]byte{1, 2})
	waitFor(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.wrote) == 2
	})

	c.Stop()
	pw.Close()
	time.Sleep(30 * time.Millisecond)
	if atomic.LoadInt32(&done) != 0 {
		t.Fatalf("onDone fired after Stop")
	}
	if atomic.LoadInt32(&sink.resets) == 0 {
		t.Fatalf("Stop should reset the sink to cut audio")
	}
	if c.Active() {
		t.Fatalf("channel should be idle after Stop")
	}
}

func TestChannel_PlayReplacesPreviousHandle(t *testing.T) {
	sink := &recordSink{}
	c := NewChannel(sink)
	pr, pw := io.Pipe()
	var firstDone, secondDone int32
	c.Play(pr, func() { atomic.AddInt32(&firstDone, 1) })
	_, _ = pw.Write([]byte{9, 9})

	c.Play(io.NopCloser(bytes.NewReader([]byte{1, 2})), func() { atomic.AddInt32(&secondDone, 1) })
	pw.Close()
	waitFor(t, func() bool { return atomic.LoadInt32(&secondDone) == 1 })
	if atomic.LoadInt32(&firstDone) != 0 {
		t.Fatalf("replaced handle must not fire completion for a later turn")
	}
}

func TestChannel_StopOnIdleIsNoOp(t *testing.T) {
	c := NewChannel(&recordSink{})
	c.Stop()
	c.Stop()
	if c.Active() {
		t.Fatalf("idle channel reported active")
	}
}
