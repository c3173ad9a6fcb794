package audio

import "sync/atomic"

// CaptureGate tracks whether microphone capture is Active or Paused. On
// platforms where capture and playback contend for the audio device, the
// controller pauses the gate for the duration of each playback; the capture
// path checks it per buffer and drops frames while paused.
type CaptureGate struct {
	paused int32
}

func NewCaptureGate() *CaptureGate { return &CaptureGate{} }

func (g *CaptureGate) SetPaused(paused bool) {
	var v int32
	if paused {
		v = 1
	}
	atomic.StoreInt32(&g.paused, v)
}

func (g *CaptureGate) Paused() bool { return atomic.LoadInt32(&g.paused) == 1 }
func (g *CaptureGate) Active() bool { return !g.Paused() }
