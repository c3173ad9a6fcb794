package audio

import (
	"fmt"
	"log"

	"github.com/gen2brain/malgo"
)

// Capture owns the microphone device. Captured PCM16LE mono buffers are
// handed to feed; buffers arriving while the gate is paused are dropped so
// playback cannot trigger self-detection on contended platforms.
type Capture struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

// StartCapture opens the default capture device at sampleRate mono s16le.
func StartCapture(sampleRate int, gate *CaptureGate, feed func(pcm []byte)) (*Capture, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		log.Printf("audio: %s", message)
	})
	if err != nil {
		return nil, fmt.Errorf("audio: init context: %w", err)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = 1
	cfg.SampleRate = uint32(sampleRate)
	cfg.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, in []byte, _ uint32) {
			if gate.Paused() {
				return
			}
			buf := make([]byte, len(in))
			copy(buf, in)
			feed(buf)
		},
	}

	device, err := malgo.InitDevice(ctx.Context, cfg, callbacks)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("audio: init capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("audio: start capture: %w", err)
	}
	return &Capture{ctx: ctx, device: device}, nil
}

// Close stops the device and releases the audio context.
func (c *Capture) Close() {
	c.device.Uninit()
	_ = c.ctx.Uninit()
	c.ctx.Free()
}
