package vad

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/dubya-devlab/voiceturn/internal/audio"
)

// Frame10ms is a 10ms mono PCM frame at the configured sample rate.
// For 16kHz mono this is 160 samples of int16.
type Frame10ms []int16

// Config holds the thresholds for the energy segmenter.
type Config struct {
	SampleRate   int     // 16000 typical; engine expects 10ms frames at this rate
	Threshold    float64 // RMS level counted as voice
	SmoothFrames int     // majority-vote window, frames
	HangoverMs   int     // trailing silence before an utterance is considered ended
	MinSpeechMs  int     // segments shorter than this are discarded as noise
	PreRollMs    int     // audio retained from before speech onset
}

// DefaultConfig is tuned for close-mic 16kHz capture.
func DefaultConfig() Config {
	return Config{
		SampleRate:   16000,
		Threshold:    300.0,
		SmoothFrames: 4,
		HangoverMs:   700,
		MinSpeechMs:  200,
		PreRollMs:    220,
	}
}

// Events allows the host to react to detected speech.
type Events struct {
	// OnSpeechStart fires once per utterance at voice onset.
	OnSpeechStart func()
	// OnSpeechEnd fires when the utterance ends; wav holds the full segment
	// including pre-roll, WAV-encoded at the configured sample rate.
	OnSpeechEnd func(wav []byte)
}

// Segmenter turns a continuous PCM stream into discrete speech segments.
// It is the default implementation of the engine's speech-event producer.
type Segmenter struct {
	cfg Config
	ev  Events

	mu         sync.Mutex
	win        []bool
	preRoll    *pcmRing
	inSpeech   bool
	voicedMs   int
	silenceMs  int
	segSamples []int16
	rem        []byte
}

func NewSegmenter(cfg Config, ev Events) *Segmenter {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = 300.0
	}
	if cfg.SmoothFrames == 0 {
		cfg.SmoothFrames = 4
	}
	return &Segmenter{
		cfg:     cfg,
		ev:      ev,
		preRoll: newPCMRing(cfg.PreRollMs, cfg.SampleRate),
	}
}

// Feed accepts arbitrary-length PCM16LE at the configured sample rate and
// splits it into 10ms frames. Capture buffers are rarely frame-aligned, so
// trailing bytes carry over to the next call instead of being dropped.
func (s *Segmenter) Feed(pcm []byte) {
	samplesPer10ms := s.cfg.SampleRate / 100
	frameBytes := samplesPer10ms * 2

	s.mu.Lock()
	data := append(s.rem, pcm...)
	whole := len(data) / frameBytes * frameBytes
	s.rem = append([]byte(nil), data[whole:]...)
	s.mu.Unlock()

	for off := 0; off+frameBytes <= whole; off += frameBytes {
		frame := make([]int16, samplesPer10ms)
		for i := 0; i < samplesPer10ms; i++ {
			frame[i] = int16(binary.LittleEndian.Uint16(data[off+i*2 : off+i*2+2]))
		}
		s.onFrame(frame)
	}
}

// Reset clears window state, pre-roll, and any partial segment.
func (s *Segmenter) Reset() {
	s.mu.Lock()
	s.win = nil
	s.inSpeech = false
	s.voicedMs = 0
	s.silenceMs = 0
	s.segSamples = nil
	s.rem = nil
	s.preRoll.Clear()
	s.mu.Unlock()
}

func (s *Segmenter) onFrame(frame Frame10ms) {
	s.mu.Lock()
	voiced := s.smoothedVoice(frame)

	onset := false
	if !s.inSpeech {
		s.preRoll.Write(frame)
		if !voiced {
			s.mu.Unlock()
			return
		}
		// onset: seed the segment with pre-roll (already holds this frame)
		onset = true
		s.inSpeech = true
		s.voicedMs = 0
		s.silenceMs = 0
		s.segSamples = append(s.segSamples[:0], s.preRoll.ReadAll()...)
		s.mu.Unlock()
		if s.ev.OnSpeechStart != nil {
			s.ev.OnSpeechStart()
		}
		s.mu.Lock()
	}

	if !onset {
		s.segSamples = append(s.segSamples, frame...)
	}
	if voiced {
		s.voicedMs += 10
		s.silenceMs = 0
	} else {
		s.silenceMs += 10
	}
	if s.silenceMs < s.cfg.HangoverMs {
		s.mu.Unlock()
		return
	}

	// utterance ended
	seg := s.segSamples
	voicedMs := s.voicedMs
	s.inSpeech = false
	s.segSamples = nil
	s.preRoll.Clear()
	s.win = nil
	s.mu.Unlock()

	if voicedMs < s.cfg.MinSpeechMs {
		return
	}
	if s.ev.OnSpeechEnd != nil {
		s.ev.OnSpeechEnd(audio.EncodeWAV(seg, s.cfg.SampleRate))
	}
}

// smoothedVoice applies an RMS threshold with a small majority-vote window
// to ride out single-frame dips. Caller holds s.mu.
func (s *Segmenter) smoothedVoice(frame Frame10ms) bool {
	if len(frame) == 0 {
		return false
	}
	var sum float64
	for _, v := range frame {
		f := float64(v)
		sum += f * f
	}
	rms := math.Sqrt(sum / float64(len(frame)))
	s.win = append(s.win, rms >= s.cfg.Threshold)
	if len(s.win) > s.cfg.SmoothFrames {
		s.win = s.win[len(s.win)-s.cfg.SmoothFrames:]
	}
	trueCount := 0
	for _, b := range s.win {
		if b {
			trueCount++
		}
	}
	return trueCount*2 >= len(s.win)
}

// pcmRing stores the most recent capacityMs of 16-bit PCM for pre-roll.
type pcmRing struct {
	buf      []int16
	cap      int
	writePos int
	filled   bool
}

func newPCMRing(capacityMs, sampleRate int) *pcmRing {
	samples := capacityMs * sampleRate / 1000
	if samples < sampleRate/100 {
		samples = sampleRate / 100
	}
	return &pcmRing{buf: make([]int16, samples), cap: samples}
}

func (r *pcmRing) Write(frame Frame10ms) {
	for _, v := range frame {
		r.buf[r.writePos] = v
		r.writePos = (r.writePos + 1) % r.cap
		if r.writePos == 0 {
			r.filled = true
		}
	}
}

func (r *pcmRing) ReadAll() []int16 {
	n := r.writePos
	if r.filled {
		n = r.cap
	}
	out := make([]int16, n)
	start := (r.writePos - n + r.cap) % r.cap
	for i := 0; i < n; i++ {
		out[i] = r.buf[(start+i)%r.cap]
	}
	return out
}

func (r *pcmRing) Clear() {
	r.writePos = 0
	r.filled = false
	for i := range r.buf {
		r.buf[i] = 0
	}
}
