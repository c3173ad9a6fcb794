package controller

import (
	"context"
	"io"
	"log"

	"github.com/dubya-devlab/voiceturn/internal/audio"
	"github.com/dubya-devlab/voiceturn/internal/dialog"
	"github.com/dubya-devlab/voiceturn/internal/submit"
)

// State is the controller's position in the turn cycle.
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StatePlaying:
		return "playing"
	}
	return "unknown"
}

// Player renders one reply stream at a time. playback.Channel satisfies this.
type Player interface {
	Play(stream io.ReadCloser, onDone func())
	Stop()
}

// Notifier is the optional side-channel lookup service.
type Notifier interface {
	Notify(ctx context.Context, transcript string) ([]string, error)
}

// Hooks surface observable side effects to the hosting shell. All fields are
// optional and are invoked from the controller loop (OnAnswers from the
// side-channel goroutine).
type Hooks struct {
	OnState       func(State)
	OnSpeechStart func()
	// OnTranscript reports what was "heard" so the shell can show it in the
	// input field once the backend recognizes the utterance.
	OnTranscript func(string)
	OnReply      func(string)
	OnAnswers    func([]string)
	OnError      func(error)
}

// Config carries the platform capability decision. The hosting shell decides
// it; the engine never sniffs the platform.
type Config struct {
	// CaptureAndPlaybackExclusive pauses capture for the duration of each
	// playback on platforms where microphone and speaker contend. Elsewhere
	// capture stays active throughout, enabling true barge-in.
	CaptureAndPlaybackExclusive bool

	// Decode adapts a reply stream to playable PCM by content type.
	// Nil passes the stream through untouched.
	Decode func(contentType string, r io.Reader) (io.Reader, error)
}

// Controller is the turn state machine. It reacts to capture events and
// submission results, stops playback on barge-in, gates capture per the
// platform rule, and triggers submissions. All transitions run on the single
// Run loop, so no two interleave.
type Controller struct {
	cfg   Config
	ser   *submit.Serializer
	out   Player
	gate  *audio.CaptureGate
	side  Notifier
	hooks Hooks

	events chan Event

	// loop-owned state, never touched outside Run
	state         State
	capturePaused bool
	playGen       uint64
	liveGen       uint64
	runCtx        context.Context
}

func New(cfg Config, ser *submit.Serializer, out Player, gate *audio.CaptureGate, side Notifier, hooks Hooks) *Controller {
	return &Controller{
		cfg:    cfg,
		ser:    ser,
		out:    out,
		gate:   gate,
		side:   side,
		hooks:  hooks,
		events: make(chan Event, 32),
		state:  StateIdle,
	}
}

// Post delivers an event to the controller loop.
func (c *Controller) Post(ev Event) {
	c.events <- ev
}

// Run consumes events and submission results until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	c.runCtx = ctx
	for {
		select {
		case <-ctx.Done():
			c.out.Stop()
			return
		case ev := <-c.events:
			c.handle(ev)
		case res := <-c.ser.Results():
			c.onResult(res)
		}
	}
}

func (c *Controller) handle(ev Event) {
	switch e := ev.(type) {
	case SpeechStarted:
		if c.hooks.OnSpeechStart != nil {
			c.hooks.OnSpeechStart()
		}
	case SpeechEnded:
		c.beginSubmission(dialog.AudioInput(e.WAV))
	case TextSubmitted:
		if e.Text == "" {
			return
		}
		c.beginSubmission(dialog.TextInput(e.Text))
	case PlaybackDone:
		// Only the live playback may complete a turn. A stale event (its
		// onDone was already in flight when Stop raced it) must not resume
		// capture or drop the state while a newer playback is running.
		if c.liveGen == 0 || e.Gen != c.liveGen {
			return
		}
		c.liveGen = 0
		c.resumeCapture()
		if c.ser.Busy() {
			c.setState(StateSubmitting)
		} else {
			c.setState(StateIdle)
		}
	}
}

// beginSubmission is the barge-in point: any live playback is stopped
// unconditionally before the new input is queued. Every speech segment
// interrupts, even very short ones.
func (c *Controller) beginSubmission(input dialog.Input) {
	c.out.Stop()
	c.liveGen = 0
	c.resumeCapture()
	c.ser.Submit(input)
	c.setState(StateSubmitting)
}

func (c *Controller) onResult(res submit.Result) {
	if res.Err != nil {
		log.Printf("controller: round trip failed: %v", res.Err)
		if c.hooks.OnError != nil {
			c.hooks.OnError(res.Err)
		}
		c.resumeCapture()
		if c.ser.Busy() {
			c.setState(StateSubmitting)
		} else {
			c.setState(StateIdle)
		}
		return
	}

	exch := res.Exchange
	if c.hooks.OnTranscript != nil {
		c.hooks.OnTranscript(exch.Transcript)
	}
	if c.hooks.OnReply != nil {
		c.hooks.OnReply(exch.Reply)
	}

	stream := io.Reader(exch.Audio)
	if c.cfg.Decode != nil {
		dec, err := c.cfg.Decode(exch.AudioType, stream)
		if err != nil {
			log.Printf("controller: reply decode: %v", err)
			exch.Audio.Close()
			if c.hooks.OnError != nil {
				c.hooks.OnError(err)
			}
			c.resumeCapture()
			if c.ser.Busy() {
				c.setState(StateSubmitting)
			} else {
				c.setState(StateIdle)
			}
			return
		}
		stream = dec
	}

	// Pause before audio starts so capture is down for the whole playback.
	c.pauseCapture()
	c.setState(StatePlaying)
	c.playGen++
	gen := c.playGen
	c.liveGen = gen
	c.out.Play(readCloser{stream, exch.Audio}, func() {
		c.Post(PlaybackDone{Gen: gen})
	})

	if c.side != nil {
		go c.dispatchSideChannel(exch.Transcript)
	}
}

// dispatchSideChannel is fire-and-forget: failures are logged and never
// affect history or controller state.
func (c *Controller) dispatchSideChannel(transcript string) {
	answers, err := c.side.Notify(c.runCtx, transcript)
	if err != nil {
		log.Printf("controller: side channel failed: %v", err)
		return
	}
	if c.hooks.OnAnswers != nil {
		c.hooks.OnAnswers(answers)
	}
}

func (c *Controller) pauseCapture() {
	if !c.cfg.CaptureAndPlaybackExclusive || c.capturePaused {
		return
	}
	c.capturePaused = true
	c.gate.SetPaused(true)
}

func (c *Controller) resumeCapture() {
	if !c.capturePaused {
		return
	}
	c.capturePaused = false
	c.gate.SetPaused(false)
}

func (c *Controller) setState(s State) {
	if c.state == s {
		return
	}
	c.state = s
	if c.hooks.OnState != nil {
		c.hooks.OnState(s)
	}
}

// readCloser pairs a decoded reader with the original body's closer.
type readCloser struct {
	io.Reader
	io.Closer
}
