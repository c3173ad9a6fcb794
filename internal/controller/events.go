package controller

// Event is one discrete occurrence consumed by the controller's loop.
// Producers (speech detector, playback, HTTP shell) post events; every event
// is handled as one atomic transition step.
type Event interface {
	isEvent()
}

// SpeechStarted fires at voice onset, before the utterance is complete.
type SpeechStarted struct{}

func (SpeechStarted) isEvent() {}

// SpeechEnded carries one finished utterance as a WAV-encoded buffer.
type SpeechEnded struct {
	WAV []byte
}

func (SpeechEnded) isEvent() {}

// TextSubmitted is an explicit typed submission from the hosting shell.
type TextSubmitted struct {
	Text string
}

func (TextSubmitted) isEvent() {}

// PlaybackDone fires when a reply finishes playing naturally. Gen identifies
// which playback completed; the controller ignores completions that are not
// the live one, so a late event from an interrupted turn cannot leak into the
// turn that replaced it.
type PlaybackDone struct {
	Gen uint64
}

func (PlaybackDone) isEvent() {}
