package submit

import (
	"context"
	"sync"

	"github.com/dubya-devlab/voiceturn/internal/dialog"
	"github.com/dubya-devlab/voiceturn/internal/turn"
)

// Exchanger resolves one round trip with the dialogue backend.
type Exchanger interface {
	Exchange(ctx context.Context, history []turn.Turn, input dialog.Input) (*dialog.Exchange, error)
}

// Result reports one resolved submission. Exactly one of Exchange/Err is set.
type Result struct {
	Input    dialog.Input
	Exchange *dialog.Exchange
	Err      error
}

// Serializer guarantees at most one round trip in flight. Inputs submitted
// while one is unresolved wait in an explicit FIFO queue and are resolved
// against the history as of the previous resolution, never a stale snapshot.
// On success it appends exactly the user/assistant pair to the history; on
// failure the history is untouched.
type Serializer struct {
	backend Exchanger
	history *turn.History
	results chan Result

	mu       sync.Mutex
	queue    []dialog.Input
	inFlight bool
	wake     chan struct{}
}

func NewSerializer(backend Exchanger, history *turn.History) *Serializer {
	return &Serializer{
		backend: backend,
		history: history,
		results: make(chan Result, 8),
		wake:    make(chan struct{}, 1),
	}
}

// Results delivers one Result per submitted input, in submission order.
func (s *Serializer) Results() <-chan Result { return s.results }

// Submit enqueues an input. It never blocks and never drops: the input runs
// once every earlier submission has resolved.
func (s *Serializer) Submit(input dialog.Input) {
	s.mu.Lock()
	s.queue = append(s.queue, input)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Busy reports whether a round trip is in flight or queued.
func (s *Serializer) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight || len(s.queue) > 0
}

// QueueLen reports how many inputs are waiting behind the in-flight one.
func (s *Serializer) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Run drains the queue until ctx is cancelled. One input resolves fully
// before the next is dequeued; this is the single-flight guarantee.
func (s *Serializer) Run(ctx context.Context) {
	for {
		input, ok := s.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
				continue
			}
		}

		exch, err := s.backend.Exchange(ctx, s.history.Snapshot(), input)
		if err == nil {
			user := turn.Turn{Role: turn.RoleUser, Content: userContent(input, exch)}
			assistant := turn.Turn{
				Role:      turn.RoleAssistant,
				Content:   exch.Reply,
				LatencyMS: exch.Latency.Milliseconds(),
			}
			s.history.AppendExchange(user, assistant)
		}

		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()

		select {
		case s.results <- Result{Input: input, Exchange: exch, Err: err}:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Serializer) pop() (dialog.Input, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return dialog.Input{}, false
	}
	input := s.queue[0]
	s.queue = s.queue[1:]
	s.inFlight = true
	return input, true
}

// userContent records what was "heard": the recognized transcript when the
// backend provides one, falling back to the typed text.
func userContent(input dialog.Input, exch *dialog.Exchange) string {
	if exch.Transcript != "" {
		return exch.Transcript
	}
	return input.Text
}
