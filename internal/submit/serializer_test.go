package submit

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dubya-devlab/voiceturn/internal/dialog"
	"github.com/dubya-devlab/voiceturn/internal/turn"
)

type fakeBackend struct {
	mu        sync.Mutex
	histories [][]turn.Turn
	inputs    []dialog.Input
	blockCh   chan struct{} // when set, the first call waits on it
	err       error
}

func (f *fakeBackend) Exchange(ctx context.Context, history []turn.Turn, input dialog.Input) (*dialog.Exchange, error) {
	f.mu.Lock()
	first := len(f.histories) == 0
	f.histories = append(f.histories, history)
	f.inputs = append(f.inputs, input)
	block := f.blockCh
	f.mu.Unlock()

	if first && block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &dialog.Exchange{
		Transcript: "heard: " + input.Text,
		Reply:      "reply to " + input.Text,
		Latency:    42 * time.Millisecond,
		Audio:      io.NopCloser(strings.NewReader("pcm")),
	}, nil
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.histories)
}

func TestSerializer_AppendsPairOnSuccess(t *testing.T) {
	backend := &fakeBackend{}
	history := turn.NewHistory()
	s := NewSerializer(backend, history)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Submit(dialog.TextInput("hello"))
	res := <-s.Results()
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	turns := history.Snapshot()
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Content != "heard: hello" {
		t.Fatalf("user turn should carry the recognized transcript, got %q", turns[0].Content)
	}
	if turns[1].Content != "reply to hello" || turns[1].LatencyMS != 42 {
		t.Fatalf("assistant turn wrong: %+v", turns[1])
	}
}

func TestSerializer_FailureLeavesHistoryUnchanged(t *testing.T) {
	backend := &fakeBackend{err: errors.New("boom")}
	history := turn.NewHistory()
	history.AppendExchange(turn.Turn{Content: "u"}, turn.Turn{Content: "a"})
	before := history.Snapshot()

	s := NewSerializer(backend, history)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Submit(dialog.TextInput("hello"))
	res := <-s.Results()
	if res.Err == nil {
		t.Fatalf("expected error result")
	}
	after := history.Snapshot()
	if len(after) != len(before) {
		t.Fatalf("history mutated on failure: %d -> %d", len(before), len(after))
	}
}

func TestSerializer_BackToBackSubmissionsSerialize(t *testing.T) {
	backend := &fakeBackend{blockCh: make(chan struct{})}
	history := turn.NewHistory()
	s := NewSerializer(backend, history)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Submit(dialog.TextInput("first"))
	s.Submit(dialog.TextInput("second"))

	// The second must wait while the first is unresolved.
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) && backend.callCount() == 0 {
		time.Sleep(2 * time.Millisecond)
	}
	if got := backend.callCount(); got != 1 {
		t.Fatalf("expected exactly 1 in-flight call, got %d", got)
	}
	if !s.Busy() {
		t.Fatalf("serializer should report busy")
	}

	close(backend.blockCh)

	res1 := <-s.Results()
	res2 := <-s.Results()
	if res1.Input.Text != "first" || res2.Input.Text != "second" {
		t.Fatalf("results out of submission order: %q then %q", res1.Input.Text, res2.Input.Text)
	}

	// The second call must have seen the history produced by the first.
	backend.mu.Lock()
	secondHistory := backend.histories[1]
	backend.mu.Unlock()
	if len(secondHistory) != 2 {
		t.Fatalf("second call saw stale history of len %d", len(secondHistory))
	}
	if secondHistory[0].Content != "heard: first" {
		t.Fatalf("second call history missing first pair: %+v", secondHistory[0])
	}
	if history.Len() != 4 {
		t.Fatalf("expected 4 turns after two round trips, got %d", history.Len())
	}
}

func TestSerializer_NSuccessfulRoundTripsYieldTwoNTurns(t *testing.T) {
	backend := &fakeBackend{}
	history := turn.NewHistory()
	s := NewSerializer(backend, history)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	const n = 5
	for i := 0; i < n; i++ {
		s.Submit(dialog.TextInput("msg"))
	}
	for i := 0; i < n; i++ {
		if res := <-s.Results(); res.Err != nil {
			t.Fatalf("round trip %d failed: %v", i, res.Err)
		}
	}
	if history.Len() != 2*n {
		t.Fatalf("expected %d turns, got %d", 2*n, history.Len())
	}
}
