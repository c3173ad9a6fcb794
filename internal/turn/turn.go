package turn

import "sync"

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one recorded utterance in the conversation.
// LatencyMS is set only on assistant turns and measures the wall-clock time
// between request dispatch and response-header arrival.
type Turn struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	LatencyMS int64  `json:"latency_ms,omitempty"`
}

// History is the append-only conversation log. Turns are appended strictly in
// user/assistant pairs; readers never observe a half-appended pair.
type History struct {
	mu    sync.RWMutex
	turns []Turn
}

func NewHistory() *History { return &History{} }

// AppendExchange appends one user/assistant pair atomically.
func (h *History) AppendExchange(user, assistant Turn) {
	user.Role = RoleUser
	assistant.Role = RoleAssistant
	h.mu.Lock()
	h.turns = append(h.turns, user, assistant)
	h.mu.Unlock()
}

// Snapshot returns a copy of the log in insertion order.
func (h *History) Snapshot() []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cp := make([]Turn, len(h.turns))
	copy(cp, h.turns)
	return cp
}

// Len reports the number of recorded turns.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}
