package httpserver

import (
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// uiEvent is one display update pushed to connected shells.
// Types: "state", "speech-start", "transcript", "reply", "answers", "error".
type uiEvent struct {
	Type    string   `json:"type"`
	Text    string   `json:"text,omitempty"`
	Answers []string `json:"answers,omitempty"`
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Local hosting shell only; restrict if exposed.
		return true
	},
}

// Bridge fans display events out to connected WebSocket shells. It is
// write-only with respect to engine state: clients observe, they do not
// drive (typed submissions go through POST /say).
type Bridge struct {
	mu      sync.Mutex
	clients map[string]*wsClient
}

type wsClient struct {
	conn *websocket.Conn
	send chan uiEvent
}

func NewBridge() *Bridge {
	return &Bridge{clients: make(map[string]*wsClient)}
}

// ServeWebSocket upgrades the request and streams UI events until the client
// disconnects.
func (b *Bridge) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}

	id := uuid.NewString()
	cl := &wsClient{conn: conn, send: make(chan uiEvent, 64)}
	b.mu.Lock()
	b.clients[id] = cl
	b.mu.Unlock()
	log.Printf("ui client connected: %s", id)

	go func() {
		for ev := range cl.send {
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}()

	// Read loop only detects disconnect; inbound frames are ignored.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	b.mu.Lock()
	delete(b.clients, id)
	b.mu.Unlock()
	close(cl.send)
	_ = conn.Close()
	log.Printf("ui client disconnected: %s", id)
}

// Broadcast delivers an event to every connected shell. Slow clients drop
// events rather than stalling the engine.
func (b *Bridge) Broadcast(ev uiEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, cl := range b.clients {
		select {
		case cl.send <- ev:
		default:
		}
	}
}

func (b *Bridge) State(s string)         { b.Broadcast(uiEvent{Type: "state", Text: s}) }
func (b *Bridge) SpeechStart()           { b.Broadcast(uiEvent{Type: "speech-start"}) }
func (b *Bridge) Transcript(text string) { b.Broadcast(uiEvent{Type: "transcript", Text: text}) }
func (b *Bridge) Reply(text string)      { b.Broadcast(uiEvent{Type: "reply", Text: text}) }
func (b *Bridge) Answers(a []string)     { b.Broadcast(uiEvent{Type: "answers", Answers: a}) }
func (b *Bridge) Error(msg string)       { b.Broadcast(uiEvent{Type: "error", Text: msg}) }
