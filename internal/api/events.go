package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"occtitles/pkg/titles"
)

// Feed message types.
const (
	msgStatus = "status"
	msgTip    = "tip"
	msgDone   = "done"
	msgError  = "error"
)

const (
	feedBuffer       = 32
	feedWriteTimeout = 5 * time.Second
)

// feedMessage is one frame of the progress feed.
type feedMessage struct {
	Type     string `json:"type"`
	Status   string `json:"status,omitempty"`
	Attempts int    `json:"attempts,omitempty"`
	Text     string `json:"text,omitempty"`
}

// feed fans progress messages out to the sockets watching one session.
// Slow subscribers lose messages rather than stalling the job.
type feed struct {
	mu   sync.Mutex
	subs map[chan feedMessage]struct{}
}

func newFeed() *feed {
	return &feed{subs: make(map[chan feedMessage]struct{})}
}

func (f *feed) subscribe() (<-chan feedMessage, func()) {
	ch := make(chan feedMessage, feedBuffer)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	return ch, func() {
		f.mu.Lock()
		if _, ok := f.subs[ch]; ok {
			delete(f.subs, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
}

func (f *feed) publish(m feedMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- m:
		default:
		}
	}
}

func (f *feed) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// observer adapts job events to feed messages.
func (f *feed) observer() titles.Observer {
	return func(ev titles.Event) {
		text := ev.Detail
		if ev.Status == titles.StatusRunning && text == "" {
			text = "Waiting for the assistant..."
		}
		f.publish(feedMessage{Type: msgStatus, Status: string(ev.Status), Attempts: ev.Attempts, Text: text})
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// HandleEvents streams a session's progress feed over a websocket.
func (h *TitlesHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	es, ok := h.sessions.Lookup(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Session not found.")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	msgs, unsubscribe := es.feed.subscribe()
	defer unsubscribe()

	// The reader only exists to notice the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
			if err := conn.WriteJSON(m); err != nil {
				slog.Debug("Websocket write failed", "error", err)
				return
			}
		}
	}
}
