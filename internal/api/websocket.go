package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsFrame is the client<->server message shape on /v1/mqtt: one socket per
// client, multiple topic subscriptions multiplexed over it.
type wsFrame struct {
	Type  string          `json:"type"` // subscribe, unsubscribe, publish
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value,omitempty"`
}

type wsEvent struct {
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	sessionID := uuid.NewString()
	log := s.log.With().Str("session", sessionID).Logger()

	var mu sync.Mutex
	subs := map[string]func(){}
	defer func() {
		for _, cancel := range subs {
			cancel()
		}
	}()

	send := make(chan wsEvent, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range send {
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}()
	defer close(send)

	for {
		var frame wsFrame
		if err := conn.ReadJSON(&frame); err != nil {
			log.Debug().Err(err).Msg("websocket closed")
			return
		}

		switch frame.Type {
		case "subscribe":
			s.subscribePath(frame.Path, send, &mu, subs)
		case "unsubscribe":
			mu.Lock()
			if cancel, ok := subs[frame.Path]; ok {
				cancel()
				delete(subs, frame.Path)
			}
			mu.Unlock()
		case "publish":
			setup, _, _ := s.setupMode.TryGet()
			if err := s.br.SetExternal(frame.Path, frame.Value, setup); err != nil {
				log.Debug().Err(err).Str("path", frame.Path).Msg("websocket publish rejected")
			}
		}
	}
}

func (s *Server) subscribePath(path string, send chan<- wsEvent, mu *sync.Mutex, subs map[string]func()) {
	t, ok := s.br.Lookup(path)
	if !ok || !t.Readable() {
		return
	}

	mu.Lock()
	if _, already := subs[path]; already {
		mu.Unlock()
		return
	}
	sub := t.SubscribeBytes(func(data []byte) {
		select {
		case send <- wsEvent{Path: path, Value: data}:
		default:
		}
	})
	subs[path] = sub.Unsubscribe
	mu.Unlock()
}
