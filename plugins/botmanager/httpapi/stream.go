package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/dm-vev/botmanager/plugins/botmanager/bot"
	"github.com/gorilla/websocket"
)

const (
	// streamBuffer is the number of changes queued for a stream before it is
	// closed for being too slow.
	streamBuffer = 64
	writeTimeout = 5 * time.Second
)

// handleStream upgrades the connection to a websocket and writes every
// change of the registry to it as a JSON text message.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	changes := make(chan bot.Change, streamBuffer)
	overflow := make(chan struct{})
	var once sync.Once
	cancel := s.m.Subscribe(func(c bot.Change) {
		select {
		case changes <- c:
		default:
			once.Do(func() { close(overflow) })
		}
	})
	defer cancel()

	// Subscribed before the handshake: changes made after it are never
	// missed.
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an error.
		return
	}
	defer conn.Close()

	// Clients never send anything meaningful. Reading is needed to process
	// control frames and to notice the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	log := s.log.With("remote", r.RemoteAddr)
	log.Debug("Bot stream opened.")
	defer log.Debug("Bot stream closed.")
	for {
		select {
		case <-r.Context().Done():
			s.closeStream(conn, websocket.CloseGoingAway, "server closing")
			return
		case <-closed:
			return
		case <-overflow:
			s.closeStream(conn, websocket.CloseTryAgainLater, "too slow")
			return
		case c := <-changes:
			data, err := json.Marshal(c)
			if err != nil {
				log.Error("Encode bot change.", "error", err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

func (s *Server) closeStream(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
