package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	"github.com/AaronLay10/LockStep/internal/gameerr"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second

	// Largest client message accepted; inline scenarios travel in CREATE_ROOM
	maxMessageSize = 1 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Players join from phones on the venue network; no origin pinning
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// inbound is a client request.
type inbound struct {
	ID      json.RawMessage `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ack answers one request, echoing its id.
type ack struct {
	Type    string          `json:"type"`
	ID      json.RawMessage `json:"id,omitempty"`
	Payload any             `json:"payload"`
}

type errorPayload struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	conn.SetReadLimit(maxMessageSize)

	c := s.hub.register(conn)
	log.Debug().Str("conn", c.id).Str("remote", r.RemoteAddr).Msg("ws connected")

	go s.writePump(c)
	s.readPump(c)
}

// readPump handles requests in arrival order until the socket fails.
func (s *Server) readPump(c *client) {
	defer func() {
		s.sessions.Disconnect(c.id)
		s.hub.unregister(c)
		log.Debug().Str("conn", c.id).Msg("ws disconnected")
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			s.reply(c, nil, nil, gameerr.Invalid("Malformed message"))
			continue
		}
		if !c.limiter.Allow() {
			s.reply(c, msg.ID, nil, errTooManyRequests)
			continue
		}

		payload, err := s.handle(c.id, msg)
		s.reply(c, msg.ID, payload, err)
	}
}

// handle runs one request; a panic becomes a generic server error for
// this message only.
func (s *Server) handle(connID string, msg inbound) (payload any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Str("conn", connID).Str("type", msg.Type).Msg("ws handler panicked")
			payload, err = nil, gameerr.ErrInternal
		}
	}()
	return s.dispatch(connID, msg)
}

func (s *Server) reply(c *client, id json.RawMessage, payload any, err error) {
	if err != nil {
		if gameerr.CodeOf(err) == gameerr.CodeInternal {
			log.Error().Err(err).Str("conn", c.id).Msg("request failed")
		}
		payload = errorPayload{Error: gameerr.Message(err), Code: string(gameerr.CodeOf(err))}
	}
	data, mErr := json.Marshal(ack{Type: "ACK", ID: id, Payload: payload})
	if mErr != nil {
		log.Error().Err(mErr).Str("conn", c.id).Msg("failed to encode ack")
		return
	}
	c.enqueue(data)
}

// writePump is the only writer on the socket.
func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("conn", c.id).Msg("ws write failed")
				c.close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}
