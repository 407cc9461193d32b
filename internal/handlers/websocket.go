package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mossy-p/proctor-signaling/config"
	"github.com/mossy-p/proctor-signaling/internal/middleware"
	"github.com/mossy-p/proctor-signaling/internal/signaling"
)

const writeWait = 10 * time.Second

var (
	ErrBackpressure    = errors.New("send buffer full")
	ErrTransportClosed = errors.New("transport closed")
)

// SignalingDeps is what the websocket endpoint needs.
type SignalingDeps struct {
	Manager  *signaling.Manager
	Router   *signaling.Router
	Resolver *middleware.Resolver
	Origins  *Origins
	Socket   config.SocketConfig
}

// wsTransport is the signaling.Transport over one gorilla connection. A
// single writePump owns all data writes.
type wsTransport struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	mu     sync.RWMutex
	closed bool
}

func newWSTransport(conn *websocket.Conn, buffer int) *wsTransport {
	if buffer <= 0 {
		buffer = 256
	}
	return &wsTransport{
		conn: conn,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

func (t *wsTransport) Send(frame []byte) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return ErrTransportClosed
	}
	select {
	case t.send <- frame:
		return nil
	default:
		return ErrBackpressure
	}
}

// Close sends a close frame with code and reason, then drops the socket.
// Only the first call has any effect.
func (t *wsTransport) Close(code int, reason string) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.done)
	t.mu.Unlock()

	msg := websocket.FormatCloseMessage(code, reason)
	_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	return t.conn.Close()
}

// HandleSignaling upgrades an authenticated request for a room and runs the
// session until the socket closes.
func HandleSignaling(deps SignalingDeps) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     deps.Origins.CheckOrigin,
	}

	return func(c *gin.Context) {
		roomID := c.Param("roomId")
		if roomID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "roomId is required"})
			return
		}

		token := middleware.TokenFromRequest(c.Request)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token is required"})
			return
		}
		id, err := deps.Resolver.Resolve(token)
		if err != nil {
			log.Info().Err(err).Str("module", "handlers.ws").Str("room", roomID).Msg("handshake rejected")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Err(err).Str("module", "handlers.ws").Msg("failed to upgrade connection")
			return
		}
		if deps.Socket.ReadLimit > 0 {
			conn.SetReadLimit(deps.Socket.ReadLimit)
		}

		transport := newWSTransport(conn, deps.Socket.SendBuffer)
		session, err := deps.Manager.Connect(transport, roomID, id.UserID, id.Role)
		if err != nil {
			log.Warn().Err(err).Str("module", "handlers.ws").Str("room", roomID).Msg("connect refused")
			_ = transport.Close(websocket.ClosePolicyViolation, err.Error())
			return
		}

		go writePump(transport, deps.Socket.PingPeriod)
		go readPump(deps, transport, session)
	}
}

func readPump(deps SignalingDeps, t *wsTransport, session *signaling.Connection) {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		deps.Manager.Disconnect(session)
	}()

	pongWait := deps.Socket.PongWait
	if pongWait <= 0 {
		pongWait = 60 * time.Second
	}
	_ = t.conn.SetReadDeadline(time.Now().Add(pongWait))
	t.conn.SetPongHandler(func(string) error {
		return t.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("module", "handlers.ws").Str("conn", session.ID()).Msg("websocket read error")
			}
			return
		}
		deps.Router.HandleFrame(ctx, session, message)
	}
}

func writePump(t *wsTransport, pingPeriod time.Duration) {
	if pingPeriod <= 0 {
		pingPeriod = 54 * time.Second
	}
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return

		case message := <-t.send:
			_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().Err(err).Str("module", "handlers.ws").Msg("failed to write message")
				_ = t.Close(websocket.CloseInternalServerErr, "write failed")
				return
			}

		case <-ticker.C:
			if err := t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = t.Close(websocket.CloseInternalServerErr, "write failed")
				return
			}
		}
	}
}
