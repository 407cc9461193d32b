package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mossy-p/proctor-signaling/internal/models"
	"github.com/mossy-p/proctor-signaling/internal/relay"
)

const (
	msgNotSupervisor = "You're not Supervisor. Only Supervisor can send message."
	msgUnknownType   = "Unknown message type"
	msgInvalidFormat = "Invalid message format"
	msgMissingOffer  = "Missing offer data"
	msgInternal      = "Internal server error"
	msgNotRegistered = "connection is not registered"
)

// Relayer forwards a WebRTC offer to the video server and returns its answer.
type Relayer interface {
	Relay(ctx context.Context, roomID, userID string, role models.Role, offer json.RawMessage) (json.RawMessage, error)
}

// Router dispatches inbound frames. It keeps no state between frames and
// never mutates the registry itself.
type Router struct {
	manager *Manager
	relay   Relayer
}

func NewRouter(manager *Manager, relay Relayer) *Router {
	return &Router{manager: manager, relay: relay}
}

// HandleFrame processes one inbound frame from c. Failures are reported to
// c as error frames; HandleFrame never panics and never closes a healthy
// connection.
func (r *Router) HandleFrame(ctx context.Context, c *Connection, raw []byte) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().Str("module", "signaling.router").Str("conn", c.ID()).
				Interface("panic", p).Msg("frame handler panicked")
			r.diagnostic(c, fmt.Sprintf("panic while handling frame: %v", p))
			r.manager.SendError(c, msgInternal)
		}
	}()

	info, ok := r.manager.Lookup(c)
	if !ok {
		log.Warn().Str("module", "signaling.router").Str("conn", c.ID()).Msg("frame from unregistered connection")
		r.manager.Expel(c, msgNotRegistered)
		return
	}

	var frame models.Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		r.diagnostic(c, fmt.Sprintf("invalid frame: %v", err))
		r.manager.SendError(c, msgInvalidFormat)
		return
	}

	switch frame.Type {
	case models.FrameTypeWebRTCOffer:
		r.handleOffer(ctx, c, info, frame)
	case models.FrameTypeMessage:
		r.handleMessage(c, info, frame, raw)
	default:
		log.Debug().Str("module", "signaling.router").Str("conn", c.ID()).
			Str("type", string(frame.Type)).Msg("unknown frame type")
		r.diagnostic(c, fmt.Sprintf("Unhandled event '%s' with data: %s", frame.Type, raw))
		r.manager.SendError(c, msgUnknownType)
	}
}

func (r *Router) handleOffer(ctx context.Context, c *Connection, info Membership, frame models.Frame) {
	if len(frame.Data) == 0 || string(frame.Data) == "null" {
		r.manager.SendError(c, msgMissingOffer)
		return
	}

	answer, err := r.relay.Relay(ctx, info.RoomID, info.UserID, info.Role, frame.Data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signaling.router").
			Str("room", info.RoomID).Str("user", info.UserID).Msg("offer relay failed")
		r.manager.SendError(c, relayErrorMessage(err))
		return
	}
	if err := r.manager.Deliver(c, answer); err != nil {
		log.Debug().Err(err).Str("module", "signaling.router").Str("conn", c.ID()).Msg("answer not delivered")
	}
}

func (r *Router) handleMessage(c *Connection, info Membership, frame models.Frame, raw []byte) {
	if !info.Role.CanMessage() {
		r.manager.SendError(c, msgNotSupervisor)
		return
	}

	if frame.Unicast() {
		if r.manager.SendTo(c, frame.UserID, raw) {
			r.manager.record(info.UserID, models.LogMessageToExaminee, info.RoomID, &models.LogContent{
				Text:             frame.Content,
				RecipientUserIDs: []string{frame.UserID},
			})
		}
		return
	}

	members := r.manager.Broadcast(info.RoomID, raw, c)
	r.manager.record(info.UserID, models.LogMessageToAll, info.RoomID, &models.LogContent{
		Text:             frame.Content,
		RecipientUserIDs: members,
	})
}

func (r *Router) diagnostic(c *Connection, text string) {
	r.manager.record(c.UserID(), models.LogWebsocketError, c.RoomID(), &models.LogContent{
		Text:             text,
		RecipientUserIDs: []string{},
	})
}

func relayErrorMessage(err error) string {
	var statusErr *relay.StatusError
	if errors.As(err, &statusErr) {
		return "Video server error: " + statusErr.Body
	}
	return "Failed to connect to video server: " + err.Error()
}
