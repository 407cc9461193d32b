package models

import "encoding/json"

// FrameType is the "type" field of an inbound signaling frame.
type FrameType string

const (
	FrameTypeWebRTCOffer FrameType = "webrtc-offer"
	FrameTypeMessage     FrameType = "message"
	FrameTypeError       FrameType = "error"

	// Peer notifications, delivered to supervisors only.
	FrameTypeExamineeConnected    FrameType = "examinee_connected"
	FrameTypeExamineeDisconnected FrameType = "examinee_disconnected"
)

// Frame is the inbound message shape. Data is kept raw so an offer can be
// relayed without being reinterpreted.
type Frame struct {
	Type    FrameType       `json:"type"`
	Data    json.RawMessage `json:"data,omitempty"`
	UserID  string          `json:"user_id,omitempty"`
	Content string          `json:"content,omitempty"`
}

// Unicast reports whether the frame names a single recipient.
func (f Frame) Unicast() bool {
	return f.UserID != ""
}

// ErrorFrame is sent back to the originator of a frame that could not be handled.
type ErrorFrame struct {
	Type    FrameType `json:"type"`
	Message string    `json:"message"`
}

func NewErrorFrame(message string) ErrorFrame {
	return ErrorFrame{Type: FrameTypeError, Message: message}
}

// PeerNotice tells supervisors an examinee joined or left the room.
type PeerNotice struct {
	Type   FrameType `json:"type"`
	UserID string    `json:"userId"`
}

// RelayRequest is the body POSTed to the video server for an offer.
type RelayRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	UserID  string          `json:"user_id"`
	Role    Role            `json:"role"`
}
