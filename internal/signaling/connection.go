package signaling

import (
	"time"

	"github.com/mossy-p/proctor-signaling/internal/models"
)

// Websocket close codes used when the server ends a connection (RFC 6455).
const (
	CloseNormal          = 1000
	CloseGoingAway       = 1001
	ClosePolicyViolation = 1008
)

// Transport is the outbound half of a live client session.
//
// Send must not block: implementations queue the frame and report a full
// queue or a closed session as an error. Close must be safe to call more
// than once.
type Transport interface {
	Send(frame []byte) error
	Close(code int, reason string) error
}

// Connection is one authenticated client inside a room. Its transport is
// reachable only through the Manager that created it.
type Connection struct {
	id          string
	userID      string
	role        models.Role
	roomID      string
	connectedAt time.Time
	transport   Transport
}

func (c *Connection) ID() string             { return c.id }
func (c *Connection) UserID() string         { return c.userID }
func (c *Connection) Role() models.Role      { return c.role }
func (c *Connection) RoomID() string         { return c.roomID }
func (c *Connection) ConnectedAt() time.Time { return c.connectedAt }

// Membership is what Lookup reports about a registered connection.
type Membership struct {
	ConnectionID string
	RoomID       string
	UserID       string
	Role         models.Role
	Members      int
}
