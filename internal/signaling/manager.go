package signaling

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mossy-p/proctor-signaling/internal/models"
)

var (
	ErrNilTransport = errors.New("signaling: nil transport")
	ErrMissingRoom  = errors.New("signaling: room id is required")
	ErrMissingUser  = errors.New("signaling: user id is required")
	ErrInvalidRole  = errors.New("signaling: invalid role")
)

// Recorder receives events worth keeping. Implementations must return
// without waiting on the backing store.
type Recorder interface {
	Record(entry models.LogEntry)
	MarkExaminee(userID string, status models.ExamineeStatus)
}

type nopRecorder struct{}

func (nopRecorder) Record(models.LogEntry)                     {}
func (nopRecorder) MarkExaminee(string, models.ExamineeStatus) {}

// Manager owns the room registry. All membership changes and all outbound
// frames go through it.
type Manager struct {
	mu       sync.Mutex
	reg      *registry
	recorder Recorder
	now      func() time.Time
}

func NewManager(recorder Recorder) *Manager {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Manager{
		reg:      newRegistry(),
		recorder: recorder,
		now:      time.Now,
	}
}

// Connect registers an authenticated transport in roomID. On invalid input
// the transport is closed with a policy violation and no state is created.
//
// Supervisors already in the room are told about a connecting examinee
// before Connect returns.
func (m *Manager) Connect(t Transport, roomID, userID string, role models.Role) (*Connection, error) {
	if t == nil {
		return nil, ErrNilTransport
	}
	var err error
	switch {
	case roomID == "":
		err = ErrMissingRoom
	case userID == "":
		err = ErrMissingUser
	case !role.Valid():
		err = fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if err != nil {
		_ = t.Close(ClosePolicyViolation, err.Error())
		return nil, err
	}

	c := &Connection{
		id:          uuid.NewString(),
		userID:      userID,
		role:        role,
		roomID:      roomID,
		connectedAt: m.now(),
		transport:   t,
	}

	m.mu.Lock()
	r := m.reg.add(c)
	var failed []*Connection
	if role == models.RoleExaminee {
		failed = m.notifyLocked(r.supervisors(), models.FrameTypeExamineeConnected, userID)
	}
	members := len(r.members)
	m.mu.Unlock()

	log.Info().Str("module", "signaling").
		Str("room", roomID).Str("user", userID).Str("role", string(role)).
		Str("conn", c.id).Int("members", members).
		Msg("connected")

	m.record(userID, models.LogWebsocketConnected, roomID, nil)
	if role == models.RoleExaminee {
		m.recorder.MarkExaminee(userID, models.ExamineeConnected)
	}
	m.retire(failed)
	return c, nil
}

// Disconnect removes c from its room. It is a no-op for a connection that
// is not registered, so concurrent cleanup paths may all call it.
func (m *Manager) Disconnect(c *Connection) {
	if c == nil {
		return
	}

	m.mu.Lock()
	r, removed := m.reg.remove(c)
	if !removed {
		m.mu.Unlock()
		return
	}
	var failed []*Connection
	if c.role == models.RoleExaminee && r != nil {
		failed = m.notifyLocked(r.supervisors(), models.FrameTypeExamineeDisconnected, c.userID)
	}
	m.mu.Unlock()

	_ = c.transport.Close(CloseNormal, "")

	log.Info().Str("module", "signaling").
		Str("room", c.roomID).Str("user", c.userID).Str("conn", c.id).
		Bool("room_closed", r == nil).
		Msg("disconnected")

	m.record(c.userID, models.LogWebsocketDisconnect, c.roomID, nil)
	if c.role == models.RoleExaminee {
		m.recorder.MarkExaminee(c.userID, models.ExamineeDisconnected)
	}
	m.retire(failed)
}

// Lookup reports whether c is still registered.
func (m *Manager) Lookup(c *Connection) (Membership, bool) {
	if c == nil {
		return Membership{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.reg.contains(c) {
		return Membership{}, false
	}
	info := Membership{
		ConnectionID: c.id,
		RoomID:       c.roomID,
		UserID:       c.userID,
		Role:         c.role,
	}
	if r := m.reg.room(c.roomID); r != nil {
		info.Members = len(r.members)
	}
	return info, true
}

// SendTo writes frame to the first other member of from's room whose user
// id is targetUserID. When there is no such member, or the write fails,
// from receives a single error frame and SendTo returns false.
func (m *Manager) SendTo(from *Connection, targetUserID string, frame []byte) bool {
	m.mu.Lock()
	var target *Connection
	if r := m.reg.room(from.roomID); r != nil {
		target = r.find(targetUserID, from)
	}
	m.mu.Unlock()

	if target == nil {
		m.SendError(from, fmt.Sprintf("User %s not found.", targetUserID))
		return false
	}
	if err := target.transport.Send(frame); err != nil {
		log.Warn().Err(err).Str("module", "signaling").
			Str("room", from.roomID).Str("target", targetUserID).
			Msg("unicast delivery failed")
		m.retire([]*Connection{target})
		m.SendError(from, fmt.Sprintf("Failed to deliver message to user %s.", targetUserID))
		return false
	}
	return true
}

// Broadcast writes frame to every member of roomID except exclude. A failed
// write retires that member only. It returns the user ids of everyone in
// the room at the time of the broadcast, exclude included.
func (m *Manager) Broadcast(roomID string, frame []byte, exclude *Connection) []string {
	m.mu.Lock()
	r := m.reg.room(roomID)
	if r == nil {
		m.mu.Unlock()
		return nil
	}
	ids := r.userIDs()
	recipients := make([]*Connection, 0, len(r.members))
	for _, c := range r.members {
		if c != exclude {
			recipients = append(recipients, c)
		}
	}
	m.mu.Unlock()

	var (
		g        errgroup.Group
		failedMu sync.Mutex
		failed   []*Connection
	)
	for _, c := range recipients {
		g.Go(func() error {
			if err := c.transport.Send(frame); err != nil {
				log.Warn().Err(err).Str("module", "signaling").
					Str("room", roomID).Str("user", c.userID).
					Msg("broadcast delivery failed")
				failedMu.Lock()
				failed = append(failed, c)
				failedMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	m.retire(failed)
	return ids
}

// Deliver writes a raw frame to c alone.
func (m *Manager) Deliver(c *Connection, frame []byte) error {
	if !m.registered(c) {
		return fmt.Errorf("signaling: connection %s is not registered", c.id)
	}
	if err := c.transport.Send(frame); err != nil {
		m.retire([]*Connection{c})
		return err
	}
	return nil
}

// Reply marshals v and delivers it to c.
func (m *Manager) Reply(c *Connection, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("signaling: marshal reply: %w", err)
	}
	return m.Deliver(c, data)
}

func (m *Manager) SendError(c *Connection, message string) {
	if err := m.Reply(c, models.NewErrorFrame(message)); err != nil {
		log.Debug().Err(err).Str("module", "signaling").Str("conn", c.id).Msg("error frame not delivered")
	}
}

// Expel closes c with a policy violation. Cleanup still runs through
// Disconnect.
func (m *Manager) Expel(c *Connection, reason string) {
	_ = c.transport.Close(ClosePolicyViolation, reason)
	m.Disconnect(c)
}

// Kick expels every connection of userID in roomID and returns how many
// were closed.
func (m *Manager) Kick(roomID, userID, reason string) int {
	m.mu.Lock()
	var targets []*Connection
	if r := m.reg.room(roomID); r != nil {
		for _, c := range r.members {
			if c.userID == userID {
				targets = append(targets, c)
			}
		}
	}
	m.mu.Unlock()

	for _, c := range targets {
		m.Expel(c, reason)
	}
	if len(targets) > 0 {
		log.Info().Str("module", "signaling").Str("room", roomID).Str("user", userID).
			Int("connections", len(targets)).Msg("kicked")
	}
	return len(targets)
}

// Room returns a snapshot of roomID, or false if nobody is connected.
func (m *Manager) Room(roomID string) (models.RoomView, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.reg.room(roomID)
	if r == nil {
		return models.RoomView{}, false
	}
	return r.view(), true
}

func (m *Manager) Stats() (rooms, connections int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reg.rooms), len(m.reg.conns)
}

// CloseAll ends every session with going-away. Used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := make([]*Connection, 0, len(m.reg.conns))
	for _, c := range m.reg.conns {
		all = append(all, c)
	}
	m.mu.Unlock()

	for _, c := range all {
		_ = c.transport.Close(CloseGoingAway, "server shutting down")
		m.Disconnect(c)
	}
}

// notifyLocked queues a peer notice to each of to. Transports do not block,
// so calling this under m.mu keeps notices in membership order.
func (m *Manager) notifyLocked(to []*Connection, typ models.FrameType, userID string) []*Connection {
	if len(to) == 0 {
		return nil
	}
	data, err := json.Marshal(models.PeerNotice{Type: typ, UserID: userID})
	if err != nil {
		log.Error().Err(err).Str("module", "signaling").Msg("marshal peer notice")
		return nil
	}
	var failed []*Connection
	for _, c := range to {
		if err := c.transport.Send(data); err != nil {
			failed = append(failed, c)
		}
	}
	return failed
}

// retire drops connections whose transport refused a write. Must not be
// called with m.mu held.
func (m *Manager) retire(conns []*Connection) {
	for _, c := range conns {
		_ = c.transport.Close(ClosePolicyViolation, "send failed")
		m.Disconnect(c)
	}
}

func (m *Manager) registered(c *Connection) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reg.contains(c)
}

func (m *Manager) record(actor string, typ models.LogType, roomID string, content *models.LogContent) {
	m.recorder.Record(models.LogEntry{
		ActorUserID: actor,
		LogType:     typ,
		RoomID:      roomID,
		URLPath:     models.SignalPath(roomID),
		Content:     content,
		CreatedAt:   m.now(),
	})
}
