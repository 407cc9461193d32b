package signaling

import "github.com/mossy-p/proctor-signaling/internal/models"

// room holds members in join order. Rooms are class sized, so lookups scan.
type room struct {
	id      string
	members []*Connection
}

func (r *room) find(userID string, skip *Connection) *Connection {
	for _, c := range r.members {
		if c != skip && c.userID == userID {
			return c
		}
	}
	return nil
}

func (r *room) supervisors() []*Connection {
	var out []*Connection
	for _, c := range r.members {
		if c.role == models.RoleSupervisor {
			out = append(out, c)
		}
	}
	return out
}

func (r *room) userIDs() []string {
	ids := make([]string, 0, len(r.members))
	for _, c := range r.members {
		ids = append(ids, c.userID)
	}
	return ids
}

func (r *room) view() models.RoomView {
	v := models.RoomView{RoomID: r.id, Members: make([]models.MemberView, 0, len(r.members))}
	for _, c := range r.members {
		v.Members = append(v.Members, models.MemberView{ConnectionID: c.id, UserID: c.userID, Role: c.role})
		switch c.role {
		case models.RoleSupervisor:
			v.Supervisors++
		case models.RoleExaminee:
			v.Examinees++
		}
	}
	return v
}

// registry is the room table. It is not safe for concurrent use; Manager
// serializes every call.
//
// A room exists iff it has at least one member.
type registry struct {
	rooms map[string]*room
	conns map[string]*Connection
}

func newRegistry() *registry {
	return &registry{
		rooms: make(map[string]*room),
		conns: make(map[string]*Connection),
	}
}

func (g *registry) add(c *Connection) *room {
	r, ok := g.rooms[c.roomID]
	if !ok {
		r = &room{id: c.roomID}
		g.rooms[c.roomID] = r
	}
	r.members = append(r.members, c)
	g.conns[c.id] = c
	return r
}

// remove reports whether c was registered. The returned room is nil when
// c was its last member.
func (g *registry) remove(c *Connection) (*room, bool) {
	if registered, ok := g.conns[c.id]; !ok || registered != c {
		return nil, false
	}
	delete(g.conns, c.id)

	r := g.rooms[c.roomID]
	if r == nil {
		return nil, true
	}
	for i, m := range r.members {
		if m == c {
			r.members = append(r.members[:i], r.members[i+1:]...)
			break
		}
	}
	if len(r.members) == 0 {
		delete(g.rooms, c.roomID)
		return nil, true
	}
	return r, true
}

func (g *registry) contains(c *Connection) bool {
	registered, ok := g.conns[c.id]
	return ok && registered == c
}

func (g *registry) room(id string) *room {
	return g.rooms[id]
}
