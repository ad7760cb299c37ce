// Package registry tracks which connections are joined to which rooms. A
// connection is in at most one room at a time; joining a new room implicitly
// leaves the previous one, and leaving is idempotent so the unload, link and
// disconnect paths can all call it without coordination.
package registry

import "sync"

// Member is one live connection owned by a user.
type Member interface {
	UserID() string
}

type Registry struct {
	mu      sync.RWMutex
	rooms   map[string]map[Member]struct{}
	current map[Member]string
}

func New() *Registry {
	return &Registry{
		rooms:   make(map[string]map[Member]struct{}),
		current: make(map[Member]string),
	}
}

// Join registers m in room, implicitly leaving any previous room. It returns
// the room that was left, or "" if the member was not in one. Joining the
// room the member is already in is a no-op ("" is returned).
func (r *Registry) Join(m Member, room string) (left string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.current[m]
	if ok && prev == room {
		return ""
	}
	if ok {
		r.removeLocked(m, prev)
		left = prev
	}
	set, ok := r.rooms[room]
	if !ok {
		set = make(map[Member]struct{})
		r.rooms[room] = set
	}
	set[m] = struct{}{}
	r.current[m] = room
	return left
}

// Leave removes m from room and reports whether a membership was actually
// removed. Leaving a room the member is not in is a no-op, not an error.
func (r *Registry) Leave(m Member, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current[m] != room {
		return false
	}
	r.removeLocked(m, room)
	delete(r.current, m)
	return true
}

// LeaveAll removes m from whatever room it is in (the disconnect path) and
// returns that room, or "" if the member was not in one.
func (r *Registry) LeaveAll(m Member) (left string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.current[m]
	if !ok {
		return ""
	}
	r.removeLocked(m, room)
	delete(r.current, m)
	return room
}

func (r *Registry) removeLocked(m Member, room string) {
	set, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(set, m)
	if len(set) == 0 {
		delete(r.rooms, room)
	}
}

// Members returns a snapshot of the connections currently joined to room.
func (r *Registry) Members(room string) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.rooms[room]
	members := make([]Member, 0, len(set))
	for m := range set {
		members = append(members, m)
	}
	return members
}

// Room returns the room m is currently joined to, or "".
func (r *Registry) Room(m Member) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current[m]
}

// IsViewing reports whether any of the user's connections is joined to room.
// The unseen counter suppresses increments for viewing users.
func (r *Registry) IsViewing(userID, room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for m := range r.rooms[room] {
		if m.UserID() == userID {
			return true
		}
	}
	return false
}
