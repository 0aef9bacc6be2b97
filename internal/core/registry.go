package core

import "sync"

// Registry tracks live connections: which rooms each one is subscribed to
// and which connections belong to each user. It is one of the two pieces of
// mutable shared state in the process; every mutation is a single step under
// the lock, never spanning a collaborator call.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
	users map[string]map[*Client]struct{}
	// joined is the reverse index used for disconnect teardown.
	joined map[*Client]map[string]struct{}
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:  make(map[string]map[*Client]struct{}),
		users:  make(map[string]map[*Client]struct{}),
		joined: make(map[*Client]map[string]struct{}),
	}
}

// Register makes a connection known to the registry.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.joined[c]; !ok {
		r.joined[c] = make(map[string]struct{})
	}
}

// Bind subscribes the connection to its per-user broadcast channel. Called
// once authentication resolves, so invites reach users not currently viewing
// the relevant room. Returns false for a connection that has already been
// unregistered: auth resolving after a disconnect must not bind the dead
// connection into the user set.
func (r *Registry) Bind(c *Client, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, registered := r.joined[c]; !registered {
		return false
	}
	set, ok := r.users[userID]
	if !ok {
		set = make(map[*Client]struct{})
		r.users[userID] = set
	}
	set[c] = struct{}{}
	return true
}

// JoinRoom adds the connection to the room's subscriber set. Returns false
// if it was already subscribed.
func (r *Registry) JoinRoom(c *Client, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.rooms[roomID]
	if !ok {
		set = make(map[*Client]struct{})
		r.rooms[roomID] = set
	}
	if _, exists := set[c]; exists {
		return false
	}
	set[c] = struct{}{}
	if j, ok := r.joined[c]; ok {
		j[roomID] = struct{}{}
	}
	return true
}

// LeaveRoom removes the connection from the room's subscriber set.
func (r *Registry) LeaveRoom(c *Client, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeFromRoom(c, roomID)
}

func (r *Registry) removeFromRoom(c *Client, roomID string) {
	if set, ok := r.rooms[roomID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(r.rooms, roomID)
		}
	}
	if j, ok := r.joined[c]; ok {
		delete(j, roomID)
	}
}

// Unregister removes the connection from every room's subscriber set and
// from its user channel. Called on transport disconnect.
func (r *Registry) Unregister(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for roomID := range r.joined[c] {
		if set, ok := r.rooms[roomID]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(r.rooms, roomID)
			}
		}
	}
	delete(r.joined, c)

	if p, ok := c.Resolved(); ok {
		if set, ok := r.users[p.UserID]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(r.users, p.UserID)
			}
		}
	}
}

// InRoom reports whether the connection is currently subscribed to the room.
func (r *Registry) InRoom(c *Client, roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[roomID][c]
	return ok
}

// BroadcastRoom delivers an event to every connection subscribed to the
// room, at most once per connection, best effort. except is skipped when
// non-nil.
func (r *Registry) BroadcastRoom(roomID string, ev *Event, except *Client) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for c := range r.rooms[roomID] {
		if c == except {
			continue
		}
		c.send(ev)
	}
}

// BroadcastUser delivers an event to every connection belonging to the user.
func (r *Registry) BroadcastUser(userID string, ev *Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for c := range r.users[userID] {
		c.send(ev)
	}
}
