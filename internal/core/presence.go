package core

import (
	"sort"
	"sync"
)

// Presence tracks, per room, the set of users currently in an active call.
// Entries are created on first join and deleted when the set becomes empty;
// nothing here survives a restart. No other component touches the map.
type Presence struct {
	mu    sync.Mutex
	rooms map[string]map[string]struct{}
}

// NewPresence constructs an empty call presence tracker.
func NewPresence() *Presence {
	return &Presence{rooms: make(map[string]map[string]struct{})}
}

// Join adds the user to the room's call and returns the full participant set
// after the join, sorted for stable output.
func (p *Presence) Join(roomID, userID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	set, ok := p.rooms[roomID]
	if !ok {
		set = make(map[string]struct{})
		p.rooms[roomID] = set
	}
	set[userID] = struct{}{}
	return snapshot(set)
}

// Leave removes the user from the room's call. Deletes the room entry when
// the set becomes empty.
func (p *Presence) Leave(roomID, userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remove(roomID, userID)
}

func (p *Presence) remove(roomID, userID string) {
	set, ok := p.rooms[roomID]
	if !ok {
		return
	}
	delete(set, userID)
	if len(set) == 0 {
		delete(p.rooms, roomID)
	}
}

// End clears the whole room's call.
func (p *Presence) End(roomID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.rooms, roomID)
}

// DropUser removes the user from every room they were present in and
// returns those room ids. Unconditional: disconnect cleanup must work even
// when a fresh authorization check for the room would now fail.
func (p *Presence) DropUser(userID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var affected []string
	for roomID, set := range p.rooms {
		if _, ok := set[userID]; ok {
			affected = append(affected, roomID)
			delete(set, userID)
			if len(set) == 0 {
				delete(p.rooms, roomID)
			}
		}
	}
	sort.Strings(affected)
	return affected
}

// Participants returns the current participant set for a room, or nil if the
// room has no active call.
func (p *Presence) Participants(roomID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	set, ok := p.rooms[roomID]
	if !ok {
		return nil
	}
	return snapshot(set)
}

func snapshot(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
