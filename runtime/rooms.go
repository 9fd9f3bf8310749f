package runtime

import (
	"chat-relay/domain"
	"sync"

	"github.com/samber/lo"
)

type Set map[*Connection]struct{}

type room struct {
	mu      sync.RWMutex
	members Set
}

// RoomTable tracks the members of the fixed set of rooms.
// The set of rooms never changes after construction, so only each room's members are locked.
type RoomTable struct {
	rooms map[domain.RoomID]*room
}

func NewRoomTable(ids ...domain.RoomID) *RoomTable {
	if len(ids) == 0 {
		ids = domain.Rooms
	}
	rooms := make(map[domain.RoomID]*room, len(ids))
	for _, id := range ids {
		rooms[id] = &room{members: make(Set)}
	}
	return &RoomTable{rooms: rooms}
}

func (t *RoomTable) IsValidRoom(id domain.RoomID) bool {
	_, ok := t.rooms[id]
	return ok
}

// Join moves conn into room id, leaving its previous room first.
// It returns the previous room, empty if there was none, and false for an unknown room.
func (t *RoomTable) Join(conn *Connection, id domain.RoomID) (domain.RoomID, bool) {
	target, ok := t.rooms[id]
	if !ok || conn == nil {
		return "", false
	}
	previous := conn.swapRoom(id)
	if previous == id {
		return previous, true
	}
	if old, exists := t.rooms[previous]; exists {
		old.remove(conn)
	}
	target.add(conn)
	return previous, true
}

// Leave clears the current room of conn and returns it.
func (t *RoomTable) Leave(conn *Connection) (domain.RoomID, bool) {
	if conn == nil {
		return "", false
	}
	previous := conn.swapRoom("")
	if previous == "" {
		return "", false
	}
	if old, exists := t.rooms[previous]; exists {
		old.remove(conn)
	}
	return previous, true
}

// MembersOf returns a snapshot of the connections joined to room id.
func (t *RoomTable) MembersOf(id domain.RoomID) []*Connection {
	r, ok := t.rooms[id]
	if !ok {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.members)
}

// Occupancy returns the member count of every room.
func (t *RoomTable) Occupancy() map[domain.RoomID]int {
	occupancy := make(map[domain.RoomID]int, len(t.rooms))
	for id, r := range t.rooms {
		r.mu.RLock()
		occupancy[id] = len(r.members)
		r.mu.RUnlock()
	}
	return occupancy
}

func (r *room) add(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[conn] = struct{}{}
}

func (r *room) remove(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, conn)
}
