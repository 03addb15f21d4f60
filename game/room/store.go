package room

import "sync"

// Store is the process-wide table of live rooms, keyed by room id. Lookups
// take a read lock only long enough to fetch the pointer; per-room
// serialization is the Room's own concern, so operations on distinct rooms
// never contend here.
type Store struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{rooms: make(map[string]*Room)}
}

// Put registers a room under its id.
func (s *Store) Put(r *Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[r.ID()] = r
}

// Get returns the room with the given id.
func (s *Store) Get(id string) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	return r, ok
}

// Delete removes a room. Deleting an unknown id is a no-op.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, id)
}

// RoomsByConnection locates every room that holds the connection as authority
// or member. Disconnect handling relies on this: the transport only knows the
// connection id, and one socket may be the authority of several rooms at once.
func (s *Store) RoomsByConnection(connID string) []*Room {
	s.mu.RLock()
	rooms := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	s.mu.RUnlock()

	var out []*Room
	for _, r := range rooms {
		if r.HasConnection(connID) {
			out = append(out, r)
		}
	}
	return out
}

// List returns every live room.
func (s *Store) List() []*Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r)
	}
	return out
}

// Count returns the number of live rooms.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}
