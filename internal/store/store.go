package store

import (
	"sync"

	"battle-service/internal/models"
)

// Store holds current room state keyed by room id. Callers always
// read-modify-write the whole room; there are no merge semantics.
type Store interface {
	Get(roomID string) (models.Room, bool)
	Set(room models.Room)
	Delete(roomID string)
	List() []models.Room
}

type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[string]models.Room
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string]models.Room),
	}
}

func (s *MemoryStore) Get(roomID string) (models.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return models.Room{}, false
	}
	return room.Clone(), true
}

func (s *MemoryStore) Set(room models.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rooms[room.RoomID] = room.Clone()
}

func (s *MemoryStore) Delete(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rooms, roomID)
}

func (s *MemoryStore) List() []models.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]models.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room.Clone())
	}
	return rooms
}
