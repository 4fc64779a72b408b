package registry

import (
	"context"
	"sort"
	"sync"
)

type roomKey struct {
	room string
	mode int
}

// MemoryStore keeps the registry in process. A single mutex makes the
// capacity check and the insert one step. Leases are not tracked; a record
// lives until it is deleted.
type MemoryStore struct {
	mu      sync.RWMutex
	members map[string]Record
	index   map[roomKey]map[string]struct{}
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		members: make(map[string]Record),
		index:   make(map[roomKey]map[string]struct{}),
	}
}

func (s *MemoryStore) InsertIfBelow(_ context.Context, rec Record, limit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[rec.ConnectionID]; ok {
		return ErrAlreadyMember
	}
	k := roomKey{rec.RoomID, rec.Mode}
	set := s.index[k]
	if len(set) >= limit {
		return ErrCapacityExceeded
	}
	if set == nil {
		set = make(map[string]struct{})
		s.index[k] = set
	}
	set[rec.ConnectionID] = struct{}{}
	s.members[rec.ConnectionID] = rec
	return nil
}

func (s *MemoryStore) Get(_ context.Context, connID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.members[connID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) Delete(_ context.Context, connID string, _ Reason) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.members[connID]
	if !ok {
		return nil
	}
	delete(s.members, connID)
	k := roomKey{rec.RoomID, rec.Mode}
	if set := s.index[k]; set != nil {
		delete(set, connID)
		if len(set) == 0 {
			delete(s.index, k)
		}
	}
	return nil
}

func (s *MemoryStore) QueryByRoomMode(_ context.Context, roomID string, mode int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.index[roomKey{roomID, mode}]
	out := make([]Record, 0, len(set))
	for id := range set {
		out = append(out, s.members[id])
	}
	return out, nil
}

func (s *MemoryStore) Touch(context.Context, string) error { return nil }

func (s *MemoryStore) Count(_ context.Context, roomID string, mode int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index[roomKey{roomID, mode}]), nil
}

func (s *MemoryStore) Rooms(context.Context) ([]Occupancy, error) {
	s.mu.RLock()
	out := make([]Occupancy, 0, len(s.index))
	for k, set := range s.index {
		out = append(out, Occupancy{RoomID: k.room, Mode: k.mode, Members: len(set)})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].RoomID != out[j].RoomID {
			return out[i].RoomID < out[j].RoomID
		}
		return out[i].Mode < out[j].Mode
	})
	return out, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
