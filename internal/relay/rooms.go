package relay

import (
	"errors"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrMemberNotFound = errors.New("member not found")
)

// Member is one connected client of a room.
type Member struct {
	ID       string
	Data     string // JSON-encoded models.UserData, may be empty
	JoinedAt time.Time
}

type room struct {
	id        string
	members   map[string]Member
	streams   map[string]StreamInfo
	createdAt time.Time
	updatedAt time.Time
	expiresAt time.Time
}

// RoomStore tracks relay rooms keyed by session id. Rooms appear on first
// join and expire after sitting idle past the TTL.
type RoomStore struct {
	mu              sync.Mutex
	rooms           map[string]*room
	roomTTL         time.Duration
	cleanupInterval time.Duration
}

func NewRoomStore() *RoomStore {
	s := &RoomStore{
		rooms:           make(map[string]*room),
		roomTTL:         30 * time.Minute,
		cleanupInterval: time.Hour,
	}
	go s.cleanupLoop()
	return s
}

// Join adds a member to the room, creating the room if needed, and
// returns the assigned connection id plus a snapshot of the peers and
// streams already present.
func (s *RoomStore) Join(roomID, data string, now time.Time) (string, []Member, []StreamInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok || s.expiredLocked(r, now) {
		r = &room{
			id:        roomID,
			members:   make(map[string]Member),
			streams:   make(map[string]StreamInfo),
			createdAt: now,
		}
		s.rooms[roomID] = r
	}

	connID, err := gonanoid.New(16)
	if err != nil {
		return "", nil, nil, err
	}

	peers := make([]Member, 0, len(r.members))
	for _, m := range r.members {
		peers = append(peers, m)
	}
	streams := make([]StreamInfo, 0, len(r.streams))
	for _, st := range r.streams {
		streams = append(streams, st)
	}

	r.members[connID] = Member{ID: connID, Data: data, JoinedAt: now}
	s.touchLocked(r, now)
	return connID, peers, streams, nil
}

// Leave removes a member and every stream they announced. The removed
// streams come back so the caller can broadcast their teardown.
func (s *RoomStore) Leave(roomID, connID string, now time.Time) []StreamInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	delete(r.members, connID)

	var removed []StreamInfo
	for id, st := range r.streams {
		if st.ConnectionID == connID {
			removed = append(removed, st)
			delete(r.streams, id)
		}
	}

	if len(r.members) == 0 {
		delete(s.rooms, roomID)
		return removed
	}
	s.touchLocked(r, now)
	return removed
}

// AddStream records a member's stream announcement.
func (s *RoomStore) AddStream(roomID, connID string, st StreamInfo, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	if _, ok := r.members[connID]; !ok {
		return ErrMemberNotFound
	}
	st.ConnectionID = connID
	r.streams[st.ID] = st
	s.touchLocked(r, now)
	return nil
}

// RemoveStream drops a stream announcement. Only the announcing member
// may remove its own streams.
func (s *RoomStore) RemoveStream(roomID, connID, streamID string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return false
	}
	st, ok := r.streams[streamID]
	if !ok || st.ConnectionID != connID {
		return false
	}
	delete(r.streams, streamID)
	s.touchLocked(r, now)
	return true
}

// MemberCount reports the current room size, 0 for unknown rooms.
func (s *RoomStore) MemberCount(roomID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return 0
	}
	return len(r.members)
}

func (s *RoomStore) touchLocked(r *room, now time.Time) {
	r.updatedAt = now
	r.expiresAt = now.Add(s.roomTTL)
}

func (s *RoomStore) expiredLocked(r *room, now time.Time) bool {
	return !r.expiresAt.IsZero() && now.After(r.expiresAt)
}

func (s *RoomStore) cleanupExpiredLocked(now time.Time) {
	for id, r := range s.rooms {
		if s.expiredLocked(r, now) {
			delete(s.rooms, id)
		}
	}
}

func (s *RoomStore) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()
	for range ticker.C {
		s.mu.Lock()
		s.cleanupExpiredLocked(time.Now())
		s.mu.Unlock()
	}
}
