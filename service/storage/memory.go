package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the in-process Store used for development and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	channels map[string]Channel
	members  map[string]map[string]struct{} // channel -> user set
	users    map[string]User
	messages map[string][]Message // channel -> recent messages
	online   map[string]onlineRec

	maxMessages int
	clock       func() time.Time // injectable for tests
}

type onlineRec struct {
	nodeID   string
	expireAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		channels:    make(map[string]Channel),
		members:     make(map[string]map[string]struct{}),
		users:       make(map[string]User),
		messages:    make(map[string][]Message),
		online:      make(map[string]onlineRec),
		maxMessages: 100,
		clock:       time.Now,
	}
}

func (s *MemoryStore) CreateChannel(_ context.Context, ch Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[ch.ID] = ch
	if s.members[ch.ID] == nil {
		s.members[ch.ID] = make(map[string]struct{})
	}
	return nil
}

func (s *MemoryStore) GetChannel(_ context.Context, id string) (*Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[id]
	if !ok {
		return nil, ErrChannelNotFound
	}
	return &ch, nil
}

func (s *MemoryStore) ChannelExists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.channels[id]
	return ok, nil
}

func (s *MemoryStore) AddMember(_ context.Context, channelID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.channels[channelID]; !ok {
		return ErrChannelNotFound
	}
	m := s.members[channelID]
	if m == nil {
		m = make(map[string]struct{})
		s.members[channelID] = m
	}
	if _, ok := m[userID]; ok {
		return ErrAlreadyMember
	}
	m[userID] = struct{}{}
	return nil
}

func (s *MemoryStore) RemoveMember(_ context.Context, channelID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m := s.members[channelID]; m != nil {
		delete(m, userID)
	}
	return nil
}

func (s *MemoryStore) IsMember(_ context.Context, channelID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := s.members[channelID]
	if m == nil {
		return false, nil
	}
	_, ok := m[userID]
	return ok, nil
}

func (s *MemoryStore) ListMembers(_ context.Context, channelID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := s.members[channelID]
	out := make([]string, 0, len(m))
	for u := range m {
		out = append(out, u)
	}
	return out, nil
}

func (s *MemoryStore) UpsertUser(_ context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, m Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := append(s.messages[m.ChannelID], m)
	if len(list) > s.maxMessages {
		list = list[len(list)-s.maxMessages:]
	}
	s.messages[m.ChannelID] = list
	return nil
}

func (s *MemoryStore) RecentMessages(_ context.Context, channelID string, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.messages[channelID]
	if limit > 0 && len(list) > limit {
		list = list[len(list)-limit:]
	}
	out := make([]Message, len(list))
	copy(out, list)
	return out, nil
}

func (s *MemoryStore) SetOnline(_ context.Context, userID, nodeID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online[userID] = onlineRec{nodeID: nodeID, expireAt: s.clock().Add(ttl)}
	return nil
}

func (s *MemoryStore) SetOffline(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.online, userID)
	return nil
}

func (s *MemoryStore) LookupOnline(_ context.Context, userID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.online[userID]
	if !ok || s.clock().After(rec.expireAt) {
		return "", false, nil
	}
	return rec.nodeID, true, nil
}
