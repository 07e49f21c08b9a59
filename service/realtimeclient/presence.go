package realtimeclient

import (
	"sort"
	"sync"
	"time"

	"RTChat/service/realtime"
	"RTChat/tools/decode"
)

// TypingTracker holds the set of users currently typing in the active
// channel. Every isTyping:true re-arms a per-user decay timer; the entry
// falls out on isTyping:false or when the timer fires, whichever comes
// first. The decay is a local safety net: the sender's own stop event can
// be lost.
type TypingTracker struct {
	mu     sync.Mutex
	decay  time.Duration
	users  map[string]struct{}
	timers map[string]*time.Timer
	gens   map[string]uint64
}

const DefaultTypingDecay = time.Second

func NewTypingTracker(decay time.Duration) *TypingTracker {
	if decay <= 0 {
		decay = DefaultTypingDecay
	}
	return &TypingTracker{
		decay:  decay,
		users:  make(map[string]struct{}),
		timers: make(map[string]*time.Timer),
		gens:   make(map[string]uint64),
	}
}

// Apply folds one userTyping event into the set.
func (t *TypingTracker) Apply(data realtime.TypingData) {
	if data.UserID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if !data.IsTyping {
		t.removeLocked(data.UserID)
		return
	}
	t.armLocked(data.UserID)
}

// armLocked marks the user typing and re-arms their decay timer. The
// generation counter guards against a timer whose callback already fired but
// has not taken the lock yet: Stop cannot retract a fired AfterFunc, so the
// callback re-checks that its generation is still the current one before
// removing the entry.
func (t *TypingTracker) armLocked(userID string) {
	t.users[userID] = struct{}{}
	if timer, ok := t.timers[userID]; ok {
		timer.Stop()
	}
	t.gens[userID]++
	gen := t.gens[userID]
	t.timers[userID] = time.AfterFunc(t.decay, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.gens[userID] != gen {
			return
		}
		t.removeLocked(userID)
	})
}

func (t *TypingTracker) removeLocked(userID string) {
	delete(t.users, userID)
	if timer, ok := t.timers[userID]; ok {
		timer.Stop()
		delete(t.timers, userID)
	}
	// gens stays: a stale fired callback must keep seeing a newer generation
}

// Users returns the current typing set, sorted for stable rendering.
func (t *TypingTracker) Users() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.users))
	for u := range t.users {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// IsTyping reports whether the user is in the set.
func (t *TypingTracker) IsTyping(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.users[userID]
	return ok
}

// Stop cancels all pending decay timers (session teardown).
func (t *TypingTracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for u, timer := range t.timers {
		timer.Stop()
		delete(t.timers, u)
		t.gens[u]++
	}
	t.users = make(map[string]struct{})
}

// ChannelMembers mirrors the per-channel member lists from
// userAddedToChannel / userRemovedFromChannel broadcasts.
type ChannelMembers struct {
	mu sync.Mutex
	m  map[string][]realtime.MemberData // channelId -> members
}

func NewChannelMembers() *ChannelMembers {
	return &ChannelMembers{m: make(map[string][]realtime.MemberData)}
}

func (c *ChannelMembers) ApplyAdded(data realtime.MemberData) {
	if data.ChannelID == "" || data.UserID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.m[data.ChannelID] {
		if m.UserID == data.UserID {
			return
		}
	}
	c.m[data.ChannelID] = append(c.m[data.ChannelID], data)
}

func (c *ChannelMembers) ApplyRemoved(data realtime.MemberData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	members := c.m[data.ChannelID]
	out := members[:0]
	for _, m := range members {
		if m.UserID != data.UserID {
			out = append(out, m)
		}
	}
	c.m[data.ChannelID] = out
}

func (c *ChannelMembers) List(channelID string) []realtime.MemberData {
	c.mu.Lock()
	defer c.mu.Unlock()
	members := c.m[channelID]
	out := make([]realtime.MemberData, len(members))
	copy(out, members)
	return out
}

// Coordinator wires a session's inbound events into the ephemeral UI state:
// typing set, member lists and the deduplicated message log.
type Coordinator struct {
	Typing   *TypingTracker
	Members  *ChannelMembers
	Messages *MessageLog

	subs []boundSub
}

type boundSub struct {
	event string
	id    int
}

func NewCoordinator(typingDecay time.Duration) *Coordinator {
	return &Coordinator{
		Typing:   NewTypingTracker(typingDecay),
		Members:  NewChannelMembers(),
		Messages: NewMessageLog(),
	}
}

// Bind registers the coordinator's reducers on the session. Registrations
// survive reconnects like any other listener.
func (co *Coordinator) Bind(s *Session) {
	co.bind(s, realtime.EvtUserTyping, func(data map[string]any) {
		if d, err := decode.DecodeMap[realtime.TypingData](data); err == nil {
			co.Typing.Apply(*d)
		}
	})
	co.bind(s, realtime.EvtNewMessage, func(data map[string]any) {
		if d, err := decode.DecodeMap[realtime.MessageData](data); err == nil {
			co.Messages.Append(*d)
		}
	})
	co.bind(s, realtime.EvtMessageSent, func(data map[string]any) {
		if d, err := decode.DecodeMap[realtime.MessageData](data); err == nil {
			co.Messages.Append(*d)
		}
	})
	co.bind(s, realtime.EvtMessageUpdated, func(data map[string]any) {
		if d, err := decode.DecodeMap[realtime.EditMessageData](data); err == nil {
			co.Messages.ApplyEdit(*d)
		}
	})
	co.bind(s, realtime.EvtMessageDeleted, func(data map[string]any) {
		if d, err := decode.DecodeMap[realtime.DeleteMessageData](data); err == nil {
			co.Messages.ApplyDelete(*d)
		}
	})
	co.bind(s, realtime.EvtUserAddedToChannel, func(data map[string]any) {
		if d, err := decode.DecodeMap[realtime.MemberData](data); err == nil {
			co.Members.ApplyAdded(*d)
		}
	})
	co.bind(s, realtime.EvtUserRemovedFromChannel, func(data map[string]any) {
		if d, err := decode.DecodeMap[realtime.MemberData](data); err == nil {
			co.Members.ApplyRemoved(*d)
		}
	})
}

func (co *Coordinator) bind(s *Session, event string, fn Listener) {
	co.subs = append(co.subs, boundSub{event: event, id: s.On(event, fn)})
}

// Unbind removes the coordinator's listeners and stops decay timers.
func (co *Coordinator) Unbind(s *Session) {
	for _, sub := range co.subs {
		s.Off(sub.event, sub.id)
	}
	co.subs = nil
	co.Typing.Stop()
}
