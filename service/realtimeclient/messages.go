package realtimeclient

import (
	"sync"
	"time"

	"RTChat/service/realtime"
)

// dedupWindow is how close two timestamps must be for equal-content
// messages to count as the same logical message.
const dedupWindow = time.Second

// MessageLog is the locally held message list with duplicate suppression.
// A message is a duplicate when its id is already present, or when an
// existing entry has identical text and a timestamp within one second,
// which is exactly the optimistic-append-then-server-echo case.
type MessageLog struct {
	mu   sync.Mutex
	msgs []realtime.MessageData
	byID map[string]int // id -> index in msgs
}

func NewMessageLog() *MessageLog {
	return &MessageLog{byID: make(map[string]int)}
}

// Append adds the message unless it is a duplicate. Returns true when the
// list grew.
func (l *MessageLog) Append(m realtime.MessageData) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if m.ID != "" {
		if _, ok := l.byID[m.ID]; ok {
			return false
		}
	}
	for _, existing := range l.msgs {
		if existing.Text == m.Text && existing.ChannelID == m.ChannelID &&
			withinWindow(existing.Timestamp, m.Timestamp) {
			return false
		}
	}

	l.msgs = append(l.msgs, m)
	if m.ID != "" {
		l.byID[m.ID] = len(l.msgs) - 1
	}
	return true
}

// ApplyEdit rewrites the text of the matching message in place.
func (l *MessageLog) ApplyEdit(data realtime.EditMessageData) {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx, ok := l.byID[data.MessageID]
	if !ok {
		return
	}
	l.msgs[idx].Text = data.NewText
	if data.Timestamp != "" {
		l.msgs[idx].Timestamp = data.Timestamp
	}
}

// ApplyDelete drops the matching message.
func (l *MessageLog) ApplyDelete(data realtime.DeleteMessageData) {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx, ok := l.byID[data.MessageID]
	if !ok {
		return
	}
	l.msgs = append(l.msgs[:idx], l.msgs[idx+1:]...)
	delete(l.byID, data.MessageID)
	// reindex the tail
	for i := idx; i < len(l.msgs); i++ {
		if id := l.msgs[i].ID; id != "" {
			l.byID[id] = i
		}
	}
}

func (l *MessageLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.msgs)
}

// Messages returns a copy of the list in arrival order.
func (l *MessageLog) Messages() []realtime.MessageData {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]realtime.MessageData, len(l.msgs))
	copy(out, l.msgs)
	return out
}

func withinWindow(a, b string) bool {
	ta, errA := parseISO(a)
	tb, errB := parseISO(b)
	if errA != nil || errB != nil {
		return false
	}
	d := ta.Sub(tb)
	if d < 0 {
		d = -d
	}
	return d <= dedupWindow
}

func parseISO(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
