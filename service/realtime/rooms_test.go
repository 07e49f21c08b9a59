package realtime

import (
	"testing"
)

func testConn(id, userID string) *Conn {
	return newConn(id, userID, userID+"@example.com", nil, 8)
}

func TestRoomsJoinLeave(t *testing.T) {
	r := NewRooms()
	a := testConn("c1", "alice")
	b := testConn("c2", "bob")

	r.Join(a, "general")
	r.Join(b, "general")

	if got := r.Count("general"); got != 2 {
		t.Fatalf("Count = %d, want 2", got)
	}
	if !r.Contains(a.ID, "general") {
		t.Fatalf("alice should be in general")
	}

	r.Leave(a, "general")
	if r.Contains(a.ID, "general") {
		t.Fatalf("alice should be gone after Leave")
	}
	if got := r.Count("general"); got != 1 {
		t.Fatalf("Count = %d, want 1", got)
	}
}

func TestRoomsJoinIdempotent(t *testing.T) {
	r := NewRooms()
	a := testConn("c1", "alice")

	r.Join(a, "general")
	r.Join(a, "general")
	r.Join(a, "general")

	if got := r.Count("general"); got != 1 {
		t.Fatalf("Count after repeated Join = %d, want 1", got)
	}
	if got := len(r.Channels(a.ID)); got != 1 {
		t.Fatalf("Channels = %d, want 1", got)
	}
}

func TestRoomsLeaveAbsentIsNoop(t *testing.T) {
	r := NewRooms()
	a := testConn("c1", "alice")

	r.Leave(a, "general")
	r.Leave(a, "nowhere")

	if got := r.Count("general"); got != 0 {
		t.Fatalf("Count = %d, want 0", got)
	}
}

func TestRoomsEmptyChannelIDIsNoop(t *testing.T) {
	r := NewRooms()
	a := testConn("c1", "alice")

	r.Join(a, "")
	if got := len(r.Channels(a.ID)); got != 0 {
		t.Fatalf("Channels after empty Join = %d, want 0", got)
	}
}

func TestRoomsMembersExcept(t *testing.T) {
	r := NewRooms()
	a := testConn("c1", "alice")
	b := testConn("c2", "bob")
	r.Join(a, "general")
	r.Join(b, "general")

	members := r.Members("general", a.ID)
	if len(members) != 1 || members[0].ID != b.ID {
		t.Fatalf("Members except alice = %+v, want just bob", members)
	}

	all := r.Members("general", "")
	if len(all) != 2 {
		t.Fatalf("Members with no exclusion = %d, want 2", len(all))
	}
}

func TestRoomsLeaveAll(t *testing.T) {
	r := NewRooms()
	a := testConn("c1", "alice")
	r.Join(a, "general")
	r.Join(a, "random")
	r.Join(a, "dev")

	r.LeaveAll(a)

	for _, ch := range []string{"general", "random", "dev"} {
		if r.Contains(a.ID, ch) {
			t.Fatalf("alice still in %s after LeaveAll", ch)
		}
	}
	if got := len(r.Channels(a.ID)); got != 0 {
		t.Fatalf("Channels after LeaveAll = %d, want 0", got)
	}
}

func TestRoomsIndependentConnectionsSameUser(t *testing.T) {
	r := NewRooms()
	tab1 := testConn("c1", "alice")
	tab2 := testConn("c2", "alice")
	r.Join(tab1, "general")
	r.Join(tab2, "general")

	// membership is per connection, not per user
	if got := r.Count("general"); got != 2 {
		t.Fatalf("Count = %d, want 2", got)
	}
	r.Leave(tab1, "general")
	if !r.Contains(tab2.ID, "general") {
		t.Fatalf("closing one tab must not evict the other")
	}
}
