package realtime_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"RTChat/service/realtime"
	"RTChat/service/realtime/handlers"
	"RTChat/tools/security"
)

var testSecret = []byte("test-secret")

func newTestServer(t *testing.T) (*httptest.Server, *realtime.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := realtime.NewServer(realtime.Config{
		NodeID:        "test-node",
		SessionSecret: testSecret,
	}, nil)
	handlers.RegisterAll(srv)

	r := gin.New()
	r.GET("/ws", srv.HandleWS)
	ts := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return ts, srv
}

func wsURL(ts *httptest.Server, query string) string {
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	if query != "" {
		u += "?" + query
	}
	return u
}

func dialUser(t *testing.T, ts *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(
		wsURL(ts, "userId="+userID+"&userEmail="+userID+"%40example.com"), nil)
	if err != nil {
		t.Fatalf("dial %s: %v", userID, err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func sendEvent(t *testing.T, ws *websocket.Conn, event string, payload any) {
	t.Helper()
	raw, err := realtime.MarshalEvent(event, payload)
	if err != nil {
		t.Fatalf("marshal %s: %v", event, err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write %s: %v", event, err)
	}
}

func readEvent(t *testing.T, ws *websocket.Conn) *realtime.Envelope {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	env, err := realtime.ParseEnvelope(raw)
	if err != nil {
		t.Fatalf("parse %s: %v", raw, err)
	}
	return env
}

func expectSilence(t *testing.T, ws *websocket.Conn) {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, raw, err := ws.ReadMessage(); err == nil {
		t.Fatalf("expected no frame, got %s", raw)
	}
}

// barrier proves every frame sent so far on ws has been dispatched: frames
// on one connection are handled in order, and sendMessage always echoes
// messageSent to the sender.
func barrier(t *testing.T, ws *websocket.Conn) {
	t.Helper()
	sendEvent(t, ws, realtime.EvtSendMessage, realtime.MessageData{
		Text: "barrier", ChannelID: "barrier-room",
	})
	if env := readEvent(t, ws); env.Event != realtime.EvtMessageSent {
		t.Fatalf("barrier got %q, want messageSent", env.Event)
	}
}

// joinTwo puts alice then bob into the channel; on return both joins are
// fully processed and bob's userJoined has been consumed from alice.
func joinTwo(t *testing.T, ts *httptest.Server, channelID string) (alice, bob *websocket.Conn) {
	t.Helper()
	alice = dialUser(t, ts, "alice")
	sendEvent(t, alice, realtime.EvtJoinChannel, realtime.ChannelRef{ChannelID: channelID})
	barrier(t, alice)

	bob = dialUser(t, ts, "bob")
	sendEvent(t, bob, realtime.EvtJoinChannel, realtime.ChannelRef{ChannelID: channelID})
	env := readEvent(t, alice)
	if env.Event != realtime.EvtUserJoined || env.Data["userId"] != "bob" {
		t.Fatalf("alice got %+v, want bob's userJoined", env)
	}
	return alice, bob
}

func TestHandshakeRejectedWithoutCredentials(t *testing.T) {
	ts, srv := newTestServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, ""), nil)
	if err == nil {
		t.Fatalf("dial succeeded without credentials")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %v, want 401", resp)
	}
	if got := srv.Conns().Count(); got != 0 {
		t.Fatalf("rejected handshake left %d connections", got)
	}
}

func TestHandshakeWithSessionToken(t *testing.T) {
	ts, srv := newTestServer(t)

	token, _, err := security.Generate(security.DefaultOptions(testSecret), "carol", "carol@example.com")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	ws, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "token="+token), nil)
	if err != nil {
		t.Fatalf("dial with token: %v", err)
	}
	defer ws.Close()

	deadline := time.Now().Add(time.Second)
	for srv.Conns().Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	conns := srv.Conns().ListByUser("carol")
	if len(conns) != 1 || conns[0].UserEmail != "carol@example.com" {
		t.Fatalf("ListByUser(carol) = %+v", conns)
	}
}

func TestHandshakeRejectedWithBadToken(t *testing.T) {
	ts, _ := newTestServer(t)

	other, _, err := security.Generate(security.DefaultOptions([]byte("wrong-secret")), "carol", "carol@example.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "token="+other), nil); err == nil {
		t.Fatalf("dial with forged token succeeded")
	} else if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %v, want 401", resp)
	}
}

func TestSendMessageBroadcastAndEcho(t *testing.T) {
	ts, _ := newTestServer(t)
	alice, bob := joinTwo(t, ts, "c1")

	sendEvent(t, bob, realtime.EvtSendMessage, realtime.MessageData{
		Text: "hello", SenderID: "bob", SenderName: "Bob", ChannelID: "c1",
	})

	got := readEvent(t, alice)
	if got.Event != realtime.EvtNewMessage {
		t.Fatalf("alice got %q, want newMessage", got.Event)
	}
	echo := readEvent(t, bob)
	if echo.Event != realtime.EvtMessageSent {
		t.Fatalf("bob got %q, want messageSent", echo.Event)
	}

	// server-stamped id and timestamp, identical in both frames
	id, _ := got.Data["id"].(string)
	ts1, _ := got.Data["timestamp"].(string)
	if id == "" || ts1 == "" {
		t.Fatalf("broadcast missing server stamps: %+v", got.Data)
	}
	if echo.Data["id"] != id || echo.Data["timestamp"] != ts1 {
		t.Fatalf("echo stamps differ: broadcast=%+v echo=%+v", got.Data, echo.Data)
	}
	if got.Data["text"] != "hello" {
		t.Fatalf("text = %v", got.Data["text"])
	}

	// sender must not also receive the broadcast copy
	expectSilence(t, bob)
}

func TestTypingExcludesSender(t *testing.T) {
	ts, _ := newTestServer(t)
	alice, bob := joinTwo(t, ts, "c1")

	sendEvent(t, bob, realtime.EvtTyping, realtime.TypingData{
		UserID: "bob", UserName: "Bob", ChannelID: "c1", IsTyping: true,
	})

	env := readEvent(t, alice)
	if env.Event != realtime.EvtUserTyping || env.Data["userId"] != "bob" || env.Data["isTyping"] != true {
		t.Fatalf("alice got %+v", env)
	}
	expectSilence(t, bob)
}

func TestEditAndDeleteMessage(t *testing.T) {
	ts, _ := newTestServer(t)
	alice, bob := joinTwo(t, ts, "c1")

	sendEvent(t, bob, realtime.EvtEditMessage, realtime.EditMessageData{
		MessageID: "m1", NewText: "fixed", ChannelID: "c1",
	})
	env := readEvent(t, alice)
	if env.Event != realtime.EvtMessageUpdated {
		t.Fatalf("got %q, want messageUpdated", env.Event)
	}
	if env.Data["isEdited"] != true {
		t.Fatalf("edit not flagged: %+v", env.Data)
	}
	if ts2, _ := env.Data["timestamp"].(string); ts2 == "" {
		t.Fatalf("edit missing timestamp: %+v", env.Data)
	}

	sendEvent(t, bob, realtime.EvtDeleteMessage, realtime.DeleteMessageData{
		MessageID: "m1", ChannelID: "c1",
	})
	env = readEvent(t, alice)
	if env.Event != realtime.EvtMessageDeleted || env.Data["messageId"] != "m1" {
		t.Fatalf("got %+v, want messageDeleted m1", env)
	}
	expectSilence(t, bob)
}

func TestReactionStampsSender(t *testing.T) {
	ts, _ := newTestServer(t)
	alice, bob := joinTwo(t, ts, "c1")

	// userId in the payload is ignored; the connection identity wins
	sendEvent(t, bob, realtime.EvtAddReaction, realtime.ReactionData{
		MessageID: "m1", Emoji: "+1", ChannelID: "c1", UserID: "mallory",
	})
	env := readEvent(t, alice)
	if env.Event != realtime.EvtReactionAdded {
		t.Fatalf("got %q, want reactionAdded", env.Event)
	}
	if env.Data["userId"] != "bob" {
		t.Fatalf("reaction userId = %v, want bob", env.Data["userId"])
	}
	if ts2, _ := env.Data["timestamp"].(string); ts2 == "" {
		t.Fatalf("reaction missing timestamp")
	}

	sendEvent(t, bob, realtime.EvtRemoveReaction, realtime.ReactionData{
		MessageID: "m1", Emoji: "+1", ChannelID: "c1",
	})
	if env := readEvent(t, alice); env.Event != realtime.EvtReactionRemoved {
		t.Fatalf("got %q, want reactionRemoved", env.Event)
	}
}

func TestMemberAddBroadcastAndConfirmation(t *testing.T) {
	ts, _ := newTestServer(t)
	alice, bob := joinTwo(t, ts, "c1")

	sendEvent(t, alice, realtime.EvtMemberAdded, realtime.MemberData{
		UserID: "carol", UserName: "Carol", ChannelID: "c1", ChannelName: "General",
	})

	env := readEvent(t, bob)
	if env.Event != realtime.EvtUserAddedToChannel || env.Data["userId"] != "carol" {
		t.Fatalf("bob got %+v, want carol's userAddedToChannel", env)
	}
	confirm := readEvent(t, alice)
	if confirm.Event != realtime.EvtMemberAddedConfirm {
		t.Fatalf("alice got %q, want memberAddedConfirmation", confirm.Event)
	}
	// confirmation carries the same payload as the broadcast
	if b1, _ := json.Marshal(env.Data); string(b1) != mustJSON(t, confirm.Data) {
		t.Fatalf("confirmation differs from broadcast: %+v vs %+v", env.Data, confirm.Data)
	}
}

func TestMemberRemoveBroadcastAndConfirmation(t *testing.T) {
	ts, _ := newTestServer(t)
	alice, bob := joinTwo(t, ts, "c1")

	sendEvent(t, alice, realtime.EvtMemberRemoved, realtime.MemberData{
		UserID: "carol", ChannelID: "c1",
	})
	if env := readEvent(t, bob); env.Event != realtime.EvtUserRemovedFromChannel {
		t.Fatalf("bob got %q", env.Event)
	}
	if env := readEvent(t, alice); env.Event != realtime.EvtMemberRemovedConfirm {
		t.Fatalf("alice got %q", env.Event)
	}
}

func TestLeaveChannelStopsDelivery(t *testing.T) {
	ts, _ := newTestServer(t)
	alice, bob := joinTwo(t, ts, "c1")

	sendEvent(t, bob, realtime.EvtLeaveChannel, realtime.ChannelRef{ChannelID: "c1"})
	if env := readEvent(t, alice); env.Event != realtime.EvtUserLeft || env.Data["userId"] != "bob" {
		t.Fatalf("alice got %+v, want bob's userLeft", env)
	}

	sendEvent(t, alice, realtime.EvtSendMessage, realtime.MessageData{
		Text: "anyone here?", SenderID: "alice", ChannelID: "c1",
	})
	if env := readEvent(t, alice); env.Event != realtime.EvtMessageSent {
		t.Fatalf("alice got %q, want her echo", env.Event)
	}
	expectSilence(t, bob)
}

func TestMalformedFrameKeepsConnectionAlive(t *testing.T) {
	ts, _ := newTestServer(t)
	alice, bob := joinTwo(t, ts, "c1")

	if err := bob.WriteMessage(websocket.TextMessage, []byte("{{{not json")); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	if err := bob.WriteMessage(websocket.TextMessage, []byte(`{"event":"noSuchEvent","data":{}}`)); err != nil {
		t.Fatalf("write unknown event: %v", err)
	}

	// the connection still works after both bad frames
	sendEvent(t, bob, realtime.EvtSendMessage, realtime.MessageData{
		Text: "still here", SenderID: "bob", ChannelID: "c1",
	})
	if env := readEvent(t, alice); env.Event != realtime.EvtNewMessage {
		t.Fatalf("alice got %q, want newMessage", env.Event)
	}
}

func TestDisconnectCleansRoomState(t *testing.T) {
	ts, srv := newTestServer(t)
	alice, bob := joinTwo(t, ts, "c1")

	_ = bob.Close()
	deadline := time.Now().Add(2 * time.Second)
	for srv.Rooms().Count("c1") > 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := srv.Rooms().Count("c1"); got != 1 {
		t.Fatalf("room count after disconnect = %d, want 1", got)
	}

	// broadcast now reaches only alice
	if n := srv.Broadcast("c1", realtime.EvtNewMessage, realtime.MessageData{Text: "x", ChannelID: "c1"}, ""); n != 1 {
		t.Fatalf("Broadcast reached %d conns, want 1", n)
	}
	if env := readEvent(t, alice); env.Event != realtime.EvtNewMessage {
		t.Fatalf("alice got %q", env.Event)
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(raw)
}
