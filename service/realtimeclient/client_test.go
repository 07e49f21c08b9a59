package realtimeclient_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"RTChat/service/realtime"
	"RTChat/service/realtime/handlers"
	"RTChat/service/realtimeclient"
)

func newGateway(t *testing.T) (*httptest.Server, *realtime.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv := realtime.NewServer(realtime.Config{
		NodeID:        "test-node",
		SessionSecret: []byte("test-secret"),
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

func fastOptions(url, userID string) realtimeclient.Options {
	return realtimeclient.Options{
		URL:          url,
		UserID:       userID,
		UserEmail:    userID + "@example.com",
		MaxAttempts:  3,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     50 * time.Millisecond,
		Multiplier:   2,
	}
}

func wsEndpoint(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNextDelay(t *testing.T) {
	cases := []struct {
		attempts int
		want     time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second}, // 32s capped
		{10, 30 * time.Second},
	}
	for _, tc := range cases {
		got := realtimeclient.NextDelay(time.Second, 30*time.Second, 2, tc.attempts)
		if got != tc.want {
			t.Errorf("NextDelay(attempts=%d) = %v, want %v", tc.attempts, got, tc.want)
		}
	}
}

func TestConnectEmitAndEcho(t *testing.T) {
	ts, _ := newGateway(t)
	s := realtimeclient.NewSession(fastOptions(wsEndpoint(ts), "alice"))
	defer s.Disconnect()

	echoes := make(chan map[string]any, 1)
	s.On(realtime.EvtMessageSent, func(data map[string]any) { echoes <- data })

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if got := s.State(); got != realtimeclient.StateConnected {
		t.Fatalf("State = %v, want Connected", got)
	}

	if !s.JoinChannel("c1") {
		t.Fatalf("JoinChannel returned false")
	}
	if !s.SendMessage(realtime.MessageData{Text: "hi", SenderID: "alice", ChannelID: "c1"}) {
		t.Fatalf("SendMessage returned false")
	}

	select {
	case data := <-echoes:
		id, _ := data["id"].(string)
		stamp, _ := data["timestamp"].(string)
		if id == "" || stamp == "" {
			t.Fatalf("echo missing server stamps: %+v", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no messageSent echo")
	}
}

func TestEmitWhenNotConnected(t *testing.T) {
	s := realtimeclient.NewSession(fastOptions("ws://127.0.0.1:1/ws", "alice"))
	if s.Emit(realtime.EvtSendMessage, realtime.MessageData{Text: "x"}) {
		t.Fatalf("Emit on idle session returned true")
	}
	if s.State() != realtimeclient.StateIdle {
		t.Fatalf("State = %v, want Idle", s.State())
	}
}

func TestConnectTwiceIsNoop(t *testing.T) {
	ts, _ := newGateway(t)
	s := realtimeclient.NewSession(fastOptions(wsEndpoint(ts), "alice"))
	defer s.Disconnect()

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
}

func TestReconnectAfterTransportDrop(t *testing.T) {
	ts, srv := newGateway(t)
	s := realtimeclient.NewSession(fastOptions(wsEndpoint(ts), "alice"))
	defer s.Disconnect()

	connects := make(chan struct{}, 4)
	drops := make(chan struct{}, 4)
	s.On(realtime.EvtConnect, func(map[string]any) { connects <- struct{}{} })
	s.On(realtime.EvtDisconnect, func(map[string]any) { drops <- struct{}{} })

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	<-connects

	// kill the transport server-side; the gateway itself stays up
	for _, c := range srv.Conns().ListByUser("alice") {
		c.WS.Close()
	}

	select {
	case <-drops:
	case <-time.After(3 * time.Second):
		t.Fatalf("no disconnect signal")
	}
	select {
	case <-connects:
	case <-time.After(3 * time.Second):
		t.Fatalf("no reconnect")
	}
	if got := s.State(); got != realtimeclient.StateConnected {
		t.Fatalf("State after reconnect = %v, want Connected", got)
	}

	// listeners registered before the drop still fire afterwards
	echoes := 0
	waitFor(t, "emit after reconnect", func() bool {
		if s.SendMessage(realtime.MessageData{Text: "back", ChannelID: "c1"}) {
			echoes++
			return true
		}
		return false
	})
	if echoes == 0 {
		t.Fatalf("emit never succeeded after reconnect")
	}
}

func TestReconnectFailedIsTerminal(t *testing.T) {
	// a gateway that no longer exists
	ts, _ := newGateway(t)
	endpoint := wsEndpoint(ts)
	ts.Close()

	opts := fastOptions(endpoint, "alice")
	opts.MaxAttempts = 2
	s := realtimeclient.NewSession(opts)

	failed := make(chan struct{}, 1)
	errors := make(chan struct{}, 8)
	s.On(realtime.EvtReconnectFailed, func(map[string]any) { failed <- struct{}{} })
	s.On(realtime.EvtConnectError, func(map[string]any) { errors <- struct{}{} })

	if err := s.Connect(context.Background()); err == nil {
		t.Fatalf("Connect to a dead gateway succeeded")
	}

	select {
	case <-failed:
	case <-time.After(3 * time.Second):
		t.Fatalf("no reconnect_failed signal")
	}
	if got := s.State(); got != realtimeclient.StateFailed {
		t.Fatalf("State = %v, want Failed", got)
	}
	// initial attempt plus MaxAttempts retries, each with a connect_error
	if got := len(errors); got != 3 {
		t.Errorf("connect_error count = %d, want 3", got)
	}

	// a terminal session refuses writes but a fresh Connect may be issued
	if s.Emit(realtime.EvtTyping, nil) {
		t.Fatalf("Emit on failed session returned true")
	}
}

func TestDisconnectSuppressesReconnect(t *testing.T) {
	ts, _ := newGateway(t)
	s := realtimeclient.NewSession(fastOptions(wsEndpoint(ts), "alice"))

	connects := make(chan struct{}, 4)
	s.On(realtime.EvtConnect, func(map[string]any) { connects <- struct{}{} })

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	<-connects

	s.Disconnect()
	if got := s.State(); got != realtimeclient.StateIdle {
		t.Fatalf("State after Disconnect = %v, want Idle", got)
	}

	select {
	case <-connects:
		t.Fatalf("session reconnected after manual Disconnect")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestDisconnectDuringDialStaysTerminal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := realtime.NewServer(realtime.Config{
		NodeID:        "test-node",
		SessionSecret: []byte("test-secret"),
	}, nil)
	handlers.RegisterAll(srv)

	// the handshake parks until released, keeping the dial in flight
	release := make(chan struct{})
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		<-release
		srv.HandleWS(c)
	})
	ts := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})

	s := realtimeclient.NewSession(fastOptions(wsEndpoint(ts), "alice"))
	connects := make(chan struct{}, 2)
	s.On(realtime.EvtConnect, func(map[string]any) { connects <- struct{}{} })

	done := make(chan error, 1)
	go func() { done <- s.Connect(context.Background()) }()
	time.Sleep(50 * time.Millisecond)

	s.Disconnect()
	close(release)

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("Connect never returned")
	}

	if got := s.State(); got != realtimeclient.StateIdle {
		t.Fatalf("State = %v, want Idle", got)
	}
	select {
	case <-connects:
		t.Fatalf("connect fired after Disconnect")
	case <-time.After(300 * time.Millisecond):
	}
	if s.Emit(realtime.EvtTyping, nil) {
		t.Fatalf("Emit succeeded on a disconnected session")
	}
}

func TestOffRemovesListener(t *testing.T) {
	ts, _ := newGateway(t)
	s := realtimeclient.NewSession(fastOptions(wsEndpoint(ts), "alice"))
	defer s.Disconnect()

	fired := make(chan struct{}, 2)
	id := s.On(realtime.EvtConnect, func(map[string]any) { fired <- struct{}{} })
	s.Off(realtime.EvtConnect, id)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	select {
	case <-fired:
		t.Fatalf("removed listener fired")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestListenerPanicDoesNotKillSession(t *testing.T) {
	ts, _ := newGateway(t)
	s := realtimeclient.NewSession(fastOptions(wsEndpoint(ts), "alice"))
	defer s.Disconnect()

	s.On(realtime.EvtConnect, func(map[string]any) { panic("listener bug") })
	ok := make(chan struct{}, 1)
	s.On(realtime.EvtConnect, func(map[string]any) { ok <- struct{}{} })

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	select {
	case <-ok:
	case <-time.After(2 * time.Second):
		t.Fatalf("second listener never fired")
	}
	if !s.IsConnected() {
		t.Fatalf("session dropped after listener panic")
	}
}
