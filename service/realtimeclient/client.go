package realtimeclient

import (
	"context"
	"math"
	"net/url"
	"sync"
	"time"

	"RTChat/logger"
	"RTChat/service/realtime"
	"RTChat/tools/errs"
	"RTChat/tools/safe"

	"github.com/gorilla/websocket"
)

// Options configures a Session. Reconnection defaults follow the web
// client: 5 attempts, 1s initial delay, doubling, capped at 30s.
type Options struct {
	URL       string // ws:// endpoint of the gateway
	UserID    string // handshake claim
	UserEmail string // handshake claim
	Token     string // session token; alternative to explicit claims

	MaxAttempts      int
	InitialDelay     time.Duration
	MaxDelay         time.Duration
	Multiplier       float64
	HandshakeTimeout time.Duration
	WriteWait        time.Duration
}

func (o *Options) norm() {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = time.Second
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	if o.Multiplier <= 0 {
		o.Multiplier = 2
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 5 * time.Second
	}
}

// NextDelay computes the backoff before reconnect attempt number
// attemptsSoFar+1: min(initial * multiplier^attemptsSoFar, max).
func NextDelay(initial, max time.Duration, multiplier float64, attemptsSoFar int) time.Duration {
	d := float64(initial) * math.Pow(multiplier, float64(attemptsSoFar))
	if d > float64(max) {
		return max
	}
	return time.Duration(d)
}

// Listener receives the decoded payload of one event occurrence. Lifecycle
// events (connect/disconnect/connect_error/reconnect_failed) may carry nil.
type Listener func(data map[string]any)

type subscription struct {
	id int
	fn Listener
}

var ErrConnectInProgress = errs.NewCodeError(1110, "connect already in progress")

// Session is the stable logical session a caller holds. It owns a
// replaceable underlying websocket; listeners register against the session,
// never the transport, so reconnection is invisible to them.
type Session struct {
	opts Options

	mu             sync.Mutex
	ws             *websocket.Conn
	state          State
	connecting     bool
	manual         bool
	attempts       int
	reconnectTimer *time.Timer

	listeners map[string][]subscription
	nextSubID int

	writeMu sync.Mutex
}

func NewSession(opts Options) *Session {
	opts.norm()
	return &Session{
		opts:      opts,
		state:     StateIdle,
		listeners: make(map[string][]subscription),
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) IsConnected() bool { return s.State() == StateConnected }

// Connect dials the gateway. A second call while one is in flight
// short-circuits; connecting an already connected session is a no-op.
// The dial runs synchronously: on return the session is either Connected or
// the first attempt failed (reconnection continues in the background).
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.connecting {
		s.mu.Unlock()
		logger.Warnf("[session] connect already in progress")
		return ErrConnectInProgress
	}
	if s.state == StateConnected {
		s.mu.Unlock()
		logger.Warnf("[session] already connected")
		return nil
	}
	// a manual Connect supersedes any pending automatic retry
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	s.connecting = true
	s.manual = false
	s.attempts = 0
	s.state = StateConnecting
	s.mu.Unlock()

	return s.dial(ctx)
}

func (s *Session) dial(ctx context.Context) error {
	u, err := s.dialURL()
	if err != nil {
		s.mu.Lock()
		s.connecting = false
		s.state = StateDisconnected
		s.mu.Unlock()
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: s.opts.HandshakeTimeout}
	ws, resp, derr := dialer.DialContext(ctx, u, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if derr != nil {
		s.mu.Lock()
		s.connecting = false
		if s.manual {
			s.mu.Unlock()
			return derr
		}
		s.state = StateDisconnected
		s.mu.Unlock()
		logger.Infof("[session] connect error: %v", derr)
		s.notify(realtime.EvtConnectError, map[string]any{"error": derr.Error()})
		s.scheduleReconnect()
		return derr
	}

	s.mu.Lock()
	if s.manual {
		// Disconnect landed while the dial was in flight; it stays terminal
		s.connecting = false
		s.mu.Unlock()
		_ = ws.Close()
		logger.Infof("[session] dial finished after Disconnect, dropping transport")
		return nil
	}
	s.ws = ws
	s.state = StateConnected
	s.connecting = false
	s.attempts = 0
	s.mu.Unlock()

	safe.Go(func() { s.readLoop(ws) })
	logger.Infof("[session] connected user=%s", s.opts.UserID)
	s.notify(realtime.EvtConnect, nil)
	return nil
}

func (s *Session) dialURL() (string, error) {
	u, err := url.Parse(s.opts.URL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	if s.opts.Token != "" {
		q.Set("token", s.opts.Token)
	} else {
		q.Set("userId", s.opts.UserID)
		q.Set("userEmail", s.opts.UserEmail)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Disconnect is terminal: it cancels any pending reconnect, tears the
// transport down and resets the attempt counter. No reconnection follows a
// client-initiated disconnect.
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.manual = true
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	ws := s.ws
	s.ws = nil
	s.state = StateIdle
	s.connecting = false
	s.attempts = 0
	s.mu.Unlock()

	if ws != nil {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(s.opts.WriteWait))
		_ = ws.Close()
	}
	logger.Infof("[session] disconnected by caller")
}

// Emit sends one event. Returns false (and logs) when the session is not
// connected or the write fails; it never panics or throws.
func (s *Session) Emit(event string, payload any) bool {
	s.mu.Lock()
	ws := s.ws
	st := s.state
	s.mu.Unlock()

	if ws == nil || st != StateConnected {
		logger.Warnf("[session] not connected, cannot emit %s", event)
		return false
	}

	raw, err := realtime.MarshalEvent(event, payload)
	if err != nil {
		logger.Errorf("[session] marshal %s: %v", event, err)
		return false
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = ws.SetWriteDeadline(time.Now().Add(s.opts.WriteWait))
	if err := ws.WriteMessage(websocket.TextMessage, raw); err != nil {
		logger.Warnf("[session] emit %s: %v", event, err)
		return false
	}
	return true
}

// On registers a listener and returns a token for Off. Registrations live on
// the session and survive reconnects.
func (s *Session) On(event string, fn Listener) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.listeners[event] = append(s.listeners[event], subscription{id: id, fn: fn})
	return id
}

func (s *Session) Off(event string, id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := s.listeners[event]
	for i, sub := range subs {
		if sub.id == id {
			s.listeners[event] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

func (s *Session) readLoop(ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			s.handleDrop(ws, err)
			return
		}
		env, perr := realtime.ParseEnvelope(data)
		if perr != nil {
			logger.Debugf("[session] bad frame: %v", perr)
			continue
		}
		s.notify(env.Event, env.Data)
	}
}

func (s *Session) handleDrop(ws *websocket.Conn, err error) {
	s.mu.Lock()
	if s.ws != ws {
		// stale read loop from a replaced transport
		s.mu.Unlock()
		return
	}
	s.ws = nil
	manual := s.manual
	if manual {
		s.state = StateIdle
	} else {
		s.state = StateDisconnected
	}
	s.mu.Unlock()

	logger.Infof("[session] transport dropped: %v", err)
	s.notify(realtime.EvtDisconnect, map[string]any{"reason": err.Error()})
	if !manual {
		s.scheduleReconnect()
	}
}

// scheduleReconnect arms the backoff timer for the next attempt. Exhausting
// MaxAttempts moves the session to StateFailed and emits reconnect_failed,
// so callers get an explicit terminal signal instead of a log line.
func (s *Session) scheduleReconnect() {
	s.mu.Lock()
	if s.manual || s.reconnectTimer != nil || s.state == StateConnected {
		s.mu.Unlock()
		return
	}
	if s.attempts >= s.opts.MaxAttempts {
		s.state = StateFailed
		s.mu.Unlock()
		logger.Errorf("[session] max reconnection attempts reached")
		s.notify(realtime.EvtReconnectFailed, nil)
		return
	}
	delay := NextDelay(s.opts.InitialDelay, s.opts.MaxDelay, s.opts.Multiplier, s.attempts)
	s.attempts++
	attempt := s.attempts
	s.state = StateReconnecting
	s.reconnectTimer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		s.reconnectTimer = nil
		// connecting covers a manual dial already in flight
		if s.manual || s.connecting || s.state == StateConnected {
			s.mu.Unlock()
			return
		}
		s.connecting = true
		s.state = StateConnecting
		s.mu.Unlock()
		_ = s.dial(context.Background())
	})
	s.mu.Unlock()
	logger.Infof("[session] reconnection attempt %d in %v", attempt, delay)
}

func (s *Session) notify(event string, data map[string]any) {
	s.mu.Lock()
	subs := make([]subscription, len(s.listeners[event]))
	copy(subs, s.listeners[event])
	s.mu.Unlock()

	for _, sub := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("[session] listener panic event=%s: %v", event, r)
				}
			}()
			sub.fn(data)
		}()
	}
}
