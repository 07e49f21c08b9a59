package realtime

import (
	"net"
	"net/http"
	"time"

	"RTChat/logger"
	"RTChat/tools/ids"
	"RTChat/tools/safe"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type Config struct {
	NodeID        string
	SessionSecret []byte

	SendQueueSize int           // per-connection outbound queue (default 256)
	FanoutWorkers int           // broadcast worker pool size (default 4)
	FanoutQueue   int           // broadcast job queue (default 1024)
	WriteWait     time.Duration // write deadline per frame (default 10s)
	PingInterval  time.Duration // server ping cadence (default 25s)
	PongWait      time.Duration // read deadline renewed on pong (default 75s)
}

func (c *Config) norm() {
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = 256
	}
	if c.FanoutWorkers <= 0 {
		c.FanoutWorkers = 4
	}
	if c.FanoutQueue <= 0 {
		c.FanoutQueue = 1024
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 25 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 75 * time.Second
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server is the event router: it owns the room registry, the connection
// manager and the per-event handler table. Handlers for one connection run
// synchronously on its read loop; connections run concurrently with each
// other.
type Server struct {
	cfg   Config
	rooms *Rooms
	conns *ConnManager
	disp  *Dispatcher
	fan   *Fanout
	auth  *Authenticator

	onConnect    func(*Conn)
	onDisconnect func(*Conn)
}

// NewServer builds a server around an injected room registry.
func NewServer(cfg Config, rooms *Rooms) *Server {
	cfg.norm()
	if rooms == nil {
		rooms = NewRooms()
	}
	return &Server{
		cfg:   cfg,
		rooms: rooms,
		conns: NewConnManager(cfg.NodeID),
		disp:  NewDispatcher(),
		fan:   NewFanout(cfg.FanoutWorkers, cfg.FanoutQueue),
		auth:  NewAuthenticator(cfg.SessionSecret),
	}
}

func (s *Server) Rooms() *Rooms           { return s.rooms }
func (s *Server) Conns() *ConnManager     { return s.conns }
func (s *Server) Dispatcher() *Dispatcher { return s.disp }
func (s *Server) NodeID() string          { return s.cfg.NodeID }

// OnConnect registers a hook that runs after a connection is accepted
// (presence recording and the like). Not safe to call once serving.
func (s *Server) OnConnect(fn func(*Conn)) { s.onConnect = fn }

// OnDisconnect registers a hook that runs after a connection is torn down.
func (s *Server) OnDisconnect(fn func(*Conn)) { s.onDisconnect = fn }

// Close tears down every live connection and stops the fanout pool.
func (s *Server) Close() {
	s.conns.Close()
	s.fan.Close()
}

// HandleWS is the gin endpoint for the websocket handshake. Authentication
// runs before the upgrade: a rejected attempt never becomes a connection and
// never creates room state.
func (s *Server) HandleWS(c *gin.Context) {
	identity, err := s.auth.Authenticate(c.Request)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, err)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[ws] upgrade error: %v", err)
		return
	}

	conn := newConn(ids.GenerateString(), identity.UserID, identity.UserEmail, ws, s.cfg.SendQueueSize)
	s.conns.Add(conn)
	logger.Infof("[ws] user connected user=%s conn=%s", conn.UserID, conn.ID)
	if s.onConnect != nil {
		s.onConnect(conn)
	}

	safe.Go(func() { s.writePump(conn) })
	s.readLoop(conn)

	// teardown: read loop is the single owner of connection lifetime
	s.rooms.LeaveAll(conn)
	s.conns.Remove(conn.ID)
	conn.shutdown()
	if s.onDisconnect != nil {
		s.onDisconnect(conn)
	}
	logger.Infof("[ws] user disconnected user=%s conn=%s", conn.UserID, conn.ID)
}

// readLoop consumes inbound frames and dispatches them one at a time.
// A malformed frame or an unhandled event is a silent no-op from the client's
// perspective; it is only logged.
func (s *Server) readLoop(c *Conn) {
	_ = c.WS.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	c.WS.SetPongHandler(func(string) error {
		return c.WS.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		mt, data, err := c.WS.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Debugf("[ws] peer closed conn=%s err=%v", c.ID, err)
			} else if ne, ok := err.(net.Error); ok && ne.Timeout() {
				logger.Infof("[ws] read timeout conn=%s err=%v", c.ID, err)
			} else {
				logger.Debugf("[ws] read err conn=%s err=%v", c.ID, err)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		env, perr := ParseEnvelope(data)
		if perr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Infof("[ws] bad envelope conn=%s err=%v sample=%q", c.ID, perr, sample)
			continue
		}

		if derr := s.disp.Dispatch(&Context{S: s}, env, c); derr != nil {
			// handler errors never surface to the emitting client
			logger.Infof("[ws] dispatch event=%s conn=%s err=%v", env.Event, c.ID, derr)
		}
	}
}

// writePump is the single writer goroutine for one connection: it drains the
// Send queue and keeps the ping cadence. gorilla/websocket writes must not be
// concurrent, so every outbound frame funnels through here.
func (s *Server) writePump(c *Conn) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.WS.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
		_ = c.WS.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		closeQuiet(c.WS)
	}()

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.Send:
			_ = c.WS.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := c.WS.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Debugf("[ws] write err conn=%s user=%s err=%v", c.ID, c.UserID, err)
				c.shutdown()
				return
			}
		case <-ticker.C:
			if err := c.WS.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(s.cfg.WriteWait)); err != nil {
				logger.Debugf("[ws] ping err conn=%s user=%s err=%v", c.ID, c.UserID, err)
				c.shutdown()
				return
			}
		}
	}
}

// Broadcast emits one event to every room member except exceptConnID
// (empty string excludes nobody). Returns the number of connections the
// frame was handed to; delivery itself stays fire-and-forget.
func (s *Server) Broadcast(channelID, event string, payload any, exceptConnID string) int {
	raw, err := MarshalEvent(event, payload)
	if err != nil {
		logger.Errorf("[ws] marshal event=%s err=%v", event, err)
		return 0
	}
	members := s.rooms.Members(channelID, exceptConnID)
	if len(members) == 0 {
		return 0
	}
	s.fan.Broadcast(members, raw)
	return len(members)
}

// SendTo queues one event on a single connection (the echo/confirmation
// path). Returns false when the frame could not be queued.
func (s *Server) SendTo(c *Conn, event string, payload any) bool {
	raw, err := MarshalEvent(event, payload)
	if err != nil {
		logger.Errorf("[ws] marshal event=%s err=%v", event, err)
		return false
	}
	return c.queue(raw)
}
