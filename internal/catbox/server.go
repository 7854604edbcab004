package catbox

import (
	"log"
	"net"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Server holds all state for one running instance: the listener, the
// connection/nick/channel maps, and the channels that feed its single
// serializing event loop. Nothing outside that loop ever reads or writes
// conns/nicks/channels, so none of it is guarded by a mutex.
type Server struct {
	Config Config

	listener net.Listener

	conns    map[uint64]*Connection
	nicks    map[string]*Connection
	channels map[string]*Channel

	newConnChan chan *Connection
	messageChan chan connMessage
	deadChan    chan deadConn
	shutdown    chan struct{}
}

// NewServer builds a Server ready to Start.
func NewServer(cfg Config) *Server {
	return &Server{
		Config:      cfg,
		conns:       map[uint64]*Connection{},
		nicks:       map[string]*Connection{},
		channels:    map[string]*Channel{},
		newConnChan: make(chan *Connection, 100),
		messageChan: make(chan connMessage, 100),
		deadChan:    make(chan deadConn, 100),
		shutdown:    make(chan struct{}),
	}
}

// Shutdown flips the server's shutdown flag. The event loop exits after its
// current iteration; no QUIT is broadcast to peers, per the server's
// shutdown contract.
func (s *Server) Shutdown() {
	close(s.shutdown)
}

// Start opens the listener and runs the event loop until Shutdown is called
// or an unrecoverable error occurs. It returns nil on clean shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", net.JoinHostPort("", itoa(s.Config.ListenPort)))
	if err != nil {
		return errors.Wrap(err, "unable to listen")
	}
	s.listener = ln

	return s.run()
}

// run assumes s.listener is already open (Start sets it up; tests may set
// it up themselves against an ephemeral port) and runs the event loop until
// Shutdown is called.
func (s *Server) run() error {
	go s.acceptConnections()

	alarmChan := make(chan struct{})
	go alarm(alarmChan, s.shutdown)

	for {
		select {
		case <-s.shutdown:
			_ = s.listener.Close()
			for _, c := range s.conns {
				_ = c.conn.Close()
			}
			return nil

		case c := <-s.newConnChan:
			log.Printf("new connection: %s", c)
			s.attach(c)

		case dc := <-s.deadChan:
			if _, ok := s.conns[dc.Connection.ID]; ok {
				logDrop(dc.Connection, dc.err)
				s.detach(dc.Connection, s.errorToQuitMessage(dc.err), dc.err != errBufferOverflow)
			}

		case cm := <-s.messageChan:
			if _, ok := s.conns[cm.Connection.ID]; !ok {
				// Already gone; drop the message.
				continue
			}
			s.handleMessage(cm.Connection, cm.Message)

		case <-alarmChan:
			s.checkAndPingClients()
		}
	}
}

// acceptConnections is the sole goroutine that calls Accept. It assigns
// each accepted socket a dense id and spawns its reader/writer goroutines
// before handing it to the event loop.
func (s *Server) acceptConnections() {
	var nextID uint64

	for {
		nc, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return
			default:
			}
			log.Printf("accept error: %s", err)
			continue
		}

		c, err := newConn(nc)
		if err != nil {
			log.Printf("unable to wrap accepted connection: %s", err)
			_ = nc.Close()
			continue
		}

		id := nextID
		nextID++

		client := newConnection(s, id, c)

		go client.readLoop(s.messageChan, s.deadChan)
		go client.writeLoop(s.deadChan)

		s.newConnChan <- client
	}
}

// alarm wakes the event loop roughly once a second so it can run
// checkAndPingClients, stopping once shutdown is closed.
func alarm(toServer chan<- struct{}, shutdown <-chan struct{}) {
	t := time.NewTicker(time.Second)
	defer t.Stop()

	for {
		select {
		case <-shutdown:
			return
		case <-t.C:
			select {
			case toServer <- struct{}{}:
			case <-shutdown:
				return
			}
		}
	}
}

// checkAndPingClients pings idle registered connections and disconnects
// ones that stay idle too long, whether registered or not.
func (s *Server) checkAndPingClients() {
	now := time.Now()

	for _, c := range s.conns {
		idle := now.Sub(c.LastActivityTime)

		if c.Registered {
			if idle < s.Config.PingTime {
				continue
			}
			if idle > s.Config.DeadTime {
				s.detach(c, "Ping timeout", true)
				continue
			}
			s.fromServer(c, "PING", s.Config.ServerName)
			continue
		}

		if idle > s.Config.DeadTime {
			s.detach(c, "Idle too long", true)
		}
	}
}

// errorToQuitMessage renders a best-effort human quit reason from an I/O
// error. Matches are heuristic; anything unrecognized falls back to a
// generic message rather than leaking raw error text (which often contains
// local addresses) to peers.
func (s *Server) errorToQuitMessage(err error) string {
	if err == nil {
		return "I/O error"
	}

	msg := err.Error()
	if msg == "" {
		return "I/O error"
	}

	if isTimeoutError(err) {
		return "Ping timeout: " + itoa(int(s.Config.DeadTime.Seconds())) + " seconds"
	}

	if strings.Contains(msg, "connection reset by peer") {
		return "Connection reset by peer"
	}

	if err == errBufferOverflow {
		return "Input buffer overflow"
	}

	return "I/O error"
}

func isTimeoutError(err error) bool {
	type timeout interface{ Timeout() bool }
	t, ok := err.(timeout)
	return ok && t.Timeout()
}
