package catbox

import (
	"fmt"
	"log"
	"time"

	"github.com/horgh/irc"
)

// Connection holds state about a single client connection, local or in the
// process of registering. Its fields mirror the registration substate: a
// Connection only ever touched by the server's single serializing goroutine
// once accepted, so none of this needs locking.
type Connection struct {
	ID uint64

	conn *conn

	writeChan chan irc.Message

	host string

	// Registration substate. passwordOK/nick/user/realName are set by the
	// registration commands; Registered flips true exactly once all three are
	// satisfied.
	passwordOK bool
	nick       string
	user       string
	realName   string
	Registered bool

	// channels holds the canonical names of every channel this connection is
	// a member of, kept in sync with each Channel's member set.
	channels map[string]struct{}

	operOK bool

	LastActivityTime time.Time

	server *Server
}

func newConnection(s *Server, id uint64, c *conn) *Connection {
	return &Connection{
		ID:               id,
		conn:             c,
		writeChan:        make(chan irc.Message, 100),
		host:             hostOf(c),
		channels:         map[string]struct{}{},
		LastActivityTime: time.Now(),
		server:           s,
	}
}

func hostOf(c *conn) string {
	if c == nil || c.IP == nil {
		return "localhost"
	}
	return c.IP.String()
}

// String is for logging.
func (c *Connection) String() string {
	if c.nick != "" {
		return fmt.Sprintf("Connection %d (%s)", c.ID, c.nick)
	}
	return fmt.Sprintf("Connection %d", c.ID)
}

// hostmask is the nick!user@host prefix used on user-origin messages.
func (c *Connection) hostmask() string {
	return fmt.Sprintf("%s!%s@%s", c.nick, c.user, c.host)
}

// readLoop pulls complete lines off the socket, parses them into messages,
// and hands them to the server's single serializing goroutine. It never
// touches server state directly.
func (c *Connection) readLoop(messageChan chan<- connMessage, deadChan chan<- deadConn) {
	for {
		lines, err := c.conn.readLines()
		for _, line := range lines {
			m, perr := irc.ParseMessage(line + "\r\n")
			if perr != nil {
				// Malformed line. Per the protocol-error handling rule this is
				// non-fatal; we simply drop the line.
				continue
			}
			messageChan <- connMessage{Connection: c, Message: m}
		}

		if err != nil {
			deadChan <- deadConn{Connection: c, err: err}
			return
		}
	}
}

// writeLoop drains outbound messages to the socket until the channel is
// closed or a write fails, then closes the socket. Closing here rather than
// wherever the disconnect was decided ensures every already-queued message
// (an ERROR line, a final QUIT) is flushed before the connection goes away.
func (c *Connection) writeLoop(deadChan chan<- deadConn) {
	for m := range c.writeChan {
		if err := c.conn.writeMessage(m); err != nil {
			deadChan <- deadConn{Connection: c, err: err}
			// Keep draining so the sender (detach) doesn't block on a full
			// channel, but stop trying to write to a broken socket.
			for range c.writeChan {
			}
			break
		}
	}

	_ = c.conn.Close()
}

// connMessage pairs an inbound message with the connection it came from.
type connMessage struct {
	Connection *Connection
	Message    irc.Message
}

// deadConn signals that a connection's I/O goroutine observed a fatal error.
type deadConn struct {
	Connection *Connection
	err        error
}

func logDrop(c *Connection, err error) {
	log.Printf("connection %s: %s", c, err)
}
