package catbox

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/horgh/irc"
	"github.com/pkg/errors"
)

// maxInboundBuffer is the hard cap on unconsumed input bytes for a single
// connection. A connection whose next read would take the buffer past it is
// disconnected, whether or not that read completes a line.
const maxInboundBuffer = 8192

// ioWait bounds how long a single read or write may block the connection's
// dedicated goroutine.
const ioWait = 5 * time.Minute

// errBufferOverflow is returned by conn.readLines when appending a read to
// the inbound buffer would exceed maxInboundBuffer.
var errBufferOverflow = errors.New("inbound buffer overflow")

// conn wraps a TCP socket with the bounded line-framing behaviour described
// for wire framing: bytes accumulate in buf until a newline appears, at
// which point complete lines are handed back one at a time. A trailing '\r'
// is stripped; bare LF is accepted as well as CRLF.
type conn struct {
	nc  net.Conn
	IP  net.IP
	buf []byte
}

func newConn(nc net.Conn) (*conn, error) {
	host, _, err := net.SplitHostPort(nc.RemoteAddr().String())
	if err != nil {
		return nil, errors.Wrap(err, "unable to parse remote address")
	}

	return &conn{
		nc: nc,
		IP: net.ParseIP(host),
	}, nil
}

func (c *conn) Close() error {
	return c.nc.Close()
}

// readLines blocks for at least one read syscall and returns every complete
// line it yielded, in order, with the terminator stripped. It returns
// errBufferOverflow, and no lines, if appending the read to the unconsumed
// bytes would exceed maxInboundBuffer; the check is made before the read is
// split into lines.
func (c *conn) readLines() ([]string, error) {
	if err := c.nc.SetReadDeadline(time.Now().Add(ioWait)); err != nil {
		return nil, errors.Wrap(err, "unable to set read deadline")
	}

	var chunk [4096]byte
	n, err := c.nc.Read(chunk[:])
	if err != nil {
		return nil, err
	}

	if len(c.buf)+n > maxInboundBuffer {
		return nil, errBufferOverflow
	}

	c.buf = append(c.buf, chunk[:n]...)

	var lines []string
	for {
		idx := indexByte(c.buf, '\n')
		if idx == -1 {
			break
		}

		line := c.buf[:idx]
		c.buf = c.buf[idx+1:]

		line = strings.TrimSuffix(string(line), "\r")
		if line != "" {
			lines = append(lines, line)
		}
	}

	if len(c.buf) > maxInboundBuffer {
		return lines, errBufferOverflow
	}

	return lines, nil
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// writeMessage encodes and writes a single IRC message, terminated CRLF.
func (c *conn) writeMessage(m irc.Message) error {
	buf, err := m.Encode()
	if err != nil && err != irc.ErrTruncated {
		return fmt.Errorf("unable to encode message: %s", err)
	}

	if err := c.nc.SetWriteDeadline(time.Now().Add(ioWait)); err != nil {
		return errors.Wrap(err, "unable to set write deadline")
	}

	_, werr := c.nc.Write([]byte(buf))
	return werr
}
