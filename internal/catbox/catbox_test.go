package catbox

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testClient is a minimal real-socket IRC client used to drive an
// in-process server the same way the teacher's integration harness drove a
// subprocess one, minus the multi-server linking machinery this core
// doesn't implement.
type testClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dialTestClient(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	return &testClient{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (c *testClient) send(line string) {
	c.t.Helper()
	_, err := c.conn.Write([]byte(line + "\r\n"))
	require.NoError(c.t, err)
}

func (c *testClient) readLine() string {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	line, err := c.r.ReadString('\n')
	require.NoError(c.t, err)
	return strings.TrimRight(line, "\r\n")
}

// waitFor reads lines until one contains substr, failing the test if it
// doesn't show up within a handful of lines.
func (c *testClient) waitFor(substr string) string {
	c.t.Helper()
	for i := 0; i < 64; i++ {
		line := c.readLine()
		if strings.Contains(line, substr) {
			return line
		}
	}
	c.t.Fatalf("never saw a line containing %q", substr)
	return ""
}

func startTestServer(t *testing.T) (*Server, string) {
	t.Helper()

	cfg := DefaultConfig(0, "hunter2")
	cfg.ServerName = "A_DreamServ"
	cfg.PingTime = time.Hour
	cfg.DeadTime = time.Hour

	s := NewServer(cfg)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s.listener = ln

	go func() {
		_ = s.run()
	}()

	t.Cleanup(s.Shutdown)

	return s, ln.Addr().String()
}

func register(t *testing.T, addr, nick string) *testClient {
	t.Helper()
	c := dialTestClient(t, addr)
	c.send("PASS hunter2")
	c.send("NICK " + nick)
	c.send(fmt.Sprintf("USER %s 0 * :%s Example", nick, nick))
	c.waitFor(" 001 ")
	c.waitFor(" 376 ")
	return c
}

func TestRegistrationWelcomeBurst(t *testing.T) {
	_, addr := startTestServer(t)

	c := dialTestClient(t, addr)
	c.send("PASS hunter2")
	c.send("NICK alice")
	c.send("USER alice 0 * :Alice Example")

	welcome := c.waitFor(" 001 ")
	require.Contains(t, welcome, "A_DreamServ")
	c.waitFor(" 002 ")
	c.waitFor(" 003 ")
	c.waitFor(" 004 ")
	c.waitFor(" 375 ")
	c.waitFor(" 376 ")
}

func TestJoinAndOperatorBootstrap(t *testing.T) {
	_, addr := startTestServer(t)

	alice := register(t, addr, "alice")

	alice.send("JOIN #x")
	join := alice.waitFor("JOIN")
	require.Contains(t, join, "alice!")
	require.Contains(t, join, "#x")

	names := alice.waitFor(" 353 ")
	require.Contains(t, names, "@alice")
	alice.waitFor(" 366 ")
}

func TestChannelKeyDenyThenAllow(t *testing.T) {
	_, addr := startTestServer(t)

	alice := register(t, addr, "alice")
	alice.send("JOIN #x")
	alice.waitFor(" 366 ")

	alice.send("MODE #x +k hunter2")
	alice.waitFor("MODE")

	bob := register(t, addr, "bob")
	bob.send("JOIN #x")
	deny := bob.waitFor(" 475 ")
	require.Contains(t, deny, "#x")

	bob.send("JOIN #x hunter2")
	bob.waitFor(" 366 ")
}

func TestKickRequiresOperator(t *testing.T) {
	_, addr := startTestServer(t)

	alice := register(t, addr, "alice")
	alice.send("JOIN #x")
	alice.waitFor(" 366 ")

	bob := register(t, addr, "bob")
	bob.send("JOIN #x")
	bob.waitFor(" 366 ")
	alice.waitFor("JOIN") // alice sees bob's join broadcast

	bob.send("KICK #x alice :bye")
	denial := bob.waitFor(" 482 ")
	require.Contains(t, denial, "bob")
}

func TestPrivmsgDoesNotEcho(t *testing.T) {
	_, addr := startTestServer(t)

	alice := register(t, addr, "alice")
	bob := register(t, addr, "bob")

	bob.send("PRIVMSG alice :hi")
	got := alice.waitFor("PRIVMSG")
	require.Contains(t, got, "bob!")
	require.Contains(t, got, "hi")

	require.NoError(t, bob.conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, err := bob.r.ReadString('\n')
	require.Error(t, err, "bob should not see an echo of their own PRIVMSG")
}

func TestQuitPropagatesToPeers(t *testing.T) {
	_, addr := startTestServer(t)

	alice := register(t, addr, "alice")
	bob := register(t, addr, "bob")

	alice.send("JOIN #x")
	alice.waitFor(" 366 ")
	bob.send("JOIN #x")
	bob.waitFor(" 366 ")
	alice.waitFor("JOIN")

	alice.send("QUIT :bye")
	quit := bob.waitFor("QUIT")
	require.Contains(t, quit, "alice!")
}

func TestPingPong(t *testing.T) {
	_, addr := startTestServer(t)
	alice := register(t, addr, "alice")

	alice.send("PING abc123")
	pong := alice.waitFor("PONG")
	require.Contains(t, pong, "abc123")
}

func TestNickInUseIsRejected(t *testing.T) {
	_, addr := startTestServer(t)
	_ = register(t, addr, "alice")

	c := dialTestClient(t, addr)
	c.send("PASS hunter2")
	c.send("NICK alice")
	denied := c.waitFor(" 433 ")
	require.Contains(t, denied, "alice")
}

func TestTopicRestrictedByDefault(t *testing.T) {
	_, addr := startTestServer(t)

	alice := register(t, addr, "alice")
	alice.send("JOIN #x")
	alice.waitFor(" 366 ")

	bob := register(t, addr, "bob")
	bob.send("JOIN #x")
	bob.waitFor(" 366 ")
	alice.waitFor("JOIN")

	// A freshly created channel defaults to topic-restricted: the second
	// (non-operator) joiner may not set the topic.
	bob.send("TOPIC #x :bob's topic")
	denial := bob.waitFor(" 482 ")
	require.Contains(t, denial, "#x")

	alice.send("TOPIC #x :alice's topic")
	topic := bob.waitFor("TOPIC")
	require.Contains(t, topic, "alice's topic")
}

func TestModeInviteOnlyRoundTrip(t *testing.T) {
	_, addr := startTestServer(t)

	alice := register(t, addr, "alice")
	alice.send("JOIN #x")
	alice.waitFor(" 366 ")

	alice.send("MODE #x +i")
	alice.waitFor("MODE #x +i")

	bob := register(t, addr, "bob")
	bob.send("JOIN #x")
	denied := bob.waitFor(" 473 ")
	require.Contains(t, denied, "#x")

	alice.send("MODE #x -i")
	alice.waitFor("MODE #x -i")

	bob.send("JOIN #x")
	bob.waitFor(" 366 ")
}

func TestUserLimitBlocksAtExactBoundary(t *testing.T) {
	_, addr := startTestServer(t)

	alice := register(t, addr, "alice")
	alice.send("JOIN #x")
	alice.waitFor(" 366 ")

	// Limit equal to current membership (1) must block the next JOIN: the
	// check is strictly >=, not >.
	alice.send("MODE #x +l 1")
	alice.waitFor("MODE #x +l")

	bob := register(t, addr, "bob")
	bob.send("JOIN #x")
	denied := bob.waitFor(" 471 ")
	require.Contains(t, denied, "#x")
}

func TestInboundBufferOverflowDisconnectsWithoutQuitBroadcast(t *testing.T) {
	_, addr := startTestServer(t)

	alice := register(t, addr, "alice")
	alice.send("JOIN #x")
	alice.waitFor(" 366 ")

	bob := register(t, addr, "bob")
	bob.send("JOIN #x")
	bob.waitFor(" 366 ")
	alice.waitFor("JOIN")

	// Send a single line with no terminator that exceeds the 8 KiB inbound
	// cap. The connection must be dropped without ever completing a line,
	// and per the resource-limit rule no QUIT is broadcast to bob.
	oversized := strings.Repeat("A", 8*1024+1)
	_, err := alice.conn.Write([]byte(oversized))
	require.NoError(t, err)

	require.NoError(t, alice.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = alice.r.ReadString('\n')
	require.Error(t, err, "server should close the connection on buffer overflow")

	require.NoError(t, bob.conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, err = bob.r.ReadString('\n')
	require.Error(t, err, "bob should not observe a QUIT for alice's buffer overflow")
}
