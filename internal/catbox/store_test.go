package catbox

import (
	"testing"

	"github.com/horgh/irc"
)

func testServer() *Server {
	return NewServer(DefaultConfig(6667, "hunter2"))
}

func testConn(s *Server, id uint64, nick string) *Connection {
	return &Connection{
		ID:         id,
		writeChan:  make(chan irc.Message, 100),
		host:       "localhost",
		channels:   map[string]struct{}{},
		passwordOK: true,
		nick:       nick,
		user:       nick,
		realName:   nick,
		Registered: true,
		server:     s,
	}
}

func drain(c *Connection) {
	for {
		select {
		case <-c.writeChan:
		default:
			return
		}
	}
}

func TestChannelJoinFirstMemberIsOperator(t *testing.T) {
	s := testServer()
	alice := testConn(s, 0, "alice")
	s.attach(alice)
	s.nicks["alice"] = alice

	ch := s.channelCreateIfAbsent("#x")
	s.channelJoin(alice, ch)

	if !ch.isOperator(alice.ID) {
		t.Fatalf("first member should be operator")
	}
	if !ch.hasMember(alice.ID) {
		t.Fatalf("alice should be a member")
	}
	if _, ok := alice.channels["#x"]; !ok {
		t.Fatalf("alice.channels should contain #x")
	}
}

func TestChannelPartDeletesEmptyChannel(t *testing.T) {
	s := testServer()
	alice := testConn(s, 0, "alice")
	s.attach(alice)
	s.nicks["alice"] = alice

	ch := s.channelCreateIfAbsent("#x")
	s.channelJoin(alice, ch)
	s.channelPart(alice, ch)

	if _, ok := s.channels["#x"]; ok {
		t.Fatalf("channel with zero members must be deleted")
	}
	if _, ok := alice.channels["#x"]; ok {
		t.Fatalf("alice.channels should no longer contain #x")
	}

	// Once the channel is gone, the next create yields a fresh Channel rather
	// than the old one.
	ch2 := s.channelCreateIfAbsent("#x")
	if ch2 == ch {
		t.Fatalf("expected a fresh channel after it emptied")
	}
}

func TestPartThenRejoinIsNotOperatorUnlessFirst(t *testing.T) {
	s := testServer()
	alice := testConn(s, 0, "alice")
	bob := testConn(s, 1, "bob")
	s.attach(alice)
	s.attach(bob)
	s.nicks["alice"] = alice
	s.nicks["bob"] = bob

	ch := s.channelCreateIfAbsent("#x")
	s.channelJoin(alice, ch)
	s.channelJoin(bob, ch)
	drain(alice)
	drain(bob)

	s.channelPart(bob, ch)
	s.channelJoin(bob, ch)

	if ch.isOperator(bob.ID) {
		t.Fatalf("rejoining bob should not regain operator status")
	}
	if !ch.isOperator(alice.ID) {
		t.Fatalf("alice should remain operator")
	}
}

func TestRenameRejectsDuplicateNick(t *testing.T) {
	s := testServer()
	alice := testConn(s, 0, "alice")
	bob := testConn(s, 1, "bob")
	s.attach(alice)
	s.attach(bob)
	s.nicks["alice"] = alice
	s.nicks["bob"] = bob

	if s.rename(bob, "alice") {
		t.Fatalf("rename to a taken nick should fail")
	}
	drain(bob)

	if bob.nick != "bob" {
		t.Fatalf("bob's nick should be unchanged after a failed rename")
	}
}

func TestRenameBroadcastsUnderOldHostmask(t *testing.T) {
	s := testServer()
	alice := testConn(s, 0, "alice")
	bob := testConn(s, 1, "bob")
	s.attach(alice)
	s.attach(bob)
	s.nicks["alice"] = alice
	s.nicks["bob"] = bob

	ch := s.channelCreateIfAbsent("#x")
	s.channelJoin(alice, ch)
	s.channelJoin(bob, ch)
	drain(alice)
	drain(bob)

	if !s.rename(alice, "alice2") {
		t.Fatalf("rename should succeed")
	}

	m := <-bob.writeChan
	if m.Command != "NICK" {
		t.Fatalf("expected NICK, got %s", m.Command)
	}
	if m.Prefix != "alice!alice@localhost" {
		t.Fatalf("NICK broadcast should carry the old hostmask, got prefix %q", m.Prefix)
	}

	self := <-alice.writeChan
	if self.Prefix != "alice!alice@localhost" {
		t.Fatalf("NICK self-echo should carry the old hostmask, got prefix %q", self.Prefix)
	}

	if alice.nick != "alice2" {
		t.Fatalf("alice's nick should now be alice2")
	}
}

func TestDetachSkipsQuitBroadcastOnBufferOverflow(t *testing.T) {
	s := testServer()
	alice := testConn(s, 0, "alice")
	bob := testConn(s, 1, "bob")
	s.attach(alice)
	s.attach(bob)
	s.nicks["alice"] = alice
	s.nicks["bob"] = bob

	ch := s.channelCreateIfAbsent("#x")
	s.channelJoin(alice, ch)
	s.channelJoin(bob, ch)
	drain(alice)
	drain(bob)

	s.detach(alice, "Input buffer overflow", false)

	select {
	case m := <-bob.writeChan:
		t.Fatalf("bob should not see any message, got %v", m)
	default:
	}

	if _, ok := s.conns[alice.ID]; ok {
		t.Fatalf("alice should still be removed from conns")
	}
}

func TestDetachBroadcastsQuitOnce(t *testing.T) {
	s := testServer()
	alice := testConn(s, 0, "alice")
	bob := testConn(s, 1, "bob")
	s.attach(alice)
	s.attach(bob)
	s.nicks["alice"] = alice
	s.nicks["bob"] = bob

	ch1 := s.channelCreateIfAbsent("#x")
	ch2 := s.channelCreateIfAbsent("#y")
	ch3 := s.channelCreateIfAbsent("#z")
	s.channelJoin(alice, ch1)
	s.channelJoin(alice, ch2)
	s.channelJoin(alice, ch3)
	s.channelJoin(bob, ch1)
	s.channelJoin(bob, ch2)
	drain(alice)
	drain(bob)

	s.detach(alice, "bye", true)

	count := 0
	for {
		select {
		case m := <-bob.writeChan:
			if m.Command == "QUIT" {
				count++
			}
		default:
			goto done
		}
	}
done:
	if count != 1 {
		t.Fatalf("bob should see exactly one QUIT, saw %d", count)
	}

	if _, ok := s.conns[alice.ID]; ok {
		t.Fatalf("alice should be removed from conns")
	}
	if _, ok := s.nicks["alice"]; ok {
		t.Fatalf("alice's nick binding should be freed")
	}
	if _, ok := s.channels["#z"]; ok {
		t.Fatalf("#z should be deleted, it only had alice")
	}
}
