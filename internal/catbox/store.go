package catbox

// This file holds the state store's atomic mutations: the operations that
// keep the connection table, nickname index, and channel membership edges
// mutually consistent. Every mutation here runs inside the server's single
// serializing goroutine, so none of it needs locking — it only needs to
// leave the invariants true when it returns.

// attach registers a newly accepted connection.
func (s *Server) attach(c *Connection) {
	s.conns[c.ID] = c
}

// detach removes a connection entirely: if it was registered, every channel
// it belonged to is told so exactly once, then its memberships and any
// resulting empty channels are cleaned up, then its nick binding (if any)
// and connection record are removed. A buffer-overflow disconnect skips the
// QUIT broadcast: it is a resource-limit removal, not a transport error.
func (s *Server) detach(c *Connection, reason string, broadcastQuit bool) {
	if _, ok := s.conns[c.ID]; !ok {
		return
	}

	if c.Registered && broadcastQuit {
		s.broadcastToPeers(c, c.hostmask(), "QUIT", reason)
	}

	for name := range c.channels {
		if ch, ok := s.channels[name]; ok {
			ch.removeMember(c.ID)
			if ch.memberCount() == 0 {
				delete(s.channels, name)
			}
		}
	}
	c.channels = map[string]struct{}{}

	if c.nick != "" {
		if cur, ok := s.nicks[c.nick]; ok && cur.ID == c.ID {
			delete(s.nicks, c.nick)
		}
	}

	delete(s.conns, c.ID)
	close(c.writeChan)
}

// broadcastToPeers sends command/params, from prefix, to every distinct
// connection sharing a channel with c, each exactly once. c itself is not
// included; callers that want a self-echo add it separately. prefix is
// taken explicitly rather than derived from c so callers can broadcast a
// change (e.g. a NICK) under the identity c had before the change.
func (s *Server) broadcastToPeers(c *Connection, prefix string, command string, params ...string) {
	seen := map[uint64]struct{}{c.ID: {}}

	for name := range c.channels {
		ch, ok := s.channels[name]
		if !ok {
			continue
		}
		for _, id := range ch.members {
			if _, done := seen[id]; done {
				continue
			}
			seen[id] = struct{}{}
			if peer, ok := s.conns[id]; ok {
				fromPrefix(prefix, peer, command, params...)
			}
		}
	}
}

// rename changes a connection's nickname, enforcing uniqueness. On success,
// if the connection is already registered, a NICK change is broadcast to
// every channel it is in, including an echo back to itself. The broadcast
// and self-echo both use the hostmask from before the change: per the NICK
// convention, the message must appear to come from the old nick.
func (s *Server) rename(c *Connection, newNick string) bool {
	if cur, ok := s.nicks[newNick]; ok && cur.ID != c.ID {
		s.numeric(c, ErrNicknameInUse, newNick, "Nickname is already in use")
		return false
	}

	oldHostmask := c.hostmask()
	oldNick := c.nick

	if oldNick != "" {
		delete(s.nicks, oldNick)
	}
	c.nick = newNick
	s.nicks[newNick] = c

	if c.Registered {
		s.broadcastToPeers(c, oldHostmask, "NICK", newNick)
		fromPrefix(oldHostmask, c, "NICK", newNick)
	}

	return true
}

// channelCreateIfAbsent returns the named channel, creating it (with no
// members yet) if it did not already exist.
func (s *Server) channelCreateIfAbsent(name string) *Channel {
	if ch, ok := s.channels[name]; ok {
		return ch
	}
	ch := newChannel(name)
	s.channels[name] = ch
	return ch
}

// channelJoin adds c to ch, making it the sole operator if it is the first
// member, and records the membership edge on both sides.
func (s *Server) channelJoin(c *Connection, ch *Channel) {
	firstMember := ch.memberCount() == 0

	ch.addMember(c.ID)
	c.channels[ch.Name] = struct{}{}

	if firstMember {
		ch.operators[c.ID] = struct{}{}
	}
}

// channelPart removes c from ch and deletes ch if that empties it. It does
// not send any notifications; callers broadcast first, then call this.
func (s *Server) channelPart(c *Connection, ch *Channel) {
	ch.removeMember(c.ID)
	delete(c.channels, ch.Name)

	if ch.memberCount() == 0 {
		delete(s.channels, ch.Name)
	}
}
