package catbox

import (
	"strconv"
	"strings"

	"github.com/horgh/irc"
)

func prefixChannel(name string) string {
	if strings.HasPrefix(name, "#") {
		return name
	}
	return "#" + name
}

// joinCommand implements JOIN <channel{,channel}> [<key{,key}>], including
// the comma-separated multi-channel/multi-key form RFC 1459 describes.
func (s *Server) joinCommand(c *Connection, m irc.Message) {
	if len(m.Params) < 1 {
		s.numeric(c, ErrNeedMoreParams, "JOIN", "Not enough parameters")
		return
	}

	names := strings.Split(m.Params[0], ",")

	var keys []string
	if len(m.Params) > 1 {
		keys = strings.Split(m.Params[1], ",")
	}

	for i, raw := range names {
		if raw == "" {
			continue
		}
		name := prefixChannel(raw)

		key := ""
		if i < len(keys) {
			key = keys[i]
		}

		s.joinOne(c, name, key)
	}
}

func (s *Server) joinOne(c *Connection, name, key string) {
	if !isValidChannel(name) {
		s.numeric(c, ErrNoSuchChannel, name, "No such channel")
		return
	}

	if _, already := c.channels[name]; already {
		return
	}

	ch, exists := s.channels[name]
	if exists {
		if ch.InviteOnly && !ch.isInvited(c.ID) {
			s.numeric(c, ErrInviteOnlyChan, name, "Cannot join channel (+i)")
			return
		}
		if ch.UserLimit > 0 && ch.memberCount() >= ch.UserLimit {
			s.numeric(c, ErrChannelIsFull, name, "Cannot join channel (+l)")
			return
		}
		if ch.Key != "" && ch.Key != key {
			s.numeric(c, ErrBadChannelKey, name, "Cannot join channel (+k)")
			return
		}
	} else {
		ch = s.channelCreateIfAbsent(name)
	}

	s.channelJoin(c, ch)

	s.broadcastJoin(c, ch)

	s.sendNames(c, ch)
}

func (s *Server) broadcastJoin(c *Connection, ch *Channel) {
	for _, id := range ch.members {
		if peer, ok := s.conns[id]; ok {
			fromClient(c, peer, "JOIN", ch.Name)
		}
	}
}

// sendNames emits the 353/366 pair for ch to c, with '@' marking operators,
// in the channel's member insertion order.
func (s *Server) sendNames(c *Connection, ch *Channel) {
	names := make([]string, 0, len(ch.members))
	for _, id := range ch.members {
		peer, ok := s.conns[id]
		if !ok {
			continue
		}
		if ch.isOperator(id) {
			names = append(names, "@"+peer.nick)
		} else {
			names = append(names, peer.nick)
		}
	}

	s.numeric(c, ReplyNameReply, "=", ch.Name, strings.Join(names, " "))
	s.numeric(c, ReplyEndOfNames, ch.Name, "End of NAMES list")
}

// partCommand implements PART <channel> [<reason>].
func (s *Server) partCommand(c *Connection, m irc.Message) {
	if len(m.Params) < 1 {
		s.numeric(c, ErrNeedMoreParams, "PART", "Not enough parameters")
		return
	}

	name := prefixChannel(m.Params[0])

	ch, ok := s.channels[name]
	if !ok || !ch.hasMember(c.ID) {
		s.numeric(c, ErrNotOnChannel, name, "You're not on that channel")
		return
	}

	reason := "Leaving"
	if len(m.Params) > 1 {
		reason = m.Params[1]
	}

	members := append([]uint64(nil), ch.members...)
	for _, id := range members {
		if peer, ok := s.conns[id]; ok {
			fromClient(c, peer, "PART", name, reason)
		}
	}

	s.channelPart(c, ch)
}

// privmsgCommand implements PRIVMSG <target> :<text>.
func (s *Server) privmsgCommand(c *Connection, m irc.Message) {
	if len(m.Params) < 1 {
		s.numeric(c, ErrNeedMoreParams, "PRIVMSG", "Not enough parameters")
		return
	}
	if len(m.Params) < 2 {
		s.numeric(c, ErrNeedMoreParams, "PRIVMSG", "No text to send")
		return
	}

	target := m.Params[0]
	text := m.Params[1]

	if strings.HasPrefix(target, "#") {
		ch, ok := s.channels[target]
		if !ok {
			s.numeric(c, ErrNoSuchChannel, target, "No such channel")
			return
		}
		if !ch.hasMember(c.ID) {
			s.numeric(c, ErrNotOnChannel, target, "You're not on that channel")
			return
		}
		for _, id := range ch.members {
			if id == c.ID {
				continue
			}
			if peer, ok := s.conns[id]; ok {
				fromClient(c, peer, "PRIVMSG", target, text)
			}
		}
		return
	}

	dst, ok := s.nicks[target]
	if !ok {
		s.numeric(c, ErrNoSuchNick, target, "No such nick/channel")
		return
	}

	fromClient(c, dst, "PRIVMSG", target, text)
}

// quitCommand implements QUIT [:<reason>].
func (s *Server) quitCommand(c *Connection, m irc.Message) {
	reason := "Client Quit"
	if len(m.Params) > 0 && m.Params[0] != "" {
		reason = m.Params[0]
	}

	c.writeChan <- irc.Message{Command: "ERROR", Params: []string{"Closing Link: " + reason}}

	s.detach(c, "Client disconnected", true)
}

// pingCommand implements PING <token>.
func (s *Server) pingCommand(c *Connection, m irc.Message) {
	if len(m.Params) < 1 {
		s.numeric(c, ErrNoOrigin, "No origin specified")
		return
	}

	c.writeChan <- irc.Message{
		Prefix:  s.Config.ServerName,
		Command: "PONG",
		Params:  []string{s.Config.ServerName, m.Params[0]},
	}
}

// modeCommand implements MODE <target> [<modestring> [<args...>]].
func (s *Server) modeCommand(c *Connection, m irc.Message) {
	if len(m.Params) < 1 {
		s.numeric(c, ErrNeedMoreParams, "MODE", "Not enough parameters")
		return
	}

	target := m.Params[0]

	if !strings.HasPrefix(target, "#") {
		// User modes are a no-op in this core.
		s.numeric(c, "221", "+")
		return
	}

	ch, ok := s.channels[target]
	if !ok {
		s.numeric(c, ErrNoSuchChannel, target, "No such channel")
		return
	}
	if !ch.hasMember(c.ID) {
		s.numeric(c, ErrNotOnChannel, target, "You're not on that channel")
		return
	}

	if len(m.Params) < 2 {
		modes, args := ch.modeString()
		params := append([]string{target, modes}, args...)
		s.numeric(c, ReplyChannelMode, params...)
		return
	}

	modestring := m.Params[1]
	if !strings.ContainsAny(modestring, "itklo") {
		return
	}

	if !ch.isOperator(c.ID) {
		s.numeric(c, ErrChanOPrivsNeeded, target, "You're not channel operator")
		return
	}

	argIdx := 2
	nextArg := func() (string, bool) {
		if argIdx < len(m.Params) {
			v := m.Params[argIdx]
			argIdx++
			return v, true
		}
		return "", false
	}

	sign := byte('+')
	var changes strings.Builder
	var changeArgs []string

	for i := 0; i < len(modestring); i++ {
		switch modestring[i] {
		case '+', '-':
			sign = modestring[i]
		case 'i':
			ch.InviteOnly = sign == '+'
			changes.WriteByte(sign)
			changes.WriteByte('i')
		case 't':
			ch.TopicLocked = sign == '+'
			changes.WriteByte(sign)
			changes.WriteByte('t')
		case 'k':
			if sign == '+' {
				key, ok := nextArg()
				if !ok {
					continue
				}
				ch.Key = key
				changes.WriteByte('+')
				changes.WriteByte('k')
				changeArgs = append(changeArgs, key)
			} else {
				ch.Key = ""
				changes.WriteByte('-')
				changes.WriteByte('k')
			}
		case 'l':
			if sign == '+' {
				arg, ok := nextArg()
				if !ok {
					continue
				}
				n, err := strconv.Atoi(arg)
				if err != nil || n <= 0 {
					continue
				}
				ch.UserLimit = n
				changes.WriteByte('+')
				changes.WriteByte('l')
				changeArgs = append(changeArgs, arg)
			} else {
				ch.UserLimit = 0
				changes.WriteByte('-')
				changes.WriteByte('l')
			}
		case 'o':
			nick, ok := nextArg()
			if !ok {
				continue
			}
			opTarget, ok := s.nicks[nick]
			if !ok || !ch.hasMember(opTarget.ID) {
				continue
			}
			if sign == '+' {
				ch.operators[opTarget.ID] = struct{}{}
			} else {
				delete(ch.operators, opTarget.ID)
			}
			changes.WriteByte(sign)
			changes.WriteByte('o')
			changeArgs = append(changeArgs, nick)
		default:
			// Unrecognized mode letter: ignore silently.
		}
	}

	if changes.Len() == 0 {
		return
	}

	params := append([]string{target, changes.String()}, changeArgs...)
	for _, id := range ch.members {
		if peer, ok := s.conns[id]; ok {
			fromClient(c, peer, "MODE", params...)
		}
	}
}

// kickCommand implements KICK <channel> <nick> [:<reason>].
func (s *Server) kickCommand(c *Connection, m irc.Message) {
	if len(m.Params) < 2 {
		s.numeric(c, ErrNeedMoreParams, "KICK", "Not enough parameters")
		return
	}

	name := prefixChannel(m.Params[0])
	targetNick := m.Params[1]

	ch, ok := s.channels[name]
	if !ok {
		s.numeric(c, ErrNoSuchChannel, name, "No such channel")
		return
	}
	if !ch.hasMember(c.ID) {
		s.numeric(c, ErrNotOnChannel, name, "You're not on that channel")
		return
	}
	if !ch.isOperator(c.ID) {
		s.numeric(c, ErrChanOPrivsNeeded, name, "You're not channel operator")
		return
	}

	target, ok := s.nicks[targetNick]
	if !ok {
		s.numeric(c, ErrNoSuchNick, targetNick, "No such nick/channel")
		return
	}
	if !ch.hasMember(target.ID) {
		s.numeric(c, ErrUserNotInChannel, targetNick, name, "They aren't on that channel")
		return
	}

	reason := targetNick
	if len(m.Params) > 2 {
		reason = m.Params[2]
	}

	members := append([]uint64(nil), ch.members...)
	for _, id := range members {
		if peer, ok := s.conns[id]; ok {
			fromClient(c, peer, "KICK", name, targetNick, reason)
		}
	}

	s.channelPart(target, ch)
}

// inviteCommand implements INVITE <nick> <channel>.
func (s *Server) inviteCommand(c *Connection, m irc.Message) {
	if len(m.Params) < 2 {
		s.numeric(c, ErrNeedMoreParams, "INVITE", "Not enough parameters")
		return
	}

	targetNick := m.Params[0]
	name := prefixChannel(m.Params[1])

	ch, ok := s.channels[name]
	if !ok {
		s.numeric(c, ErrNoSuchChannel, name, "No such channel")
		return
	}
	if !ch.hasMember(c.ID) {
		s.numeric(c, ErrNotOnChannel, name, "You're not on that channel")
		return
	}
	if ch.InviteOnly && !ch.isOperator(c.ID) {
		s.numeric(c, ErrChanOPrivsNeeded, name, "You're not channel operator")
		return
	}

	target, ok := s.nicks[targetNick]
	if !ok {
		s.numeric(c, ErrNoSuchNick, targetNick, "No such nick/channel")
		return
	}
	if ch.hasMember(target.ID) {
		s.numeric(c, ErrUserOnChannel, targetNick, name, "is already on channel")
		return
	}

	ch.invited[target.ID] = struct{}{}

	fromClient(c, target, "INVITE", targetNick, name)
	s.numeric(c, ReplyInviting, targetNick, name)
}

// topicCommand implements TOPIC <channel> [:<topic>].
func (s *Server) topicCommand(c *Connection, m irc.Message) {
	if len(m.Params) < 1 {
		s.numeric(c, ErrNeedMoreParams, "TOPIC", "Not enough parameters")
		return
	}

	name := prefixChannel(m.Params[0])

	ch, ok := s.channels[name]
	if !ok {
		s.numeric(c, ErrNoSuchChannel, name, "No such channel")
		return
	}
	if !ch.hasMember(c.ID) {
		s.numeric(c, ErrNotOnChannel, name, "You're not on that channel")
		return
	}

	if len(m.Params) < 2 {
		if ch.Topic == "" {
			s.numeric(c, ReplyNoTopic, name, "No topic is set")
		} else {
			s.numeric(c, ReplyTopic, name, ch.Topic)
		}
		return
	}

	if ch.TopicLocked && !ch.isOperator(c.ID) {
		s.numeric(c, ErrChanOPrivsNeeded, name, "You're not channel operator")
		return
	}

	topic := m.Params[1]
	if len(topic) > maxTopicLength {
		topic = topic[:maxTopicLength]
	}
	ch.Topic = topic

	for _, id := range ch.members {
		if peer, ok := s.conns[id]; ok {
			fromClient(c, peer, "TOPIC", name, topic)
		}
	}
}

// whoCommand implements WHO <channel>, a read-only roster query.
func (s *Server) whoCommand(c *Connection, m irc.Message) {
	if len(m.Params) < 1 {
		s.numeric(c, ReplyEndOfWho, "*", "End of WHO list")
		return
	}

	name := prefixChannel(m.Params[0])
	ch, ok := s.channels[name]
	if !ok {
		s.numeric(c, ReplyEndOfWho, name, "End of WHO list")
		return
	}

	for _, id := range ch.members {
		peer, ok := s.conns[id]
		if !ok {
			continue
		}
		flags := "H"
		if ch.isOperator(id) {
			flags += "@"
		}
		s.numeric(c, ReplyWhoReply, name, peer.user, peer.host,
			s.Config.ServerName, peer.nick, flags, "0 "+peer.realName)
	}

	s.numeric(c, ReplyEndOfWho, name, "End of WHO list")
}

// namesCommand implements NAMES <channel>.
func (s *Server) namesCommand(c *Connection, m irc.Message) {
	if len(m.Params) < 1 {
		return
	}

	name := prefixChannel(m.Params[0])
	ch, ok := s.channels[name]
	if !ok {
		return
	}

	s.sendNames(c, ch)
}

// listCommand implements LIST [<channel{,channel}>].
func (s *Server) listCommand(c *Connection, m irc.Message) {
	s.numeric(c, ReplyListStart, "Channel", "Users Name")

	emit := func(ch *Channel) {
		s.numeric(c, ReplyList, ch.Name, itoa(ch.memberCount()), ch.Topic)
	}

	if len(m.Params) > 0 {
		for _, raw := range strings.Split(m.Params[0], ",") {
			if ch, ok := s.channels[prefixChannel(raw)]; ok {
				emit(ch)
			}
		}
	} else {
		for _, ch := range s.channels {
			emit(ch)
		}
	}

	s.numeric(c, ReplyListEnd, "End of LIST")
}

// whoisCommand implements WHOIS <nick>.
func (s *Server) whoisCommand(c *Connection, m irc.Message) {
	if len(m.Params) < 1 {
		return
	}

	target, ok := s.nicks[m.Params[0]]
	if !ok {
		s.numeric(c, ErrNoSuchNick, m.Params[0], "No such nick/channel")
		return
	}

	s.numeric(c, ReplyWhoisUser, target.nick, target.user, target.host, "*", target.realName)
	s.numeric(c, ReplyWhoisServer, target.nick, s.Config.ServerName, s.Config.NetworkName)

	var chans []string
	for name := range target.channels {
		chans = append(chans, name)
	}
	s.numeric(c, ReplyWhoisChans, target.nick, strings.Join(chans, " "))

	s.numeric(c, ReplyEndOfWhois, target.nick, "End of WHOIS list")
}

// userhostCommand implements USERHOST <nick>{ <nick>}.
func (s *Server) userhostCommand(c *Connection, m irc.Message) {
	var parts []string
	for _, nick := range m.Params {
		target, ok := s.nicks[nick]
		if !ok {
			continue
		}
		parts = append(parts, target.nick+"=+"+target.user+"@"+target.host)
	}
	s.numeric(c, ReplyUserHost, strings.Join(parts, " "))
}
