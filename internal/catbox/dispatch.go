package catbox

import (
	"time"

	"github.com/horgh/irc"
)

// commandsAllowedUnregistered are the commands a connection may send before
// completing registration.
var commandsAllowedUnregistered = map[string]bool{
	"PASS": true,
	"NICK": true,
	"USER": true,
	"CAP":  true,
	"PING": true,
	"QUIT": true,
}

// handleMessage dispatches one parsed message from c. It runs entirely
// inside the server's single serializing goroutine: every mutation it makes
// to conns/nicks/channels completes before the next message (from any
// connection) is looked at.
func (s *Server) handleMessage(c *Connection, m irc.Message) {
	c.LastActivityTime = time.Now()

	if m.Command == "CAP" {
		s.capCommand(c, m)
		return
	}

	if !c.Registered && !commandsAllowedUnregistered[m.Command] {
		s.numeric(c, ErrNotRegistered, "You have not registered")
		return
	}

	switch m.Command {
	case "PASS":
		s.passCommand(c, m)
	case "NICK":
		s.nickCommand(c, m)
	case "USER":
		s.userCommand(c, m)
	case "QUIT":
		s.quitCommand(c, m)
	case "PING":
		s.pingCommand(c, m)
	case "PONG":
		// Nothing to do; LastActivityTime was already bumped above.
	case "JOIN":
		s.joinCommand(c, m)
	case "PART":
		s.partCommand(c, m)
	case "PRIVMSG":
		s.privmsgCommand(c, m)
	case "MODE":
		s.modeCommand(c, m)
	case "KICK":
		s.kickCommand(c, m)
	case "INVITE":
		s.inviteCommand(c, m)
	case "TOPIC":
		s.topicCommand(c, m)
	case "WHO":
		s.whoCommand(c, m)
	case "NAMES":
		s.namesCommand(c, m)
	case "LIST":
		s.listCommand(c, m)
	case "WHOIS":
		s.whoisCommand(c, m)
	case "USERHOST":
		s.userhostCommand(c, m)
	case "MOTD":
		s.motdCommand(c)
	default:
		s.numeric(c, ErrUnknownCommand, m.Command, "Unknown command")
	}
}

// passCommand implements the PASS step of the registration FSM.
func (s *Server) passCommand(c *Connection, m irc.Message) {
	if len(m.Params) < 1 {
		s.numeric(c, ErrNeedMoreParams, "PASS", "Not enough parameters")
		return
	}

	if c.Registered {
		s.numeric(c, ErrAlreadyRegistred, "You may not reregister")
		return
	}

	if m.Params[0] != s.Config.Password {
		s.numeric(c, ErrPasswdMismatch, "Password incorrect")
		return
	}

	c.passwordOK = true
}

// nickCommand implements the NICK step of the registration FSM and, for an
// already-registered connection, a nickname change.
func (s *Server) nickCommand(c *Connection, m irc.Message) {
	if len(m.Params) < 1 || m.Params[0] == "" {
		s.numeric(c, ErrNoNicknameGiven, "No nickname given")
		return
	}

	nick := m.Params[0]

	if !c.passwordOK {
		s.numeric(c, ErrPasswdMismatch, "Password required")
		return
	}

	if !isValidNick(s.Config.MaxNickLength, nick) {
		s.numeric(c, ErrErroneusNickname, nick, "Erroneous nickname")
		return
	}

	if !s.rename(c, nick) {
		return
	}

	s.maybeCompleteRegistration(c)
}

// userCommand implements the USER step of the registration FSM.
func (s *Server) userCommand(c *Connection, m irc.Message) {
	if len(m.Params) < 4 {
		s.numeric(c, ErrNeedMoreParams, "USER", "Not enough parameters")
		return
	}

	if !c.passwordOK {
		s.numeric(c, ErrPasswdMismatch, "Password required")
		return
	}

	if c.Registered {
		s.numeric(c, ErrAlreadyRegistred, "You may not reregister")
		return
	}

	if !isValidUser(m.Params[0]) {
		s.numeric(c, ErrNeedMoreParams, "USER", "Invalid username")
		return
	}

	c.user = m.Params[0]
	c.realName = m.Params[3]

	s.maybeCompleteRegistration(c)
}

// maybeCompleteRegistration flips a connection to registered and sends the
// welcome burst the first time password/nick/user are all satisfied.
func (s *Server) maybeCompleteRegistration(c *Connection) {
	if c.Registered {
		return
	}
	if !c.passwordOK || c.nick == "" || c.user == "" {
		return
	}

	c.Registered = true
	s.welcomeBurst(c)
}

func (s *Server) capCommand(c *Connection, m irc.Message) {
	if len(m.Params) == 0 {
		return
	}

	switch m.Params[0] {
	case "LS":
		c.writeChan <- irc.Message{Command: "CAP", Params: []string{"*", "LS", ""}}
	case "REQ":
		c.writeChan <- irc.Message{Command: "CAP", Params: []string{"*", "NAK"}}
	case "END":
		// No reply.
	}
}
