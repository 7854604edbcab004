package catbox

import "github.com/horgh/irc"

// Numeric reply codes this server emits. Named in the same Reply-prefixed
// style as github.com/horgh/irc's ReplyWelcome/ReplyYoureOper.
const (
	ReplyWelcome     = irc.ReplyWelcome // 001
	ReplyYourHost    = "002"
	ReplyCreated     = "003"
	ReplyMyInfo      = "004"
	ReplyUserHost    = "302"
	ReplyWhoisUser   = "311"
	ReplyWhoisServer = "312"
	ReplyEndOfWhois  = "318"
	ReplyWhoisChans  = "319"
	ReplyEndOfWho    = "315"
	ReplyListStart   = "321"
	ReplyList        = "322"
	ReplyListEnd     = "323"
	ReplyChannelMode = "324"
	ReplyNoTopic     = "331"
	ReplyTopic       = "332"
	ReplyInviting    = "341"
	ReplyWhoReply    = "352"
	ReplyNameReply   = "353"
	ReplyEndOfNames  = "366"
	ReplyMOTD        = "372"
	ReplyMOTDStart   = "375"
	ReplyEndOfMOTD   = "376"
	ReplyYoureOper   = irc.ReplyYoureOper // 381

	ErrNoSuchNick       = "401"
	ErrNoSuchChannel    = "403"
	ErrNoOrigin         = "409"
	ErrUnknownCommand   = "421"
	ErrNoNicknameGiven  = "431"
	ErrErroneusNickname = "432"
	ErrNicknameInUse    = "433"
	ErrUserNotInChannel = "441"
	ErrNotOnChannel     = "442"
	ErrUserOnChannel    = "443"
	ErrNotRegistered    = "451"
	ErrNeedMoreParams   = "461"
	ErrAlreadyRegistred = "462"
	ErrPasswdMismatch   = "464"
	ErrChannelIsFull    = "471"
	ErrInviteOnlyChan   = "473"
	ErrBadChannelKey    = "475"
	ErrChanOPrivsNeeded = "482"
)

// numeric writes a numeric reply to c. Per convention the first parameter
// after the numeric is always the target's displayed nick, falling back to
// "*" before one is assigned.
func (s *Server) numeric(c *Connection, code string, params ...string) {
	nick := c.nick
	if nick == "" {
		nick = "*"
	}

	all := make([]string, 0, len(params)+1)
	all = append(all, nick)
	all = append(all, params...)

	c.writeChan <- irc.Message{
		Prefix:  s.Config.ServerName,
		Command: code,
		Params:  all,
	}
}

// fromServer sends a server-origin, non-numeric command (e.g. PING, ERROR)
// to c.
func (s *Server) fromServer(c *Connection, command string, params ...string) {
	c.writeChan <- irc.Message{
		Prefix:  s.Config.ServerName,
		Command: command,
		Params:  params,
	}
}

// fromClient sends a message with origin as its source to dst. Used for
// broadcasts and direct client-to-client delivery.
func fromClient(origin *Connection, dst *Connection, command string, params ...string) {
	fromPrefix(origin.hostmask(), dst, command, params...)
}

// fromPrefix sends a message from an explicit prefix string rather than
// deriving it from a Connection's current state. Needed when the origin's
// own state has already changed (e.g. a NICK change must appear to come
// from the old hostmask, not the new one).
func fromPrefix(prefix string, dst *Connection, command string, params ...string) {
	dst.writeChan <- irc.Message{
		Prefix:  prefix,
		Command: command,
		Params:  params,
	}
}

// welcomeBurst emits the registration success numerics, 001-004 followed by
// the MOTD block.
func (s *Server) welcomeBurst(c *Connection) {
	s.numeric(c, ReplyWelcome,
		"Welcome to the "+s.Config.NetworkName+" Internet Relay Network "+c.hostmask())
	s.numeric(c, ReplyYourHost,
		"Your host is "+s.Config.ServerName+", running version "+s.Config.Version)
	s.numeric(c, ReplyCreated,
		"This server was created "+s.Config.CreatedDate)
	s.numeric(c, ReplyMyInfo,
		s.Config.ServerName, s.Config.Version)

	s.motdCommand(c)
}

func (s *Server) motdCommand(c *Connection) {
	s.numeric(c, ReplyMOTDStart, "- "+s.Config.ServerName+" Message of the day - ")
	for _, line := range s.Config.MOTD {
		s.numeric(c, ReplyMOTD, "- "+line)
	}
	s.numeric(c, ReplyEndOfMOTD, "End of MOTD command")
}
