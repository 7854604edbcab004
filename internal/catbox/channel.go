package catbox

// Channel holds everything to do with a single channel: its roster, its
// operator set, pending invites, and its modes.
//
// Invariant: operators is always a subset of the member set. Invariant: a
// Channel with no members is removed from the server's channel table by the
// last part/kick/quit that empties it; one is never observed to exist with
// zero members.
type Channel struct {
	Name string

	// members preserves insertion order for NAMES/353 listings.
	members   []uint64
	memberSet map[uint64]struct{}

	operators map[uint64]struct{}
	invited   map[uint64]struct{}

	Topic string

	// Key is the +k argument. Empty means unset (no key required).
	Key string

	// UserLimit is the +l argument. Zero means unset.
	UserLimit int

	InviteOnly   bool
	TopicLocked bool
}

func newChannel(name string) *Channel {
	return &Channel{
		Name:        name,
		memberSet:   map[uint64]struct{}{},
		operators:   map[uint64]struct{}{},
		invited:     map[uint64]struct{}{},
		TopicLocked: true,
	}
}

func (ch *Channel) hasMember(id uint64) bool {
	_, ok := ch.memberSet[id]
	return ok
}

func (ch *Channel) isOperator(id uint64) bool {
	_, ok := ch.operators[id]
	return ok
}

func (ch *Channel) isInvited(id uint64) bool {
	_, ok := ch.invited[id]
	return ok
}

func (ch *Channel) addMember(id uint64) {
	if ch.hasMember(id) {
		return
	}
	ch.members = append(ch.members, id)
	ch.memberSet[id] = struct{}{}
	delete(ch.invited, id)
}

func (ch *Channel) removeMember(id uint64) {
	if !ch.hasMember(id) {
		return
	}
	delete(ch.memberSet, id)
	delete(ch.operators, id)
	for i, m := range ch.members {
		if m == id {
			ch.members = append(ch.members[:i], ch.members[i+1:]...)
			break
		}
	}
}

func (ch *Channel) memberCount() int {
	return len(ch.members)
}

// modeString renders the channel's boolean/valued modes, e.g. "+itk" or
// "+ikl".
func (ch *Channel) modeString() (modes string, args []string) {
	modes = "+"
	if ch.InviteOnly {
		modes += "i"
	}
	if ch.TopicLocked {
		modes += "t"
	}
	if ch.Key != "" {
		modes += "k"
		args = append(args, ch.Key)
	}
	if ch.UserLimit > 0 {
		modes += "l"
		args = append(args, itoa(ch.UserLimit))
	}
	return modes, args
}
