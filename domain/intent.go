package domain

// Intent is the closed set of routing decisions the dispatcher can take
// for one input line. Exactly one variant is produced per line.
type Intent interface {
	isIntent()
}

// BroadcastIntent carries a plain message for every other member.
type BroadcastIntent struct {
	Text string
}

// DirectIntent carries a message delivered independently to each
// receiver present in the membership.
type DirectIntent struct {
	Receivers []string
	Text      string
}

// ExceptIntent carries a message for every member not excluded and not
// the sender.
type ExceptIntent struct {
	Excluded []string
	Text     string
}

// AdminIntent carries an administrative verb with its raw argument.
// An unrecognized command parses to VerbUnknown.
type AdminIntent struct {
	Verb AdminVerb
	Arg  string
}

// QuitIntent is produced for an empty line or the explicit quit command.
type QuitIntent struct{}

func (BroadcastIntent) isIntent() {}
func (DirectIntent) isIntent()    {}
func (ExceptIntent) isIntent()    {}
func (AdminIntent) isIntent()     {}
func (QuitIntent) isIntent()      {}

// AdminVerb is the closed set of administrative commands, resolved once
// by the dispatcher rather than re-parsed ad hoc.
type AdminVerb string

const (
	VerbUnknown     AdminVerb = ""
	VerbQuit        AdminVerb = "quit"
	VerbWhosOnline  AdminVerb = "whosonline"
	VerbStrength    AdminVerb = "strength"
	VerbWhosAdmin   AdminVerb = "whosadmin"
	VerbKick        AdminVerb = "kick"
	VerbDestruct    AdminVerb = "destruct"
	VerbMakeOwner   AdminVerb = "makeowner"
	VerbMute        AdminVerb = "mute"
	VerbUnmute      AdminVerb = "unmute"
	VerbWhosWaiting AdminVerb = "whoswaiting"
	VerbAccept      AdminVerb = "accept"
	VerbReject      AdminVerb = "reject"
)

func ParseAdminVerb(s string) (AdminVerb, bool) {
	switch AdminVerb(s) {
	case VerbQuit, VerbWhosOnline, VerbStrength, VerbWhosAdmin,
		VerbKick, VerbDestruct, VerbMakeOwner, VerbMute, VerbUnmute,
		VerbWhosWaiting, VerbAccept, VerbReject:
		return AdminVerb(s), true
	}
	return VerbUnknown, false
}

// AdminOnly reports whether only the group admin may issue the verb.
func (v AdminVerb) AdminOnly() bool {
	switch v {
	case VerbKick, VerbDestruct, VerbMakeOwner, VerbMute, VerbUnmute,
		VerbWhosWaiting, VerbAccept, VerbReject:
		return true
	}
	return false
}

// PrivateOnly reports whether the verb only makes sense in a private
// group with a waiting room.
func (v AdminVerb) PrivateOnly() bool {
	switch v {
	case VerbWhosWaiting, VerbAccept, VerbReject:
		return true
	}
	return false
}
