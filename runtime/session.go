package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"chat-house/contract"
	"chat-house/domain"
	cherrors "chat-house/errors"
	"chat-house/moderation"
)

// Session binds one connection to one member identity inside one group
// for its whole lifetime. It is the only component reading from the
// connection: every received line is classified, filtered for mute and
// applied to the group before the next receive.
//
// Session implements contract.Worker so connected clients run under the
// supervisor like any other execution unit.
type Session struct {
	id       uuid.UUID
	identity string
	group    *domain.Group
	conn     contract.Conn
	censor   *moderation.Censor
	log      *slog.Logger
}

func NewSession(identity string, group *domain.Group, conn contract.Conn, censor *moderation.Censor, log *slog.Logger) *Session {
	return &Session{
		id:       uuid.New(),
		identity: identity,
		group:    group,
		conn:     conn,
		censor:   censor,
		log:      log,
	}
}

func (s *Session) Identity() string { return s.identity }

func (s *Session) Group() *domain.Group { return s.group }

// Run consumes lines until the peer disconnects, the member leaves or
// the group dies. Receiving is the only blocking point; context
// cancellation closes the connection to unblock it. A disconnect is a
// normal outcome, never an error.
func (s *Session) Run(ctx context.Context) error {
	defer func() { _ = s.conn.Close() }()
	unwatch := context.AfterFunc(ctx, func() { _ = s.conn.Close() })
	defer unwatch()

	log := s.log.With("session", s.id.String(), "member", s.identity, "group", s.group.Name())
	log.Info("session started", "peer", s.conn.RemoteAddr())
	defer log.Info("session ended")

	for {
		line, err := s.conn.Receive()
		if err != nil {
			s.disconnect()
			return nil
		}
		if !s.group.Alive() {
			return nil
		}
		if !s.group.IsMember(s.identity) {
			if !s.group.IsWaiting(s.identity) {
				return nil
			}
			if _, quit := Classify(line).(domain.QuitIntent); quit {
				s.group.AbandonWaiting(s.identity)
				return nil
			}
			s.notice("You are still waiting for the admin to let you in")
			continue
		}
		if s.apply(Classify(line)) {
			return nil
		}
	}
}

// apply executes one intent and reports whether the session should stop.
// A muted member's routing intents are refused here, before any group
// delivery; administrative commands stay available so quitting works.
func (s *Session) apply(intent domain.Intent) bool {
	switch it := intent.(type) {
	case domain.QuitIntent:
		_ = s.group.Leave(s.identity)
		return true
	case domain.BroadcastIntent:
		if s.group.IsMuted(s.identity) {
			return false
		}
		_ = s.group.Broadcast(s.identity, s.censorText(it.Text))
	case domain.DirectIntent:
		if s.group.IsMuted(s.identity) {
			return false
		}
		text := s.censorText(it.Text)
		for _, receiver := range it.Receivers {
			_ = s.group.DirectMessage(s.identity, receiver, text)
		}
	case domain.ExceptIntent:
		if s.group.IsMuted(s.identity) {
			return false
		}
		_ = s.group.ExceptMessage(s.identity, it.Excluded, s.censorText(it.Text))
	case domain.AdminIntent:
		return s.applyAdmin(it)
	}
	return false
}

func (s *Session) applyAdmin(cmd domain.AdminIntent) bool {
	if cmd.Verb == domain.VerbUnknown {
		s.report(cherrors.ErrUnknownCommand)
		return false
	}
	if cmd.Verb.AdminOnly() && s.identity != s.group.Admin() {
		s.report(cherrors.ErrPermissionDenied)
		return false
	}
	if cmd.Verb.PrivateOnly() && s.group.Type() != domain.GroupPrivate {
		s.report(cherrors.ErrPrivateOnly)
		return false
	}

	switch cmd.Verb {
	case domain.VerbWhosOnline:
		s.notice("SERVER: Currently online are: " + strings.Join(s.group.Members(), ", "))
	case domain.VerbStrength:
		s.notice(fmt.Sprintf("Currently %d members are online in the group", s.group.Strength()))
	case domain.VerbWhosAdmin:
		s.notice(fmt.Sprintf("SERVER: %s is currently the admin of group %s", s.group.Admin(), s.group.Name()))
	case domain.VerbKick:
		s.report(s.group.Kick(cmd.Arg))
	case domain.VerbDestruct:
		s.group.Destroy()
		return true
	case domain.VerbMakeOwner:
		s.report(s.group.ChangeAdmin(cmd.Arg))
	case domain.VerbMute:
		s.report(s.group.Mute(SplitNames(cmd.Arg)))
	case domain.VerbUnmute:
		s.report(s.group.Unmute(SplitNames(cmd.Arg)))
	case domain.VerbWhosWaiting:
		s.notice("SERVER: Currently waiting users are: " + strings.Join(s.group.WaitingUsers(), ", "))
	case domain.VerbAccept:
		s.report(s.group.Accept(cmd.Arg))
	case domain.VerbReject:
		s.report(s.group.Reject(cmd.Arg))
	}
	return false
}

// report translates a group error into a notice for the invoker.
// Identity and permission errors never mutate state, so telling the
// invoker is all there is to do.
func (s *Session) report(err error) {
	switch {
	case err == nil:
	case errors.Is(err, cherrors.ErrUnknownCommand):
		s.notice("No such special command!")
	case errors.Is(err, cherrors.ErrPermissionDenied):
		s.notice("You can't perform this action until you are an admin :(")
	case errors.Is(err, cherrors.ErrPrivateOnly):
		s.notice("This action is only viable in a private group")
	case errors.Is(err, cherrors.ErrSelfKickDenied):
		s.notice("You cannot kick yourself from the group")
	case errors.Is(err, cherrors.ErrUnknownMember):
		s.notice("No such member in the group")
	case errors.Is(err, cherrors.ErrNoSuchWaitingUser):
		s.notice("No such user in the waiting list")
	case errors.Is(err, cherrors.ErrRequesterGone):
		s.notice("Looks like the user was tired of waiting and left")
	case errors.Is(err, cherrors.ErrGroupDestroyed):
	default:
		s.log.Warn("command failed", "member", s.identity, "err", err)
	}
}

// disconnect translates a closed connection into an implicit quit.
func (s *Session) disconnect() {
	if s.group.IsWaiting(s.identity) {
		s.group.AbandonWaiting(s.identity)
		return
	}
	if s.group.IsMember(s.identity) {
		_ = s.group.Leave(s.identity)
	}
}

func (s *Session) notice(text string) {
	_ = s.conn.Send(text)
}

func (s *Session) censorText(text string) string {
	if s.censor == nil {
		return text
	}
	return s.censor.Apply(text)
}
