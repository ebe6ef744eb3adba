package runtime

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"chat-house/contract"
	"chat-house/domain"
	cherrors "chat-house/errors"
	"chat-house/moderation"
)

var validate = validator.New()

// joinRequest is the handshake input. Names are alphanumeric so they can
// never collide with the @/-/! routing prefixes or the comma list
// separator.
type joinRequest struct {
	Username  string `validate:"required,min=2,max=32,alphanumunicode"`
	GroupName string `validate:"required,min=1,max=64,alphanumunicode"`
}

// Handshaker runs the joining dialogue on fresh connections: username,
// group name, then the entry flow of the group's type, or the creation
// flow when the name is unbound.
type Handshaker struct {
	registry *Registry
	censor   *moderation.Censor
	log      *slog.Logger
}

func NewHandshaker(registry *Registry, censor *moderation.Censor, log *slog.Logger) *Handshaker {
	return &Handshaker{registry: registry, censor: censor, log: log}
}

// Admit drives the handshake to completion and returns the resulting
// session. On refusal the connection has already been told to close.
func (h *Handshaker) Admit(conn contract.Conn) (*Session, error) {
	if err := conn.Send("Welcome to chat_house!"); err != nil {
		_ = conn.Close()
		return nil, err
	}
	username, err := h.prompt(conn, "Enter your username:")
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	groupName, err := h.prompt(conn, "Enter the name of the group you want to join:")
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := validate.Struct(joinRequest{Username: username, GroupName: groupName}); err != nil {
		_ = conn.Send("Invalid username or group name")
		_ = conn.Kill()
		return nil, fmt.Errorf("invalid join request: %w", err)
	}

	// Losing a creation race falls back to joining the winner.
	for {
		if group, ok := h.registry.Lookup(groupName); ok {
			return h.enter(conn, username, group)
		}
		sess, err := h.create(conn, username, groupName)
		if err != nil && errors.Is(err, cherrors.ErrGroupNameTaken) {
			continue
		}
		return sess, err
	}
}

// enter runs the type-specific entry flow on an existing group.
func (h *Handshaker) enter(conn contract.Conn, username string, group *domain.Group) (*Session, error) {
	switch group.Type() {
	case domain.GroupSecret:
		// Single-shot challenge: a mismatch ends this join attempt.
		secret, err := h.prompt(conn, "Enter password to prove you are worthy:")
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		if err := group.JoinSecret(username, conn, secret); err != nil {
			return nil, h.refuse(conn, err)
		}
	case domain.GroupPrivate:
		if err := group.RequestJoin(username, conn); err != nil {
			return nil, h.refuse(conn, err)
		}
	default:
		if err := group.Join(username, conn); err != nil {
			return nil, h.refuse(conn, err)
		}
	}
	return NewSession(username, group, conn, h.censor, h.log), nil
}

// create runs the group creation dialogue, making the creator the admin.
func (h *Handshaker) create(conn contract.Conn, username, groupName string) (*Session, error) {
	answer, err := h.prompt(conn, fmt.Sprintf("There is no group named %q. Would you like to create one? [y/n]", groupName))
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if !strings.EqualFold(answer, "y") {
		_ = conn.Kill()
		return nil, fmt.Errorf("creation of group %q declined", groupName)
	}

	rawKind, err := h.prompt(conn, "Enter the type of group [open/secret/private]")
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	kind, ok := domain.ParseGroupType(rawKind)
	if !ok {
		_ = conn.Send("Not a valid type of group")
		_ = conn.Kill()
		return nil, fmt.Errorf("invalid group type %q", rawKind)
	}

	var secret string
	if kind == domain.GroupSecret {
		if secret, err = h.prompt(conn, "Please enter a secret key for the group"); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	group := domain.NewGroup(groupName, username, conn, kind, secret, h.log)
	if err := h.registry.Create(groupName, group); err != nil {
		return nil, err
	}
	_ = conn.Send("Creation Successful")
	_ = conn.Send(fmt.Sprintf("You're the admin of this new %s group", kind))
	return NewSession(username, group, conn, h.censor, h.log), nil
}

// refuse notifies the peer why the join failed and tells it to close.
func (h *Handshaker) refuse(conn contract.Conn, err error) error {
	switch {
	case errors.Is(err, cherrors.ErrWrongSecret):
		_ = conn.Send("Wrong password")
	case errors.Is(err, cherrors.ErrMemberExists):
		_ = conn.Send("That name is already taken in the group")
	case errors.Is(err, cherrors.ErrGroupDestroyed):
		_ = conn.Send("The group no longer exists")
	}
	_ = conn.Kill()
	return fmt.Errorf("join refused: %w", err)
}

func (h *Handshaker) prompt(conn contract.Conn, question string) (string, error) {
	if err := conn.Send(question); err != nil {
		return "", err
	}
	answer, err := conn.Receive()
	if err != nil {
		return "", fmt.Errorf("peer left during handshake: %w", err)
	}
	return strings.TrimSpace(answer), nil
}
