package domain

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/samber/lo"

	"chat-house/contract"
	"chat-house/errors"
)

type GroupType string

const (
	GroupOpen    GroupType = "open"
	GroupSecret  GroupType = "secret"
	GroupPrivate GroupType = "private"
)

func ParseGroupType(s string) (GroupType, bool) {
	switch GroupType(s) {
	case GroupOpen, GroupSecret, GroupPrivate:
		return GroupType(s), true
	}
	return "", false
}

// Group owns one chat room's membership, admin identity, mute set,
// waiting list and secret. Every operation serializes on the group's own
// mutex; operations on different groups never contend.
//
// The members set and the identity->Conn mapping are one map, so their
// key sets cannot diverge. Outbound sends run under the lock; a failed
// send marks the target unreachable and removes it before the operation
// returns, so the sender of a message never observes the failure.
//
// Once alive turns false the group is terminal: every operation becomes
// a no-op returning ErrGroupDestroyed, and a stale reference observes the
// dead group forever. A new group under the same name is a fresh object
// bound by the registry.
type Group struct {
	mu      sync.Mutex
	name    string
	kind    GroupType
	secret  string
	admin   string
	clients map[string]contract.Conn
	muted   map[string]struct{}
	waiting map[string]contract.Conn
	alive   bool
	log     *slog.Logger
}

// NewGroup creates a group with the creator as its admin and sole member.
// The secret is kept only for secret groups.
func NewGroup(name, admin string, conn contract.Conn, kind GroupType, secret string, log *slog.Logger) *Group {
	if kind != GroupSecret {
		secret = ""
	}
	return &Group{
		name:    name,
		kind:    kind,
		secret:  secret,
		admin:   admin,
		clients: map[string]contract.Conn{admin: conn},
		muted:   make(map[string]struct{}),
		waiting: make(map[string]contract.Conn),
		alive:   true,
		log:     log,
	}
}

func (g *Group) Name() string { return g.name }

func (g *Group) Type() GroupType { return g.kind }

func (g *Group) Admin() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.admin
}

func (g *Group) Alive() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.alive
}

func (g *Group) Strength() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.clients)
}

// Members returns the member identities sorted by name.
func (g *Group) Members() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	members := lo.Keys(g.clients)
	sort.Strings(members)
	return members
}

// WaitingUsers returns the waiting identities sorted by name.
func (g *Group) WaitingUsers() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	users := lo.Keys(g.waiting)
	sort.Strings(users)
	return users
}

// MutedUsers returns the muted identities sorted by name.
func (g *Group) MutedUsers() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	users := lo.Keys(g.muted)
	sort.Strings(users)
	return users
}

func (g *Group) IsMember(user string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.clients[user]
	return ok
}

func (g *Group) IsMuted(user string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.muted[user]
	return ok
}

func (g *Group) IsWaiting(user string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.waiting[user]
	return ok
}

// Join admits a user into the group. The join notice is broadcast before
// the user is added, so the newcomer does not receive it.
func (g *Group) Join(user string, conn contract.Conn) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.alive {
		return errors.ErrGroupDestroyed
	}
	if _, ok := g.clients[user]; ok {
		return errors.ErrMemberExists
	}
	g.admitLocked(user, conn)
	return nil
}

// JoinSecret admits a user into a secret group when the presented key
// matches verbatim. A mismatch refuses the join without any state change.
func (g *Group) JoinSecret(user string, conn contract.Conn, secret string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.alive {
		return errors.ErrGroupDestroyed
	}
	if secret != g.secret {
		return errors.ErrWrongSecret
	}
	if _, ok := g.clients[user]; ok {
		return errors.ErrMemberExists
	}
	g.admitLocked(user, conn)
	return nil
}

func (g *Group) admitLocked(user string, conn contract.Conn) {
	var stale []string
	g.broadcastLocked("", fmt.Sprintf("%s has just landed!", user), &stale)
	g.clients[user] = conn
	welcome := "Welcome to the chatroom"
	if g.kind == GroupSecret {
		welcome = "Welcome to the secret chat"
	}
	if err := conn.Send(welcome); err != nil {
		stale = append(stale, user)
	}
	g.reapLocked(stale)
}

// Leave removes a departing user, sends the farewell to them and the
// departure notice to everyone else. A departing admin promotes the
// lexicographically smallest remaining member, or destroys the group when
// nobody is left.
func (g *Group) Leave(user string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.alive {
		return errors.ErrGroupDestroyed
	}
	conn, ok := g.clients[user]
	if !ok {
		return errors.ErrUnknownMember
	}
	_ = conn.Send("You left the group")
	g.removeLocked(user)
	var stale []string
	g.broadcastLocked("", fmt.Sprintf("%s left the group", user), &stale)
	g.reapLocked(stale)
	g.succeedLocked(user)
	return nil
}

// Kick removes a member on behalf of the admin. The admin cannot kick
// itself; that leaves membership and admin unchanged.
func (g *Group) Kick(user string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.alive {
		return errors.ErrGroupDestroyed
	}
	if user == g.admin {
		return errors.ErrSelfKickDenied
	}
	conn, ok := g.clients[user]
	if !ok {
		return errors.ErrUnknownMember
	}
	_ = conn.Send("You were kicked out from the group")
	_ = conn.Kill()
	g.removeLocked(user)
	var stale []string
	g.broadcastLocked("", fmt.Sprintf("user %s was kicked from the group by admin %s", user, g.admin), &stale)
	g.reapLocked(stale)
	return nil
}

// ChangeAdmin transfers ownership to an existing member.
func (g *Group) ChangeAdmin(newAdmin string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.alive {
		return errors.ErrGroupDestroyed
	}
	if _, ok := g.clients[newAdmin]; !ok {
		return errors.ErrUnknownMember
	}
	var stale []string
	g.broadcastLocked("", fmt.Sprintf("Ownership of the group was transferred from %s to %s", g.admin, newAdmin), &stale)
	g.admin = newAdmin
	g.reapLocked(stale)
	return nil
}

// Destroy broadcasts the destruction notice, empties the membership and
// turns the group terminal. Waiting connections are told to close.
// Calling Destroy on a dead group is a no-op.
func (g *Group) Destroy() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.destroyLocked()
}

func (g *Group) destroyLocked() {
	if !g.alive {
		return
	}
	var stale []string
	g.broadcastLocked("", "Admin destroyed the group", &stale)
	for _, conn := range g.waiting {
		_ = conn.Kill()
	}
	g.clients = make(map[string]contract.Conn)
	g.muted = make(map[string]struct{})
	g.waiting = make(map[string]contract.Conn)
	g.alive = false
	g.log.Info("group destroyed", "group", g.name)
}

// Mute flags members as forbidden from sending. Identities absent from
// the membership are skipped silently.
func (g *Group) Mute(users []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.alive {
		return errors.ErrGroupDestroyed
	}
	var stale []string
	for _, user := range users {
		conn, ok := g.clients[user]
		if !ok {
			continue
		}
		if _, already := g.muted[user]; already {
			continue
		}
		g.muted[user] = struct{}{}
		if err := conn.Send(fmt.Sprintf("You were muted by %s", g.admin)); err != nil {
			stale = append(stale, user)
		}
		g.broadcastLocked("", fmt.Sprintf("%s was muted by %s", user, g.admin), &stale)
	}
	g.reapLocked(stale)
	return nil
}

// Unmute lifts the mute flag. Identities that are not muted members are
// skipped silently.
func (g *Group) Unmute(users []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.alive {
		return errors.ErrGroupDestroyed
	}
	var stale []string
	for _, user := range users {
		conn, ok := g.clients[user]
		if !ok {
			continue
		}
		if _, muted := g.muted[user]; !muted {
			continue
		}
		delete(g.muted, user)
		g.broadcastLocked("", fmt.Sprintf("%s was unmuted by %s", user, g.admin), &stale)
		if err := conn.Send(fmt.Sprintf("You were unmuted by %s", g.admin)); err != nil {
			stale = append(stale, user)
		}
	}
	g.reapLocked(stale)
	return nil
}

// Broadcast delivers "sender: text" to every member except the sender.
// A system message (empty sender) is delivered to literally everyone.
func (g *Group) Broadcast(sender, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.alive {
		return errors.ErrGroupDestroyed
	}
	var stale []string
	g.broadcastLocked(sender, text, &stale)
	g.reapLocked(stale)
	return nil
}

// DirectMessage delivers "(private) sender: text" to the receiver only.
// An absent receiver drops the message silently. Known limitation: the
// sender gets no signal that nothing was delivered.
func (g *Group) DirectMessage(sender, receiver, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.alive {
		return errors.ErrGroupDestroyed
	}
	conn, ok := g.clients[receiver]
	if !ok {
		return nil
	}
	if err := conn.Send(fmt.Sprintf("(private) %s: %s", sender, text)); err != nil {
		g.reapLocked([]string{receiver})
	}
	return nil
}

// ExceptMessage delivers to every member neither excluded nor the sender.
func (g *Group) ExceptMessage(sender string, excluded []string, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.alive {
		return errors.ErrGroupDestroyed
	}
	skip := make(map[string]struct{}, len(excluded))
	for _, user := range excluded {
		skip[user] = struct{}{}
	}
	var stale []string
	for user, conn := range g.clients {
		if user == sender {
			continue
		}
		if _, excl := skip[user]; excl {
			continue
		}
		if err := conn.Send(fmt.Sprintf("(private) %s: %s", sender, text)); err != nil {
			stale = append(stale, user)
		}
	}
	g.reapLocked(stale)
	return nil
}

// RequestJoin enqueues a user into the waiting room of a private group,
// acknowledges the requester and notifies the admin.
func (g *Group) RequestJoin(user string, conn contract.Conn) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.alive {
		return errors.ErrGroupDestroyed
	}
	if _, ok := g.clients[user]; ok {
		return errors.ErrMemberExists
	}
	_ = conn.Send("Your request has been sent successfully to the admin of the group")
	g.waiting[user] = conn
	var stale []string
	if adminConn, ok := g.clients[g.admin]; ok {
		if err := adminConn.Send(fmt.Sprintf("user %s has requested to join the group.", user)); err != nil {
			stale = append(stale, g.admin)
		}
	}
	g.reapLocked(stale)
	return nil
}

// Accept admits a waiting user. When the requester's connection already
// failed, the waiting entry is dropped without admitting and
// ErrRequesterGone is returned for the admin's notice.
func (g *Group) Accept(user string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.alive {
		return errors.ErrGroupDestroyed
	}
	conn, ok := g.waiting[user]
	if !ok {
		return errors.ErrNoSuchWaitingUser
	}
	if err := conn.Send("Your request to join the group has been accepted."); err != nil {
		delete(g.waiting, user)
		return errors.ErrRequesterGone
	}
	delete(g.waiting, user)
	g.admitLocked(user, conn)
	return nil
}

// Reject denies a waiting user. The waiting entry is always removed;
// ErrRequesterGone reports a requester that vanished before the rejection
// could be delivered.
func (g *Group) Reject(user string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.alive {
		return errors.ErrGroupDestroyed
	}
	conn, ok := g.waiting[user]
	if !ok {
		return errors.ErrNoSuchWaitingUser
	}
	delete(g.waiting, user)
	if err := conn.Send("Your request to join the group has been rejected."); err != nil {
		return errors.ErrRequesterGone
	}
	_ = conn.Kill()
	return nil
}

// AbandonWaiting drops a waiting user that gave up before the admin's
// decision. Unknown identities are a no-op.
func (g *Group) AbandonWaiting(user string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.waiting, user)
}

// broadcastLocked formats and sends to every member except the sender.
// Unreachable members are appended to stale for the caller to reap.
func (g *Group) broadcastLocked(sender, text string, stale *[]string) {
	line := text
	if sender != "" {
		line = fmt.Sprintf("%s: %s", sender, text)
	}
	for user, conn := range g.clients {
		if user == sender {
			continue
		}
		if err := conn.Send(line); err != nil {
			*stale = append(*stale, user)
		}
	}
}

// reapLocked removes unreachable members, broadcasting their departure.
// Failures during those broadcasts queue further removals, so the group
// converges to reachable members only. An unreachable admin is succeeded
// like a departing one.
func (g *Group) reapLocked(stale []string) {
	for len(stale) > 0 {
		user := stale[0]
		stale = stale[1:]
		if _, ok := g.clients[user]; !ok {
			continue
		}
		g.log.Debug("removing unreachable member", "group", g.name, "member", user)
		g.removeLocked(user)
		g.broadcastLocked("", fmt.Sprintf("%s left the group", user), &stale)
		g.succeedLocked(user)
		if !g.alive {
			return
		}
	}
}

// succeedLocked reassigns the admin after user departed, or destroys the
// group when it was the last member. Tie-break: smallest member name.
func (g *Group) succeedLocked(user string) {
	if user != g.admin || !g.alive {
		return
	}
	if len(g.clients) == 0 {
		g.destroyLocked()
		return
	}
	members := lo.Keys(g.clients)
	sort.Strings(members)
	next := members[0]
	var stale []string
	g.broadcastLocked("", fmt.Sprintf("Ownership of the group was transferred from %s to %s", g.admin, next), &stale)
	g.admin = next
	g.reapLocked(stale)
}

// removeLocked erases a member and its mute flag.
func (g *Group) removeLocked(user string) {
	delete(g.clients, user)
	delete(g.muted, user)
}
