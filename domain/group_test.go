package domain

import (
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"chat-house/errors"
)

type fakeConn struct {
	mu      sync.Mutex
	sent    []string
	failing bool
	killed  bool
	closed  bool
}

func (c *fakeConn) Send(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return errors.ErrPeerUnreachable
	}
	c.sent = append(c.sent, text)
	return nil
}

func (c *fakeConn) Receive() (string, error) { return "", io.EOF }

func (c *fakeConn) Kill() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.killed = true
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) RemoteAddr() string { return "fake" }

func (c *fakeConn) lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

func (c *fakeConn) received(substr string) bool {
	for _, line := range c.lines() {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

func (c *fakeConn) count(substr string) int {
	n := 0
	for _, line := range c.lines() {
		if strings.Contains(line, substr) {
			n++
		}
	}
	return n
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openGroup(t *testing.T) (*Group, *fakeConn) {
	t.Helper()
	admin := &fakeConn{}
	return NewGroup("g", "alice", admin, GroupOpen, "", testLogger()), admin
}

// requireAdminInvariant checks that at every observable point either the
// admin is a member, or the group is dead with no members.
func requireAdminInvariant(req *require.Assertions, g *Group) {
	if g.Alive() {
		req.Contains(g.Members(), g.Admin())
	} else {
		req.Empty(g.Members())
	}
}

func TestGroup_Join_BroadcastsLandingToExistingMembers(t *testing.T) {
	req := require.New(t)
	g, alice := openGroup(t)
	bob := &fakeConn{}

	// When bob joins
	req.NoError(g.Join("bob", bob))

	// Then the existing member sees the landing, the newcomer does not
	req.True(alice.received("bob has just landed!"))
	req.False(bob.received("has just landed"))
	req.True(bob.received("Welcome to the chatroom"))
	req.Equal([]string{"alice", "bob"}, g.Members())
	requireAdminInvariant(req, g)
}

func TestGroup_Join_DuplicateIdentityRefused(t *testing.T) {
	req := require.New(t)
	g, _ := openGroup(t)

	err := g.Join("alice", &fakeConn{})

	req.ErrorIs(err, errors.ErrMemberExists)
	req.Equal([]string{"alice"}, g.Members())
}

func TestGroup_Broadcast_SkipsSenderDeliversOthersOnce(t *testing.T) {
	req := require.New(t)
	g, alice := openGroup(t)
	bob, carol := &fakeConn{}, &fakeConn{}
	req.NoError(g.Join("bob", bob))
	req.NoError(g.Join("carol", carol))

	req.NoError(g.Broadcast("bob", "hi there"))

	// Every other member exactly once, never the sender
	req.Equal(1, alice.count("bob: hi there"))
	req.Equal(1, carol.count("bob: hi there"))
	req.False(bob.received("hi there"))
}

func TestGroup_Broadcast_SystemMessageReachesEveryone(t *testing.T) {
	req := require.New(t)
	g, alice := openGroup(t)
	bob := &fakeConn{}
	req.NoError(g.Join("bob", bob))

	req.NoError(g.Broadcast("", "maintenance in 5 minutes"))

	req.True(alice.received("maintenance in 5 minutes"))
	req.True(bob.received("maintenance in 5 minutes"))
}

func TestGroup_JoinThenLeave_RestoresMembership(t *testing.T) {
	req := require.New(t)
	g, _ := openGroup(t)
	bob := &fakeConn{}

	req.NoError(g.Join("bob", bob))
	req.NoError(g.Leave("bob"))

	req.Equal([]string{"alice"}, g.Members())
	req.Equal("alice", g.Admin())
	req.True(g.Alive())
	req.True(bob.received("You left the group"))
	requireAdminInvariant(req, g)
}

func TestGroup_Leave_UnknownMember(t *testing.T) {
	req := require.New(t)
	g, _ := openGroup(t)

	req.ErrorIs(g.Leave("ghost"), errors.ErrUnknownMember)
}

func TestGroup_Kick_SelfKickDenied(t *testing.T) {
	req := require.New(t)
	g, _ := openGroup(t)
	req.NoError(g.Join("bob", &fakeConn{}))

	err := g.Kick("alice")

	req.ErrorIs(err, errors.ErrSelfKickDenied)
	req.Equal([]string{"alice", "bob"}, g.Members())
	req.Equal("alice", g.Admin())
}

func TestGroup_Kick_RemovesTargetAndNotifiesGroup(t *testing.T) {
	req := require.New(t)
	g, alice := openGroup(t)
	bob := &fakeConn{}
	req.NoError(g.Join("bob", bob))

	req.NoError(g.Kick("bob"))

	req.True(bob.received("You were kicked out from the group"))
	req.True(bob.killed)
	req.False(g.IsMember("bob"))
	req.True(alice.received("user bob was kicked from the group by admin alice"))
	// No farewell on a kick
	req.False(bob.received("You left the group"))
}

func TestGroup_Kick_UnknownMember(t *testing.T) {
	req := require.New(t)
	g, _ := openGroup(t)

	req.ErrorIs(g.Kick("ghost"), errors.ErrUnknownMember)
}

func TestGroup_ChangeAdmin_TransfersOwnership(t *testing.T) {
	req := require.New(t)
	g, alice := openGroup(t)
	bob := &fakeConn{}
	req.NoError(g.Join("bob", bob))

	req.NoError(g.ChangeAdmin("bob"))

	req.Equal("bob", g.Admin())
	req.True(bob.received("Ownership of the group was transferred from alice to bob"))
	req.True(alice.received("Ownership of the group was transferred from alice to bob"))
	requireAdminInvariant(req, g)
}

func TestGroup_ChangeAdmin_UnknownMemberIsError(t *testing.T) {
	req := require.New(t)
	g, alice := openGroup(t)

	err := g.ChangeAdmin("ghost")

	req.ErrorIs(err, errors.ErrUnknownMember)
	req.Equal("alice", g.Admin())
	// No silent broadcast on the error path
	req.False(alice.received("Ownership"))
}

func TestGroup_AdminLeave_PromotesSmallestRemainingMember(t *testing.T) {
	req := require.New(t)
	g, _ := openGroup(t)
	carol, bob := &fakeConn{}, &fakeConn{}
	req.NoError(g.Join("carol", carol))
	req.NoError(g.Join("bob", bob))

	req.NoError(g.Leave("alice"))

	req.True(g.Alive())
	req.Equal("bob", g.Admin())
	req.True(carol.received("alice left the group"))
	req.True(carol.received("Ownership of the group was transferred from alice to bob"))
	requireAdminInvariant(req, g)
}

func TestGroup_LastMemberLeave_DestroysGroup(t *testing.T) {
	req := require.New(t)
	g, _ := openGroup(t)

	req.NoError(g.Leave("alice"))

	req.False(g.Alive())
	req.Empty(g.Members())
	requireAdminInvariant(req, g)

	// Terminal: all further operations are refused
	req.ErrorIs(g.Join("bob", &fakeConn{}), errors.ErrGroupDestroyed)
	req.ErrorIs(g.Broadcast("bob", "anyone?"), errors.ErrGroupDestroyed)
}

func TestGroup_Destroy_IsIdempotent(t *testing.T) {
	req := require.New(t)
	g, alice := openGroup(t)

	g.Destroy()
	g.Destroy()

	req.False(g.Alive())
	req.Equal(1, alice.count("Admin destroyed the group"))
}

func TestGroup_Mute_NotifiesTargetAndGroup(t *testing.T) {
	req := require.New(t)
	g, alice := openGroup(t)
	bob := &fakeConn{}
	req.NoError(g.Join("bob", bob))

	req.NoError(g.Mute([]string{"bob", "ghost"}))

	// Absent identities are skipped silently
	req.True(g.IsMuted("bob"))
	req.False(g.IsMuted("ghost"))
	req.True(bob.received("You were muted by alice"))
	req.True(alice.received("bob was muted by alice"))
}

func TestGroup_Unmute_LiftsFlagAndNotifies(t *testing.T) {
	req := require.New(t)
	g, alice := openGroup(t)
	bob := &fakeConn{}
	req.NoError(g.Join("bob", bob))
	req.NoError(g.Mute([]string{"bob"}))

	req.NoError(g.Unmute([]string{"bob"}))

	req.False(g.IsMuted("bob"))
	req.True(bob.received("You were unmuted by alice"))
	req.True(alice.received("bob was unmuted by alice"))
}

func TestGroup_DirectMessage_DeliversToReceiverOnly(t *testing.T) {
	req := require.New(t)
	g, alice := openGroup(t)
	bob, carol := &fakeConn{}, &fakeConn{}
	req.NoError(g.Join("bob", bob))
	req.NoError(g.Join("carol", carol))

	req.NoError(g.DirectMessage("alice", "bob", "psst"))

	req.True(bob.received("(private) alice: psst"))
	req.False(carol.received("psst"))
	req.False(alice.received("psst"))
}

func TestGroup_DirectMessage_AbsentReceiverIsDroppedSilently(t *testing.T) {
	req := require.New(t)
	g, alice := openGroup(t)

	req.NoError(g.DirectMessage("alice", "ghost", "anyone?"))

	req.Empty(alice.lines())
}

func TestGroup_ExceptMessage_SkipsExcludedAndSender(t *testing.T) {
	req := require.New(t)
	g, alice := openGroup(t)
	bob, carol := &fakeConn{}, &fakeConn{}
	req.NoError(g.Join("bob", bob))
	req.NoError(g.Join("carol", carol))

	req.NoError(g.ExceptMessage("alice", []string{"bob"}, "surprise party"))

	req.True(carol.received("(private) alice: surprise party"))
	req.False(bob.received("surprise party"))
	req.False(alice.received("surprise party"))
}

func TestGroup_RequestJoin_NotifiesAdminAndRequester(t *testing.T) {
	req := require.New(t)
	admin := &fakeConn{}
	g := NewGroup("g", "alice", admin, GroupPrivate, "", testLogger())
	bob := &fakeConn{}

	req.NoError(g.RequestJoin("bob", bob))

	req.Equal([]string{"bob"}, g.WaitingUsers())
	req.False(g.IsMember("bob"))
	req.True(bob.received("Your request has been sent successfully to the admin of the group"))
	req.True(admin.received("user bob has requested to join the group."))
}

func TestGroup_Accept_AdmitsWaitingUser(t *testing.T) {
	req := require.New(t)
	admin := &fakeConn{}
	g := NewGroup("g", "alice", admin, GroupPrivate, "", testLogger())
	bob := &fakeConn{}
	req.NoError(g.RequestJoin("bob", bob))

	req.NoError(g.Accept("bob"))

	req.True(g.IsMember("bob"))
	req.Empty(g.WaitingUsers())
	req.True(bob.received("Your request to join the group has been accepted."))
	req.True(admin.received("bob has just landed!"))
}

func TestGroup_Accept_NotWaitingIsError(t *testing.T) {
	req := require.New(t)
	admin := &fakeConn{}
	g := NewGroup("g", "alice", admin, GroupPrivate, "", testLogger())

	err := g.Accept("ghost")

	req.ErrorIs(err, errors.ErrNoSuchWaitingUser)
	req.Equal([]string{"alice"}, g.Members())
}

func TestGroup_Accept_RequesterGoneDropsWaitingEntry(t *testing.T) {
	req := require.New(t)
	admin := &fakeConn{}
	g := NewGroup("g", "alice", admin, GroupPrivate, "", testLogger())
	bob := &fakeConn{}
	req.NoError(g.RequestJoin("bob", bob))
	bob.failing = true

	err := g.Accept("bob")

	req.ErrorIs(err, errors.ErrRequesterGone)
	req.Empty(g.WaitingUsers())
	req.False(g.IsMember("bob"))
}

func TestGroup_Reject_RemovesWaitingAndNotifiesRequester(t *testing.T) {
	req := require.New(t)
	admin := &fakeConn{}
	g := NewGroup("g", "alice", admin, GroupPrivate, "", testLogger())
	bob := &fakeConn{}
	req.NoError(g.RequestJoin("bob", bob))

	req.NoError(g.Reject("bob"))

	req.Empty(g.WaitingUsers())
	req.Equal([]string{"alice"}, g.Members())
	req.True(bob.received("Your request to join the group has been rejected."))
	req.True(bob.killed)
}

func TestGroup_JoinSecret_VerbatimCompare(t *testing.T) {
	req := require.New(t)
	admin := &fakeConn{}
	g := NewGroup("g", "alice", admin, GroupSecret, "hunter2", testLogger())
	bob := &fakeConn{}

	// Mismatch refuses without state change
	req.ErrorIs(g.JoinSecret("bob", bob, "Hunter2"), errors.ErrWrongSecret)
	req.False(g.IsMember("bob"))

	// Verbatim match admits
	req.NoError(g.JoinSecret("bob", bob, "hunter2"))
	req.True(g.IsMember("bob"))
	req.True(bob.received("Welcome to the secret chat"))
}

func TestGroup_NonSecretGroupCarriesNoSecret(t *testing.T) {
	req := require.New(t)
	g := NewGroup("g", "alice", &fakeConn{}, GroupOpen, "leaked", testLogger())

	// The constructor drops the credential for non-secret groups, so
	// a verbatim compare against it cannot succeed by accident.
	req.Equal("", g.secret)
}

func TestGroup_UnreachableMemberRemovedOnBroadcast(t *testing.T) {
	req := require.New(t)
	g, alice := openGroup(t)
	bob := &fakeConn{}
	req.NoError(g.Join("bob", bob))
	bob.failing = true

	// The sender's broadcast succeeds even though bob is gone
	req.NoError(g.Broadcast("alice", "anyone home?"))

	req.False(g.IsMember("bob"))
	req.True(alice.received("bob left the group"))
	requireAdminInvariant(req, g)
}

func TestGroup_UnreachableAdminIsSucceeded(t *testing.T) {
	req := require.New(t)
	admin := &fakeConn{}
	g := NewGroup("g", "alice", admin, GroupOpen, "", testLogger())
	bob := &fakeConn{}
	req.NoError(g.Join("bob", bob))
	admin.failing = true

	req.NoError(g.Broadcast("bob", "hello?"))

	req.False(g.IsMember("alice"))
	req.Equal("bob", g.Admin())
	req.True(g.Alive())
	req.True(bob.received("alice left the group"))
	req.True(bob.received("Ownership of the group was transferred from alice to bob"))
	requireAdminInvariant(req, g)
}

func TestGroup_WaitingAndMembersStayDisjoint(t *testing.T) {
	req := require.New(t)
	admin := &fakeConn{}
	g := NewGroup("g", "alice", admin, GroupPrivate, "", testLogger())
	bob := &fakeConn{}
	req.NoError(g.RequestJoin("bob", bob))

	req.NoError(g.Accept("bob"))

	req.ErrorIs(g.RequestJoin("bob", bob), errors.ErrMemberExists)
	req.Empty(g.WaitingUsers())
}
