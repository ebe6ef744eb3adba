package errors

import "fmt"

var (
	// Membership and permission errors are reported back to the invoker
	// as a plain text notice and never mutate group state.
	ErrUnknownMember     = fmt.Errorf("unknown member")
	ErrMemberExists      = fmt.Errorf("member already joined")
	ErrUnknownCommand    = fmt.Errorf("unknown command")
	ErrPermissionDenied  = fmt.Errorf("permission denied")
	ErrSelfKickDenied    = fmt.Errorf("admin cannot kick itself")
	ErrNoSuchWaitingUser = fmt.Errorf("no such user in the waiting list")

	// ErrRequesterGone marks a waiting user whose connection failed before
	// the admin's decision could be delivered.
	ErrRequesterGone = fmt.Errorf("requester gone")

	// ErrPeerUnreachable is recovered locally by removing the unreachable
	// member from the group. It never surfaces to the sender of a message.
	ErrPeerUnreachable = fmt.Errorf("peer unreachable")

	ErrGroupDestroyed = fmt.Errorf("group destroyed")
	ErrGroupNameTaken = fmt.Errorf("group name taken")
	ErrWrongSecret    = fmt.Errorf("wrong secret key")
	ErrPrivateOnly    = fmt.Errorf("only viable in a private group")

	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")
)
