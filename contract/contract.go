package contract

import (
	"context"
	"reflect"
)

// KillToken is the reserved out-of-band text value instructing the
// receiving client to close its connection. It is sent after rejection
// and kick flows, and when a handshake is refused.
const KillToken = "!!!KILL!!!"

// Conn is one client's network channel: an addressable, ordered,
// bidirectional line channel that may fail at any point (peer disconnect).
// Send is non-blocking apart from a transport write timeout; Receive
// blocks until a full line or end of stream.
type Conn interface {
	Send(text string) error
	Receive() (string, error)
	// Kill asks the peer to close. The transport may delay the token
	// shortly so pending notices are flushed first.
	Kill() error
	Close() error
	RemoteAddr() string
}

// Worker doesn't protect itself.
// Supervision, restarts and panic recovery belong to the Supervisor.
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging and supervision lifecycle events, avoiding manual
// naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
