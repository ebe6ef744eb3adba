package tcp

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"chat-house/contract"
)

// Handler receives every accepted connection on its own goroutine.
type Handler func(ctx context.Context, conn contract.Conn)

// Server is the listen/accept loop, run as a supervised worker. Each
// accepted connection is wrapped in a LineConn and handed to the
// handler; the server itself never reads or writes.
type Server struct {
	log      *slog.Logger
	addr     string
	opts     Options
	handler  Handler
	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
	readyOne sync.Once
}

func NewServer(log *slog.Logger, addr string, opts Options, handler Handler) *Server {
	return &Server{
		log:     log,
		addr:    addr,
		opts:    opts,
		handler: handler,
		ready:   make(chan struct{}),
	}
}

func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.readyOne.Do(func() { close(s.ready) })
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	s.readyOne.Do(func() { close(s.ready) })

	// Closing the listener is what unblocks Accept on shutdown.
	unwatch := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer unwatch()
	defer func() { _ = listener.Close() }()

	s.log.Info("listening", "addr", listener.Addr().String())
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go s.handler(ctx, NewLineConn(conn, s.opts))
	}
}

// Addr blocks until the listener is bound and returns its address, or
// nil when binding failed. Mainly for tests listening on port 0.
func (s *Server) Addr() net.Addr {
	<-s.ready
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
