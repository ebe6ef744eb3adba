// Package tcp implements the connection handle over plain TCP with
// newline framing: one line per logical message.
package tcp

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"chat-house/contract"
	"chat-house/errors"
)

// Options tunes the transport behavior of every connection.
type Options struct {
	// SendTimeout bounds a single line write; zero means no deadline.
	SendTimeout time.Duration
	// KillGrace delays the kill token so pending notices flush first.
	KillGrace time.Duration
}

// LineConn adapts a net.Conn to contract.Conn. Sends are serialized so
// concurrent group operations never interleave partial lines.
type LineConn struct {
	conn      net.Conn
	reader    *bufio.Reader
	writeMu   sync.Mutex
	closeOnce sync.Once
	opts      Options
}

func NewLineConn(conn net.Conn, opts Options) *LineConn {
	return &LineConn{
		conn:   conn,
		reader: bufio.NewReader(conn),
		opts:   opts,
	}
}

// Send writes one line. Any failure is reported as ErrPeerUnreachable so
// the group removes the member instead of surfacing a transport error.
func (c *LineConn) Send(text string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.opts.SendTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.SendTimeout)); err != nil {
			return fmt.Errorf("%w: %v", errors.ErrPeerUnreachable, err)
		}
	}
	if _, err := io.WriteString(c.conn, text+"\n"); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrPeerUnreachable, err)
	}
	return nil
}

// Receive blocks until one full line or end of stream. The trailing line
// break is stripped; interior whitespace is preserved.
func (c *LineConn) Receive() (string, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", fmt.Errorf("%w: %v", errors.ErrPeerUnreachable, err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Kill asks the peer to close: after the grace delay the kill token is
// sent and the connection is closed server-side. It returns immediately
// so group operations holding a lock are not delayed.
func (c *LineConn) Kill() error {
	go func() {
		if c.opts.KillGrace > 0 {
			time.Sleep(c.opts.KillGrace)
		}
		_ = c.Send(contract.KillToken)
		_ = c.Close()
	}()
	return nil
}

func (c *LineConn) Close() error {
	var err error
	c.closeOnce.Do(func() { err = c.conn.Close() })
	return err
}

func (c *LineConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
