package e2e

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"

	"chat-house/contract"
	"chat-house/infrastructure/tcp"
	"chat-house/moderation"
	"chat-house/runtime"
	"chat-house/runtime/workers"
)

// BaseTCPSuite boots one in-process chat server per suite (unless
// E2E_SERVER_ADDR points at a running one) and hands out line-oriented
// test clients speaking the real TCP protocol.
type BaseTCPSuite struct {
	suite.Suite
	Config Config

	addr    string
	cancel  context.CancelFunc
	done    chan struct{}
	clients []*testClient
}

func (s *BaseTCPSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	if s.Config.ServerAddr != "" {
		s.addr = s.Config.ServerAddr
		return
	}

	log := logs.GetLoggerFromString("error")
	words, err := moderation.EmbeddedWords()
	s.Require().NoError(err)
	censor, err := moderation.NewCensor(words, '*')
	s.Require().NoError(err)

	registry := runtime.NewRegistry(log)
	handshaker := runtime.NewHandshaker(registry, censor, log)
	sup := workers.NewSupervisor(log, 100*time.Millisecond)

	handler := func(ctx context.Context, conn contract.Conn) {
		sess, err := handshaker.Admit(conn)
		if err != nil {
			return
		}
		sup.Start(ctx, sess)
	}
	server := tcp.NewServer(log, "127.0.0.1:0", tcp.Options{
		SendTimeout: time.Second,
		KillGrace:   20 * time.Millisecond,
	}, handler)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go func() {
		sup.Add(server).Run(ctx)
		close(s.done)
	}()

	addr := server.Addr()
	s.Require().NotNil(addr, "server failed to bind")
	s.addr = addr.String()
}

func (s *BaseTCPSuite) TearDownSuite() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
		s.FailNow("server did not shut down")
	}
}

// Step prints a colorized header so multi-client scenarios stay readable.
func (s *BaseTCPSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Dial connects a named test client to the server.
func (s *BaseTCPSuite) Dial(name string) *testClient {
	conn, err := net.DialTimeout("tcp", s.addr, 5*time.Second)
	s.Require().NoError(err, "failed to connect to chat server at "+s.addr)
	client := &testClient{
		suite:  s,
		name:   name,
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
	// Close in TearDownTest rather than via s.T().Cleanup: inside s.Run
	// steps s.T() is the subtest, which would close the client as soon as
	// the step ends instead of at the end of the whole scenario.
	s.clients = append(s.clients, client)
	return client
}

func (s *BaseTCPSuite) TearDownTest() {
	for _, c := range s.clients {
		c.Close()
	}
	s.clients = nil
}

// Join runs the whole handshake for an existing group.
func (s *BaseTCPSuite) Join(name, group string) *testClient {
	c := s.Dial(name)
	c.Expect("Enter your username:")
	c.Send(name)
	c.Expect("Enter the name of the group you want to join:")
	c.Send(group)
	return c
}

// CreateGroup runs the whole creation dialogue and returns the admin's
// client. secret is ignored unless kind is "secret".
func (s *BaseTCPSuite) CreateGroup(name, group, kind, secret string) *testClient {
	c := s.Join(name, group)
	c.Expect("Would you like to create one?")
	c.Send("y")
	c.Expect("Enter the type of group")
	c.Send(kind)
	if kind == "secret" {
		c.Expect("secret key")
		c.Send(secret)
	}
	c.Expect("Creation Successful")
	return c
}

// testClient is one side of a chat conversation: it writes lines and
// asserts on the lines coming back.
type testClient struct {
	suite  *BaseTCPSuite
	name   string
	conn   net.Conn
	reader *bufio.Reader
}

func (c *testClient) Close() {
	_ = c.conn.Close()
}

func (c *testClient) Send(line string) {
	c.log("--> " + line)
	_, err := c.conn.Write([]byte(line + "\n"))
	c.suite.Require().NoError(err, "%s could not send %q", c.name, line)
}

// Expect reads lines until one contains substr, failing on timeout.
// Unrelated lines in between are logged and skipped, so interleaved
// broadcasts never break an assertion.
func (c *testClient) Expect(substr string) string {
	deadline := time.Now().Add(c.suite.Config.ExpectTimeout)
	c.suite.Require().NoError(c.conn.SetReadDeadline(deadline))
	for {
		line, err := c.reader.ReadString('\n')
		c.suite.Require().NoError(err, "%s gave up waiting for %q", c.name, substr)
		line = strings.TrimRight(line, "\r\n")
		c.log("<-- " + line)
		if strings.Contains(line, substr) {
			return line
		}
	}
}

// ExpectSilence asserts substr does not arrive within the window.
func (c *testClient) ExpectSilence(substr string, window time.Duration) {
	c.suite.Require().NoError(c.conn.SetReadDeadline(time.Now().Add(window)))
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				return
			}
			return
		}
		line = strings.TrimRight(line, "\r\n")
		c.log("<-- " + line)
		c.suite.Require().NotContains(line, substr, "%s received %q while expecting silence", c.name, substr)
	}
}

func (c *testClient) log(line string) {
	if c.suite.Config.Colours {
		line = color.New(color.FgCyan).Render(line)
	}
	c.suite.T().Logf("[%s] %s", c.name, line)
}
