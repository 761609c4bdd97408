package rcon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gorcon/rcon"
	"github.com/isdelr/ender-world-manager/internal/metrics"
	"github.com/rs/zerolog/log"
)

// DefaultTimeout bounds a whole dial/auth/execute exchange.
const DefaultTimeout = 5 * time.Second

// Executor runs a single remote console command.
type Executor interface {
	Execute(ctx context.Context, command string) (string, error)
}

// ConnectionError is returned for every failed exchange with the game server.
type ConnectionError struct {
	Addr string
	Op   string // dial, auth, execute or timeout
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("rcon %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Client opens a fresh authenticated session for every command.
type Client struct {
	addr     string
	password string
	timeout  time.Duration
}

// NewClient creates a new remote console client.
func NewClient(host string, port int, password string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		password: password,
		timeout:  timeout,
	}
}

// Addr returns the host:port the client dials.
func (c *Client) Addr() string { return c.addr }

// Execute connects, authenticates, sends command and returns the response
// with formatting codes removed. The connection is closed before it returns,
// also when ctx ends first.
func (c *Client) Execute(ctx context.Context, command string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &ConnectionError{Addr: c.addr, Op: "dial", Err: err}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	response, err := c.exchange(ctx, command)
	metrics.RconCommands.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		if ctx.Err() != nil {
			err = &ConnectionError{Addr: c.addr, Op: "timeout", Err: ctx.Err()}
		}
		log.Debug().Err(err).Str("command", command).Msg("RCON command failed")
		return "", err
	}
	return StripFormatting(response), nil
}

func (c *Client) exchange(ctx context.Context, command string) (string, error) {
	var dialer net.Dialer
	netConn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return "", &ConnectionError{Addr: c.addr, Op: "dial", Err: err}
	}
	// Unblocks auth and execute when ctx ends.
	stop := context.AfterFunc(ctx, func() { netConn.Close() })
	defer stop()

	conn, err := rcon.Open(netConn, c.password, rcon.SetDeadline(c.timeout))
	if err != nil {
		netConn.Close()
		op := "dial"
		if errors.Is(err, rcon.ErrAuthFailed) {
			op = "auth"
		}
		return "", &ConnectionError{Addr: c.addr, Op: op, Err: err}
	}
	defer conn.Close()

	response, err := conn.Execute(command)
	if err != nil {
		return "", &ConnectionError{Addr: c.addr, Op: "execute", Err: err}
	}
	return response, nil
}

var (
	sectionCodes = regexp.MustCompile(`§.`)
	ansiCodes    = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)
)

// StripFormatting removes Minecraft section-sign colour/style codes and ANSI
// escape sequences.
func StripFormatting(s string) string {
	s = sectionCodes.ReplaceAllString(s, "")
	s = ansiCodes.ReplaceAllString(s, "")
	return strings.TrimRight(s, " \t\r\n")
}
