// Package client implements the keyz-cli's TCP client: connect, send
// one command frame, read one response frame.
package client

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/viktor111/keyz/internal/protocol"
)

// Client sends one command at a time to a keyz server over a fresh
// TCP connection per call: no persistent session state beyond the
// socket.
type Client struct {
	Address         string
	ConnectTimeout  time.Duration
	ResponseTimeout time.Duration
	MaxMessageBytes uint32
}

// New builds a Client bound to address with the given timeouts.
func New(address string, connectTimeout, responseTimeout time.Duration, maxMessageBytes uint32) *Client {
	return &Client{
		Address:         address,
		ConnectTimeout:  connectTimeout,
		ResponseTimeout: responseTimeout,
		MaxMessageBytes: maxMessageBytes,
	}
}

// Send dials the server, writes command as a single frame, and
// returns the single response frame.
func (c *Client) Send(command string) (string, error) {
	if strings.TrimSpace(command) == "" {
		return "", fmt.Errorf("command cannot be empty")
	}
	if uint32(len(command)) > c.MaxMessageBytes {
		return "", fmt.Errorf("command length %d exceeds configured max %d bytes", len(command), c.MaxMessageBytes)
	}

	conn, err := net.DialTimeout("tcp", c.Address, c.ConnectTimeout)
	if err != nil {
		return "", fmt.Errorf("unable to connect to %s within %s: %w", c.Address, c.ConnectTimeout, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.ResponseTimeout)
	if err := conn.SetDeadline(deadline); err != nil {
		return "", fmt.Errorf("unable to configure response timeout: %w", err)
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}

	if err := protocol.WriteFrame(conn, command); err != nil {
		return "", fmt.Errorf("failed to write command frame: %w", err)
	}

	response, err := protocol.ReadFrame(conn, c.MaxMessageBytes)
	if err != nil {
		return "", fmt.Errorf("failed to read response frame: %w", err)
	}
	return response, nil
}
