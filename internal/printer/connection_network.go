package printer

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/thereceipt/escpos-engine/pkg/escpos"
)

// DefaultNetworkPort is the raw TCP port ESC/POS printers listen on
const DefaultNetworkPort = 9100

// NetworkConnection represents a network printer connection
type NetworkConnection struct {
	conn         net.Conn
	writeTimeout time.Duration
	mu           sync.Mutex
}

// ConnectNetwork connects to a network printer
func ConnectNetwork(ctx context.Context, host string, port int, dialTimeout, writeTimeout time.Duration) (*NetworkConnection, error) {
	if port == 0 {
		port = DefaultNetworkPort
	}
	address := net.JoinHostPort(host, strconv.Itoa(port))

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to network printer: %w", err)
	}

	return &NetworkConnection{
		conn:         conn,
		writeTimeout: writeTimeout,
	}, nil
}

func (c *NetworkConnection) setDeadline(ctx context.Context) {
	deadline := time.Time{}
	if c.writeTimeout > 0 {
		deadline = time.Now().Add(c.writeTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	c.conn.SetDeadline(deadline)
}

// Write sends data to the network printer
func (c *NetworkConnection) Write(ctx context.Context, data []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setDeadline(ctx)
	n, err := writeAll(ctx, c.conn.Write, data)
	if err != nil {
		return n, fmt.Errorf("failed to write to network printer: %w", err)
	}
	return n, nil
}

// ReadStatus sends DLE EOT over the socket and reads one reply byte
func (c *NetworkConnection) ReadStatus(ctx context.Context, kind escpos.StatusKind) (escpos.PrinterStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setDeadline(ctx)
	return readStatusByte(ctx, c.conn.Write, c.conn.Read, kind)
}

// Close closes the network connection
func (c *NetworkConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return c.conn.Close()
	}

	return nil
}
