package printer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tarm/serial"

	"github.com/thereceipt/escpos-engine/pkg/escpos"
)

// SerialConnection represents a serial printer connection
type SerialConnection struct {
	port *serial.Port
	mu   sync.Mutex
}

// ConnectSerial opens a serial printer. A zero baud selects 9600, the default
// for most thermal printers.
func ConnectSerial(device string, baud int, readTimeout time.Duration) (*SerialConnection, error) {
	if baud == 0 {
		baud = 9600
	}

	config := &serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: readTimeout,
	}

	port, err := serial.OpenPort(config)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}

	return &SerialConnection{
		port: port,
	}, nil
}

// Write sends data to the serial printer
func (c *SerialConnection) Write(ctx context.Context, data []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, err := writeAll(ctx, c.port.Write, data)
	if err != nil {
		return n, fmt.Errorf("failed to write to serial printer: %w", err)
	}
	return n, nil
}

// ReadStatus sends DLE EOT and waits up to the port read timeout for a reply
func (c *SerialConnection) ReadStatus(ctx context.Context, kind escpos.StatusKind) (escpos.PrinterStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.port.Flush(); err != nil {
		return escpos.StatusDisconnected, err
	}
	return readStatusByte(ctx, c.port.Write, c.port.Read, kind)
}

// Close closes the serial connection
func (c *SerialConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port != nil {
		return c.port.Close()
	}

	return nil
}
