package printer

import (
	"context"
	"errors"
	"time"

	"github.com/thereceipt/escpos-engine/pkg/escpos"
)

var (
	// ErrNotConnected is returned when sending to a printer without an open connection
	ErrNotConnected = errors.New("printer not connected")

	// ErrNoPrinterSelected is returned by Send when no current printer is set
	ErrNoPrinterSelected = errors.New("no printer selected")

	// ErrPrinterNotFound is returned for IDs the manager does not know
	ErrPrinterNotFound = errors.New("printer not found")

	// ErrStatusUnsupported is returned when a connection cannot read replies
	ErrStatusUnsupported = errors.New("printer connection does not support status")
)

// Connection is an open byte channel to one printer
type Connection interface {
	Write(ctx context.Context, data []byte) (int, error)
	Close() error
}

// StatusReader is implemented by connections that can answer DLE EOT queries
type StatusReader interface {
	ReadStatus(ctx context.Context, kind escpos.StatusKind) (escpos.PrinterStatus, error)
}

// Sink accepts encoded receipts for the currently selected printer
type Sink interface {
	Send(ctx context.Context, data []byte) error
	CurrentConnection() *Printer
	Subscribe() <-chan Event
}

// ConnectOptions holds per-transport connection settings
type ConnectOptions struct {
	SerialBaud    int
	SerialTimeout time.Duration
	DialTimeout   time.Duration
	WriteTimeout  time.Duration
}

// DefaultConnectOptions returns the settings used when none are configured
func DefaultConnectOptions() ConnectOptions {
	return ConnectOptions{
		SerialBaud:    9600,
		SerialTimeout: time.Second,
		DialTimeout:   5 * time.Second,
		WriteTimeout:  10 * time.Second,
	}
}

// Dialer opens a connection to a detected printer
type Dialer func(ctx context.Context, p *Printer, opts ConnectOptions) (Connection, error)

// writeAll writes data in a goroutine so blocking transports still honor ctx.
func writeAll(ctx context.Context, write func([]byte) (int, error), data []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		total := 0
		for total < len(data) {
			n, err := write(data[total:])
			total += n
			if err != nil {
				done <- result{total, err}
				return
			}
			if n == 0 {
				done <- result{total, errors.New("short write")}
				return
			}
		}
		done <- result{total, nil}
	}()

	select {
	case r := <-done:
		return r.n, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// readStatusByte sends a DLE EOT request and decodes the single reply byte.
func readStatusByte(ctx context.Context, write func([]byte) (int, error), read func([]byte) (int, error), kind escpos.StatusKind) (escpos.PrinterStatus, error) {
	if _, err := writeAll(ctx, write, escpos.StatusRequest(kind)); err != nil {
		return escpos.StatusDisconnected, err
	}

	type result struct {
		b   byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		buf := make([]byte, 1)
		n, err := read(buf)
		if err == nil && n == 0 {
			err = errors.New("no status reply")
		}
		done <- result{buf[0], err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return escpos.StatusDisconnected, r.err
		}
		return escpos.ParseStatus(kind, r.b), nil
	case <-ctx.Done():
		return escpos.StatusDisconnected, ctx.Err()
	}
}
