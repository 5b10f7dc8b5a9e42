package printer

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"github.com/thereceipt/escpos-engine/pkg/escpos"
)

// ConnectionPool manages open connections to printers
type ConnectionPool struct {
	connections map[string]Connection
	current     string
	dial        Dialer
	opts        ConnectOptions
	events      *EventBus
	logger      *zap.Logger
	mu          sync.RWMutex
}

// NewConnectionPool creates a new connection pool. A nil dialer selects the
// hardware transports.
func NewConnectionPool(opts ConnectOptions, dial Dialer, events *EventBus, logger *zap.Logger) *ConnectionPool {
	if dial == nil {
		dial = DialPrinter
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ConnectionPool{
		connections: make(map[string]Connection),
		dial:        dial,
		opts:        opts,
		events:      events,
		logger:      logger.With(zap.String("component", "pool")),
	}
}

// DialPrinter opens the transport matching the printer type
func DialPrinter(ctx context.Context, printer *Printer, opts ConnectOptions) (Connection, error) {
	switch printer.Type {
	case TypeUSB:
		conn, err := ConnectUSB(printer.VID, printer.PID)
		if err == nil {
			return conn, nil
		}
		// macOS often binds USB printers to a CDC serial driver instead of libusb
		if runtime.GOOS == "darwin" {
			for _, port := range serialPortsFor(printer.VID, printer.PID) {
				if serialConn, serialErr := ConnectSerial(port, opts.SerialBaud, opts.SerialTimeout); serialErr == nil {
					return serialConn, nil
				}
			}
		}
		return nil, err
	case TypeSerial:
		return ConnectSerial(printer.Device, opts.SerialBaud, opts.SerialTimeout)
	case TypeNetwork:
		return ConnectNetwork(ctx, printer.Host, printer.Port, opts.DialTimeout, opts.WriteTimeout)
	default:
		return nil, fmt.Errorf("unsupported printer type: %s", printer.Type)
	}
}

// serialPortsFor lists serial ports exposed by the USB device vid:pid
func serialPortsFor(vid, pid uint16) []string {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil
	}

	want := fmt.Sprintf("%04X:%04X", vid, pid)
	var ports []string
	for _, port := range details {
		if port.IsUSB && strings.EqualFold(port.VID+":"+port.PID, want) {
			ports = append(ports, port.Name)
		}
	}
	return ports
}

// Connect establishes a connection to a printer. The first connected printer
// becomes the current one.
func (p *ConnectionPool) Connect(ctx context.Context, printer *Printer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.connections[printer.ID]; exists {
		return nil
	}

	conn, err := p.dial(ctx, printer, p.opts)
	if err != nil {
		p.logger.Warn("Failed to connect printer",
			zap.String("printer_id", printer.ID),
			zap.String("type", printer.Type),
			zap.Error(err),
		)
		return err
	}

	p.connections[printer.ID] = conn
	if p.current == "" {
		p.current = printer.ID
	}

	p.logger.Info("Printer connected", zap.String("printer_id", printer.ID), zap.String("type", printer.Type))
	p.publish(Event{Type: EventPrinterConnected, PrinterID: printer.ID, Data: printer.DisplayName()})
	return nil
}

// Send writes data to a connected printer
func (p *ConnectionPool) Send(ctx context.Context, printerID string, data []byte) error {
	p.mu.RLock()
	conn, exists := p.connections[printerID]
	p.mu.RUnlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrNotConnected, printerID)
	}

	n, err := conn.Write(ctx, data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return fmt.Errorf("short write to printer %s: %d of %d bytes", printerID, n, len(data))
	}
	return nil
}

// ReadStatus queries a connected printer
func (p *ConnectionPool) ReadStatus(ctx context.Context, printerID string, kind escpos.StatusKind) (escpos.PrinterStatus, error) {
	p.mu.RLock()
	conn, exists := p.connections[printerID]
	p.mu.RUnlock()

	if !exists {
		return escpos.StatusDisconnected, nil
	}

	reader, ok := conn.(StatusReader)
	if !ok {
		return escpos.StatusConnected, ErrStatusUnsupported
	}
	return reader.ReadStatus(ctx, kind)
}

// Disconnect closes a printer connection
func (p *ConnectionPool) Disconnect(printerID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	conn, exists := p.connections[printerID]
	if !exists {
		return nil
	}

	err := conn.Close()
	delete(p.connections, printerID)
	if p.current == printerID {
		p.current = ""
	}

	p.logger.Info("Printer disconnected", zap.String("printer_id", printerID))
	p.publish(Event{Type: EventPrinterDisconnected, PrinterID: printerID})
	return err
}

// DisconnectAll closes all connections
func (p *ConnectionPool) DisconnectAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, conn := range p.connections {
		if err := conn.Close(); err != nil {
			p.logger.Warn("Failed to close connection", zap.String("printer_id", id), zap.Error(err))
		}
		delete(p.connections, id)
		p.publish(Event{Type: EventPrinterDisconnected, PrinterID: id})
	}
	p.current = ""
}

// IsConnected checks if a printer is connected
func (p *ConnectionPool) IsConnected(printerID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	_, exists := p.connections[printerID]
	return exists
}

// Connected returns the IDs of all connected printers
func (p *ConnectionPool) Connected() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids := make([]string, 0, len(p.connections))
	for id := range p.connections {
		ids = append(ids, id)
	}
	return ids
}

// Current returns the selected printer ID, or "" when none is selected
func (p *ConnectionPool) Current() string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.current
}

// SetCurrent selects a connected printer as the current one
func (p *ConnectionPool) SetCurrent(printerID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.connections[printerID]; !exists {
		return fmt.Errorf("%w: %s", ErrNotConnected, printerID)
	}
	p.current = printerID
	return nil
}

func (p *ConnectionPool) publish(event Event) {
	if p.events != nil {
		p.events.Publish(event)
	}
}

