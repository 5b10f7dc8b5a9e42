package printer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/thereceipt/escpos-engine/internal/config"
	"github.com/thereceipt/escpos-engine/internal/registry"
	"github.com/thereceipt/escpos-engine/pkg/escpos"
)

// Service ties detection, connections, the job queue and events together.
// It is the Sink used by the API and the dashboard.
type Service struct {
	manager *Manager
	pool    *ConnectionPool
	queue   *PrintQueue
	monitor *Monitor
	events  *EventBus
	logger  *zap.Logger
}

var _ Sink = (*Service)(nil)

// NewService builds a service from configuration. A nil dialer selects the
// hardware transports.
func NewService(cfg config.PrinterConfig, reg *registry.Registry, dial Dialer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	events := NewEventBus(logger)
	manager := NewManager(reg, events, logger)
	pool := NewConnectionPool(ConnectOptions{
		SerialBaud:    cfg.SerialBaud,
		SerialTimeout: cfg.SerialTimeout,
		DialTimeout:   cfg.DialTimeout,
		WriteTimeout:  cfg.WriteTimeout,
	}, dial, events, logger)
	queue := NewPrintQueue(pool, manager, QueueOptions{
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Size:       cfg.QueueSize,
	}, events, logger)
	monitor := NewMonitor(manager, pool, events, cfg.MonitorInterval, cfg.StatusPolling, logger)

	return &Service{
		manager: manager,
		pool:    pool,
		queue:   queue,
		monitor: monitor,
		events:  events,
		logger:  logger.With(zap.String("component", "service")),
	}
}

// Manager returns the printer manager
func (s *Service) Manager() *Manager { return s.manager }

// Queue returns the job queue
func (s *Service) Queue() *PrintQueue { return s.queue }

// Events returns the event bus
func (s *Service) Events() *EventBus { return s.events }

// Start runs an initial detection and starts the monitor
func (s *Service) Start() {
	if _, err := s.manager.DetectPrinters(); err != nil {
		s.logger.Warn("Initial printer detection failed", zap.Error(err))
	}
	s.monitor.Start()
}

// Close stops background work and closes all connections
func (s *Service) Close() {
	s.monitor.Stop()
	s.queue.Stop()
	s.pool.DisconnectAll()
	s.events.Close()
}

// Connect opens a connection to a known printer
func (s *Service) Connect(ctx context.Context, printerID string) error {
	printer := s.manager.GetPrinter(printerID)
	if printer == nil {
		return fmt.Errorf("%w: %s", ErrPrinterNotFound, printerID)
	}
	return s.pool.Connect(ctx, printer)
}

// Disconnect closes a printer connection
func (s *Service) Disconnect(printerID string) error {
	return s.pool.Disconnect(printerID)
}

// IsConnected reports whether a printer has an open connection
func (s *Service) IsConnected(printerID string) bool {
	return s.pool.IsConnected(printerID)
}

// Select connects to a printer if needed and makes it the current one
func (s *Service) Select(ctx context.Context, printerID string) error {
	if err := s.Connect(ctx, printerID); err != nil {
		return err
	}
	return s.pool.SetCurrent(printerID)
}

// CurrentConnection returns the current printer, or nil when none is selected
func (s *Service) CurrentConnection() *Printer {
	id := s.pool.Current()
	if id == "" {
		return nil
	}
	return s.manager.GetPrinter(id)
}

// Submit queues data for a printer and returns the job ID. An empty printer
// ID selects the current printer.
func (s *Service) Submit(printerID string, data []byte) (string, error) {
	if printerID == "" {
		printerID = s.pool.Current()
		if printerID == "" {
			return "", ErrNoPrinterSelected
		}
	}
	if s.manager.GetPrinter(printerID) == nil {
		return "", fmt.Errorf("%w: %s", ErrPrinterNotFound, printerID)
	}
	return s.queue.Enqueue(printerID, data)
}

// Send queues data for the current printer and waits for the job to finish
func (s *Service) Send(ctx context.Context, data []byte) error {
	jobID, err := s.Submit("", data)
	if err != nil {
		return err
	}

	job, err := s.queue.Wait(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status == JobFailed {
		return errors.New(job.Error)
	}
	return nil
}

// Status reads the live status of a printer, falling back to the last polled
// value when the connection cannot answer.
func (s *Service) Status(ctx context.Context, printerID string) (escpos.PrinterStatus, error) {
	if s.manager.GetPrinter(printerID) == nil {
		return escpos.StatusDisconnected, fmt.Errorf("%w: %s", ErrPrinterNotFound, printerID)
	}
	if !s.pool.IsConnected(printerID) {
		return escpos.StatusDisconnected, nil
	}

	status, err := s.pool.ReadStatus(ctx, printerID, escpos.StatusKindOffline)
	if errors.Is(err, ErrStatusUnsupported) {
		if polled, ok := s.monitor.Status(printerID); ok {
			return polled, nil
		}
		return escpos.StatusConnected, nil
	}
	return status, err
}

// Subscribe returns a channel receiving every event
func (s *Service) Subscribe() <-chan Event {
	return s.events.Subscribe()
}

// Unsubscribe releases a channel returned by Subscribe
func (s *Service) Unsubscribe(ch <-chan Event) {
	s.events.Unsubscribe(ch)
}

// RemovePrinter disconnects and forgets a printer
func (s *Service) RemovePrinter(printerID string) bool {
	if s.pool.IsConnected(printerID) {
		s.pool.Disconnect(printerID)
	}
	return s.manager.RemovePrinter(printerID)
}
