package printer

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/thereceipt/escpos-engine/pkg/escpos"
)

// Monitor continuously watches for printer changes and status
type Monitor struct {
	manager       *Manager
	pool          *ConnectionPool
	events        *EventBus
	interval      time.Duration
	statusPolling bool
	logger        *zap.Logger

	previous map[string]*Printer
	statuses map[string]escpos.PrinterStatus
	mu       sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor creates a new printer monitor. A nil pool disables status polling.
func NewMonitor(manager *Manager, pool *ConnectionPool, events *EventBus, interval time.Duration, statusPolling bool, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Monitor{
		manager:       manager,
		pool:          pool,
		events:        events,
		interval:      interval,
		statusPolling: statusPolling && pool != nil,
		logger:        logger.With(zap.String("component", "monitor")),
		previous:      make(map[string]*Printer),
		statuses:      make(map[string]escpos.PrinterStatus),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start begins monitoring for printer changes
func (m *Monitor) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				m.checkChanges()
				if m.statusPolling {
					m.pollStatus(m.ctx)
				}
			}
		}
	}()
}

// Stop stops the monitor and waits for the current tick to finish
func (m *Monitor) Stop() {
	m.cancel()
	m.wg.Wait()
}

// Status returns the last polled status of a printer
func (m *Monitor) Status(printerID string) (escpos.PrinterStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status, ok := m.statuses[printerID]
	return status, ok
}

func (m *Monitor) checkChanges() {
	currentPrinters, err := m.manager.DetectPrinters()
	if err != nil {
		m.logger.Warn("Printer detection failed", zap.Error(err))
		return
	}

	current := make(map[string]*Printer, len(currentPrinters))
	for _, p := range currentPrinters {
		current[p.ID] = p
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, printer := range current {
		if _, exists := m.previous[id]; !exists {
			m.logger.Info("Printer added", zap.String("printer_id", id), zap.String("description", printer.Description))
			m.publish(Event{Type: EventPrinterAdded, PrinterID: id, Data: *printer})
		}
	}

	for id, printer := range m.previous {
		if _, exists := current[id]; !exists {
			m.logger.Info("Printer removed", zap.String("printer_id", id), zap.String("description", printer.Description))
			if m.pool != nil && m.pool.IsConnected(id) {
				m.pool.Disconnect(id)
			}
			delete(m.statuses, id)
			m.publish(Event{Type: EventPrinterRemoved, PrinterID: id})
		}
	}

	m.previous = current
}

func (m *Monitor) pollStatus(ctx context.Context) {
	for _, id := range m.pool.Connected() {
		pollCtx, cancel := context.WithTimeout(ctx, m.interval)
		status, err := m.pool.ReadStatus(pollCtx, id, escpos.StatusKindOffline)
		cancel()

		if errors.Is(err, ErrStatusUnsupported) {
			continue
		}
		if err != nil {
			m.logger.Debug("Status query failed", zap.String("printer_id", id), zap.Error(err))
			status = escpos.StatusDisconnected
		}

		m.mu.Lock()
		previous, known := m.statuses[id]
		m.statuses[id] = status
		m.mu.Unlock()

		if !known || previous != status {
			m.logger.Info("Printer status changed",
				zap.String("printer_id", id),
				zap.String("status", string(status)),
			)
			m.publish(Event{Type: EventPrinterStatus, PrinterID: id, Data: status})
		}
	}
}

func (m *Monitor) publish(event Event) {
	if m.events != nil {
		m.events.Publish(event)
	}
}
