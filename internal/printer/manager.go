// Package printer handles printer detection, connection, and communication
package printer

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/gousb"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"github.com/thereceipt/escpos-engine/internal/registry"
)

// Printer types
const (
	TypeUSB     = "usb"
	TypeSerial  = "serial"
	TypeNetwork = "network"
)

// Printer represents a detected printer
type Printer struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Device      string `json:"device,omitempty"`
	VID         uint16 `json:"vid,omitempty"`
	PID         uint16 `json:"pid,omitempty"`
	Host        string `json:"host,omitempty"`
	Port        int    `json:"port,omitempty"`
	Name        string `json:"name,omitempty"`
}

// DisplayName returns the custom name, falling back to the description
func (p *Printer) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Description
}

// Detector discovers attached printers of one transport
type Detector func() ([]registry.PrinterInfo, error)

// Manager handles printer detection and management
type Manager struct {
	registry  *registry.Registry
	printers  map[string]*Printer
	detectors map[string]Detector
	events    *EventBus
	logger    *zap.Logger
	mu        sync.RWMutex
}

// NewManager creates a new printer manager. Network printers stored in the
// registry are restored immediately since they cannot be detected.
func NewManager(reg *registry.Registry, events *EventBus, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		registry: reg,
		printers: make(map[string]*Printer),
		detectors: map[string]Detector{
			TypeUSB:    detectUSB,
			TypeSerial: detectSerial,
		},
		events: events,
		logger: logger.With(zap.String("component", "manager")),
	}

	for _, entry := range reg.Entries() {
		if entry.Type == TypeNetwork {
			m.printers[entry.ID] = printerFromEntry(entry)
		}
	}

	return m
}

// SetDetector replaces the detector for a transport; nil disables it
func (m *Manager) SetDetector(kind string, d Detector) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d == nil {
		delete(m.detectors, kind)
		return
	}
	m.detectors[kind] = d
}

// DetectPrinters scans for all available printers. Manually added network
// printers are kept.
func (m *Manager) DetectPrinters() ([]*Printer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kinds := make([]string, 0, len(m.detectors))
	for kind := range m.detectors {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	detected := make(map[string]*Printer)
	for _, kind := range kinds {
		infos, err := m.detectors[kind]()
		if err != nil {
			m.logger.Warn("Printer detection failed", zap.String("type", kind), zap.Error(err))
			continue
		}
		for _, info := range infos {
			id := m.registry.GetPrinterID(info)
			detected[id] = &Printer{
				ID:          id,
				Type:        info.Type,
				Description: info.Description,
				Device:      info.Device,
				VID:         info.VID,
				PID:         info.PID,
				Host:        info.Host,
				Port:        info.Port,
				Name:        m.registry.GetPrinterName(id),
			}
		}
	}

	for id, p := range m.printers {
		if p.Type == TypeNetwork {
			detected[id] = p
		}
	}
	m.printers = detected

	return m.sortedLocked(), nil
}

// GetPrinter returns a copy of a printer by ID, or nil
func (m *Manager) GetPrinter(id string) *Printer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.printers[id]
	if !ok {
		return nil
	}
	printerCopy := *p
	return &printerCopy
}

// GetAllPrinters returns all known printers ordered by display name
func (m *Manager) GetAllPrinters() []*Printer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.sortedLocked()
}

func (m *Manager) sortedLocked() []*Printer {
	result := make([]*Printer, 0, len(m.printers))
	for _, p := range m.printers {
		printerCopy := *p
		result = append(result, &printerCopy)
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i].DisplayName(), result[j].DisplayName()
		if a != b {
			return a < b
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// SetPrinterName sets a custom name for a printer
func (m *Manager) SetPrinterName(id string, name string) bool {
	if !m.registry.SetPrinterName(id, name) {
		return false
	}

	m.mu.Lock()
	if printer, exists := m.printers[id]; exists {
		printer.Name = name
	}
	m.mu.Unlock()

	m.publish(Event{Type: EventPrinterRenamed, PrinterID: id, Data: name})
	return true
}

// AddNetworkPrinter manually adds a network printer and returns its ID
func (m *Manager) AddNetworkPrinter(host string, port int, description string) string {
	if port == 0 {
		port = DefaultNetworkPort
	}
	if description == "" {
		description = fmt.Sprintf("Network: %s:%d", host, port)
	}

	info := registry.PrinterInfo{
		Type:        TypeNetwork,
		Host:        host,
		Port:        port,
		Description: description,
	}

	m.mu.Lock()
	id := m.registry.GetPrinterID(info)
	printer := &Printer{
		ID:          id,
		Type:        TypeNetwork,
		Description: description,
		Host:        host,
		Port:        port,
		Name:        m.registry.GetPrinterName(id),
	}
	_, existed := m.printers[id]
	m.printers[id] = printer
	m.mu.Unlock()

	if !existed {
		m.logger.Info("Network printer added", zap.String("printer_id", id), zap.String("host", host), zap.Int("port", port))
		m.publish(Event{Type: EventPrinterAdded, PrinterID: id, Data: *printer})
	}
	return id
}

// RemovePrinter forgets a printer and its registry entry
func (m *Manager) RemovePrinter(id string) bool {
	m.mu.Lock()
	_, known := m.printers[id]
	delete(m.printers, id)
	m.mu.Unlock()

	removed := m.registry.RemovePrinter(id)
	if known || removed {
		m.publish(Event{Type: EventPrinterRemoved, PrinterID: id})
	}
	return known || removed
}

func (m *Manager) publish(event Event) {
	if m.events != nil {
		m.events.Publish(event)
	}
}

func printerFromEntry(entry registry.PrinterEntry) *Printer {
	return &Printer{
		ID:          entry.ID,
		Type:        entry.Type,
		Description: entry.Description,
		Device:      entry.Device,
		VID:         entry.VID,
		PID:         entry.PID,
		Host:        entry.Host,
		Port:        entry.Port,
		Name:        entry.Name,
	}
}

// detectUSB detects USB printers using libusb
func detectUSB() ([]registry.PrinterInfo, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	var infos []registry.PrinterInfo

	// libusb reports interrupted enumeration (-10) for some hubs; the devices
	// opened so far are still returned.
	devices, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return isPrinterClass(desc)
	})
	if err != nil && len(devices) == 0 {
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}

	for _, dev := range devices {
		desc := dev.Desc

		manufacturer, _ := dev.Manufacturer()
		product, _ := dev.Product()

		description := fmt.Sprintf("USB: %04X:%04X", desc.Vendor, desc.Product)
		if manufacturer != "" || product != "" {
			description = fmt.Sprintf("USB: %s %s (%04X:%04X)",
				manufacturer, product, desc.Vendor, desc.Product)
		}

		infos = append(infos, registry.PrinterInfo{
			Type:        TypeUSB,
			VID:         uint16(desc.Vendor),
			PID:         uint16(desc.Product),
			Description: description,
		})
		dev.Close()
	}

	return infos, nil
}

// isPrinterClass checks the device class and every interface class for 7
func isPrinterClass(desc *gousb.DeviceDesc) bool {
	if desc.Class == gousb.ClassPrinter {
		return true
	}
	for _, cfg := range desc.Configs {
		for _, iface := range cfg.Interfaces {
			for _, alt := range iface.AltSettings {
				if alt.Class == gousb.ClassPrinter {
					return true
				}
			}
		}
	}
	return false
}

// serialSkipPatterns excludes ports that are never printers
var serialSkipPatterns = []string{"Bluetooth", "Modem", "SPP", "DialIn", "Callout", "KeySerial", "debug-console"}

// detectSerial lists serial ports through the OS enumerator
func detectSerial() ([]registry.PrinterInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	var infos []registry.PrinterInfo
	for _, port := range ports {
		if skipSerialPort(port.Name) {
			continue
		}
		infos = append(infos, serialPrinterInfo(port))
	}
	return infos, nil
}

func skipSerialPort(name string) bool {
	for _, pattern := range serialSkipPatterns {
		if strings.Contains(name, pattern) {
			return true
		}
	}
	return false
}

func serialPrinterInfo(port *enumerator.PortDetails) registry.PrinterInfo {
	description := fmt.Sprintf("Serial: %s", filepath.Base(port.Name))
	if port.IsUSB {
		label := strings.TrimSpace(port.Product)
		if label == "" {
			label = fmt.Sprintf("%s:%s", strings.ToUpper(port.VID), strings.ToUpper(port.PID))
		}
		description = fmt.Sprintf("Serial: %s (%s)", filepath.Base(port.Name), label)
	}

	info := registry.PrinterInfo{
		Type:        TypeSerial,
		Device:      port.Name,
		Description: description,
	}
	if port.IsUSB {
		info.VID = parseHexID(port.VID)
		info.PID = parseHexID(port.PID)
	}
	return info
}

func parseHexID(s string) uint16 {
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0
	}
	return uint16(v)
}
