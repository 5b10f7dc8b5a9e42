package printer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/gousb"

	"github.com/thereceipt/escpos-engine/pkg/escpos"
)

// USBConnection represents a USB printer connection
type USBConnection struct {
	ctx     *gousb.Context
	device  *gousb.Device
	config  *gousb.Config
	iface   *gousb.Interface
	release func()
	out     *gousb.OutEndpoint
	in      *gousb.InEndpoint
	mu      sync.Mutex
}

// ConnectUSB connects to a USB printer.
// Returns error if USB support is not available (libusb not installed).
func ConnectUSB(vid, pid uint16) (*USBConnection, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("failed to open USB device: %w", err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("device not found: %04X:%04X", vid, pid)
	}

	conn := &USBConnection{ctx: ctx, device: dev}

	// DefaultInterface works for most printers; retry with kernel driver detach
	iface, done, err := dev.DefaultInterface()
	if err != nil {
		dev.SetAutoDetach(true)
		iface, done, err = dev.DefaultInterface()
	}
	if err == nil {
		if conn.claim(iface) {
			conn.release = done
			return conn, nil
		}
		done()
	}

	var lastErr error
	for _, cfgDesc := range dev.Desc.Configs {
		cfg, err := dev.Config(cfgDesc.Number)
		if err != nil {
			lastErr = fmt.Errorf("failed to set config %d: %w", cfgDesc.Number, err)
			continue
		}

		for _, ifaceDesc := range cfgDesc.Interfaces {
			iface, err := cfg.Interface(ifaceDesc.Number, 0)
			if err != nil {
				// some devices need a moment after configuration
				time.Sleep(100 * time.Millisecond)
				iface, err = cfg.Interface(ifaceDesc.Number, 0)
				if err != nil {
					lastErr = fmt.Errorf("failed to claim interface %d: %w", ifaceDesc.Number, err)
					continue
				}
			}

			if conn.claim(iface) {
				conn.config = cfg
				return conn, nil
			}
			iface.Close()
		}
		cfg.Close()
	}

	dev.Close()
	ctx.Close()

	if lastErr != nil {
		return nil, fmt.Errorf("failed to connect to USB printer: %w", lastErr)
	}
	return nil, fmt.Errorf("no suitable interface/endpoint found for USB printer %04X:%04X", vid, pid)
}

// claim picks the bulk OUT endpoint of iface and, when present, its IN endpoint.
func (c *USBConnection) claim(iface *gousb.Interface) bool {
	var out *gousb.OutEndpoint
	var in *gousb.InEndpoint

	for _, epDesc := range iface.Setting.Endpoints {
		switch epDesc.Direction {
		case gousb.EndpointDirectionOut:
			if out == nil {
				if ep, err := iface.OutEndpoint(epDesc.Number); err == nil {
					out = ep
				}
			}
		case gousb.EndpointDirectionIn:
			if in == nil {
				if ep, err := iface.InEndpoint(epDesc.Number); err == nil {
					in = ep
				}
			}
		}
	}

	if out == nil {
		return false
	}
	c.iface = iface
	c.out = out
	c.in = in
	return true
}

// Write sends data to the USB printer
func (c *USBConnection) Write(ctx context.Context, data []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, err := c.out.WriteContext(ctx, data)
	if err != nil {
		return n, fmt.Errorf("failed to write to USB printer: %w", err)
	}
	return n, nil
}

// ReadStatus queries the printer over the IN endpoint
func (c *USBConnection) ReadStatus(ctx context.Context, kind escpos.StatusKind) (escpos.PrinterStatus, error) {
	if c.in == nil {
		return escpos.StatusConnected, ErrStatusUnsupported
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return readStatusByte(ctx,
		func(b []byte) (int, error) { return c.out.WriteContext(ctx, b) },
		func(b []byte) (int, error) {
			// IN transfers must be at least one max packet long
			buf := make([]byte, c.in.Desc.MaxPacketSize)
			n, err := c.in.ReadContext(ctx, buf)
			if n > 0 {
				b[0] = buf[0]
				n = 1
			}
			return n, err
		},
		kind)
}

// Close closes the USB connection
func (c *USBConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.release != nil {
		c.release()
	} else {
		if c.iface != nil {
			c.iface.Close()
		}
		if c.config != nil {
			c.config.Close()
		}
	}

	var err error
	if c.device != nil {
		err = c.device.Close()
	}
	if c.ctx != nil {
		c.ctx.Close()
	}
	return err
}
