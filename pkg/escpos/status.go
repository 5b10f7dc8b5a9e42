package escpos

// StatusKind selects the DLE EOT real-time status class
type StatusKind byte

const (
	StatusKindPrinter StatusKind = 1
	StatusKindOffline StatusKind = 2
	StatusKindError   StatusKind = 3
	StatusKindPaper   StatusKind = 4
)

// PrinterStatus is the coarse state reported to callers
type PrinterStatus string

const (
	StatusConnected    PrinterStatus = "connected"
	StatusDisconnected PrinterStatus = "disconnected"
	StatusPaperEmpty   PrinterStatus = "paper_empty"
	StatusCoverOpen    PrinterStatus = "cover_open"
	StatusPrinterError PrinterStatus = "printer_error"
)

// StatusRequest returns DLE EOT n with n clamped to 1..4.
func StatusRequest(kind StatusKind) []byte {
	return []byte{DLE, 0x04, byte(clamp(int(kind), 1, 4))}
}

// DLE EOT replies always have bit 1 and bit 4 set, bit 0 and bit 7 clear.
const (
	statusFixedMask = 0x93
	statusFixedBits = 0x12
)

// ParseStatus decodes a DLE EOT reply byte. A reply that does not carry the
// fixed bits is reported as StatusPrinterError.
func ParseStatus(kind StatusKind, reply byte) PrinterStatus {
	if reply&statusFixedMask != statusFixedBits {
		return StatusPrinterError
	}

	switch kind {
	case StatusKindPrinter:
		if reply&0x08 != 0 {
			return StatusPrinterError
		}
	case StatusKindOffline:
		switch {
		case reply&0x04 != 0:
			return StatusCoverOpen
		case reply&0x20 != 0:
			return StatusPaperEmpty
		case reply&0x40 != 0:
			return StatusPrinterError
		}
	case StatusKindError:
		if reply&0x68 != 0 {
			return StatusPrinterError
		}
	case StatusKindPaper:
		if reply&0x60 != 0 {
			return StatusPaperEmpty
		}
	}
	return StatusConnected
}
