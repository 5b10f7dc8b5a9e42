package escpos

import (
	"fmt"
	"strings"
)

// QR error correction levels as sent in GS ( k function 169
const (
	QRErrorCorrectionL = 0
	QRErrorCorrectionM = 1
	QRErrorCorrectionQ = 2
	QRErrorCorrectionH = 3
)

// ParseQRErrorCorrection maps L, M, Q and H (or 0..3) to a level. Anything
// else is M.
func ParseQRErrorCorrection(level string) int {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "L", "0":
		return QRErrorCorrectionL
	case "Q", "2":
		return QRErrorCorrectionQ
	case "H", "3":
		return QRErrorCorrectionH
	default:
		return QRErrorCorrectionM
	}
}

// QROptions controls module size and redundancy
type QROptions struct {
	Size            int // module size 1..8
	ErrorCorrection int // 0..3
	Align           Alignment
}

// DefaultQROptions returns size 6, level M, centered.
func DefaultQROptions() QROptions {
	return QROptions{
		Size:            6,
		ErrorCorrection: QRErrorCorrectionM,
		Align:           AlignCenter,
	}
}

// GS ( k cn=49 function codes
const (
	qrFnModel           byte = 0x41
	qrFnSize            byte = 0x43
	qrFnErrorCorrection byte = 0x45
	qrFnStore           byte = 0x50
	qrFnPrint           byte = 0x51
)

// maxQRData keeps pL/pH (data + 3) inside 16 bits
const maxQRData = 0xFFFF - 3

// EncodeQRCode builds model select, size, error correction, store and print.
func EncodeQRCode(data string, opts QROptions) ([]byte, error) {
	payload := StringToBytes(data)
	if len(payload) > maxQRData {
		return nil, fmt.Errorf("%w: qr data is %d bytes, limit %d", ErrPayloadTooLarge, len(payload), maxQRData)
	}

	e := NewEncoder()
	e.Initialize()
	e.SetAlignment(opts.Align)
	writeQRFunction(e, qrFnModel, 0x32, 0x00)
	writeQRFunction(e, qrFnSize, byte(clamp(opts.Size, 1, 8)))
	writeQRFunction(e, qrFnErrorCorrection, byte(clamp(opts.ErrorCorrection, 0, 3)))
	writeQRFunction(e, qrFnStore, append([]byte{0x30}, payload...)...)
	writeQRFunction(e, qrFnPrint, 0x30)
	e.LineFeed()

	return e.Bytes(), nil
}

// writeQRFunction frames GS ( k pL pH cn fn params. The length counts cn,
// fn and the parameters.
func writeQRFunction(e *Encoder, fn byte, params ...byte) {
	length := len(params) + 2
	e.Write([]byte{GS, '(', 'k', byte(length % 256), byte(length / 256), 0x31, fn})
	e.Write(params)
}
