package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/thereceipt/escpos-engine/internal/parser"
	"github.com/thereceipt/escpos-engine/internal/printer"
	"github.com/thereceipt/escpos-engine/internal/renderer"
	"github.com/thereceipt/escpos-engine/pkg/escpos"
	"github.com/thereceipt/escpos-engine/pkg/receiptformat"
)

// receiptRequest names a receipt inline, by path or by URL, plus its data.
// The inline receipt may be a .receipt template or an items document.
type receiptRequest struct {
	PrinterID         string                              `json:"printer_id"`
	Receipt           json.RawMessage                     `json:"receipt"`
	ReceiptPath       string                              `json:"receipt_path"`
	ReceiptURL        string                              `json:"receipt_url"`
	PaperWidth        string                              `json:"paper_width"`
	VariableData      map[string]interface{}              `json:"variableData"`
	VariableArrayData map[string][]map[string]interface{} `json:"variableArrayData"`
	Wait              bool                                `json:"wait"`
}

// load resolves the receipt source. The base dir is set for receipts read
// from disk.
func (r *receiptRequest) load(ctx context.Context) (*receiptformat.Receipt, string, error) {
	switch {
	case r.ReceiptURL != "":
		return parser.LoadReceipt(ctx, r.ReceiptURL)
	case r.ReceiptPath != "":
		return parser.LoadReceipt(ctx, r.ReceiptPath)
	case len(r.Receipt) > 0 && string(r.Receipt) != "null":
		receipt, err := receiptformat.ParseAny(r.Receipt)
		return receipt, "", err
	default:
		return nil, "", errors.New("receipt, receipt_path, or receipt_url is required")
	}
}

// prepare loads and configures a parser for the request
func (s *Server) prepare(ctx context.Context, req *receiptRequest) (*parser.Parser, error) {
	receipt, baseDir, err := req.load(ctx)
	if err != nil {
		return nil, err
	}

	return parser.Prepare(receipt, parser.Options{
		PaperWidth:        s.paperWidth(req.PaperWidth, receipt),
		BaseDir:           baseDir,
		CodePage:          s.codePage,
		VariableData:      req.VariableData,
		VariableArrayData: req.VariableArrayData,
	})
}

// paperWidth picks the request width, then the receipt's, then the configured default
func (s *Server) paperWidth(requested string, receipt *receiptformat.Receipt) string {
	if requested != "" {
		return requested
	}
	if receipt != nil && receipt.PaperWidth != "" {
		return receipt.PaperWidth
	}
	return s.paper.Width
}

// submit queues data and writes the job response. With wait set the
// response is sent once the job finishes.
func (s *Server) submit(c *gin.Context, printerID string, data []byte, wait bool) {
	jobID, err := s.service.Submit(printerID, data)
	if err != nil {
		respondError(c, errorStatus(err), err)
		return
	}

	if !wait {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"job_id":  jobID,
			"size":    len(data),
		})
		return
	}

	job, err := s.service.Queue().Wait(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, errorStatus(err), err)
		return
	}
	status := http.StatusOK
	if job.Status == printer.JobFailed {
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{
		"success": job.Status == printer.JobCompleted,
		"job_id":  jobID,
		"size":    len(data),
		"job":     job,
	})
}

// handlePrint encodes a receipt template with variable data and queues it
func (s *Server) handlePrint(c *gin.Context) {
	var req receiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := s.prepare(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid receipt: %v", err)})
		return
	}

	data, err := p.Execute()
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, fmt.Errorf("failed to encode receipt: %w", err))
		return
	}

	s.submit(c, req.PrinterID, data, req.Wait)
}

// handlePrintItems prints the flat items document POS clients send
func (s *Server) handlePrintItems(c *gin.Context) {
	var req struct {
		PrinterID  string `json:"printer_id"`
		PaperWidth string `json:"paper_width"`
		Wait       bool   `json:"wait"`
		receiptformat.ItemsDocument
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "items are required"})
		return
	}

	data, err := s.encodeItems(&req.ItemsDocument, req.PaperWidth)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, err)
		return
	}
	s.submit(c, req.PrinterID, data, req.Wait)
}

// encodeItems compiles an items document without a template step
func (s *Server) encodeItems(doc *receiptformat.ItemsDocument, paperWidth string) ([]byte, error) {
	receipt, err := doc.ToReceipt()
	if err != nil {
		return nil, err
	}
	return parser.Encode(receipt, parser.Options{
		PaperWidth: s.paperWidth(paperWidth, nil),
		CodePage:   s.codePage,
	})
}

// encodeElement encodes one item with no feed or cut trailer
func (s *Server) encodeElement(item receiptformat.ReceiptItem) ([]byte, error) {
	noCut, noFeed := false, 0
	return s.encodeItems(&receiptformat.ItemsDocument{
		Items:     []receiptformat.ReceiptItem{item},
		CutPaper:  &noCut,
		FeedLines: &noFeed,
	}, "")
}

type elementRequest struct {
	PrinterID string                    `json:"printer_id"`
	Options   receiptformat.ItemOptions `json:"options"`
	Wait      bool                      `json:"wait"`
}

func (s *Server) printElement(c *gin.Context, req elementRequest, kind string, data interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	out, err := s.encodeElement(receiptformat.ReceiptItem{Type: kind, Data: raw, Options: req.Options})
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, err)
		return
	}
	s.submit(c, req.PrinterID, out, req.Wait)
}

// handlePrintText prints one styled text line
func (s *Server) handlePrintText(c *gin.Context) {
	var req struct {
		elementRequest
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}
	s.printElement(c, req.elementRequest, receiptformat.TypeText, req.Text)
}

// handlePrintImage prints a base64 or data URI image
func (s *Server) handlePrintImage(c *gin.Context) {
	var req struct {
		elementRequest
		Image string `json:"image" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image is required"})
		return
	}

	// never treat the payload as a file path
	uri := req.Image
	if !strings.HasPrefix(uri, "data:") {
		uri = "data:image/*;base64," + uri
	}
	s.printElement(c, req.elementRequest, receiptformat.TypeImage, uri)
}

// handlePrintBarcode prints a 1D barcode
func (s *Server) handlePrintBarcode(c *gin.Context) {
	var req struct {
		elementRequest
		Content string `json:"content" binding:"required"`
		Type    string `json:"type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}
	s.printElement(c, req.elementRequest, receiptformat.TypeBarcode, receiptformat.BarcodeData{
		Content: req.Content,
		Type:    req.Type,
	})
}

// handlePrintQRCode prints a QR code
func (s *Server) handlePrintQRCode(c *gin.Context) {
	var req struct {
		elementRequest
		Data string `json:"data" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "data is required"})
		return
	}
	s.printElement(c, req.elementRequest, receiptformat.TypeQRCode, req.Data)
}

// handleCut feeds and cuts the paper
func (s *Server) handleCut(c *gin.Context) {
	var req struct {
		PrinterID string `json:"printer_id"`
		Mode      string `json:"mode"`
		Wait      bool   `json:"wait"`
	}
	_ = c.ShouldBindJSON(&req)

	s.submit(c, req.PrinterID, escpos.CutCommand(escpos.ParseCutKind(req.Mode)), req.Wait)
}

// handleFeed advances the paper
func (s *Server) handleFeed(c *gin.Context) {
	var req struct {
		PrinterID string `json:"printer_id"`
		Lines     *int   `json:"lines" binding:"omitempty,min=0,max=255"`
		Wait      bool   `json:"wait"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength != 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lines must be 0-255"})
		return
	}

	lines := 1
	if req.Lines != nil {
		lines = *req.Lines
	}
	s.submit(c, req.PrinterID, escpos.FeedCommand(lines), req.Wait)
}

// handleDrawer pulses the cash drawer
func (s *Server) handleDrawer(c *gin.Context) {
	var req struct {
		PrinterID string `json:"printer_id"`
		Wait      bool   `json:"wait"`
	}
	_ = c.ShouldBindJSON(&req)

	s.submit(c, req.PrinterID, escpos.CashDrawerPulse(), req.Wait)
}

// handleRaw sends caller supplied bytes unchanged
func (s *Server) handleRaw(c *gin.Context) {
	var req struct {
		PrinterID string `json:"printer_id"`
		Hex       string `json:"hex"`
		Base64    string `json:"base64"`
		Wait      bool   `json:"wait"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var data []byte
	var err error
	switch {
	case req.Hex != "":
		data, err = receiptformat.DecodeHex(req.Hex)
	case req.Base64 != "":
		data, err = base64.StdEncoding.DecodeString(req.Base64)
	default:
		err = errors.New("hex or base64 is required")
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.submit(c, req.PrinterID, data, req.Wait)
}

// handleEncode returns the bytes a receipt encodes to without printing
func (s *Server) handleEncode(c *gin.Context) {
	var req receiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := s.prepare(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid receipt: %v", err)})
		return
	}

	data, err := p.Execute()
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, fmt.Errorf("failed to encode receipt: %w", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"paper_width": p.PaperWidth(),
		"size":        len(data),
		"hex":         hex.EncodeToString(data),
		"base64":      base64.StdEncoding.EncodeToString(data),
	})
}

// handlePreview renders a receipt to PNG at the paper's dot width
func (s *Server) handlePreview(c *gin.Context) {
	var req receiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := s.prepare(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid receipt: %v", err)})
		return
	}

	spec, err := p.Compile()
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, fmt.Errorf("failed to compile receipt: %w", err))
		return
	}

	var buf bytes.Buffer
	if err := renderer.RenderPNG(&buf, spec, p.PaperWidth()); err != nil {
		respondError(c, http.StatusInternalServerError, fmt.Errorf("failed to render preview: %w", err))
		return
	}

	c.Data(http.StatusOK, "image/png", buf.Bytes())
}
