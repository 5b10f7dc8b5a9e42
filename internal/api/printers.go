package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thereceipt/escpos-engine/internal/printer"
)

type printerView struct {
	*printer.Printer
	Connected bool `json:"connected"`
}

func (s *Server) view(p *printer.Printer) printerView {
	return printerView{Printer: p, Connected: s.service.IsConnected(p.ID)}
}

// handleGetPrinters returns all known printers
func (s *Server) handleGetPrinters(c *gin.Context) {
	printers := s.service.Manager().GetAllPrinters()

	views := make([]printerView, len(printers))
	for i, p := range printers {
		views[i] = s.view(p)
	}

	c.JSON(http.StatusOK, gin.H{
		"printers": views,
	})
}

// handleSetPrinterName sets a custom name for a printer
func (s *Server) handleSetPrinterName(c *gin.Context) {
	printerID := c.Param("id")

	var req struct {
		Name string `json:"name" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	if !s.service.Manager().SetPrinterName(printerID, req.Name) {
		c.JSON(http.StatusNotFound, gin.H{"error": "printer not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// handleAddNetworkPrinter manually adds a network printer
func (s *Server) handleAddNetworkPrinter(c *gin.Context) {
	var req struct {
		Host        string `json:"host" binding:"required"`
		Port        int    `json:"port" binding:"omitempty,min=1,max=65535"`
		Description string `json:"description"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "host is required and port must be 1-65535"})
		return
	}

	manager := s.service.Manager()
	printerID := manager.AddNetworkPrinter(req.Host, req.Port, req.Description)

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"printer_id": printerID,
		"printer":    manager.GetPrinter(printerID),
	})
}

// handleRemovePrinter disconnects and forgets a printer
func (s *Server) handleRemovePrinter(c *gin.Context) {
	if !s.service.RemovePrinter(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "printer not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// handleConnect opens a connection. With "select": true the printer also
// becomes the current one.
func (s *Server) handleConnect(c *gin.Context) {
	printerID := c.Param("id")

	var req struct {
		Select bool `json:"select"`
	}
	// the body is optional
	_ = c.ShouldBindJSON(&req)

	var err error
	if req.Select {
		err = s.service.Select(c.Request.Context(), printerID)
	} else {
		err = s.service.Connect(c.Request.Context(), printerID)
	}
	if err != nil {
		status := errorStatus(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		respondError(c, status, err)
		return
	}

	current := s.service.CurrentConnection()
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"connected": true,
		"current":   current != nil && current.ID == printerID,
	})
}

// handleDisconnect closes a printer connection
func (s *Server) handleDisconnect(c *gin.Context) {
	if err := s.service.Disconnect(c.Param("id")); err != nil {
		respondError(c, errorStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// handleCurrentPrinter returns the printer used when requests omit printer_id
func (s *Server) handleCurrentPrinter(c *gin.Context) {
	current := s.service.CurrentConnection()
	if current == nil {
		c.JSON(http.StatusOK, gin.H{"printer": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"printer": s.view(current)})
}

// handlePrinterStatus reads the live status of a printer
func (s *Server) handlePrinterStatus(c *gin.Context) {
	printerID := c.Param("id")

	status, err := s.service.Status(c.Request.Context(), printerID)
	if err != nil {
		respondError(c, errorStatus(err), err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"printer_id": printerID,
		"status":     status,
	})
}
