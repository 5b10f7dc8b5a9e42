// Package api handles HTTP and WebSocket API endpoints
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/thereceipt/escpos-engine/internal/command"
	"github.com/thereceipt/escpos-engine/internal/config"
	"github.com/thereceipt/escpos-engine/internal/printer"
	"github.com/thereceipt/escpos-engine/pkg/escpos"
)

// Server is the API server
type Server struct {
	router   *gin.Engine
	http     *http.Server
	service  *printer.Service
	executor *command.Executor
	hub      *Hub
	cfg      config.ServerConfig
	paper    config.PaperConfig
	codePage escpos.CodePage
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewServer creates a new API server
func NewServer(service *printer.Service, cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "api"))

	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))
	router.Use(cors.New(corsConfig(cfg.Server.AllowedOrigins)))

	codePage, _ := escpos.ParseCodePage(cfg.Paper.CodePage)

	server := &Server{
		router:   router,
		service:  service,
		executor: command.NewExecutor(service, cfg.Paper, logger),
		hub:      NewHub(service, logger),
		cfg:      cfg.Server,
		paper:    cfg.Paper,
		codePage: codePage,
		upgrader: websocket.Upgrader{
			CheckOrigin: checkOrigin(cfg.Server.AllowedOrigins),
		},
		logger: logger,
	}

	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	// Printers
	s.router.GET("/printers", s.handleGetPrinters)
	s.router.POST("/printer/network", s.handleAddNetworkPrinter)
	s.router.GET("/printer/current", s.handleCurrentPrinter)
	s.router.POST("/printer/:id/name", s.handleSetPrinterName)
	s.router.DELETE("/printer/:id", s.handleRemovePrinter)
	s.router.POST("/printer/:id/connect", s.handleConnect)
	s.router.POST("/printer/:id/disconnect", s.handleDisconnect)
	s.router.GET("/printer/:id/status", s.handlePrinterStatus)

	// Printing
	s.router.POST("/print", s.handlePrint)
	s.router.POST("/print/items", s.handlePrintItems)
	s.router.POST("/print/text", s.handlePrintText)
	s.router.POST("/print/image", s.handlePrintImage)
	s.router.POST("/print/barcode", s.handlePrintBarcode)
	s.router.POST("/print/qrcode", s.handlePrintQRCode)
	s.router.POST("/cut", s.handleCut)
	s.router.POST("/feed", s.handleFeed)
	s.router.POST("/drawer", s.handleDrawer)
	s.router.POST("/raw", s.handleRaw)

	// Encoding without a printer
	s.router.POST("/encode", s.handleEncode)
	s.router.POST("/preview", s.handlePreview)

	// Jobs
	s.router.GET("/jobs", s.handleGetJobs)
	s.router.GET("/job/:id", s.handleGetJob)

	// Command endpoint
	s.router.POST("/command", s.handleCommand)

	// WebSocket
	s.router.GET("/ws", s.handleWebSocket)

	// Health check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// Handler returns the HTTP handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Executor returns the command executor shared with the dashboard
func (s *Server) Executor() *command.Executor {
	return s.executor
}

// Run starts the event hub and serves HTTP until Shutdown is called
func (s *Server) Run() error {
	s.http = &http.Server{
		Addr:         s.cfg.Address(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	go s.hub.Run()

	s.logger.Info("API server listening", zap.String("address", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, drains in-flight ones and closes
// WebSocket clients
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || containsWildcard(origins) {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// checkOrigin applies the CORS origin list to WebSocket upgrades. Requests
// without an Origin header come from non-browser clients.
func checkOrigin(origins []string) func(r *http.Request) bool {
	if len(origins) == 0 || containsWildcard(origins) {
		return func(r *http.Request) bool { return true }
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}

// requestLogger logs each request with zap once it completes
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("Request failed", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			logger.Warn("Request rejected", fields...)
		default:
			logger.Debug("Request handled", fields...)
		}
	}
}

// errorStatus maps service errors to HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, printer.ErrPrinterNotFound):
		return http.StatusNotFound
	case errors.Is(err, printer.ErrNoPrinterSelected), errors.Is(err, printer.ErrNotConnected):
		return http.StatusConflict
	case errors.Is(err, printer.ErrQueueFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, escpos.ErrInvalidImage), errors.Is(err, escpos.ErrPayloadTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, status int, err error) {
	c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}
