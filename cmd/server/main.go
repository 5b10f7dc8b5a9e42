package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/thereceipt/escpos-engine/internal/api"
	"github.com/thereceipt/escpos-engine/internal/config"
	"github.com/thereceipt/escpos-engine/internal/logging"
	"github.com/thereceipt/escpos-engine/internal/printer"
	"github.com/thereceipt/escpos-engine/internal/registry"
	"github.com/thereceipt/escpos-engine/internal/tui"
)

// Version is set during build via ldflags
var Version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to a config file (default: ./config.yaml when present)")
	port := flag.String("port", "", "API port (overrides config and SERVER_PORT)")
	headless := flag.Bool("headless", false, "Run without the terminal dashboard")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(Version)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	applyOverrides(cfg, *port, *headless)

	var panel *tui.LogPanel
	var extra []io.Writer
	if !cfg.Server.Headless {
		panel = tui.NewLogPanel(tui.DefaultMaxLogs)
		extra = append(extra, panel.Writer())
		// console output would draw over the dashboard
		if cfg.Logging.Output == "stdout" || cfg.Logging.Output == "stderr" || cfg.Logging.Output == "" {
			cfg.Logging.Output = "discard"
		}
	}

	logger, err := logging.New(cfg.Logging, extra...)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if cfg.Registry.Path == "" {
		cfg.Registry.Path = defaultRegistryPath()
	}
	reg, err := registry.New(cfg.Registry.Path, logger)
	if err != nil {
		logger.Fatal("Failed to open printer registry", zap.String("path", cfg.Registry.Path), zap.Error(err))
	}

	service := printer.NewService(cfg.Printer, reg, nil, logger)
	service.Start()
	logger.Info("Printers detected", zap.Int("count", len(service.Manager().GetAllPrinters())))

	server := api.NewServer(service, cfg, logger)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			serverErr <- err
		}
	}()

	logger.Info("ESC/POS engine started",
		zap.String("version", Version),
		zap.String("address", cfg.Server.Address()),
		zap.Bool("headless", cfg.Server.Headless),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// stays nil in headless mode so the select below never picks it
	var dashboard *tui.Dashboard
	var dashboardDone chan struct{}
	if !cfg.Server.Headless {
		dashboardDone = make(chan struct{})
		dashboard = tui.NewDashboard(service, server.Executor(), cfg, panel)
		go func() {
			defer close(dashboardDone)
			if err := dashboard.Run(); err != nil {
				logger.Error("Dashboard error", zap.Error(err))
			}
		}()
	}

	exitCode := 0
	select {
	case err := <-serverErr:
		logger.Error("Server error", zap.Error(err))
		exitCode = 1
	case sig := <-sigChan:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	case <-dashboardDone:
		logger.Info("Dashboard closed, shutting down")
	}

	if dashboard != nil {
		dashboard.Stop()
	}
	shutdown(server, service, logger)
	if exitCode != 0 {
		logger.Sync()
		os.Exit(exitCode)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// applyOverrides layers SERVER_PORT and command-line flags over the config
func applyOverrides(cfg *config.Config, port string, headless bool) {
	if env := os.Getenv("SERVER_PORT"); env != "" {
		cfg.Server.Port = env
	}
	if port != "" {
		cfg.Server.Port = port
	}
	if headless {
		cfg.Server.Headless = true
	}
}

func shutdown(server *api.Server, service *printer.Service, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("API server shutdown error", zap.Error(err))
	}
	service.Close()
	logger.Info("Shutdown complete")
}

// defaultRegistryPath places the printer registry next to the executable when
// that directory is writable, then falls back to the working directory and
// finally to the user config directory.
func defaultRegistryPath() string {
	const name = "printer_registry.json"

	if exePath, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exePath)
		testFile := filepath.Join(exeDir, ".escpos-engine-write-test")
		if f, err := os.Create(testFile); err == nil {
			f.Close()
			os.Remove(testFile)
			return filepath.Join(exeDir, name)
		}
	}

	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, name)
	}

	var configDir string
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			configDir = filepath.Join(appData, "escpos-engine")
		} else {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "escpos-engine")
		}
	} else if home := os.Getenv("HOME"); home != "" {
		configDir = filepath.Join(home, ".config", "escpos-engine")
	}

	if configDir != "" {
		os.MkdirAll(configDir, 0755)
		return filepath.Join(configDir, name)
	}
	return name
}
