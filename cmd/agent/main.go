package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/takastudio/taka-agent/internal/api"
	"github.com/takastudio/taka-agent/internal/assets"
	"github.com/takastudio/taka-agent/internal/config"
	"github.com/takastudio/taka-agent/internal/db"
	"github.com/takastudio/taka-agent/internal/demo"
	"github.com/takastudio/taka-agent/internal/logging"
	"github.com/takastudio/taka-agent/internal/playback"
	"github.com/takastudio/taka-agent/internal/render"
	"github.com/takastudio/taka-agent/internal/ui"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.AssetsDir(), 0755); err != nil {
		return fmt.Errorf("failed to create assets dir: %w", err)
	}
	if err := os.MkdirAll(cfg.ExportsDir(), 0755); err != nil {
		return fmt.Errorf("failed to create exports dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting taka agent", "version", config.Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := demo.NewRepository(database.Conn())

	deviceID, err := ensureDeviceID(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                     TAKA AGENT v0.1.0                     ║")
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Device ID:  %-45s ║\n", deviceID[:16]+"...")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	var prober *assets.Prober
	if p, err := assets.NewProber(cfg.FFprobePath(), logger); err != nil {
		logger.Warn("ffprobe unavailable, media probing disabled", "error", err)
	} else {
		prober = p
	}

	frames := assets.NewFrameCache(cfg.FFmpegPath(), cfg.FrameCacheSize(), logger)

	manager := render.NewManager(render.Config{
		FFmpegPath: cfg.FFmpegPath(),
		ExportsDir: cfg.ExportsDir(),
		Frames:     frames,
		Store:      repo,
		Logger:     logger,
	})

	demoSvc := demo.NewService(repo, prober, logger)
	playbackSvc := playback.NewServer(logger)

	apiServer := api.NewServer(api.ServerConfig{
		Port:           cfg.Port(),
		DemoService:    demoSvc,
		Repository:     repo,
		RenderManager:  manager,
		PlaybackServer: playbackSvc,
		Logger:         logger,
		StartTime:      startTime,
		DeviceID:       deviceID,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Logger: logger,
			OnCancelExport: func(exportID string) {
				if _, err := manager.Cancel(exportID); err != nil {
					logger.Warn("tray cancel failed", "export_id", exportID, "error", err)
				}
			},
			OnOpenExports: func() error {
				return openFolder(cfg.ExportsDir())
			},
			OnQuit: func() {
				close(quitCh)
			},
		})
		go tray.Run()
		go watchTray(tray, demoSvc, manager, logger, quitCh)
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown render manager", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// watchTray refreshes the tray menu on a slow tick: demo count plus the
// progress of whichever export is currently running, if any.
func watchTray(tray *ui.Tray, svc *demo.Service, manager *render.Manager, logger *slog.Logger, quitCh <-chan struct{}) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-quitCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			demos, err := svc.ListDemos(ctx)
			cancel()
			if err != nil {
				logger.Debug("tray refresh failed", "error", err)
				continue
			}
			tray.UpdateDemosCount(len(demos))

			progress := render.Progress{State: render.StateCompleted}
			for _, d := range demos {
				if job, ok := manager.ActiveJob(d.ID); ok {
					progress = job.Snapshot()
					break
				}
			}
			tray.UpdateExportProgress(progress)
		}
	}
}

func openFolder(path string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", path).Start()
	case "windows":
		return exec.Command("explorer", path).Start()
	default:
		return exec.Command("xdg-open", path).Start()
	}
}

func ensureDeviceID(repo demo.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "device_id")
	if err == nil && existing != "" {
		return existing, nil
	}

	idBytes := make([]byte, 16)
	if _, err := rand.Read(idBytes); err != nil {
		return "", err
	}
	deviceID := hex.EncodeToString(idBytes)

	if err := repo.SetConfig(ctx, "device_id", deviceID); err != nil {
		return "", err
	}

	return deviceID, nil
}

func ensureAuthToken(repo demo.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}

	return token, nil
}
