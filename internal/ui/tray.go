package ui

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/getlantern/systray"
	"github.com/takastudio/taka-agent/internal/render"
)

type Tray struct {
	logger *slog.Logger

	statusItem *systray.MenuItem
	demosItem  *systray.MenuItem
	cancelItem *systray.MenuItem

	mu       sync.Mutex
	exportID string

	onCancelExport func(exportID string)
	onOpenExports  func() error
	onQuit         func()
}

type TrayConfig struct {
	Logger         *slog.Logger
	OnCancelExport func(exportID string)
	OnOpenExports  func() error
	OnQuit         func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		logger:         cfg.Logger,
		onCancelExport: cfg.OnCancelExport,
		onOpenExports:  cfg.OnOpenExports,
		onQuit:         cfg.OnQuit,
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Taka")
	systray.SetTooltip("Taka Agent")

	t.mu.Lock()
	t.statusItem = systray.AddMenuItem("Status: Idle", "Current agent status")
	t.statusItem.Disable()

	t.demosItem = systray.AddMenuItem("Demos: 0", "Demos in the library")
	t.demosItem.Disable()
	t.mu.Unlock()

	systray.AddSeparator()

	t.mu.Lock()
	t.cancelItem = systray.AddMenuItem("Cancel Export", "Cancel the running export")
	t.cancelItem.Disable()
	t.mu.Unlock()

	openExportsItem := systray.AddMenuItem("Open Exports Folder...", "Show finished exports")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Taka Agent")

	go func() {
		for {
			select {
			case <-t.cancelItem.ClickedCh:
				t.handleCancelExport()
			case <-openExportsItem.ClickedCh:
				t.handleOpenExports()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) handleCancelExport() {
	t.mu.Lock()
	id := t.exportID
	t.mu.Unlock()

	if id == "" || t.onCancelExport == nil {
		return
	}
	t.onCancelExport(id)
}

func (t *Tray) handleOpenExports() {
	if t.onOpenExports != nil {
		if err := t.onOpenExports(); err != nil {
			t.logger.Error("failed to open exports folder", "error", err)
		}
	}
}

// UpdateExportProgress reflects a running export in the menu. Terminal
// states return the tray to idle.
func (t *Tray) UpdateExportProgress(p render.Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.statusItem == nil || t.cancelItem == nil {
		return
	}
	switch p.State {
	case render.StateQueued, render.StateRendering:
		t.exportID = p.JobID
		t.statusItem.SetTitle(fmt.Sprintf("Status: Exporting %.0f%%", p.Percent))
		t.cancelItem.Enable()
	default:
		t.exportID = ""
		t.statusItem.SetTitle("Status: Idle")
		t.cancelItem.Disable()
	}
}

func (t *Tray) UpdateDemosCount(count int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.demosItem == nil {
		return
	}
	t.demosItem.SetTitle(fmt.Sprintf("Demos: %d", count))
}

func (t *Tray) Quit() {
	systray.Quit()
}
