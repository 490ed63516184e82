/*
backup.go - Backup snapshot, restore, and the backup scheduler

PURPOSE:
  Admin-only wholesale export and import of the record tables, plus an
  optional background scheduler that writes periodic snapshots to disk.

DESIGN:
  - GET /api/backup streams a JSON snapshot of all four tables
  - POST /api/backup/restore replaces them atomically in one transaction
  - The scheduler runs a goroutine with a configurable interval
    (ticker + stop channel + WaitGroup); disabled unless a directory
    is configured

USAGE:
  scheduler := NewBackupScheduler(store, logger, "./backups", time.Hour)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - ledger/store.go: BackupStore interface
  - cmd/server/main.go: Flag wiring
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mealdesk/canteen-ledger/ledger"
)

// =============================================================================
// HANDLERS
// =============================================================================

// GetBackup streams a JSON snapshot of all record tables.
func (h *Handler) GetBackup(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.authorize(w, r, ledger.PermBackup)
	if !ok {
		return
	}

	backup, err := h.Store.Snapshot(r.Context())
	if err != nil {
		writeStoreError(w, "failed to snapshot", err)
		return
	}

	h.recordActivity(r, actor, "backup", "snapshot downloaded")
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="canteen-backup.json"`)
	json.NewEncoder(w).Encode(backup)
}

// RestoreBackup wholesale-replaces the record tables from an uploaded
// snapshot. This is the only bulk mutation in the system.
func (h *Handler) RestoreBackup(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.authorize(w, r, ledger.PermBackup)
	if !ok {
		return
	}

	var backup ledger.Backup
	if err := json.NewDecoder(r.Body).Decode(&backup); err != nil {
		writeError(w, http.StatusBadRequest, "invalid backup payload", err)
		return
	}

	if err := h.Store.Restore(r.Context(), &backup); err != nil {
		writeStoreError(w, "failed to restore", err)
		return
	}

	h.recordActivity(r, actor, "restore_backup", backup.TakenAt.Format(time.RFC3339))
	writeJSON(w, http.StatusOK, map[string]any{
		"restored": true,
		"users":    len(backup.Users),
		"expenses": len(backup.Expenses),
		"payments": len(backup.Payments),
	})
}

// =============================================================================
// SCHEDULER
// =============================================================================

// BackupScheduler writes periodic snapshots to a directory.
type BackupScheduler struct {
	Store    ledger.BackupStore
	Logger   *zap.Logger
	Dir      string
	Interval time.Duration

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewBackupScheduler creates a scheduler. An empty dir disables it.
func NewBackupScheduler(store ledger.BackupStore, logger *zap.Logger, dir string, interval time.Duration) *BackupScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	return &BackupScheduler{
		Store:    store,
		Logger:   logger,
		Dir:      dir,
		Interval: interval,
		stop:     make(chan bool),
	}
}

// Start begins the scheduler.
func (bs *BackupScheduler) Start() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if bs.Dir == "" {
		bs.Logger.Info("backup scheduler disabled, no directory configured")
		return
	}

	bs.ticker = time.NewTicker(bs.Interval)
	bs.wg.Add(1)

	go bs.run()

	bs.Logger.Info("backup scheduler started",
		zap.String("dir", bs.Dir),
		zap.Duration("interval", bs.Interval))
}

// Stop stops the scheduler.
func (bs *BackupScheduler) Stop() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if bs.ticker != nil {
		bs.ticker.Stop()
		close(bs.stop)
		bs.wg.Wait()
		bs.Logger.Info("backup scheduler stopped")
	}
}

func (bs *BackupScheduler) run() {
	defer bs.wg.Done()

	// Snapshot immediately on start
	bs.snapshotOnce()

	for {
		select {
		case <-bs.ticker.C:
			bs.snapshotOnce()
		case <-bs.stop:
			return
		}
	}
}

// RunNow triggers an immediate snapshot (for testing/admin).
func (bs *BackupScheduler) RunNow() {
	bs.snapshotOnce()
}

func (bs *BackupScheduler) snapshotOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	backup, err := bs.Store.Snapshot(ctx)
	if err != nil {
		bs.Logger.Error("scheduled snapshot failed", zap.Error(err))
		return
	}

	if err := os.MkdirAll(bs.Dir, 0o755); err != nil {
		bs.Logger.Error("failed to create backup directory", zap.Error(err))
		return
	}

	name := "canteen-" + backup.TakenAt.Format("20060102-150405") + ".json"
	path := filepath.Join(bs.Dir, name)

	data, err := json.MarshalIndent(backup, "", "  ")
	if err != nil {
		bs.Logger.Error("failed to encode snapshot", zap.Error(err))
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		bs.Logger.Error("failed to write snapshot", zap.String("path", path), zap.Error(err))
		return
	}

	bs.Logger.Info("snapshot written",
		zap.String("path", path),
		zap.Int("users", len(backup.Users)),
		zap.Int("expenses", len(backup.Expenses)),
		zap.Int("payments", len(backup.Payments)))
}
