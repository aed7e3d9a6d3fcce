package cmd

import (
	"context"
	"sync"
	"time"

	"github.com/mirrorhop/mirrorhop/internal/utils"
	"github.com/mirrorhop/mirrorhop/pkg/scanner"
	"github.com/mirrorhop/mirrorhop/pkg/storage"
)

// historyRecorder persists finished scans. It is used as a scanner.OnScan hook.
type historyRecorder struct {
	mu   sync.Mutex
	db   *storage.DB
	lock *utils.DBLock
}

func openHistory(dbPath string) (*historyRecorder, error) {
	absPath, err := utils.GetAbsDBPath(dbPath)
	if err != nil {
		return nil, err
	}
	lock, err := utils.NewDBLock(absPath)
	if err != nil {
		return nil, err
	}
	db, err := storage.Open(absPath)
	if err != nil {
		return nil, err
	}
	utils.Log.Debugf("Recording scan history to %s", absPath)
	return &historyRecorder{db: db, lock: lock}, nil
}

func (h *historyRecorder) record(res scanner.Result) {
	if res.Cached {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.lock.Lock(); err != nil {
		utils.Log.Warnf("Could not lock history db: %v", err)
		return
	}
	defer h.lock.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.db.RecordScan(ctx, res); err != nil {
		utils.Log.Warnf("Failed to record scan %s: %v", res.ID, err)
	}
}

func (h *historyRecorder) Close() error {
	return h.db.Close()
}
