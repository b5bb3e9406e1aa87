package state

import (
	"encoding/json"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"virtus/internal/models"
)

// stateSnapshot is the on-disk shape of the manager's durable fields.
// System state is deliberately excluded: a restart always comes up
// STANDBY regardless of what the process was doing when it died.
type stateSnapshot struct {
	Tickets      []models.Ticket     `json:"tickets"`
	Activity     []models.PulseEvent `json:"activity"`
	ActiveModule models.ModuleType   `json:"activeModule"`
}

// persistLocked writes the snapshot atomically: marshal to a temp file in
// the same directory, then rename over the target. Caller holds mu.
// Failures are logged and swallowed; the snapshot is a cache, the remote
// store is the source of truth.
func (m *Manager) persistLocked() {
	if m.cfg.SnapshotPath == "" {
		return
	}
	snap := stateSnapshot{
		Tickets:      m.history,
		Activity:     m.activity,
		ActiveModule: m.module,
	}
	data, err := json.Marshal(snap)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Warn("state snapshot marshal failed", zap.Error(err))
		}
		return
	}
	dir := filepath.Dir(m.cfg.SnapshotPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		if m.Logger != nil {
			m.Logger.Warn("state snapshot dir unavailable", zap.Error(err))
		}
		return
	}
	tmp, err := os.CreateTemp(dir, ".virtus-state-*.json")
	if err != nil {
		if m.Logger != nil {
			m.Logger.Warn("state snapshot temp file failed", zap.Error(err))
		}
		return
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		if m.Logger != nil {
			m.Logger.Warn("state snapshot write failed", zap.Error(err))
		}
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		if m.Logger != nil {
			m.Logger.Warn("state snapshot close failed", zap.Error(err))
		}
		return
	}
	if err := os.Rename(tmpName, m.cfg.SnapshotPath); err != nil {
		os.Remove(tmpName)
		if m.Logger != nil {
			m.Logger.Warn("state snapshot rename failed", zap.Error(err))
		}
	}
}

// loadSnapshot reads a previously persisted snapshot. A missing file is
// not an error; it just means a cold start.
func loadSnapshot(path string) (*stateSnapshot, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var snap stateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
