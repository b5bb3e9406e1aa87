// Package state holds the process-wide dashboard state: the bounded
// ticket history, the activity feed, the active module and the system
// mode. One Manager instance is shared by the HTTP layer, the cron jobs
// and the sync loop; every mutation goes through its mutex and ends with
// a single change notification to subscribers.
package state

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"virtus/internal/config"
	"virtus/internal/models"
)

// TicketStore is the slice of the persistence gateway the manager needs.
type TicketStore interface {
	FetchTickets(ctx context.Context, module models.ModuleType) ([]models.Ticket, bool)
	SaveTicket(ctx context.Context, t *models.Ticket) bool
	UpdateStatus(ctx context.Context, gameID string, status models.BetStatus) bool
}

type Manager struct {
	Logger *zap.Logger

	store TicketStore
	cfg   config.StateConfig
	now   func() time.Time

	mu          sync.RWMutex
	lastSynced  time.Time
	history     []models.Ticket
	activity    []models.PulseEvent
	module      models.ModuleType
	systemState models.SystemState
	syncing     bool
	subscribers map[uint64]chan struct{}
	nextSubID   uint64
}

func NewManager(store TicketStore, cfg config.StateConfig, logger *zap.Logger) *Manager {
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = 300
	}
	if cfg.MaxActivityLog <= 0 {
		cfg.MaxActivityLog = 200
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = 2 * time.Minute
	}
	return &Manager{
		Logger:      logger,
		store:       store,
		cfg:         cfg,
		now:         time.Now,
		module:      models.ModuleNone,
		systemState: models.StateStandby,
		subscribers: map[uint64]chan struct{}{},
	}
}

// Initialize restores the last snapshot if one exists, then kicks off a
// background sync so the dashboard is populated before the first tick.
// Snapshot problems are logged and ignored; an empty state is a valid
// starting point.
func (m *Manager) Initialize(ctx context.Context) {
	if snap, err := loadSnapshot(m.cfg.SnapshotPath); err != nil {
		if m.Logger != nil {
			m.Logger.Warn("state snapshot unreadable, starting empty", zap.Error(err))
		}
	} else if snap != nil {
		m.mu.Lock()
		m.history = capTickets(snap.Tickets, m.cfg.MaxHistory)
		m.activity = capEvents(snap.Activity, m.cfg.MaxActivityLog)
		if snap.ActiveModule != "" {
			m.module = snap.ActiveModule
		}
		m.mu.Unlock()
		if m.Logger != nil {
			m.Logger.Info("state snapshot restored",
				zap.Int("tickets", len(snap.Tickets)),
				zap.Int("activity", len(snap.Activity)))
		}
	}
	go m.SyncWithCloud(ctx)
}

// Run drives the periodic cloud sync until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SyncWithCloud(ctx)
		}
	}
}

// SyncWithCloud reconciles local history with the remote store. Remote
// rows win on conflict; local-only tickets (offline writes, degraded
// saves) survive the merge. The fetch is always unscoped: the module
// selection narrows the view, not reconciliation, so status changes in
// other modules still land. At most one sync runs at a time; overlapping
// calls return false without doing work.
func (m *Manager) SyncWithCloud(ctx context.Context) bool {
	m.mu.Lock()
	if m.syncing {
		m.mu.Unlock()
		return false
	}
	m.syncing = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.syncing = false
		m.mu.Unlock()
	}()

	remote, ok := m.store.FetchTickets(ctx, models.ModuleNone)
	if !ok {
		// Failed fetch: keep local state, and leave lastSynced alone so
		// the staleness indicator keeps aging.
		if m.Logger != nil {
			m.Logger.Warn("cloud sync fetch failed, keeping local state")
		}
		return true
	}

	m.mu.Lock()
	merged := make(map[string]models.Ticket, len(m.history)+len(remote))
	for _, t := range m.history {
		merged[t.GameID] = t
	}
	for _, t := range remote {
		merged[t.GameID] = t
	}
	next := make([]models.Ticket, 0, len(merged))
	for _, t := range merged {
		next = append(next, t)
	}
	sort.Slice(next, func(i, j int) bool {
		return next[i].CreatedAt.After(next[j].CreatedAt)
	})
	m.history = capTickets(next, m.cfg.MaxHistory)
	m.lastSynced = m.now()
	m.persistLocked()
	m.mu.Unlock()

	m.notify()
	return true
}

// LastSynced is the completion time of the most recent reconciliation,
// zero before the first one finishes.
func (m *Manager) LastSynced() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSynced
}

// AddSignals converts a scan's signals into tickets and records them,
// remote first, then locally. A ticket enters local history even when the
// remote save failed so the operator still sees it; the next successful
// sync reconciles.
func (m *Manager) AddSignals(ctx context.Context, module models.ModuleType, signals []models.Signal) {
	if len(signals) == 0 {
		return
	}

	saved, failed := 0, 0
	tickets := make([]models.Ticket, 0, len(signals))
	for i := range signals {
		t := TicketFromSignal(module, &signals[i], m.now())
		if m.store.SaveTicket(ctx, &t) {
			saved++
		} else {
			failed++
		}
		tickets = append(tickets, t)
	}

	m.mu.Lock()
	for i := range tickets {
		m.upsertLocked(tickets[i])
	}
	m.persistLocked()
	m.mu.Unlock()

	if saved > 0 {
		m.LogActivity(string(module), fmt.Sprintf("%d signals captured and synced", saved), models.SeverityMedium)
	}
	if failed > 0 {
		m.LogActivity(string(module), fmt.Sprintf("%d signals kept locally only, cloud save failed", failed), models.SeverityHigh)
	}
	m.notify()
}

// UpdateTicketStatus moves one ticket through its lifecycle, remote and
// local. It reports whether the ticket was known locally.
func (m *Manager) UpdateTicketStatus(ctx context.Context, gameID string, status models.BetStatus) bool {
	if !status.Valid() {
		return false
	}
	m.store.UpdateStatus(ctx, gameID, status)

	m.mu.Lock()
	found := false
	for i := range m.history {
		if m.history[i].GameID == gameID {
			m.history[i].Status = status
			found = true
			break
		}
	}
	if found {
		m.persistLocked()
	}
	m.mu.Unlock()

	if found {
		m.notify()
	}
	return found
}

// LogActivity appends one event to the bounded feed, newest first.
func (m *Manager) LogActivity(sport, message string, severity models.Severity) {
	ev := models.PulseEvent{
		ID:        uuid.NewString(),
		Sport:     sport,
		Message:   message,
		Timestamp: m.now().UnixMilli(),
		Severity:  severity,
	}
	m.mu.Lock()
	m.activity = append([]models.PulseEvent{ev}, m.activity...)
	m.activity = capEvents(m.activity, m.cfg.MaxActivityLog)
	m.persistLocked()
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) SetModule(module models.ModuleType) {
	m.mu.Lock()
	m.module = module
	m.persistLocked()
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) Module() models.ModuleType {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.module
}

func (m *Manager) SetSystemState(s models.SystemState) {
	m.mu.Lock()
	m.systemState = s
	m.mu.Unlock()
	m.notify()
}

// Transition flips the system state only when it currently equals from.
// Handlers use it to keep scan and debate mutually exclusive.
func (m *Manager) Transition(from, to models.SystemState) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.systemState != from {
		return false
	}
	m.systemState = to
	return true
}

func (m *Manager) SystemState() models.SystemState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.systemState
}

// Tickets returns a copy of the history, newest first.
func (m *Manager) Tickets() []models.Ticket {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Ticket, len(m.history))
	copy(out, m.history)
	return out
}

// Activity returns a copy of the event feed, newest first.
func (m *Manager) Activity() []models.PulseEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.PulseEvent, len(m.activity))
	copy(out, m.activity)
	return out
}

// Subscribe registers for change notifications. The channel carries no
// payload; receivers re-read the state they care about. The returned
// cancel func is idempotent.
func (m *Manager) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = ch
	m.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subscribers, id)
			m.mu.Unlock()
		})
	}
	return ch, cancel
}

// notify wakes every subscriber without blocking. A subscriber that has
// not drained its channel already has a pending wakeup, which is enough.
func (m *Manager) notify() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ch := range m.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// upsertLocked inserts or replaces a ticket by GameID and keeps the slice
// newest first. Caller holds mu.
func (m *Manager) upsertLocked(t models.Ticket) {
	for i := range m.history {
		if m.history[i].GameID == t.GameID {
			m.history[i] = t
			return
		}
	}
	m.history = append([]models.Ticket{t}, m.history...)
	m.history = capTickets(m.history, m.cfg.MaxHistory)
}

// TicketFromSignal materializes a scan signal into its persisted shape.
// The signal's capture time wins over the fallback when it is set.
func TicketFromSignal(module models.ModuleType, s *models.Signal, at time.Time) models.Ticket {
	if !s.CapturedAt.IsZero() {
		at = s.CapturedAt
	}
	topProp := ""
	if len(s.RecommendedProps) > 0 {
		topProp = s.RecommendedProps[0]
	}
	return models.Ticket{
		GameID:       models.GameKey(string(module), s.HomeTeam, s.AwayTeam),
		Module:       string(module),
		HomeTeam:     s.HomeTeam,
		AwayTeam:     s.AwayTeam,
		Prediction:   s.Prediction,
		Edge:         s.Edge,
		Stake:        s.Stake,
		Summary:      s.Summary,
		Status:       models.StatusPending,
		IsFireSignal: s.IsFireSignal,
		TopProp:      topProp,
		NeuralAnchor: s.NeuralAnchor,
		CreatedAt:    at,
	}
}

func capTickets(in []models.Ticket, max int) []models.Ticket {
	if len(in) > max {
		return in[:max]
	}
	return in
}

func capEvents(in []models.PulseEvent, max int) []models.PulseEvent {
	if len(in) > max {
		return in[:max]
	}
	return in
}
