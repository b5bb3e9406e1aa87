// Package gateway translates between the application's ticket shape and
// the remote row store, classifying provider errors so a missing table or
// column degrades the feature instead of crashing the process.
package gateway

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"virtus/internal/config"
	"virtus/internal/db"
	"virtus/internal/models"
)

// ticketColumns is the explicit payload column set for upserts. Unknown
// or extra fields are never forwarded; remote schema validation rejects
// columns it does not know about.
var ticketColumns = []string{
	"game_id", "module", "home_team", "away_team", "prediction",
	"edge", "stake", "summary", "status", "is_fire_signal",
	"top_prop", "neural_anchor", "created_at",
}

// ticketReadColumns adds the surrogate id so legacy rows missing a
// natural key still get a stable identity.
var ticketReadColumns = append([]string{"id"}, ticketColumns...)

type Gateway struct {
	Logger *zap.Logger

	// FetchLimit bounds ticket reads; zero means 100.
	FetchLimit int

	// OnAuthFailure is invoked (outside the lock) whenever a call fails
	// with credential-class errors, so the UI can prompt for rotation.
	OnAuthFailure func(message string)

	mu       sync.RWMutex
	handle   *db.DB
	dbCfg    config.DBConfig
	disabled map[string]bool

	// openStore is swappable in tests; defaults to db.Open.
	openStore func(config.DBConfig) (*db.DB, error)
}

func New(handle *db.DB, cfg config.DBConfig, logger *zap.Logger) *Gateway {
	return &Gateway{
		Logger:    logger,
		handle:    handle,
		dbCfg:     cfg,
		disabled:  map[string]bool{},
		openStore: db.Open,
	}
}

func (g *Gateway) gorm() *gorm.DB {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.handle == nil {
		return nil
	}
	return g.handle.Gorm
}

// Ping verifies the active handle can reach the remote store.
func (g *Gateway) Ping() error {
	g.mu.RLock()
	h := g.handle
	g.mu.RUnlock()
	if h == nil {
		return errors.New("no active store handle")
	}
	return db.Ping(h)
}

// Close releases the active handle. Rotate may have replaced the handle
// the process started with, so shutdown goes through here.
func (g *Gateway) Close() error {
	g.mu.Lock()
	h := g.handle
	g.handle = nil
	g.mu.Unlock()
	if h == nil {
		return nil
	}
	return db.Close(h)
}

// TableDisabled reports whether a table was shut off by an earlier
// table-missing failure. Only Rotate re-enables it.
func (g *Gateway) TableDisabled(table string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.disabled[table]
}

// noteError classifies err, updates the disabled-table cache, and fires
// the auth hook. It returns the class for the caller's own branching.
func (g *Gateway) noteError(op, table string, err error) Class {
	class := Classify(err)
	switch class {
	case ClassTableMissing:
		g.mu.Lock()
		g.disabled[table] = true
		g.mu.Unlock()
		if g.Logger != nil {
			g.Logger.Warn("table missing in remote schema, disabling its operations",
				zap.String("op", op), zap.String("table", table), zap.Error(err))
		}
	case ClassColumnMissing:
		if g.Logger != nil {
			g.Logger.Warn("remote schema rejected a column",
				zap.String("op", op), zap.String("table", table), zap.Error(err))
		}
	case ClassAuthFailure:
		if g.Logger != nil {
			g.Logger.Error("credential failure against remote store",
				zap.String("op", op), zap.Error(err))
		}
		if g.OnAuthFailure != nil {
			g.OnAuthFailure(err.Error())
		}
	default:
		if g.Logger != nil {
			g.Logger.Warn("remote store call failed",
				zap.String("op", op), zap.String("table", table), zap.Error(err))
		}
	}
	return class
}

// FetchTickets reads the most recent tickets, optionally narrowed to a
// module. Any failure is classified and swallowed; callers always get a
// usable (possibly empty) slice, and the bool distinguishes a genuinely
// empty remote from a failed or disabled read.
func (g *Gateway) FetchTickets(ctx context.Context, module models.ModuleType) ([]models.Ticket, bool) {
	if g.TableDisabled(models.Ticket{}.TableName()) {
		return nil, false
	}
	gdb := g.gorm()
	if gdb == nil {
		return nil, false
	}

	limit := g.FetchLimit
	if limit <= 0 {
		limit = 100
	}
	query := gdb.WithContext(ctx).
		Model(&models.Ticket{}).
		Select(ticketReadColumns).
		Order("created_at desc").
		Limit(limit)
	if module.IsScoped() {
		query = query.Where("module = ?", string(module))
	}

	var items []models.Ticket
	if err := query.Find(&items).Error; err != nil {
		g.noteError("fetch_tickets", models.Ticket{}.TableName(), err)
		return nil, false
	}
	for i := range items {
		if items[i].GameID == "" {
			// Legacy rows without a natural key fall back to the surrogate id.
			items[i].GameID = strconv.FormatUint(items[i].ID, 10)
		}
	}
	return items, true
}

// SaveTicket upserts one ticket on its natural key. The column set is
// enumerated and the conflict action only assigns known columns, keeping
// schema-drifted remotes from rejecting the whole write.
func (g *Gateway) SaveTicket(ctx context.Context, t *models.Ticket) bool {
	if t == nil || t.GameID == "" {
		return false
	}
	if g.TableDisabled(models.Ticket{}.TableName()) {
		return false
	}
	gdb := g.gorm()
	if gdb == nil {
		return false
	}

	err := gdb.WithContext(ctx).
		Select(ticketColumns).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "game_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"module", "home_team", "away_team", "prediction",
				"edge", "stake", "summary", "status", "is_fire_signal",
				"top_prop", "neural_anchor",
			}),
		}).
		Create(t).Error
	if err != nil {
		g.noteError("save_ticket", models.Ticket{}.TableName(), err)
		return false
	}
	return true
}

// UpdateStatus mutates a single ticket's lifecycle status.
func (g *Gateway) UpdateStatus(ctx context.Context, gameID string, status models.BetStatus) bool {
	if gameID == "" || !status.Valid() {
		return false
	}
	if g.TableDisabled(models.Ticket{}.TableName()) {
		return false
	}
	gdb := g.gorm()
	if gdb == nil {
		return false
	}

	err := gdb.WithContext(ctx).
		Model(&models.Ticket{}).
		Where("game_id = ?", gameID).
		Update("status", status).Error
	if err != nil {
		g.noteError("update_status", models.Ticket{}.TableName(), err)
		return false
	}
	return true
}

// FetchRules returns accumulated learned rules for prompt context.
func (g *Gateway) FetchRules(ctx context.Context) []string {
	if g.TableDisabled(models.LearnedRule{}.TableName()) {
		return nil
	}
	gdb := g.gorm()
	if gdb == nil {
		return nil
	}

	var rows []models.LearnedRule
	if err := gdb.WithContext(ctx).
		Model(&models.LearnedRule{}).
		Order("id asc").
		Find(&rows).Error; err != nil {
		g.noteError("fetch_rules", models.LearnedRule{}.TableName(), err)
		return nil
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if r.Content != "" {
			out = append(out, r.Content)
		}
	}
	return out
}

// FetchIntelligence returns the highest-impact memory rows projected into
// prompt-facing records.
func (g *Gateway) FetchIntelligence(ctx context.Context) []models.GlobalIntelligence {
	if g.TableDisabled(models.AIMemory{}.TableName()) {
		return nil
	}
	gdb := g.gorm()
	if gdb == nil {
		return nil
	}

	var rows []models.AIMemory
	if err := gdb.WithContext(ctx).
		Model(&models.AIMemory{}).
		Order("impact_score desc").
		Limit(20).
		Find(&rows).Error; err != nil {
		g.noteError("fetch_intelligence", models.AIMemory{}.TableName(), err)
		return nil
	}
	out := make([]models.GlobalIntelligence, 0, len(rows))
	for _, m := range rows {
		sport := m.Category
		if sport == "" {
			sport = m.Sport
		}
		if sport == "" {
			sport = "GENERAL"
		}
		league := m.League
		if league == "" {
			league = "ALL"
		}
		out = append(out, models.GlobalIntelligence{
			Sport:         sport,
			League:        league,
			AvgEfficiency: m.ImpactScore,
		})
	}
	return out
}

// FetchSummary returns the latest system heartbeat, nil when absent.
func (g *Gateway) FetchSummary(ctx context.Context) *models.GlobalSummary {
	if g.TableDisabled(models.SystemHealth{}.TableName()) {
		return nil
	}
	gdb := g.gorm()
	if gdb == nil {
		return nil
	}

	var row models.SystemHealth
	err := gdb.WithContext(ctx).
		Model(&models.SystemHealth{}).
		Order("last_pulse desc").
		First(&row).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			g.noteError("fetch_summary", models.SystemHealth{}.TableName(), err)
		}
		return nil
	}
	status := row.Status
	if status == "" {
		status = "OPERATIONAL"
	}
	return &models.GlobalSummary{SystemStatus: status}
}

// UpsertMemory records a learned pattern from the post-mortem, keyed on
// its description.
func (g *Gateway) UpsertMemory(ctx context.Context, m *models.AIMemory) bool {
	if m == nil || m.PatternDescription == "" {
		return false
	}
	if g.TableDisabled(models.AIMemory{}.TableName()) {
		return false
	}
	gdb := g.gorm()
	if gdb == nil {
		return false
	}

	err := gdb.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "pattern_description"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"category", "sport", "league", "impact_score", "payload", "last_updated",
			}),
		}).
		Create(m).Error
	if err != nil {
		g.noteError("upsert_memory", models.AIMemory{}.TableName(), err)
		return false
	}
	return true
}

// Rotate replaces the active credential, reopens the store and clears the
// disabled-table cache: a new credential may restore access a previous
// one was denied.
func (g *Gateway) Rotate(dsn string) error {
	g.mu.Lock()
	cfg := g.dbCfg
	g.mu.Unlock()
	cfg.DSN = dsn

	open := g.openStore
	if open == nil {
		open = db.Open
	}
	fresh, err := open(cfg)
	if err != nil {
		return err
	}

	g.mu.Lock()
	old := g.handle
	g.handle = fresh
	g.dbCfg = cfg
	g.disabled = map[string]bool{}
	g.mu.Unlock()

	_ = db.Close(old)
	if g.Logger != nil {
		g.Logger.Info("persistence credential rotated, disabled-table cache cleared")
	}
	return nil
}
