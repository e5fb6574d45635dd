// Package ledger persists score adjustments and tick reports published on the
// event bus to SQLite.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/zeusync/inputlink/internal/core/events/bus"
	"github.com/zeusync/inputlink/internal/core/observability/log"
)

var ErrUnexpectedPayload = errors.New("unexpected event payload")

type ScoreEvent struct {
	ID        uint      `gorm:"primarykey"`
	CreatedAt time.Time `gorm:"index:idx_score_created"`
	Tick      uint64    `gorm:"index:idx_score_tick"`
	EntityID  string    `gorm:"size:36;index:idx_score_entity"`
	Entity    string    `gorm:"size:127"`
	Delta     int
	Total     int
	Reason    string `gorm:"size:32"`
}

type TickRecord struct {
	ID             uint `gorm:"primarykey"`
	CreatedAt      time.Time
	Tick           uint64 `gorm:"index:idx_tick_tick"`
	Completed      bool
	Processed      int
	Entities       int
	DurationMicros int64
}

var models = []any{&ScoreEvent{}, &TickRecord{}}

type Ledger struct {
	db   *gorm.DB
	log  log.Log
	subs []bus.Subscription
}

// Open connects to the SQLite database at dsn and migrates the schema.
// "file::memory:" gives a private in-memory ledger.
func Open(dsn string, l log.Log) (*Ledger, error) {
	if l == nil {
		l = log.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	// An in-memory database lives on a single connection.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(models...); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return &Ledger{db: db, log: l.Named("ledger")}, nil
}

// Attach records every score adjustment and tick report published on b until
// Close.
func (l *Ledger) Attach(b bus.EventBus) error {
	handlers := map[string]bus.EventHandler{
		bus.TypeScoreAdjusted: l.onScore,
		bus.TypeTickCompleted: l.onTick(true),
		bus.TypeTickAborted:   l.onTick(false),
	}
	for _, typ := range []string{bus.TypeScoreAdjusted, bus.TypeTickCompleted, bus.TypeTickAborted} {
		sub, err := b.Subscribe(typ, handlers[typ])
		if err != nil {
			return fmt.Errorf("attach ledger: %w", err)
		}
		l.subs = append(l.subs, sub)
	}
	return nil
}

func (l *Ledger) onScore(ev bus.Event) error {
	adj, ok := ev.Data().(bus.ScoreAdjustment)
	if !ok {
		return fmt.Errorf("%w: %T on %s", ErrUnexpectedPayload, ev.Data(), ev.Type())
	}
	return l.RecordScore(adj)
}

func (l *Ledger) onTick(completed bool) bus.EventHandler {
	return func(ev bus.Event) error {
		report, ok := ev.Data().(bus.TickReport)
		if !ok {
			return fmt.Errorf("%w: %T on %s", ErrUnexpectedPayload, ev.Data(), ev.Type())
		}
		return l.RecordTick(report, completed)
	}
}

func (l *Ledger) RecordScore(adj bus.ScoreAdjustment) error {
	row := ScoreEvent{
		Tick:     adj.Tick,
		EntityID: adj.EntityID,
		Entity:   adj.Entity,
		Delta:    adj.Delta,
		Total:    adj.Total,
		Reason:   adj.Reason,
	}
	if err := l.db.Create(&row).Error; err != nil {
		l.log.Error("score write failed", log.Tick(adj.Tick), log.Entity(adj.Entity), log.Error(err))
		return fmt.Errorf("record score: %w", err)
	}
	return nil
}

func (l *Ledger) RecordTick(report bus.TickReport, completed bool) error {
	row := TickRecord{
		Tick:           report.Tick,
		Completed:      completed,
		Processed:      report.Processed,
		Entities:       report.Entities,
		DurationMicros: report.Duration.Microseconds(),
	}
	if err := l.db.Create(&row).Error; err != nil {
		l.log.Error("tick write failed", log.Tick(report.Tick), log.Error(err))
		return fmt.Errorf("record tick: %w", err)
	}
	return nil
}

// Totals sums every recorded delta per entity name.
func (l *Ledger) Totals() (map[string]int, error) {
	var rows []struct {
		Entity string
		Total  int
	}
	err := l.db.Model(&ScoreEvent{}).
		Select("entity, SUM(delta) AS total").
		Group("entity").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("score totals: %w", err)
	}
	totals := make(map[string]int, len(rows))
	for _, r := range rows {
		totals[r.Entity] = r.Total
	}
	return totals, nil
}

// History returns the adjustments of one entity in the order they happened.
func (l *Ledger) History(entity string) ([]ScoreEvent, error) {
	var events []ScoreEvent
	if err := l.db.Where("entity = ?", entity).Order("id").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("score history: %w", err)
	}
	return events, nil
}

// Ticks returns every recorded tick report, oldest first.
func (l *Ledger) Ticks() ([]TickRecord, error) {
	var records []TickRecord
	if err := l.db.Order("id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("tick history: %w", err)
	}
	return records, nil
}

// Close detaches from the bus and closes the database.
func (l *Ledger) Close() error {
	var errs []error
	for _, sub := range l.subs {
		errs = append(errs, sub.Cancel())
	}
	l.subs = nil
	sqlDB, err := l.db.DB()
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	return errors.Join(append(errs, sqlDB.Close())...)
}
