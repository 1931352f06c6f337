package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"campusfeed/internal/middleware"

	"gorm.io/gorm"
)

// MigrationLog is one applied migration, kept in migration_logs.
type MigrationLog struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	Checksum  string    `gorm:"size:64;not null;default:''"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

// TableName returns the database table name for MigrationLog.
func (MigrationLog) TableName() string {
	return "migration_logs"
}

// MigrationStore records which migrations ran and executes their scripts.
type MigrationStore interface {
	Applied(ctx context.Context) ([]MigrationLog, error)
	Apply(ctx context.Context, m Migration) error
	Revert(ctx context.Context, m Migration) error
}

type migrationStore struct {
	db *gorm.DB
}

// NewMigrationStore returns a MigrationStore backed by migration_logs.
func NewMigrationStore(db *gorm.DB) MigrationStore {
	return &migrationStore{db: db}
}

func (s *migrationStore) Applied(ctx context.Context) ([]MigrationLog, error) {
	var logs []MigrationLog
	if err := s.db.WithContext(ctx).Order("version ASC").Find(&logs).Error; err != nil {
		if IsMissingTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}
	return logs, nil
}

// Apply runs the up script and records it in one transaction, so a failed
// script never leaves a log row behind.
func (s *migrationStore) Apply(ctx context.Context, m Migration) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.UpScript).Error; err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", m.String(), err)
		}
		log := MigrationLog{Version: m.Version, Name: m.Name, Checksum: m.Checksum}
		if err := tx.Create(&log).Error; err != nil {
			return fmt.Errorf("failed to record migration %s: %w", m.String(), err)
		}
		return nil
	})
}

func (s *migrationStore) Revert(ctx context.Context, m Migration) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.DownScript).Error; err != nil {
			return fmt.Errorf("failed to roll back migration %s: %w", m.String(), err)
		}
		if err := tx.Where("version = ?", m.Version).Delete(&MigrationLog{}).Error; err != nil {
			return fmt.Errorf("failed to remove migration record %d: %w", m.Version, err)
		}
		return nil
	})
}

// ErrChecksumMismatch means an applied migration was edited after it ran.
var ErrChecksumMismatch = errors.New("applied migration has been modified")

// Migrator applies a fixed, ordered set of migrations through a store.
type Migrator struct {
	store      MigrationStore
	registered []Migration
}

// NewMigrator returns a Migrator over the embedded migrations.
func NewMigrator(store MigrationStore) *Migrator {
	return &Migrator{store: store, registered: migrations}
}

// Pending returns the registered migrations not yet applied, after checking
// the log against the registered set.
func (m *Migrator) Pending(ctx context.Context) ([]MigrationLog, []Migration, error) {
	applied, err := m.store.Applied(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := m.verify(applied); err != nil {
		return nil, nil, err
	}

	done := make(map[int]bool, len(applied))
	for _, l := range applied {
		done[l.Version] = true
	}
	var pending []Migration
	for _, mig := range m.registered {
		if !done[mig.Version] {
			pending = append(pending, mig)
		}
	}
	return applied, pending, nil
}

// Up applies every pending migration in version order and stops at the
// first failure. It returns how many were applied.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	_, pending, err := m.Pending(ctx)
	if err != nil {
		return 0, err
	}
	for i, mig := range pending {
		middleware.Logger.Info("Applying migration", slog.Int("version", mig.Version), slog.String("name", mig.Name))
		if err := m.store.Apply(ctx, mig); err != nil {
			return i, err
		}
	}
	return len(pending), nil
}

// Down reverts the most recently applied migration and returns its version,
// or 0 when nothing is applied.
func (m *Migrator) Down(ctx context.Context) (int, error) {
	applied, err := m.store.Applied(ctx)
	if err != nil {
		return 0, err
	}
	if len(applied) == 0 {
		return 0, nil
	}
	latest := applied[len(applied)-1].Version
	mig, ok := m.lookup(latest)
	if !ok {
		return 0, fmt.Errorf("migration %06d is applied but not known to this build", latest)
	}
	middleware.Logger.Info("Rolling back migration", slog.Int("version", mig.Version), slog.String("name", mig.Name))
	if err := m.store.Revert(ctx, mig); err != nil {
		return 0, err
	}
	return latest, nil
}

func (m *Migrator) lookup(version int) (Migration, bool) {
	for _, mig := range m.registered {
		if mig.Version == version {
			return mig, true
		}
	}
	return Migration{}, false
}

// verify rejects logs naming versions this build does not ship and logs
// whose checksum differs from the shipped script. Rows written before
// checksums were tracked carry an empty checksum and pass.
func (m *Migrator) verify(applied []MigrationLog) error {
	var unknown []int
	for _, l := range applied {
		mig, ok := m.lookup(l.Version)
		if !ok {
			unknown = append(unknown, l.Version)
			continue
		}
		if l.Checksum != "" && l.Checksum != mig.Checksum {
			return fmt.Errorf("%w: %s", ErrChecksumMismatch, mig.String())
		}
	}
	if len(unknown) == 0 {
		return nil
	}

	sort.Ints(unknown)
	parts := make([]string, 0, len(unknown))
	for _, version := range unknown {
		parts = append(parts, fmt.Sprintf("%06d", version))
	}
	return fmt.Errorf(
		"migration_logs contains unknown versions not present in code: %s (run feedctl migrate down against a newer build first)",
		strings.Join(parts, ", "),
	)
}

func ensureMigrationLog(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(&MigrationLog{}); err != nil {
		return fmt.Errorf("failed to ensure migration logs table: %w", err)
	}
	return nil
}

// RunMigrations ensures the log table exists and applies all pending
// embedded migrations.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	if err := ensureMigrationLog(ctx, db); err != nil {
		return err
	}
	n, err := NewMigrator(NewMigrationStore(db)).Up(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		middleware.Logger.Info("SQL migrations applied", slog.Int("count", n))
	}
	return nil
}

// RollbackLatest reverts the most recently applied migration and returns its
// version, or 0 when nothing is applied.
func RollbackLatest(ctx context.Context, db *gorm.DB) (int, error) {
	return NewMigrator(NewMigrationStore(db)).Down(ctx)
}
