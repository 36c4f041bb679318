// Package store persists tracked entities and group settings in SQLite.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/streamalert-go/streamalert-go/src/consts"
	"github.com/streamalert-go/streamalert-go/src/entity"
	"github.com/streamalert-go/streamalert-go/src/types"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	ErrGroupNotFound   = errors.New("group not found")
	ErrEntityNotFound  = errors.New("entity not found")
	ErrDuplicateEntity = errors.New("entity already tracked in group")
)

// Store is the durable side of the tracker. Entity order within a
// group is stable: reads return insertion order and ReplaceAll
// preserves the order of its argument.
type Store interface {
	ListGroupIDs(ctx context.Context) ([]string, error)
	GetGroup(ctx context.Context, groupID string) (*entity.Group, error)
	UpsertGroupSettings(ctx context.Context, groupID string, settings entity.GroupSettings) error

	// GetEntities returns the group's entities in stored order. An
	// unknown group yields an empty slice, not an error.
	GetEntities(ctx context.Context, groupID string) ([]*entity.TrackedEntity, error)
	// ReplaceAll atomically swaps the group's entity list.
	ReplaceAll(ctx context.Context, groupID string, entities []*entity.TrackedEntity) error
	Add(ctx context.Context, groupID string, e *entity.TrackedEntity) error
	Remove(ctx context.Context, groupID string, id types.EntityID) error

	Close() error
}

type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
	logger *logrus.Entry
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		dbPath: dbPath,
		logger: logrus.WithField("db_path", dbPath),
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if err := s.updateVersionInfo(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to update version info: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) runMigrations() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create iofs source: %w", err)
	}
	dbDriver, err := sqlitemigrate.WithInstance(s.db, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	mig, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	from, dirty, _ := mig.Version()
	if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	to, _, _ := mig.Version()
	if from != to {
		s.logger.WithFields(logrus.Fields{
			"from_version": from,
			"to_version":   to,
			"was_dirty":    dirty,
		}).Info("database migration completed")
	}
	return nil
}

func (s *SQLiteStore) updateVersionInfo() error {
	_, err := s.db.Exec(`
		INSERT INTO system_meta (key, value) VALUES ('app_version', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, consts.AppVersion)
	return err
}

func (s *SQLiteStore) ListGroupIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM groups ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) GetGroup(ctx context.Context, groupID string) (*entity.Group, error) {
	settings, err := s.getSettings(ctx, groupID)
	if err != nil {
		return nil, err
	}
	entities, err := s.GetEntities(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return &entity.Group{ID: groupID, Settings: *settings, Entities: entities}, nil
}

func (s *SQLiteStore) getSettings(ctx context.Context, groupID string) (*entity.GroupSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var alertTarget, platformsJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT alert_target, enabled_platforms FROM groups WHERE id = ?
	`, groupID).Scan(&alertTarget, &platformsJSON)
	if err == sql.ErrNoRows {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, err
	}

	settings := &entity.GroupSettings{AlertTarget: alertTarget}
	if platformsJSON != "" && platformsJSON != "[]" {
		if err := json.Unmarshal([]byte(platformsJSON), &settings.EnabledPlatforms); err != nil {
			s.logger.WithError(err).WithField("group_id", groupID).Warn("failed to parse enabled platforms, treating as unrestricted")
		}
	}
	return settings, nil
}

func (s *SQLiteStore) UpsertGroupSettings(ctx context.Context, groupID string, settings entity.GroupSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	platformsJSON, err := json.Marshal(settings.EnabledPlatforms)
	if err != nil {
		return fmt.Errorf("failed to encode enabled platforms: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO groups (id, alert_target, enabled_platforms) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			alert_target = excluded.alert_target,
			enabled_platforms = excluded.enabled_platforms,
			updated_at = CURRENT_TIMESTAMP
	`, groupID, settings.AlertTarget, string(platformsJSON))
	return err
}

const entityColumns = `entity_id, platform, name, notify_target, is_live, last_live_at, last_error, snapshot, added_by, added_at`

func (s *SQLiteStore) GetEntities(ctx context.Context, groupID string) ([]*entity.TrackedEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entityColumns+` FROM entities WHERE group_id = ? ORDER BY position ASC, id ASC
	`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return s.scanEntities(rows, groupID)
}

func (s *SQLiteStore) scanEntities(rows *sql.Rows, groupID string) ([]*entity.TrackedEntity, error) {
	entities := []*entity.TrackedEntity{}
	for rows.Next() {
		e := &entity.TrackedEntity{}
		var isLive int
		var lastLiveAt, addedAt int64
		var snapshotJSON string

		err := rows.Scan(&e.ID, &e.Platform, &e.Name, &e.NotifyTarget,
			&isLive, &lastLiveAt, &e.LastError, &snapshotJSON, &e.AddedBy, &addedAt)
		if err != nil {
			return nil, err
		}

		e.IsLive = isLive == 1
		if lastLiveAt > 0 {
			e.LastLiveAt = time.Unix(lastLiveAt, 0)
		}
		if addedAt > 0 {
			e.AddedAt = time.Unix(addedAt, 0)
		}
		if snapshotJSON != "" {
			snap := &entity.Snapshot{}
			if err := json.Unmarshal([]byte(snapshotJSON), snap); err == nil {
				e.Snapshot = snap
			}
		}

		// Rows persisted by older builds or edited by hand may be
		// unusable; drop them on read rather than poisoning a poll.
		if !e.Valid() {
			s.logger.WithFields(logrus.Fields{
				"group_id":  groupID,
				"entity_id": string(e.ID),
			}).Warn("dropping invalid persisted entity")
			continue
		}

		entities = append(entities, e)
	}
	return entities, rows.Err()
}

func (s *SQLiteStore) ReplaceAll(ctx context.Context, groupID string, entities []*entity.TrackedEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := ensureGroup(ctx, tx, groupID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE group_id = ?`, groupID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entities (group_id, `+entityColumns+`, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, e := range entities {
		args, err := entityArgs(e)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, append([]interface{}{groupID}, append(args, i)...)...); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) Add(ctx context.Context, groupID string, e *entity.TrackedEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := ensureGroup(ctx, tx, groupID); err != nil {
		return err
	}

	var exists int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM entities WHERE group_id = ? AND entity_id = ?
	`, groupID, string(e.ID)).Scan(&exists)
	if err != nil {
		return err
	}
	if exists > 0 {
		return ErrDuplicateEntity
	}

	args, err := entityArgs(e)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO entities (group_id, `+entityColumns+`, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
			COALESCE((SELECT MAX(position) + 1 FROM entities WHERE group_id = ?), 0))
	`, append(append([]interface{}{groupID}, args...), groupID)...)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStore) Remove(ctx context.Context, groupID string, id types.EntityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM entities WHERE group_id = ? AND entity_id = ?
	`, groupID, string(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEntityNotFound
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func ensureGroup(ctx context.Context, tx *sql.Tx, groupID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO groups (id) VALUES (?) ON CONFLICT(id) DO NOTHING
	`, groupID)
	return err
}

func entityArgs(e *entity.TrackedEntity) ([]interface{}, error) {
	isLive := 0
	if e.IsLive {
		isLive = 1
	}
	lastLiveAt := int64(0)
	if !e.LastLiveAt.IsZero() {
		lastLiveAt = e.LastLiveAt.Unix()
	}
	addedAt := int64(0)
	if !e.AddedAt.IsZero() {
		addedAt = e.AddedAt.Unix()
	}
	snapshotJSON := ""
	if e.Snapshot != nil {
		data, err := json.Marshal(e.Snapshot)
		if err != nil {
			return nil, fmt.Errorf("failed to encode snapshot: %w", err)
		}
		snapshotJSON = string(data)
	}
	return []interface{}{
		string(e.ID), string(e.Platform), e.Name, e.NotifyTarget,
		isLive, lastLiveAt, e.LastError, snapshotJSON, e.AddedBy, addedAt,
	}, nil
}
