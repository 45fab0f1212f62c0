package server

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/jmoiron/sqlx"

	"github.com/Spountil/watermark-gdrive/internal/config"
	"github.com/Spountil/watermark-gdrive/internal/cursor"
	"github.com/Spountil/watermark-gdrive/internal/db"
	"github.com/Spountil/watermark-gdrive/internal/dedup"
	"github.com/Spountil/watermark-gdrive/internal/gdrive"
	"github.com/Spountil/watermark-gdrive/internal/processor"
	drivesync "github.com/Spountil/watermark-gdrive/internal/sync"
)

// Services wires the full notification pipeline: Drive client, stores, dedup
// gate, reconciliation engine, worker pool and the downstream processor.
type Services struct {
	Drive  *gdrive.Client
	Gate   *dedup.Gate
	Ledger *dedup.Ledger
	Engine *drivesync.Engine
	Pool   *drivesync.Pool

	cursors cursor.Store
	sqlDB   *sqlx.DB
}

func NewServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	ts, err := gdrive.NewServiceAccountTokenSource(cfg.Drive.CredentialsFile, "", gdrive.ScopeDrive)
	if err != nil {
		return nil, fmt.Errorf("drive credentials: %w", err)
	}
	drive := gdrive.NewClient(ts)

	s := &Services{Drive: drive}

	var watermarks dedup.WatermarkStore
	var ledgerStore dedup.LedgerStore

	switch cfg.Backend {
	case config.BackendSqlite:
		sqlDB, err := db.NewSqliteDB(db.WithPath(filepath.Join(cfg.DataDir, "state.db")))
		if err != nil {
			return nil, fmt.Errorf("open state db: %w", err)
		}
		s.sqlDB = sqlDB

		if s.cursors, err = cursor.NewSqliteStore(sqlDB); err != nil {
			return nil, fmt.Errorf("cursor store: %w", err)
		}
		if watermarks, err = dedup.NewSqliteWatermarkStore(sqlDB); err != nil {
			return nil, fmt.Errorf("watermark store: %w", err)
		}
		if ledgerStore, err = dedup.NewSqliteLedgerStore(sqlDB); err != nil {
			return nil, fmt.Errorf("ledger store: %w", err)
		}
	case config.BackendFile:
		if s.cursors, err = cursor.NewFileStore(filepath.Join(cfg.DataDir, "cursors.json")); err != nil {
			return nil, fmt.Errorf("cursor store: %w", err)
		}
		if watermarks, err = dedup.NewFileWatermarkStore(filepath.Join(cfg.DataDir, "watermarks.json")); err != nil {
			return nil, fmt.Errorf("watermark store: %w", err)
		}
		if ledgerStore, err = dedup.NewFileLedgerStore(filepath.Join(cfg.DataDir, "ledger.json")); err != nil {
			return nil, fmt.Errorf("ledger store: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	s.Gate = dedup.NewGate(watermarks)

	if s.Ledger, err = dedup.NewLedger(ctx, ledgerStore); err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	cache := processor.NewAssetCache(drive.Files, cfg.DataDir)
	proc := processor.New(drive.Files, cache, cfg.Drive.ResultsFolderID,
		processor.WithIgnorePatterns(cfg.Sync.IgnorePatterns...))

	rules := drivesync.Rules{
		WatchedFolderID:    cfg.Drive.WatchedFolderID,
		SettingsFolderID:   cfg.Drive.SettingsFolderID,
		ResultsFolderID:    cfg.Drive.ResultsFolderID,
		SettingsBeforeMime: cfg.Sync.SettingsBeforeMime,
	}
	s.Engine = drivesync.NewEngine(s.cursors, s.Ledger, drive.Changes, proc, rules)
	s.Pool = drivesync.NewPool(s.Engine, cfg.Sync.Workers, cfg.Sync.QueueSize)

	return s, nil
}

func (s *Services) Shutdown(ctx context.Context) error {
	if err := s.cursors.Close(); err != nil {
		return fmt.Errorf("close cursor store: %w", err)
	}
	if s.sqlDB != nil {
		if err := s.sqlDB.Close(); err != nil {
			return fmt.Errorf("close state db: %w", err)
		}
	}
	return nil
}
