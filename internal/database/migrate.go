// Package database はデータベース接続・到達確認・マイグレーション管理を提供する。
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrateLogger はgolang-migrateの進捗ログをslogに流す。
type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...any) {
	slog.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("component", "migrate"))
}

func (migrateLogger) Verbose() bool { return false }

// NewMigrator は埋め込みのSQLファイルを読むmigrateインスタンスを生成する。
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	m.Log = migrateLogger{}

	return m, nil
}

// RunMigrations は未適用のマイグレーションをすべて適用し、適用後のバージョンをログに残す。
// すでに最新の場合はエラーなしで返る。
// 前回の適用が途中で止まりdirtyになっている場合は何も適用せずにエラーを返す。
func RunMigrations(databaseURL string) error {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	err = m.Up()
	var dirty migrate.ErrDirty
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		slog.Debug("database schema is up to date")
	case errors.As(err, &dirty):
		return fmt.Errorf("schema is dirty at version %d, fix it manually and force the version: %w", dirty.Version, err)
	case err != nil:
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if version, _, err := m.Version(); err == nil {
		slog.Info("database schema ready", slog.Uint64("version", uint64(version)))
	}
	return nil
}

// MigrationSetup はCheckerの準備処理としてRunMigrationsを実行する関数を返す。
func MigrationSetup(databaseURL string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return RunMigrations(databaseURL)
	}
}
