package database

import (
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MemoryPath keeps the catalog in process memory; nothing survives a restart.
const MemoryPath = ":memory:"

type DB struct {
	conn   *sql.DB
	logger zerolog.Logger
}

type Config struct {
	SQLitePath string
	Logger     zerolog.Logger
}

func NewDB(config Config) (*DB, error) {
	path := config.SQLitePath
	if path == "" {
		path = MemoryPath
	}

	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// every connection to :memory: is a separate database
	if path == MemoryPath {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn, logger: config.Logger}

	if err := NewMigrator(conn, config.Logger).Run(migrationFiles, "migrations"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Conn() *sql.DB {
	return db.conn
}

// MigrationState reports whether one bundled migration has been applied.
type MigrationState struct {
	Version string
	Name    string
	Applied bool
}

func (db *DB) MigrationStatus() ([]MigrationState, error) {
	m := NewMigrator(db.conn, db.logger)
	if err := m.Initialize(); err != nil {
		return nil, err
	}
	applied, err := m.GetAppliedMigrations()
	if err != nil {
		return nil, err
	}
	migrations, err := m.LoadMigrations(migrationFiles, "migrations")
	if err != nil {
		return nil, err
	}

	states := make([]MigrationState, len(migrations))
	for i, mig := range migrations {
		states[i] = MigrationState{Version: mig.Version, Name: mig.Name, Applied: applied[mig.Version]}
	}
	return states, nil
}
