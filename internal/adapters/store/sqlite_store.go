package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/inboxagents/mail-gateway/internal/core"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLiteStore is a SQLite implementation of the ConfigStore interface.
// Configs are stored as one JSON document per agent.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (and if needed initializes) a SQLite-backed store.
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS agent_security_config (
			agent_name TEXT PRIMARY KEY,
			config TEXT NOT NULL,
			updated_at TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Get retrieves the configuration for an agent.
func (s *SQLiteStore) Get(ctx context.Context, agentName string) (*core.AgentSecurityConfig, error) {
	var raw string

	err := s.db.QueryRowContext(ctx, `
		SELECT config
		FROM agent_security_config
		WHERE agent_name = ?
	`, agentName).Scan(&raw)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to query config: %w", err)
	}

	var cfg core.AgentSecurityConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode stored config: %w", err)
	}

	return &cfg, nil
}

// Set upserts the configuration for config.AgentName.
func (s *SQLiteStore) Set(ctx context.Context, config *core.AgentSecurityConfig) error {
	raw, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO agent_security_config (agent_name, config, updated_at)
		VALUES (?, ?, ?)
	`, config.AgentName, string(raw), time.Now().Format(time.RFC3339))

	if err != nil {
		return fmt.Errorf("failed to store config: %w", err)
	}

	return nil
}

// List returns all stored configurations ordered by agent name.
func (s *SQLiteStore) List(ctx context.Context) ([]*core.AgentSecurityConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT config
		FROM agent_security_config
		ORDER BY agent_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list configs: %w", err)
	}
	defer rows.Close()

	var out []*core.AgentSecurityConfig
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan config row: %w", err)
		}
		var cfg core.AgentSecurityConfig
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			s.logger.Warn("Skipping undecodable config row", zap.Error(err))
			continue
		}
		out = append(out, &cfg)
	}

	return out, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
