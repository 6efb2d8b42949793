package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/inboxagents/mail-gateway/internal/core"
	"go.uber.org/zap"
)

// MySQLStore is a MySQL implementation of the ConfigStore interface.
type MySQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMySQLStore opens a MySQL-backed store, verifying connectivity up front.
func NewMySQLStore(dsn string, logger *zap.Logger) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS agent_security_config (
			agent_name VARCHAR(255) PRIMARY KEY,
			config JSON NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &MySQLStore{db: db, logger: logger}, nil
}

// Get retrieves the configuration for an agent.
func (s *MySQLStore) Get(ctx context.Context, agentName string) (*core.AgentSecurityConfig, error) {
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
func (s *MySQLStore) Set(ctx context.Context, config *core.AgentSecurityConfig) error {
	raw, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agent_security_config (agent_name, config)
		VALUES (?, ?)
		ON DUPLICATE KEY UPDATE
			config = VALUES(config)
	`, config.AgentName, string(raw))

	if err != nil {
		return fmt.Errorf("failed to store config: %w", err)
	}

	return nil
}

// List returns all stored configurations ordered by agent name.
func (s *MySQLStore) List(ctx context.Context) ([]*core.AgentSecurityConfig, error) {
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
func (s *MySQLStore) Close() error {
	return s.db.Close()
}
