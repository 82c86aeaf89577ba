package database

import (
	"context"
	"database/sql"
	"fmt"

	"battle-service/config"

	_ "github.com/lib/pq"
)

type PostgresClient struct {
	db     *sql.DB
	config *config.DBConfig
}

func NewPostgresClient(cfg *config.DBConfig) (*PostgresClient, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{
		db:     db,
		config: cfg,
	}, nil
}

func (c *PostgresClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *PostgresClient) GetDB() *sql.DB {
	return c.db
}

func (c *PostgresClient) InitSchema(ctx context.Context) error {
	createQuizzesTable := `
		CREATE TABLE IF NOT EXISTS quizzes (
			id VARCHAR(255) PRIMARY KEY,
			field_slug VARCHAR(255) NOT NULL,
			quiz_type VARCHAR(50) NOT NULL DEFAULT 'single_choice',
			question TEXT NOT NULL,
			options JSONB NOT NULL DEFAULT '[]',
			answer TEXT NOT NULL,
			explanation TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_quizzes_field_slug ON quizzes(field_slug);
		CREATE INDEX IF NOT EXISTS idx_quizzes_quiz_type ON quizzes(quiz_type);
	`

	if _, err := c.db.ExecContext(ctx, createQuizzesTable); err != nil {
		return fmt.Errorf("failed to create quizzes table: %w", err)
	}

	return nil
}
