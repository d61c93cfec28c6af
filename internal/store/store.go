package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Adam5647/BaselineAnalysis/internal/model"

	_ "modernc.org/sqlite"
)

// Store keeps the history of generated insights and dataset loads.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	// :memory: databases are per connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS insights (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		subject TEXT NOT NULL,
		prompt_hash TEXT NOT NULL,
		model TEXT NOT NULL DEFAULT '',
		prompt TEXT NOT NULL,
		response TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_insights_subject ON insights(kind, subject);

	CREATE TABLE IF NOT EXISTS dataset_loads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL,
		hash TEXT NOT NULL,
		rows INTEGER NOT NULL DEFAULT 0,
		loaded_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// InsertInsight stores a generated insight. A zero CreatedAt is set to now.
func (s *Store) InsertInsight(in model.Insight) (int64, error) {
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.Exec(
		`INSERT INTO insights (kind, subject, prompt_hash, model, prompt, response, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.Kind, in.Subject, in.PromptHash, in.Model, in.Prompt, in.Response, in.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListInsights returns insights newest first. Empty kind or subject means no
// filtering on that field. Prompts are omitted.
func (s *Store) ListInsights(kind model.InsightKind, subject string) ([]model.Insight, error) {
	query := `SELECT id, kind, subject, prompt_hash, model, response, created_at FROM insights WHERE 1=1`
	var args []any
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, kind)
	}
	if subject != "" {
		query += ` AND subject = ?`
		args = append(args, subject)
	}
	query += ` ORDER BY id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	insights := []model.Insight{}
	for rows.Next() {
		var in model.Insight
		if err := rows.Scan(&in.ID, &in.Kind, &in.Subject, &in.PromptHash, &in.Model, &in.Response, &in.CreatedAt); err != nil {
			return nil, err
		}
		insights = append(insights, in)
	}
	return insights, rows.Err()
}

// GetInsight returns an insight with its prompt, or nil if id is unknown.
func (s *Store) GetInsight(id int64) (*model.Insight, error) {
	var in model.Insight
	err := s.db.QueryRow(
		`SELECT id, kind, subject, prompt_hash, model, prompt, response, created_at
		 FROM insights WHERE id = ?`, id,
	).Scan(&in.ID, &in.Kind, &in.Subject, &in.PromptHash, &in.Model, &in.Prompt, &in.Response, &in.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &in, nil
}

// RecordDatasetLoad appends an entry to the dataset load ledger.
func (s *Store) RecordDatasetLoad(l model.DatasetLoad) (int64, error) {
	if l.LoadedAt.IsZero() {
		l.LoadedAt = time.Now().UTC()
	}
	res, err := s.db.Exec(
		`INSERT INTO dataset_loads (path, hash, rows, loaded_at) VALUES (?, ?, ?, ?)`,
		l.Path, l.Hash, l.Rows, l.LoadedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// LatestDatasetLoad returns the most recent ledger entry, or nil if none.
func (s *Store) LatestDatasetLoad() (*model.DatasetLoad, error) {
	var l model.DatasetLoad
	err := s.db.QueryRow(
		`SELECT id, path, hash, rows, loaded_at FROM dataset_loads ORDER BY id DESC LIMIT 1`,
	).Scan(&l.ID, &l.Path, &l.Hash, &l.Rows, &l.LoadedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// InsightCount returns the number of stored insights.
func (s *Store) InsightCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM insights`).Scan(&count)
	return count, err
}
