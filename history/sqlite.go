// Package history 把每次推荐的种子与结果记录到 SQLite，便于离线回看与评估。
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/rushteam/tracksim/core"
)

// Entry 是一条推荐记录。
type Entry struct {
	RequestID string    `json:"request_id"`
	CreatedAt time.Time `json:"created_at"`
	SeedIDs   []int64   `json:"seed_ids"`
	TopK      int       `json:"top_k"`
	MoodTags  []string  `json:"mood_tags"`
	ResultIDs []int64   `json:"result_ids"`
}

// SQLiteStore 是基于 modernc.org/sqlite 的历史存储。
type SQLiteStore struct {
	db *sql.DB
}

// Open 打开（必要时创建）数据库；path 为 ":memory:" 时使用内存库。
func Open(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create history directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// 内存库每个连接各自独立
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS recommendations (
		request_id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		seed_ids   TEXT NOT NULL,       -- JSON array
		top_k      INTEGER NOT NULL,
		mood_tags  TEXT,                -- JSON array
		result_ids TEXT NOT NULL        -- JSON array, 按排名顺序
	);
	CREATE INDEX IF NOT EXISTS idx_recommendations_created ON recommendations(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record 写入一条记录，CreatedAt 为空时取当前时间。
func (s *SQLiteStore) Record(ctx context.Context, e Entry) error {
	if e.RequestID == "" {
		return core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidInput, "history entry without request id")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	seeds, err := json.Marshal(nonNil(e.SeedIDs))
	if err != nil {
		return err
	}
	tags, err := json.Marshal(e.MoodTags)
	if err != nil {
		return err
	}
	results, err := json.Marshal(nonNil(e.ResultIDs))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO recommendations (request_id, created_at, seed_ids, top_k, mood_tags, result_ids)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.RequestID, e.CreatedAt.UTC().Format(time.RFC3339Nano), string(seeds), e.TopK, string(tags), string(results),
	)
	if err != nil {
		return fmt.Errorf("insert recommendation: %w", err)
	}
	return nil
}

// Get 按 request id 读取，不存在时返回 NOT_FOUND。
func (s *SQLiteStore) Get(ctx context.Context, requestID string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT request_id, created_at, seed_ids, top_k, mood_tags, result_ids
		FROM recommendations WHERE request_id = ?`, requestID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeNotFound, "recommendation "+requestID+" not found")
	}
	return e, err
}

// Recent 按时间倒序返回最近 limit 条。
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT request_id, created_at, seed_ids, top_k, mood_tags, result_ids
		FROM recommendations ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recommendations: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// Close 关闭数据库。
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (*Entry, error) {
	var (
		e                       Entry
		created, seeds, results string
		tags                    sql.NullString
	)
	if err := sc.Scan(&e.RequestID, &created, &seeds, &e.TopK, &tags, &results); err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	e.CreatedAt = t
	if err := json.Unmarshal([]byte(seeds), &e.SeedIDs); err != nil {
		return nil, fmt.Errorf("decode seed_ids: %w", err)
	}
	if tags.Valid && tags.String != "" && tags.String != "null" {
		if err := json.Unmarshal([]byte(tags.String), &e.MoodTags); err != nil {
			return nil, fmt.Errorf("decode mood_tags: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(results), &e.ResultIDs); err != nil {
		return nil, fmt.Errorf("decode result_ids: %w", err)
	}
	return &e, nil
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
