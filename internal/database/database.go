package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/seblemaguer/marytts-http-server/internal/logger"
	_ "modernc.org/sqlite"
)

// timeLayout 定宽，保证按字符串排序即按时间排序。
const timeLayout = "2006-01-02 15:04:05.000000000"

// DB 是合成记录使用的 SQLite 连接。
type DB struct {
	*sql.DB
	path string
}

// Run 是一次合成调用的记录。
type Run struct {
	ID        string
	StartedAt time.Time
	Voice     string
	Phones    int
	Status    string // success / failed
	ErrorKind string
	ExitCode  int
	Elapsed   time.Duration
}

// Open 打开或创建数据库。
// dbPath 为空时使用 ~/.htsengine/runs.db。
func Open(dbPath string) (*DB, error) {
	if dbPath == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			dbPath = filepath.Join(home, ".htsengine", "runs.db")
		} else {
			dbPath = "./runs.db"
		}
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("创建数据库目录失败: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	// 多个合成调用可能同时写入
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("设置 WAL 模式失败: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("设置 busy_timeout 失败: %w", err)
	}

	logger.Infof("[database] 数据库已打开: %s", dbPath)

	return &DB{DB: db, path: dbPath}, nil
}

// Path 返回数据库文件路径。
func (db *DB) Path() string {
	return db.path
}

// Migrate 创建表和索引。
func (db *DB) Migrate() error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS synthesis_runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		voice TEXT DEFAULT '',
		phones INTEGER DEFAULT 0,
		status TEXT NOT NULL,
		error_kind TEXT DEFAULT '',
		exit_code INTEGER DEFAULT 0,
		elapsed_ms INTEGER DEFAULT 0
	)`)
	if err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_synthesis_runs_started ON synthesis_runs(started_at)`); err != nil {
		logger.Warnf("[database] 创建索引失败: %v", err)
	}

	logger.Debugf("[database] 数据库迁移完成")
	return nil
}

// RecordRun 写入一条合成记录。
func (db *DB) RecordRun(r Run) error {
	_, err := db.Exec(
		`INSERT INTO synthesis_runs (id, started_at, voice, phones, status, error_kind, exit_code, elapsed_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.UTC().Format(timeLayout), r.Voice, r.Phones,
		r.Status, r.ErrorKind, r.ExitCode, r.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("写入合成记录失败: %w", err)
	}
	return nil
}

// RecentRuns 按时间倒序返回最近的合成记录。
func (db *DB) RecentRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(
		`SELECT id, started_at, voice, phones, status, error_kind, exit_code, elapsed_ms
		 FROM synthesis_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询合成记录失败: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r         Run
			startedAt string
			elapsedMs int64
		)
		if err := rows.Scan(&r.ID, &startedAt, &r.Voice, &r.Phones, &r.Status, &r.ErrorKind, &r.ExitCode, &elapsedMs); err != nil {
			return nil, fmt.Errorf("读取合成记录失败: %w", err)
		}
		r.StartedAt, _ = time.Parse(timeLayout, startedAt)
		r.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close 关闭数据库连接。
func (db *DB) Close() error {
	if db.DB != nil {
		return db.DB.Close()
	}
	return nil
}
