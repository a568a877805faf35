// Package storage 提供中继服务的持久化存储。
// PostgreSQL 作为报告归档库，Redis 作为归档失败时的溢出暂存队列。
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/oriys/faultline/internal/config"
	"github.com/oriys/faultline/internal/domain"
)

// schema 定义报告归档表。
// payload 列保存完整的报告 JSON，索引列用于按服务/时间检索。
const schema = `
CREATE TABLE IF NOT EXISTS reports (
	event_id   TEXT PRIMARY KEY,
	service    TEXT NOT NULL,
	logger     TEXT NOT NULL,
	level      TEXT NOT NULL,
	message    TEXT NOT NULL,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_reports_service_created
	ON reports (service, created_at DESC);
`

// PostgresStore 是基于 PostgreSQL 的报告归档库。
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore 建立数据库连接并初始化归档表。
func NewPostgresStore(cfg config.PostgresConfig) (*PostgresStore, error) {
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close 关闭数据库连接池。
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Ping 检查数据库连接是否可用，用于就绪探针。
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ArchiveReport 归档一份报告。
// 同一 event_id 重复归档是幂等的（NATS 重投递场景）。
func (s *PostgresStore) ArchiveReport(ctx context.Context, rep *domain.Report) error {
	payload, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reports (event_id, service, logger, level, message, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id) DO NOTHING`,
		rep.EventID, rep.ServiceName, rep.Logger, string(rep.Level), rep.Message, payload, rep.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to archive report: %w", err)
	}
	return nil
}

// GetReport 按 event_id 获取归档报告。
func (s *PostgresStore) GetReport(ctx context.Context, eventID string) (*domain.Report, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM reports WHERE event_id = $1`, eventID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query report: %w", err)
	}

	rep := &domain.Report{}
	if err := json.Unmarshal(payload, rep); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return rep, nil
}

// ListReports 按服务分页列出归档报告，按时间倒序。
// service 为空时列出全部服务，返回报告列表与总数。
func (s *PostgresStore) ListReports(ctx context.Context, service string, offset, limit int) ([]*domain.Report, int, error) {
	if limit <= 0 {
		limit = 50
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM reports WHERE ($1 = '' OR service = $1)`, service).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count reports: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM reports
		WHERE ($1 = '' OR service = $1)
		ORDER BY created_at DESC
		OFFSET $2 LIMIT $3`, service, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []*domain.Report
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, 0, fmt.Errorf("failed to scan report: %w", err)
		}
		rep := &domain.Report{}
		if err := json.Unmarshal(payload, rep); err != nil {
			continue // 损坏的归档行不中断列表
		}
		reports = append(reports, rep)
	}
	return reports, total, rows.Err()
}

// DeleteOlderThan 删除早于截止时间的归档报告，返回删除行数。
// 保留期清理任务使用。
func (s *PostgresStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM reports WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired reports: %w", err)
	}
	return res.RowsAffected()
}
