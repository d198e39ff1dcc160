package xclickhouse

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/omeyang/ratekit/internal/storageopt"
	"github.com/omeyang/ratekit/pkg/observability/xevent"
)

// =============================================================================
// 内部接口 - 依赖注入与测试
// =============================================================================

// connOperations 连接级操作，driver.Conn 实现此接口
type connOperations interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, query string, args ...any) (driver.Rows, error)
	Exec(ctx context.Context, query string, args ...any) error
	PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error)
}

var _ connOperations = (driver.Conn)(nil)

// tableNamePattern 合法表名: 标识符或 db.table 形式，防止 SQL 拼接注入
var tableNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*)?$`)

func validateTableName(table string) error {
	if !tableNamePattern.MatchString(table) {
		return fmt.Errorf("%w: %q", ErrInvalidTableName, table)
	}
	return nil
}

// =============================================================================
// Store
// =============================================================================

// Stats 审计存储统计
type Stats struct {
	Pings        int64
	PingErrors   int64
	Batches      int64
	EventsStored int64
	WriteErrors  int64
	Queries      int64
	QueryErrors  int64
	SlowQueries  int64
}

// Offender 规则下按拒绝次数排序的调用方
type Offender struct {
	Key     string
	Denials uint64
}

// Store 基于 ClickHouse 的审计事件存储。
// 连接由调用者管理生命周期，Close 不会断开连接。
type Store struct {
	conn      connOperations
	table     string
	opts      *storeOptions
	closed    atomic.Bool
	health    storageopt.HealthCounter
	writes    storageopt.WriteCounter
	queries   storageopt.QueryCounter
	slowQuery *storageopt.SlowQueryDetector[string]
}

// NewStore 创建审计事件存储
func NewStore(conn driver.Conn, table string, opts ...StoreOption) (*Store, error) {
	if conn == nil {
		return nil, ErrNilConn
	}
	if err := validateTableName(table); err != nil {
		return nil, err
	}

	options := defaultStoreOptions()
	for _, opt := range opts {
		opt(options)
	}
	return newStore(conn, table, options), nil
}

func newStore(conn connOperations, table string, opts *storeOptions) *Store {
	s := &Store{
		conn:  conn,
		table: table,
		opts:  opts,
	}
	s.slowQuery = storageopt.NewSlowQueryDetector(opts.slowQueryThreshold,
		func(ctx context.Context, op string, dur time.Duration) {
			opts.logger.Warn(ctx, "slow audit query",
				slog.String("operation", op),
				slog.Duration("duration", dur),
			)
		}, &s.queries)
	return s
}

// EnsureTable 建立审计事件表。
// MergeTree 按 (rule_id, at) 排序，规则维度的时间范围查询走主键。
func (s *Store) EnsureTable(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}

	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			event_id            String,
			correlation_id      String,
			kind                LowCardinality(String),
			rule_id             LowCardinality(String),
			key                 String,
			scope               LowCardinality(String),
			allowed             Bool,
			retry_after_seconds Float64,
			remaining           Int32,
			limit_value         Int64,
			fail_open           Bool,
			latency_micros      Int64,
			node                LowCardinality(String),
			at                  DateTime64(3),
			repeats             UInt64
		) ENGINE = MergeTree()
		ORDER BY (rule_id, at)`, s.table)

	if err := s.conn.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("xclickhouse: create table: %w", err)
	}
	return nil
}

// InsertEvents 批量写入审计事件。
// 单个批次提交，追加失败或发送失败时 Abort 整批并返回错误。
func (s *Store) InsertEvents(ctx context.Context, events []xevent.Event) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if len(events) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO "+s.table)
	if err != nil {
		s.writes.IncError()
		return fmt.Errorf("xclickhouse: prepare batch: %w", err)
	}

	for i, e := range events {
		// 大批次追加途中响应取消
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				s.abortBatch(ctx, batch)
				s.writes.IncError()
				return fmt.Errorf("xclickhouse: append events: %w", err)
			}
		}
		row := toRow(e)
		if err := batch.AppendStruct(&row); err != nil {
			s.abortBatch(ctx, batch)
			s.writes.IncError()
			return fmt.Errorf("xclickhouse: append event %d: %w", i, err)
		}
	}

	if err := batch.Send(); err != nil {
		s.writes.IncError()
		return fmt.Errorf("xclickhouse: send batch: %w", err)
	}
	s.writes.IncBatch(len(events))
	return nil
}

func (s *Store) abortBatch(ctx context.Context, batch driver.Batch) {
	if err := batch.Abort(); err != nil {
		s.opts.logger.Warn(ctx, "abort audit batch failed", slog.Any("error", err))
	}
}

// TopOffenders 返回规则下 since 之后被拒绝次数最多的调用方 key。
// limit 超出上限或非正数时回落到默认值。
func (s *Store) TopOffenders(ctx context.Context, ruleID string, since time.Time, limit int) ([]Offender, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = defaultTopOffendersLimit
	}
	if limit > maxTopOffendersLimit {
		limit = maxTopOffendersLimit
	}

	s.queries.IncQuery()
	start := time.Now()
	defer func() {
		s.slowQuery.Observe(ctx, "TopOffenders", time.Since(start))
	}()

	query := fmt.Sprintf(`
		SELECT key, count() AS denials
		FROM %s
		WHERE rule_id = ? AND allowed = false AND at >= ?
		GROUP BY key
		ORDER BY denials DESC
		LIMIT %d`, s.table, limit)

	rows, err := s.conn.Query(ctx, query, ruleID, since)
	if err != nil {
		s.queries.IncQueryError()
		return nil, fmt.Errorf("xclickhouse: top offenders: %w", err)
	}
	defer rows.Close()

	var offenders []Offender
	for rows.Next() {
		var o Offender
		if err := rows.Scan(&o.Key, &o.Denials); err != nil {
			s.queries.IncQueryError()
			return nil, fmt.Errorf("xclickhouse: scan offender: %w", err)
		}
		offenders = append(offenders, o)
	}
	if err := rows.Err(); err != nil {
		s.queries.IncQueryError()
		return nil, fmt.Errorf("xclickhouse: iterate offenders: %w", err)
	}
	return offenders, nil
}

// DeleteBefore 删除 cutoff 之前的历史事件。
// ALTER DELETE 是异步 mutation，提交成功不代表数据立即消失。
func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) error {
	if s.closed.Load() {
		return ErrClosed
	}

	query := fmt.Sprintf("ALTER TABLE %s DELETE WHERE at < ?", s.table)
	if err := s.conn.Exec(ctx, query, cutoff); err != nil {
		return fmt.Errorf("xclickhouse: delete before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return nil
}

// Health 通过 Ping 检测连接状态
func (s *Store) Health(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}

	s.health.IncPing()
	ctx, cancel := storageopt.HealthContext(ctx, s.opts.healthTimeout)
	defer cancel()

	if err := s.conn.Ping(ctx); err != nil {
		s.health.IncPingError()
		return fmt.Errorf("xclickhouse: health: %w", err)
	}
	return nil
}

// Stats 返回存储统计
func (s *Store) Stats() Stats {
	return Stats{
		Pings:        s.health.Pings(),
		PingErrors:   s.health.PingErrors(),
		Batches:      s.writes.Batches(),
		EventsStored: s.writes.Events(),
		WriteErrors:  s.writes.WriteErrors(),
		Queries:      s.queries.Queries(),
		QueryErrors:  s.queries.QueryErrors(),
		SlowQueries:  s.queries.SlowQueries(),
	}
}

// Close 标记存储关闭。连接由调用者负责断开。
func (s *Store) Close(_ context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	return nil
}
