package xmongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/omeyang/ratekit/internal/storageopt"
	"github.com/omeyang/ratekit/pkg/observability/xevent"
)

// =============================================================================
// 内部接口 - 依赖注入与测试
// =============================================================================

// clientOperations 客户端级操作，*mongo.Client 实现此接口
type clientOperations interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
}

// collectionOperations 集合级操作，通过 collectionAdapter 适配 *mongo.Collection
type collectionOperations interface {
	CountDocuments(ctx context.Context, filter any, opts ...options.Lister[options.CountOptions]) (int64, error)
	Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (*mongo.Cursor, error)
	InsertMany(ctx context.Context, documents []any, opts ...options.Lister[options.InsertManyOptions]) (*mongo.InsertManyResult, error)
	CreateIndexes(ctx context.Context, models []mongo.IndexModel) ([]string, error)
}

type collectionAdapter struct {
	coll *mongo.Collection
}

func (a *collectionAdapter) CountDocuments(ctx context.Context, filter any, opts ...options.Lister[options.CountOptions]) (int64, error) {
	return a.coll.CountDocuments(ctx, filter, opts...)
}

func (a *collectionAdapter) Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (*mongo.Cursor, error) {
	return a.coll.Find(ctx, filter, opts...)
}

func (a *collectionAdapter) InsertMany(ctx context.Context, documents []any, opts ...options.Lister[options.InsertManyOptions]) (*mongo.InsertManyResult, error) {
	return a.coll.InsertMany(ctx, documents, opts...)
}

func (a *collectionAdapter) CreateIndexes(ctx context.Context, models []mongo.IndexModel) ([]string, error) {
	return a.coll.Indexes().CreateMany(ctx, models)
}

var _ clientOperations = (*mongo.Client)(nil)

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

// PageOptions 分页查询选项
type PageOptions struct {
	// Page 页码，从 1 开始
	Page int64
	// PageSize 每页大小，上限 1000
	PageSize int64
}

// PageResult 分页查询结果。
// Total 来自独立的 COUNT 查询，高并发写入下与 Events 实际数量
// 可能有少量偏差，审计展示场景可以接受。
type PageResult struct {
	Events     []xevent.Event
	Total      int64
	Page       int64
	PageSize   int64
	TotalPages int64
}

// Store 基于 MongoDB 的审计事件存储
type Store struct {
	client    clientOperations
	coll      collectionOperations
	opts      *storeOptions
	closed    atomic.Bool
	health    storageopt.HealthCounter
	writes    storageopt.WriteCounter
	queries   storageopt.QueryCounter
	slowQuery *storageopt.SlowQueryDetector[string]
}

// NewStore 创建审计事件存储。
// 客户端由调用者管理生命周期，Close 不会断开连接。
func NewStore(client *mongo.Client, database, collection string, opts ...StoreOption) (*Store, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if database == "" {
		return nil, ErrEmptyDatabase
	}
	if collection == "" {
		return nil, ErrEmptyCollection
	}

	options := defaultStoreOptions()
	for _, opt := range opts {
		opt(options)
	}

	coll := client.Database(database).Collection(collection)
	return newStore(client, &collectionAdapter{coll: coll}, options), nil
}

func newStore(client clientOperations, coll collectionOperations, opts *storeOptions) *Store {
	s := &Store{
		client: client,
		coll:   coll,
		opts:   opts,
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

// EnsureIndexes 建立审计集合需要的索引:
// at 上的 TTL 索引按保留期清理历史事件，rule_id+at 支撑按规则查询。
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}

	ttlSeconds := int32(s.opts.retention / time.Second)
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(ttlSeconds),
		},
		{
			Keys: bson.D{{Key: "rule_id", Value: 1}, {Key: "at", Value: -1}},
		},
	}

	if _, err := s.coll.CreateIndexes(ctx, models); err != nil {
		return fmt.Errorf("xmongo: create indexes: %w", err)
	}
	return nil
}

// InsertEvents 批量写入审计事件。
// 超过批次上限时分批提交；部分批次失败不中断后续批次，
// 错误聚合返回，已成功的批次保持写入。
func (s *Store) InsertEvents(ctx context.Context, events []xevent.Event) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if len(events) == 0 {
		return nil
	}

	var errs []error
	for start := 0; start < len(events); start += s.opts.insertBatchSize {
		end := min(start+s.opts.insertBatchSize, len(events))

		docs := make([]any, 0, end-start)
		for _, e := range events[start:end] {
			docs = append(docs, toDocument(e))
		}

		if _, err := s.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false)); err != nil {
			s.writes.IncError()
			errs = append(errs, fmt.Errorf("xmongo: insert batch [%d:%d]: %w", start, end, err))
			continue
		}
		s.writes.IncBatch(end - start)
	}
	return errors.Join(errs...)
}

// QueryByRule 按规则分页查询审计事件，按时间倒序。
func (s *Store) QueryByRule(ctx context.Context, ruleID string, page PageOptions) (*PageResult, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if page.PageSize > maxPageSize {
		page.PageSize = maxPageSize
	}

	offset, err := storageopt.ValidatePagination(page.Page, page.PageSize)
	if err != nil {
		return nil, err
	}

	s.queries.IncQuery()
	start := time.Now()
	defer func() {
		s.slowQuery.Observe(ctx, "QueryByRule", time.Since(start))
	}()

	filter := bson.D{{Key: "rule_id", Value: ruleID}}

	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		s.queries.IncQueryError()
		return nil, fmt.Errorf("xmongo: count events: %w", err)
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "at", Value: -1}}).
		SetSkip(offset).
		SetLimit(page.PageSize)

	cursor, err := s.coll.Find(ctx, filter, findOpts)
	if err != nil {
		s.queries.IncQueryError()
		return nil, fmt.Errorf("xmongo: find events: %w", err)
	}

	var docs []eventDocument
	if err := cursor.All(ctx, &docs); err != nil {
		s.queries.IncQueryError()
		return nil, fmt.Errorf("xmongo: decode events: %w", err)
	}

	events := make([]xevent.Event, 0, len(docs))
	for _, d := range docs {
		events = append(events, fromDocument(d))
	}

	return &PageResult{
		Events:     events,
		Total:      total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: storageopt.TotalPages(total, page.PageSize),
	}, nil
}

// Health 通过 Ping 主节点检测连接状态
func (s *Store) Health(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}

	s.health.IncPing()
	ctx, cancel := storageopt.HealthContext(ctx, s.opts.healthTimeout)
	defer cancel()

	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		s.health.IncPingError()
		return fmt.Errorf("xmongo: health: %w", err)
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

// Close 标记存储关闭。客户端由调用者负责断开。
func (s *Store) Close(_ context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	return nil
}
