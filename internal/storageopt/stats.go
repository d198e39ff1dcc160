package storageopt

import "sync/atomic"

// HealthCounter 健康检查统计
type HealthCounter struct {
	pings  atomic.Int64
	errors atomic.Int64
}

func (h *HealthCounter) IncPing()          { h.pings.Add(1) }
func (h *HealthCounter) IncPingError()     { h.errors.Add(1) }
func (h *HealthCounter) Pings() int64      { return h.pings.Load() }
func (h *HealthCounter) PingErrors() int64 { return h.errors.Load() }

// WriteCounter 写入统计。审计存储以批量写为主，
// 按批次和事件两个粒度计数。
type WriteCounter struct {
	batches atomic.Int64
	events  atomic.Int64
	errors  atomic.Int64
}

// IncBatch 记录一次批量写入及其包含的事件数
func (w *WriteCounter) IncBatch(events int) {
	w.batches.Add(1)
	w.events.Add(int64(events))
}

func (w *WriteCounter) IncError()          { w.errors.Add(1) }
func (w *WriteCounter) Batches() int64     { return w.batches.Load() }
func (w *WriteCounter) Events() int64      { return w.events.Load() }
func (w *WriteCounter) WriteErrors() int64 { return w.errors.Load() }

// QueryCounter 查询统计
type QueryCounter struct {
	queries atomic.Int64
	errors  atomic.Int64
	slow    atomic.Int64
}

func (q *QueryCounter) IncQuery()          { q.queries.Add(1) }
func (q *QueryCounter) IncQueryError()     { q.errors.Add(1) }
func (q *QueryCounter) IncSlowQuery()      { q.slow.Add(1) }
func (q *QueryCounter) Queries() int64     { return q.queries.Load() }
func (q *QueryCounter) QueryErrors() int64 { return q.errors.Load() }
func (q *QueryCounter) SlowQueries() int64 { return q.slow.Load() }
