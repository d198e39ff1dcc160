// Package xmongo 提供基于 MongoDB 的限流审计事件存储。
//
// Store 负责事件落库与查询: TTL 索引按保留期自动清理历史事件，
// 写入按批聚合，查询按规则分页。Sink 方法返回 xevent.Sink 适配器，
// 可直接挂到限流器的事件管线上（通常配合 xevent.NewAuditFilter
// 只落 denied/fail_open 事件）。
//
// 使用方式:
//
//	store, err := xmongo.NewStore(client, "ratekit", "decisions")
//	if err != nil {
//	    return err
//	}
//	if err := store.EnsureIndexes(ctx); err != nil {
//	    return err
//	}
//
//	sink := store.Sink()
//	audit, _ := xevent.NewAuditFilter(sink)
//	limiter, _ := xlimit.New(redisStore, xlimit.WithEventSink(audit))
package xmongo
