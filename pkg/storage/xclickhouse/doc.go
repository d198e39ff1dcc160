// Package xclickhouse 提供基于 ClickHouse 的限流审计事件存储。
//
// 与 xmongo 相比，ClickHouse 面向大规模判定流水的分析场景:
// 批量写入吞吐高，TopOffenders 这类聚合查询在列存上开销低。
// 历史数据由 RetentionJob 周期清理，多实例部署时通过 xdlock
// 保证同一时刻只有一个实例执行清理。
//
// 使用方式:
//
//	store, err := xclickhouse.NewStore(conn, "ratekit_decisions")
//	if err != nil {
//	    return err
//	}
//	if err := store.EnsureTable(ctx); err != nil {
//	    return err
//	}
//
//	job := xclickhouse.NewRetentionJob(store, locker,
//	    xclickhouse.WithRetentionPeriod(30*24*time.Hour))
//	job.Start()
//	defer job.Stop()
package xclickhouse
