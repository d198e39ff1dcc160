// Package storageopt 提供审计存储子包共享的工具。
//
// 仅供 pkg/storage 下的子包（xmongo、xclickhouse）使用:
// 健康检查超时、原子统计计数器、分页参数校验和慢查询检测。
package storageopt
