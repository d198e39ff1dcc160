package xlimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"go.etcd.io/etcd/api/v3/mvccpb"
	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/omeyang/ratekit/pkg/resilience/xretry"
)

// ErrRuleKeyNotFound etcd 中不存在规则键
var ErrRuleKeyNotFound = errors.New("xlimit: rule key not found in etcd")

// etcdRuleClient etcd 规则提供器需要的最小客户端能力。
// 与 clientv3.KV/Watcher 的方法签名一致，便于注入 mock。
type etcdRuleClient interface {
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
	Watch(ctx context.Context, key string, opts ...clientv3.OpOption) clientv3.WatchChan
}

// 确保 *clientv3.Client 满足接口（编译时检查）
var _ etcdRuleClient = (*clientv3.Client)(nil)

// EtcdProvider 基于 etcd 的规则提供器。
//
// 全量规则以 JSON 存储在单个键下，结构与规则文件一致:
//
//	{"rules": [{"id": "search", "scope": "user", ...}]}
//
// 单键承载的取舍：规则集是一份整体配置，整体换装天然避免了
// 逐键更新时读到半新半旧规则集的问题。
//
// Watch 断开后按指数退避自动重建；遇到 compaction 从压缩后的
// 版本继续，期间丢失的中间版本无关紧要，规则集只关心最新值。
type EtcdProvider struct {
	client  etcdRuleClient
	key     string
	backoff xretry.BackoffPolicy
}

// EtcdProviderOption 配置 etcd 提供器
type EtcdProviderOption func(*EtcdProvider)

// WithEtcdBackoff 设置 Watch 重建的退避策略
func WithEtcdBackoff(backoff xretry.BackoffPolicy) EtcdProviderOption {
	return func(p *EtcdProvider) {
		if backoff != nil {
			p.backoff = backoff
		}
	}
}

// NewEtcdProvider 创建 etcd 规则提供器。
// 客户端由调用者管理生命周期。
func NewEtcdProvider(client etcdRuleClient, key string, opts ...EtcdProviderOption) (*EtcdProvider, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if key == "" {
		return nil, errors.New("xlimit: empty etcd rule key")
	}

	p := &EtcdProvider{
		client:  client,
		key:     key,
		backoff: xretry.NewExponentialBackoff(100*time.Millisecond, 30*time.Second),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Load 实现 RuleProvider 接口
func (p *EtcdProvider) Load(ctx context.Context) ([]Rule, error) {
	resp, err := p.client.Get(ctx, p.key)
	if err != nil {
		return nil, fmt.Errorf("xlimit: get rule key %s: %w", p.key, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRuleKeyNotFound, p.key)
	}
	return parseRuleDocument(resp.Kvs[0].Value)
}

// Watch 实现 RuleProvider 接口
func (p *EtcdProvider) Watch(ctx context.Context, fn func(rules []Rule, err error)) (func(), error) {
	watchCtx, cancel := context.WithCancel(ctx)

	go p.watchLoop(watchCtx, fn)

	return cancel, nil
}

// watchLoop 持续监听规则键，通道断开后退避重建。
func (p *EtcdProvider) watchLoop(ctx context.Context, fn func(rules []Rule, err error)) {
	var rev int64
	attempt := 0

	for {
		if ctx.Err() != nil {
			return
		}

		opts := []clientv3.OpOption{}
		if rev > 0 {
			opts = append(opts, clientv3.WithRev(rev))
		}
		wch := p.client.Watch(clientv3.WithRequireLeader(ctx), p.key, opts...)

	recv:
		for {
			select {
			case <-ctx.Done():
				return

			case resp, ok := <-wch:
				if !ok {
					break recv
				}
				if err := resp.Err(); err != nil {
					if errors.Is(err, rpctypes.ErrCompacted) {
						// 中间版本被压缩无关紧要，从压缩点之后继续
						rev = resp.CompactRevision
						break recv
					}
					fn(nil, fmt.Errorf("xlimit: watch rule key %s: %w", p.key, err))
					break recv
				}

				attempt = 0
				for _, ev := range resp.Events {
					p.handleEvent(ev, fn)
				}
				rev = resp.Header.Revision + 1
			}
		}

		if ctx.Err() != nil {
			return
		}

		// 通道关闭说明 Watch 断开，退避后重建
		attempt++
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.backoff.NextDelay(attempt)):
		}
	}
}

// handleEvent 处理单个 watch 事件
func (p *EtcdProvider) handleEvent(ev *clientv3.Event, fn func(rules []Rule, err error)) {
	switch ev.Type {
	case mvccpb.PUT:
		fn(parseRuleDocument(ev.Kv.Value))
	case mvccpb.DELETE:
		// 删除规则键视为加载失败，注册表保留上一份有效规则集
		fn(nil, fmt.Errorf("%w: %s (deleted)", ErrRuleKeyNotFound, p.key))
	}
}

// parseRuleDocument 解析规则 JSON 文档。
// 与文件提供器走同一条 koanf 解码路径，两个来源的规则字段语义一致。
func parseRuleDocument(data []byte) ([]Rule, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(data), kjson.Parser()); err != nil {
		return nil, fmt.Errorf("xlimit: parse rule document: %w", err)
	}

	var doc ruleDocument
	if err := k.Unmarshal("", &doc); err != nil {
		return nil, fmt.Errorf("xlimit: parse rule document: %w", err)
	}
	return doc.Rules, nil
}

var _ RuleProvider = (*EtcdProvider)(nil)
