package xlimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pb "go.etcd.io/etcd/api/v3/etcdserverpb"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// fakeEtcdClient 通道驱动的 etcd 客户端测试替身
type fakeEtcdClient struct {
	mu      sync.Mutex
	value   []byte
	getErr  error
	watchCh chan clientv3.WatchResponse
}

func newFakeEtcdClient(value string) *fakeEtcdClient {
	return &fakeEtcdClient{
		value:   []byte(value),
		watchCh: make(chan clientv3.WatchResponse, 8),
	}
}

func (f *fakeEtcdClient) Get(_ context.Context, key string, _ ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.value == nil {
		return &clientv3.GetResponse{}, nil
	}
	return &clientv3.GetResponse{
		Kvs: []*mvccpb.KeyValue{{Key: []byte(key), Value: f.value}},
	}, nil
}

func (f *fakeEtcdClient) Watch(_ context.Context, _ string, _ ...clientv3.OpOption) clientv3.WatchChan {
	return f.watchCh
}

func (f *fakeEtcdClient) emitPut(value string, revision int64) {
	f.watchCh <- clientv3.WatchResponse{
		Header: pb.ResponseHeader{Revision: revision},
		Events: []*clientv3.Event{{
			Type: mvccpb.PUT,
			Kv:   &mvccpb.KeyValue{Value: []byte(value), ModRevision: revision},
		}},
	}
}

func (f *fakeEtcdClient) emitDelete(revision int64) {
	f.watchCh <- clientv3.WatchResponse{
		Header: pb.ResponseHeader{Revision: revision},
		Events: []*clientv3.Event{{
			Type: mvccpb.DELETE,
			Kv:   &mvccpb.KeyValue{ModRevision: revision},
		}},
	}
}

const ruleDoc = `{"rules":[{"id":"search","scope":"user","capacity":100,"refill_per_minute":600}]}`

func TestNewEtcdProvider(t *testing.T) {
	t.Run("nil client", func(t *testing.T) {
		_, err := NewEtcdProvider(nil, "/ratekit/rules")
		assert.ErrorIs(t, err, ErrNilClient)
	})

	t.Run("empty key", func(t *testing.T) {
		_, err := NewEtcdProvider(newFakeEtcdClient(ruleDoc), "")
		assert.Error(t, err)
	})
}

func TestEtcdProvider_Load(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		p, err := NewEtcdProvider(newFakeEtcdClient(ruleDoc), "/ratekit/rules")
		require.NoError(t, err)

		rules, err := p.Load(context.Background())
		require.NoError(t, err)
		require.Len(t, rules, 1)
		assert.Equal(t, "search", rules[0].ID)
		assert.Equal(t, int64(100), rules[0].Capacity)
	})

	t.Run("missing key", func(t *testing.T) {
		client := newFakeEtcdClient(ruleDoc)
		client.value = nil

		p, err := NewEtcdProvider(client, "/ratekit/rules")
		require.NoError(t, err)

		_, err = p.Load(context.Background())
		assert.ErrorIs(t, err, ErrRuleKeyNotFound)
	})

	t.Run("malformed document", func(t *testing.T) {
		p, err := NewEtcdProvider(newFakeEtcdClient("{not json"), "/ratekit/rules")
		require.NoError(t, err)

		_, err = p.Load(context.Background())
		assert.Error(t, err)
	})

	t.Run("get error", func(t *testing.T) {
		client := newFakeEtcdClient(ruleDoc)
		client.getErr = assert.AnError

		p, err := NewEtcdProvider(client, "/ratekit/rules")
		require.NoError(t, err)

		_, err = p.Load(context.Background())
		assert.ErrorIs(t, err, assert.AnError)
	})
}

func TestEtcdProvider_Watch(t *testing.T) {
	client := newFakeEtcdClient(ruleDoc)

	p, err := NewEtcdProvider(client, "/ratekit/rules")
	require.NoError(t, err)

	type callback struct {
		rules []Rule
		err   error
	}
	results := make(chan callback, 8)

	stop, err := p.Watch(context.Background(), func(rules []Rule, err error) {
		results <- callback{rules, err}
	})
	require.NoError(t, err)
	defer stop()

	// PUT 事件带来新规则集
	client.emitPut(`{"rules":[{"id":"export","scope":"global","capacity":10,"refill_per_minute":60}]}`, 5)

	select {
	case got := <-results:
		require.NoError(t, got.err)
		require.Len(t, got.rules, 1)
		assert.Equal(t, "export", got.rules[0].ID)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for put notification")
	}

	// DELETE 事件作为加载失败上报，注册表侧保留旧规则集
	client.emitDelete(6)

	select {
	case got := <-results:
		assert.ErrorIs(t, got.err, ErrRuleKeyNotFound)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for delete notification")
	}
}
