package xlimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func TestStaticPodCount(t *testing.T) {
	ctx := context.Background()

	n, err := StaticPodCount(4).GetPodCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	// 非法值兜底为 1
	n, err = StaticPodCount(0).GetPodCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = StaticPodCount(-3).GetPodCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEnvPodCount(t *testing.T) {
	ctx := context.Background()

	t.Run("env set", func(t *testing.T) {
		t.Setenv("POD_COUNT", "8")
		p := NewEnvPodCount("POD_COUNT", 2)

		n, err := p.GetPodCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 8, n)
	})

	t.Run("env missing uses default", func(t *testing.T) {
		p := NewEnvPodCount("RATEKIT_ABSENT_VAR", 3)

		n, err := p.GetPodCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("invalid env uses default", func(t *testing.T) {
		t.Setenv("POD_COUNT", "not-a-number")
		p := NewEnvPodCount("POD_COUNT", 2)

		n, err := p.GetPodCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("cache holds across env change", func(t *testing.T) {
		t.Setenv("POD_COUNT", "4")
		p := NewEnvPodCount("POD_COUNT", 1).WithCacheDuration(time.Hour)

		n, err := p.GetPodCount(ctx)
		require.NoError(t, err)
		require.Equal(t, 4, n)

		t.Setenv("POD_COUNT", "9")
		n, err = p.GetPodCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, n, "cached value survives env change")
	})
}

func TestKubernetesPodCount(t *testing.T) {
	ctx := context.Background()

	endpoints := func(ready int) *corev1.Endpoints {
		addrs := make([]corev1.EndpointAddress, ready)
		for i := range addrs {
			addrs[i] = corev1.EndpointAddress{IP: "10.0.0.1"}
		}
		return &corev1.Endpoints{
			ObjectMeta: metav1.ObjectMeta{Namespace: "prod", Name: "api"},
			Subsets:    []corev1.EndpointSubset{{Addresses: addrs}},
		}
	}

	t.Run("validation", func(t *testing.T) {
		_, err := NewKubernetesPodCount(nil, "prod", "api")
		assert.ErrorIs(t, err, ErrNilClient)

		_, err = NewKubernetesPodCount(fake.NewClientset(), "", "api")
		assert.Error(t, err)
	})

	t.Run("counts ready addresses", func(t *testing.T) {
		client := fake.NewClientset(endpoints(3))
		p, err := NewKubernetesPodCount(client, "prod", "api")
		require.NoError(t, err)

		n, err := p.GetPodCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("no addresses floors at one", func(t *testing.T) {
		client := fake.NewClientset(endpoints(0))
		p, err := NewKubernetesPodCount(client, "prod", "api")
		require.NoError(t, err)

		n, err := p.GetPodCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("missing endpoints without cache errors", func(t *testing.T) {
		p, err := NewKubernetesPodCount(fake.NewClientset(), "prod", "api")
		require.NoError(t, err)

		_, err = p.GetPodCount(ctx)
		assert.Error(t, err)
	})

	t.Run("cache serves repeated lookups", func(t *testing.T) {
		client := fake.NewClientset(endpoints(2))
		p, err := NewKubernetesPodCount(client, "prod", "api", WithPodCountCacheTTL(time.Hour))
		require.NoError(t, err)

		n, err := p.GetPodCount(ctx)
		require.NoError(t, err)
		require.Equal(t, 2, n)

		// 后端变化在 TTL 内不可见
		require.NoError(t, client.CoreV1().Endpoints("prod").Delete(ctx, "api", metav1.DeleteOptions{}))

		n, err = p.GetPodCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})
}
