package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeRuleFile 写出规则文件并返回路径。
func writeRuleFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const validRules = `rules:
  - id: search
    scope: user
    capacity: 10
    refill_per_minute: 600
`

const invalidRules = `rules:
  - id: search
    scope: user
    capacity: 0
    refill_per_minute: 600
`

// runApp 以给定参数执行应用，返回 Run 的错误。
func runApp(t *testing.T, args ...string) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return createApp().Run(ctx, append([]string{"ratectl"}, args...))
}

func TestSplitAddrs(t *testing.T) {
	assert.Nil(t, splitAddrs(""))
	assert.Equal(t, []string{"a:6379"}, splitAddrs("a:6379"))
	assert.Equal(t, []string{"a:6379", "b:6379"}, splitAddrs(" a:6379 , b:6379 ,"))
}

func TestPercentile(t *testing.T) {
	assert.Zero(t, percentile(nil, 99))

	sorted := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, time.Duration(5), percentile(sorted, 50))
	assert.Equal(t, time.Duration(9), percentile(sorted, 95))
	assert.Equal(t, time.Duration(10), percentile(sorted, 100))
	assert.Equal(t, time.Duration(1), percentile(sorted, 1))
}

func TestRulesValidate(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		path := writeRuleFile(t, "rules.yaml", validRules)
		assert.NoError(t, runApp(t, "-r", path, "rules", "validate"))
	})

	t.Run("invalid rule exits 2", func(t *testing.T) {
		path := writeRuleFile(t, "rules.yaml", invalidRules)
		err := runApp(t, "-r", path, "rules", "validate")

		var exitErr *exitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 2, exitErr.code)
	})

	t.Run("missing path is usage error", func(t *testing.T) {
		err := runApp(t, "rules", "validate")

		var usageErr *usageError
		assert.ErrorAs(t, err, &usageErr)
	})

	t.Run("unsupported extension is usage error", func(t *testing.T) {
		path := writeRuleFile(t, "rules.toml", validRules)
		err := runApp(t, "-r", path, "rules", "validate")

		var usageErr *usageError
		assert.ErrorAs(t, err, &usageErr)
	})
}

func TestCheck(t *testing.T) {
	t.Run("allowed exits 0", func(t *testing.T) {
		path := writeRuleFile(t, "rules.yaml", validRules)
		err := runApp(t, "-r", path, "check", "--op", "search", "--user", "alice")
		assert.NoError(t, err)
	})

	t.Run("denied exits 1", func(t *testing.T) {
		path := writeRuleFile(t, "rules.yaml", validRules)
		// 成本超过容量，单次判定即拒绝
		err := runApp(t, "-r", path, "check", "--op", "search", "--user", "alice", "--n", "11")

		var exitErr *exitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 1, exitErr.code)
	})

	t.Run("unknown op fails open", func(t *testing.T) {
		path := writeRuleFile(t, "rules.yaml", validRules)
		err := runApp(t, "-r", path, "check", "--op", "missing", "--user", "alice")
		assert.NoError(t, err)
	})
}

func TestPeekAndReset(t *testing.T) {
	path := writeRuleFile(t, "rules.yaml", validRules)

	t.Run("peek untouched bucket", func(t *testing.T) {
		assert.NoError(t, runApp(t, "-r", path, "peek", "--op", "search", "--user", "alice"))
	})

	t.Run("peek unknown op errors", func(t *testing.T) {
		err := runApp(t, "-r", path, "peek", "--op", "missing", "--user", "alice")
		assert.Error(t, err)
	})

	t.Run("reset", func(t *testing.T) {
		assert.NoError(t, runApp(t, "-r", path, "reset", "--op", "search", "--user", "alice"))
	})
}

func TestBench(t *testing.T) {
	path := writeRuleFile(t, "rules.yaml", validRules)

	t.Run("runs to completion", func(t *testing.T) {
		err := runApp(t, "-r", path, "bench",
			"--op", "search", "--user", "alice",
			"--rate", "50", "--duration", "200ms", "--workers", "2")
		assert.NoError(t, err)
	})

	t.Run("invalid rate is usage error", func(t *testing.T) {
		err := runApp(t, "-r", path, "bench", "--op", "search", "--rate", "0")

		var usageErr *usageError
		assert.ErrorAs(t, err, &usageErr)
	})
}

func TestExitCodeMapping(t *testing.T) {
	assert.True(t, errors.As(&exitError{code: 1}, new(*exitError)))
	assert.Equal(t, "boom", (&usageError{err: errors.New("boom")}).Error())
}
