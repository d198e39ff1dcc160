//go:build unix

package xsys

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// 系统调用以包级变量持有，测试中替换以覆盖错误路径
var (
	getrlimit = unix.Getrlimit
	setrlimit = unix.Setrlimit
)

// mu 保护 getrlimit→setrlimit 的读改写序列
var mu sync.Mutex

// EnsureFileLimit 确保进程的最大打开文件数（RLIMIT_NOFILE）
// 不低于 minLimit。当前 soft limit 已满足时不做任何修改。
//
// 只提升不降低：hard limit 不足时尝试一并提升（需要
// CAP_SYS_RESOURCE），失败则返回错误。
func EnsureFileLimit(minLimit uint64) error {
	if minLimit == 0 {
		return ErrInvalidFileLimit
	}

	mu.Lock()
	defer mu.Unlock()

	var rlimit unix.Rlimit
	if err := getrlimit(unix.RLIMIT_NOFILE, &rlimit); err != nil {
		return fmt.Errorf("xsys: getrlimit RLIMIT_NOFILE: %w", err)
	}

	if rlimit.Cur >= minLimit {
		return nil
	}

	rlimit.Cur = minLimit
	if rlimit.Max < minLimit {
		rlimit.Max = minLimit
	}

	if err := setrlimit(unix.RLIMIT_NOFILE, &rlimit); err != nil {
		return fmt.Errorf("xsys: setrlimit RLIMIT_NOFILE: %w", err)
	}
	return nil
}

// FileLimit 返回当前进程 RLIMIT_NOFILE 的 soft 和 hard limit
func FileLimit() (soft, hard uint64, err error) {
	var rlimit unix.Rlimit
	if err := getrlimit(unix.RLIMIT_NOFILE, &rlimit); err != nil {
		return 0, 0, fmt.Errorf("xsys: getrlimit RLIMIT_NOFILE: %w", err)
	}
	return rlimit.Cur, rlimit.Max, nil
}
