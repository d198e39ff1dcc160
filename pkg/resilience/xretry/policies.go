package xretry

import "fmt"

// MaxAttemptsPolicy 固定次数重试策略。
type MaxAttemptsPolicy struct {
	maxAttempts int
	classifier  func(err error) bool
}

// PolicyOption 配置 [MaxAttemptsPolicy]。
type PolicyOption func(*MaxAttemptsPolicy)

// WithErrClassifier 设置错误分类器：返回 false 的错误不再重试。
// 未设置时所有非永久错误都可重试。
func WithErrClassifier(fn func(err error) bool) PolicyOption {
	return func(p *MaxAttemptsPolicy) {
		p.classifier = fn
	}
}

// NewMaxAttempts 创建固定次数重试策略。
// maxAttempts 含首次执行，必须 >= 1。
func NewMaxAttempts(maxAttempts int, opts ...PolicyOption) (*MaxAttemptsPolicy, error) {
	if maxAttempts < 1 {
		return nil, fmt.Errorf("%w: maxAttempts %d < 1", ErrInvalidConfig, maxAttempts)
	}
	p := &MaxAttemptsPolicy{maxAttempts: maxAttempts}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// MaxAttempts 实现 RetryPolicy 接口。
func (p *MaxAttemptsPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// ShouldRetry 实现 RetryPolicy 接口。
func (p *MaxAttemptsPolicy) ShouldRetry(attempt int, err error) bool {
	if attempt >= p.maxAttempts {
		return false
	}
	if p.classifier != nil {
		return p.classifier(err)
	}
	return true
}

var _ RetryPolicy = (*MaxAttemptsPolicy)(nil)
