package xlimit

import (
	"go4.org/netipx"

	"github.com/omeyang/ratekit/pkg/util/xnet"
)

// defaultKeyPrefix 限流键的默认命名空间前缀
const defaultKeyPrefix = "ratekit"

// globalIdentifier 全局作用域的固定标识符
const globalIdentifier = "global"

// KeyBuilder 把规则与请求身份渲染为限流键。
//
// 键格式: <prefix>:{<scope>:<identifier>}:<ruleID>
// scope+identifier 段用大括号包裹作为 Redis Cluster 哈希标签，
// 同一桶的读写落在同一 slot，Lua 脚本单键原子执行。
type KeyBuilder struct {
	prefix  string
	trusted *netipx.IPSet
}

// KeyBuilderOption 配置 [KeyBuilder]。
type KeyBuilderOption func(*KeyBuilder)

// WithKeyBuilderPrefix 设置键前缀，默认 "ratekit"。
func WithKeyBuilderPrefix(prefix string) KeyBuilderOption {
	return func(b *KeyBuilder) {
		if prefix != "" {
			b.prefix = prefix
		}
	}
}

// WithKeyBuilderTrustedProxies 设置可信代理集合。
// IP 作用域解析转发链时，从右向左跳过可信代理，取第一个不可信
// 地址作为客户端身份。
func WithKeyBuilderTrustedProxies(set *netipx.IPSet) KeyBuilderOption {
	return func(b *KeyBuilder) {
		b.trusted = set
	}
}

// NewKeyBuilder 创建键构建器。
func NewKeyBuilder(opts ...KeyBuilderOption) *KeyBuilder {
	b := &KeyBuilder{prefix: defaultKeyPrefix}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildKey 渲染限流键。
//
// IP 作用域的畸形地址归一为固定字面量，不返回错误——垃圾输入
// 共享同一个惩罚桶。user/user_resource 作用域缺少标识时返回
// 作用域解析错误，调用方吸收为放行兜底。
func (b *KeyBuilder) BuildKey(rule Rule, id Identity) (string, error) {
	ident, err := b.identifier(rule.Scope, id)
	if err != nil {
		return "", err
	}
	return b.prefix + ":{" + string(rule.Scope) + ":" + ident + "}:" + rule.ID, nil
}

func (b *KeyBuilder) identifier(scope Scope, id Identity) (string, error) {
	switch scope {
	case ScopeIP:
		return xnet.ClientIP(id.RemoteAddr, id.ForwardedFor, b.trusted), nil
	case ScopeUser:
		if id.Principal == "" {
			return "", ErrMissingPrincipal
		}
		return id.Principal, nil
	case ScopeUserResource:
		if id.Principal == "" {
			return "", ErrMissingPrincipal
		}
		if id.Resource == "" {
			return "", ErrMissingResource
		}
		return id.Principal + "/" + id.Resource, nil
	case ScopeGlobal:
		return globalIdentifier, nil
	default:
		// 规则集校验保证不会出现未知作用域，兜底按全局处理
		return globalIdentifier, nil
	}
}
