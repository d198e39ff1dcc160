package xlimit

// Identity 一次请求的调用方身份，作用域解析的输入。
// 各字段按需填充：IP 作用域只看地址链，user 作用域只看主体。
type Identity struct {
	// RemoteAddr 直连对端地址（host 或 host:port）。
	RemoteAddr string

	// ForwardedFor X-Forwarded-For 链原文，可为空。
	ForwardedFor string

	// Principal 认证主体标识，user/user_resource 作用域必填。
	Principal string

	// Resource 资源区分符，user_resource 作用域必填。
	Resource string
}
