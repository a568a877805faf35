package auth

import (
	"context"
	"net/http"
	"strings"
)

// contextKey 是用于在 context 中存储值的自定义类型。
// 使用自定义类型可以避免与其他包的 context 键冲突。
type contextKey string

// CallerContextKey 是用于在请求上下文中存储调用方信息的键
const CallerContextKey contextKey = "caller"

// Caller 存储已认证调用方的上下文信息。
// 在请求通过认证后，此结构体会被存储在请求的 context 中。
type Caller struct {
	// Subject 调用方的唯一标识符
	Subject string
	// Role 调用方的角色，用于权限控制
	Role string
	// Method 认证方式，可能的值为 "jwt" 或 "apikey"
	Method string
}

// Middleware 是认证中间件，用于验证 HTTP 请求的身份。
// 它支持静态 API Key 和 JWT 两种认证方式。
type Middleware struct {
	// jwt JWT 管理器，用于验证 JWT 令牌；为 nil 时禁用 JWT 认证
	jwt *JWTManager
	// apiKeyHeader 存储 API Key 的 HTTP 头名称
	apiKeyHeader string
	// keyring API Key 密钥环
	keyring *Keyring
	// enabled 是否启用认证，为 false 时跳过所有认证检查
	enabled bool
}

// NewMiddleware 创建并返回一个新的认证中间件实例。
// 参数:
//   - jwt: JWT 管理器实例，可以为 nil
//   - apiKeyHeader: 用于传递 API Key 的 HTTP 头名称（如 "X-API-Key"）
//   - keyring: API Key 密钥环
//   - enabled: 是否启用认证功能
func NewMiddleware(jwt *JWTManager, apiKeyHeader string, keyring *Keyring, enabled bool) *Middleware {
	return &Middleware{
		jwt:          jwt,
		apiKeyHeader: apiKeyHeader,
		keyring:      keyring,
		enabled:      enabled,
	}
}

// Authenticate 是一个 HTTP 中间件函数，用于验证请求的身份。
// 它首先尝试 API Key 认证，如果失败则尝试 JWT Bearer Token 认证。
// 认证成功后，调用方信息会被存储在请求的 context 中。
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 检查认证是否启用，如果未启用则直接放行
		if !m.enabled {
			next.ServeHTTP(w, r)
			return
		}

		// 首先尝试 API Key 认证
		if apiKey := r.Header.Get(m.apiKeyHeader); apiKey != "" {
			if m.keyring != nil && m.keyring.Validate(apiKey) == nil {
				caller := &Caller{Subject: "apikey", Role: "reporter", Method: "apikey"}
				ctx := context.WithValue(r.Context(), CallerContextKey, caller)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}

		// API Key 认证失败或未提供，尝试 JWT Bearer Token 认证
		authHeader := r.Header.Get("Authorization")
		if m.jwt != nil && strings.HasPrefix(authHeader, "Bearer ") {
			token := strings.TrimPrefix(authHeader, "Bearer ")
			if claims, err := m.jwt.Validate(token); err == nil {
				caller := &Caller{
					Subject: claims.Subject,
					Role:    claims.Role,
					Method:  "jwt",
				}
				ctx := context.WithValue(r.Context(), CallerContextKey, caller)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}

		// 所有认证方式都失败，返回 401 未授权错误
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
	})
}

// GetCaller 从请求上下文中提取已认证的调用方信息。
// 此函数通常在已通过认证的处理器中调用，未找到时返回 nil。
func GetCaller(ctx context.Context) *Caller {
	if caller, ok := ctx.Value(CallerContextKey).(*Caller); ok {
		return caller
	}
	return nil
}
