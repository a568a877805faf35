package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// 定义 JWT 相关的错误类型
var (
	// ErrInvalidToken 表示提供的令牌无效或格式错误
	ErrInvalidToken = errors.New("invalid token")
)

// Claims 定义 JWT 令牌中的声明（Claims）结构。
// 它包含了调用方身份信息和标准的 JWT 注册声明。
type Claims struct {
	// Subject 存储调用方的唯一标识符（通常是服务名或操作员账号）
	Subject string `json:"sub_name"`
	// Role 存储调用方的角色信息，用于权限控制
	Role string `json:"role"`
	// RegisteredClaims 嵌入标准的 JWT 注册声明，包含过期时间、签发时间等
	jwt.RegisteredClaims
}

// JWTManager 是 JWT 令牌管理器，负责令牌的生成和验证。
// 它封装了 JWT 的密钥和过期时间配置。
type JWTManager struct {
	// secret 是用于签名和验证 JWT 的密钥
	secret []byte
	// expiration 定义令牌的有效期时长
	expiration time.Duration
}

// NewJWTManager 创建并返回一个新的 JWT 管理器实例。
// 参数:
//   - secret: JWT 签名密钥，应该是一个安全的随机字符串
//   - expiration: 令牌的有效期时长
func NewJWTManager(secret string, expiration time.Duration) *JWTManager {
	return &JWTManager{
		secret:     []byte(secret),
		expiration: expiration,
	}
}

// Generate 为指定调用方生成一个新的 JWT 令牌。
func (m *JWTManager) Generate(subject, role string) (string, error) {
	claims := &Claims{
		Subject: subject,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.expiration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Validate 验证 JWT 令牌的有效性并提取其中的声明信息。
// 如果令牌无效或已过期，返回 ErrInvalidToken。
func (m *JWTManager) Validate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
