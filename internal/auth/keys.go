// Package auth 提供中继服务的身份认证功能。
// 该包实现了基于静态 API Key 和 JWT（JSON Web Token）的双重认证机制，
// 用于保护上报与查询接口的安全访问。
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
)

// ErrKeyNotFound 表示请求携带的 API Key 不在密钥环中
var ErrKeyNotFound = errors.New("api key not found")

// Keyring 保存中继服务接受的 API Key 集合。
// 注意：出于安全考虑，密钥环内部只保存 SHA-256 哈希值，不保存原始密钥。
type Keyring struct {
	// hashes 配置中所有 API Key 的哈希值列表
	hashes [][]byte
}

// NewKeyring 根据配置中的原始 API Key 列表构建密钥环。
// 空列表是合法的，此时所有验证请求都会失败。
func NewKeyring(keys []string) *Keyring {
	kr := &Keyring{hashes: make([][]byte, 0, len(keys))}
	for _, k := range keys {
		h := sha256.Sum256([]byte(k))
		kr.hashes = append(kr.hashes, h[:])
	}
	return kr
}

// Validate 验证给定的 API Key 是否在密钥环中。
// 比较使用常量时间算法，避免时序侧信道泄露密钥信息。
// 验证成功返回 nil，失败返回 ErrKeyNotFound。
func (kr *Keyring) Validate(key string) error {
	h := sha256.Sum256([]byte(key))
	for _, stored := range kr.hashes {
		if subtle.ConstantTimeCompare(h[:], stored) == 1 {
			return nil
		}
	}
	return ErrKeyNotFound
}

// GenerateKey 生成一个新的 API Key。
// 该函数使用加密安全的随机数生成器创建密钥。
// 返回:
//   - string: 原始 API Key（以 "fl_" 为前缀，应安全地发送给客户端）
//   - error: 如果随机数生成失败则返回错误
func GenerateKey() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	// 前缀 "fl_" 用于标识这是本系统（faultline）的 API Key
	return "fl_" + hex.EncodeToString(bytes), nil
}
