package transport

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/oriys/faultline/internal/domain"
)

// DSN 是解析后的上报端点标识。
// 格式: {scheme}://{key}@{host}/{project}，例如
// https://0a1b2c@faultline.example.com/42。
type DSN struct {
	// Scheme 是 http 或 https
	Scheme string
	// Key 是访问密钥，随请求头上送
	Key string
	// Host 是接收端主机（含端口）
	Host string
	// Project 是项目标识
	Project string
}

// ParseDSN 解析端点 DSN 字符串。
// 空字符串不是合法 DSN；缺少密钥、主机或项目段均返回 ErrInvalidDSN。
func ParseDSN(raw string) (*DSN, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidDSN, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", domain.ErrInvalidDSN, u.Scheme)
	}
	if u.User == nil || u.User.Username() == "" {
		return nil, fmt.Errorf("%w: missing key", domain.ErrInvalidDSN)
	}
	project := strings.Trim(u.Path, "/")
	if project == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: missing host or project", domain.ErrInvalidDSN)
	}
	return &DSN{
		Scheme:  u.Scheme,
		Key:     u.User.Username(),
		Host:    u.Host,
		Project: project,
	}, nil
}

// IngestURL 返回报告提交地址。
func (d *DSN) IngestURL() string {
	return fmt.Sprintf("%s://%s/api/%s/store/", d.Scheme, d.Host, d.Project)
}
