// Package cmd 提供 faultline 命令行工具的所有子命令实现。
// 本文件实现中继服务的 API 客户端，封装报告查询和健康检查接口。
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/viper"

	"github.com/oriys/faultline/internal/domain"
)

// Client 是中继服务的 API 客户端。
// 使用 HTTP/JSON 协议与中继通信。
type Client struct {
	baseURL    string       // 中继服务的基础 URL
	apiKey     string       // 可选的查询接口 API Key
	httpClient *http.Client // HTTP 客户端，用于发送请求
}

// NewClient 创建一个新的 API 客户端实例。
// 从 viper 配置中读取 api_url，如果未配置则使用默认值 http://localhost:8090。
func NewClient() *Client {
	baseURL := viper.GetString("api_url")
	if baseURL == "" {
		baseURL = "http://localhost:8090"
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  viper.GetString("api_key"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListReportsResponse 是报告列表接口的响应结构。
type ListReportsResponse struct {
	Reports []*domain.Report `json:"reports"`
	Total   int              `json:"total"`
	Offset  int              `json:"offset"`
	Limit   int              `json:"limit"`
}

// ListReports 查询归档的报告列表。
// service 为空时不过滤服务。
func (c *Client) ListReports(service string, offset, limit int) (*ListReportsResponse, error) {
	q := url.Values{}
	if service != "" {
		q.Set("service", service)
	}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))

	var resp ListReportsResponse
	if err := c.get("/api/v1/reports?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetReport 按事件 ID 查询单个报告。
func (c *Client) GetReport(eventID string) (*domain.Report, error) {
	var rep domain.Report
	if err := c.get("/api/v1/reports/"+url.PathEscape(eventID), &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

// Health 检查中继服务是否健康。
func (c *Client) Health() error {
	var status map[string]string
	return c.get("/health", &status)
}

// get 发送 GET 请求并把 JSON 响应解码到 out。
func (c *Client) get(path string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("relay rejected credentials: %w", domain.ErrUnauthorized)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("relay returned %d: %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
