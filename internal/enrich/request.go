package enrich

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/oriys/faultline/internal/domain"
)

// maxBodySnapshot 限制请求体快照的最大字节数，超出部分不进入切面。
const maxBodySnapshot = 1 << 20 // 1 MB

// 需要在请求切面中脱敏的请求头
var redactedHeaders = map[string]struct{}{
	"Authorization":       {},
	"Cookie":              {},
	"Proxy-Authorization": {},
	"X-Api-Key":           {},
}

// RequestFacet 从工作单元的入站 HTTP 请求派生 request 切面。
// 仅 HTTP 风格入口点产生非空切面，在工作单元进入阶段调用，
// 此时结果尚未可知，因此无论成败都会被采集。
//
// 该提取器承诺永不失败：请求格式错误、入口点不兼容、请求体
// 解析失败等任何异常都被吞掉并退化为空切面，诊断管道的后续
// 阶段不会因为一个无法内省的请求而中断。
func RequestFacet(wc *domain.WorkerContext) (facet map[string]any) {
	facet = make(map[string]any)
	defer func() {
		if r := recover(); r != nil {
			// 内省失败退化为空切面
			facet = make(map[string]any)
		}
	}()

	if wc == nil || wc.EntryPoint == nil || !wc.EntryPoint.HTTP || wc.Request == nil {
		return facet
	}
	r := wc.Request

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	facet["url"] = scheme + "://" + r.Host + r.URL.Path
	facet["query_string"] = r.URL.RawQuery
	facet["method"] = r.Method
	facet["data"] = requestData(r)
	facet["headers"] = sanitizedHeaders(r.Header)
	facet["env"] = transportEnv(r)
	return facet
}

// requestData 解析请求体为结构化数据。
// JSON 请求体解析为任意结构，表单请求体解析为字段映射，
// 客户端在读取完成前断开时替换为空映射而非失败。
// 读取过的字节会被放回请求体，不影响后续业务处理。
func requestData(r *http.Request) any {
	if r.Body == nil {
		return map[string]any{}
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySnapshot))
	if err != nil {
		// 客户端断开或读取失败
		return map[string]any{}
	}
	// 快照连同未读完的剩余部分一起放回，业务代码读到完整请求体
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), r.Body))

	if len(body) == 0 {
		return map[string]any{}
	}

	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.Contains(contentType, "application/json"):
		var parsed any
		if err := json.Unmarshal(body, &parsed); err != nil {
			return map[string]any{}
		}
		return parsed
	case strings.Contains(contentType, "application/x-www-form-urlencoded"):
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return map[string]any{}
		}
		fields := make(map[string]any, len(values))
		for k, v := range values {
			if len(v) == 1 {
				fields[k] = v[0]
			} else {
				fields[k] = v
			}
		}
		return fields
	default:
		return map[string]any{}
	}
}

// sanitizedHeaders 复制请求头并脱敏凭证类条目。
func sanitizedHeaders(h http.Header) map[string]string {
	headers := make(map[string]string, len(h))
	for name, values := range h {
		if _, redacted := redactedHeaders[http.CanonicalHeaderKey(name)]; redacted {
			headers[name] = "[filtered]"
			continue
		}
		headers[name] = strings.Join(values, ", ")
	}
	return headers
}

// transportEnv 提取脱敏后的传输环境快照。
func transportEnv(r *http.Request) map[string]string {
	return map[string]string{
		"remote_addr":     r.RemoteAddr,
		"server_name":     r.Host,
		"server_protocol": r.Proto,
		"content_length":  strconv.FormatInt(r.ContentLength, 10),
		"request_uri":     r.RequestURI,
	}
}
