package relay

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/oriys/faultline/internal/auth"
	"github.com/oriys/faultline/internal/domain"
	"github.com/oriys/faultline/internal/storage"
	"github.com/oriys/faultline/internal/telemetry"
)

// ingestKeyHeader 是上报客户端携带接入密钥的 HTTP 头名称，
// 与客户端传输层使用的头保持一致。
const ingestKeyHeader = "X-Faultline-Key"

// maxEnvelopeSize 单个报告信封的最大字节数
const maxEnvelopeSize = 1 << 20 // 1 MiB

// Handler 是中继服务的 HTTP 请求处理器。
//
// 字段说明：
//   - relay: 中继核心，负责归档与广播
//   - store: PostgreSQL 存储，用于报告查询
//   - keyring: 上报接入密钥环，为 nil 时上报端点不做鉴权
//   - logger: 日志记录器
type Handler struct {
	relay   *Relay
	store   *storage.PostgresStore
	keyring *auth.Keyring
	logger  *logrus.Logger
}

// NewHandler 创建并返回一个新的 Handler 实例。
func NewHandler(relay *Relay, store *storage.PostgresStore, keyring *auth.Keyring, logger *logrus.Logger) *Handler {
	return &Handler{
		relay:   relay,
		store:   store,
		keyring: keyring,
		logger:  logger,
	}
}

// RouterConfig 路由器配置选项
type RouterConfig struct {
	// Handler HTTP 请求处理器
	Handler *Handler
	// AuthMiddleware 查询接口的认证中间件，可以为 nil
	AuthMiddleware *auth.Middleware
	// Hub WebSocket 实时追踪中心，可以为 nil
	Hub *TailHub
}

// NewRouter 创建并配置中继服务的 HTTP 路由器。
//
// 路由结构：
//
//	/health                      - 基本健康检查
//	/health/ready                - Kubernetes 就绪探针
//	/health/live                 - Kubernetes 存活探针
//	/metrics                     - Prometheus 指标端点
//	/api/{project}/store/        - 报告信封上报端点
//	/api/v1/reports              - 报告列表查询
//	/api/v1/reports/{id}         - 单个报告查询
//	/ws/tail                     - WebSocket 实时追踪
func NewRouter(cfg *RouterConfig) *chi.Mux {
	h := cfg.Handler
	r := chi.NewRouter()

	// 遥测中间件：记录 HTTP 请求的追踪信息
	r.Use(telemetry.HTTPMiddleware("faultline-relay"))

	// RequestID 中间件：为每个请求生成唯一 ID，便于日志追踪
	r.Use(middleware.RequestID)

	// RealIP 中间件：从 X-Forwarded-For 等头部获取真实客户端 IP
	r.Use(middleware.RealIP)

	// Recoverer 中间件：捕获 panic 并返回 500 错误，防止服务崩溃
	r.Use(middleware.Recoverer)

	// Timeout 中间件：设置请求超时时间为 30 秒
	r.Use(middleware.Timeout(30 * time.Second))

	// 健康检查端点 - 用于负载均衡器和 Kubernetes 探针
	r.Get("/health", h.Health)
	r.Get("/health/ready", h.Ready)
	r.Get("/health/live", h.Live)

	// Prometheus 指标端点
	r.Handle("/metrics", promhttp.Handler())

	// 报告信封上报端点 - 客户端传输层投递的目标
	r.Post("/api/{project}/store/", h.Store)

	// 查询接口 - 可选地挂接认证中间件
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.AuthMiddleware != nil {
			r.Use(cfg.AuthMiddleware.Authenticate)
		}
		r.Get("/reports", h.ListReports)
		r.Get("/reports/{id}", h.GetReport)
	})

	// WebSocket 实时追踪
	if cfg.Hub != nil {
		r.Get("/ws/tail", cfg.Hub.ServeTail)
	}

	return r
}

// Health 基本健康检查。
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Ready Kubernetes 就绪探针，检查归档存储是否可用。
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "storage not ready: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Live Kubernetes 存活探针。
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// Store 处理报告信封的上报请求。
// 客户端通过 X-Faultline-Key 头携带接入密钥，信封体为 JSON 格式的报告。
func (h *Handler) Store(w http.ResponseWriter, r *http.Request) {
	if h.keyring != nil {
		key := r.Header.Get(ingestKeyHeader)
		if key == "" || h.keyring.Validate(key) != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid ingest key")
			return
		}
	}

	var rep domain.Report
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEnvelopeSize))
	if err := dec.Decode(&rep); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid envelope: "+err.Error())
		return
	}

	if err := h.relay.Ingest(r.Context(), &rep, "http"); err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to ingest report: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"id": rep.EventID})
}

// GetReport 按事件 ID 查询单个已归档的报告。
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rep, err := h.store.GetReport(r.Context(), id)
	if err != nil {
		if err == domain.ErrReportNotFound {
			writeError(w, r, http.StatusNotFound, "report not found: "+id)
			return
		}
		writeError(w, r, http.StatusInternalServerError, "failed to get report: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, rep)
}

// ListReports 分页查询已归档的报告列表。
// 支持的查询参数：service（按服务名过滤）、offset、limit（默认 50，上限 200）。
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	service := r.URL.Query().Get("service")

	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	reports, total, err := h.store.ListReports(r.Context(), service, offset, limit)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to list reports: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reports": reports,
		"total":   total,
		"offset":  offset,
		"limit":   limit,
	})
}

// ErrorResponse 错误响应的统一格式
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:     message,
		RequestID: middleware.GetReqID(r.Context()),
	})
}
