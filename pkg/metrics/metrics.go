package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lcs"

// Metrics 应用指标集合，使用独立 Registry，避免测试间共享全局状态
// 所有方法对 nil 接收者安全
type Metrics struct {
	registry *prometheus.Registry

	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
	enrollmentRequests  *prometheus.CounterVec
	enrollmentStatus    *prometheus.CounterVec
	videoAccessDecision *prometheus.CounterVec
}

// New 创建并注册全部指标
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP 请求总数",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP 请求耗时",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		enrollmentRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrollment_requests_total",
			Help:      "选课申请次数（按结果）",
		}, []string{"result"}),
		enrollmentStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrollment_status_changes_total",
			Help:      "选课状态变更次数（按目标状态）",
		}, []string{"status"}),
		videoAccessDecision: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "video_access_decisions_total",
			Help:      "视频访问判定次数",
		}, []string{"decision"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.enrollmentRequests,
		m.enrollmentStatus,
		m.videoAccessDecision,
	)
	return m
}

// Handler 暴露 /metrics
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveHTTP 记录一次 HTTP 请求
// route 使用 gin 的路由模板（如 /api/v1/classes/:id），避免路径参数撑爆标签基数
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// EnrollmentRequested 记录选课申请结果：created / duplicate / not_found / error
func (m *Metrics) EnrollmentRequested(result string) {
	if m == nil {
		return
	}
	m.enrollmentRequests.WithLabelValues(result).Inc()
}

// EnrollmentStatusChanged 记录选课状态变更
func (m *Metrics) EnrollmentStatusChanged(status string) {
	if m == nil {
		return
	}
	m.enrollmentStatus.WithLabelValues(status).Inc()
}

// VideoAccessDecided 记录一次视频访问判定
func (m *Metrics) VideoAccessDecided(allowed bool) {
	if m == nil {
		return
	}
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	m.videoAccessDecision.WithLabelValues(decision).Inc()
}
