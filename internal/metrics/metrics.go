package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

var (
	// API 请求计数器
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// API 请求响应时间
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 工作流转换数
	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_transitions_total",
			Help: "Total number of workflow transitions",
		},
		[]string{"action", "actor", "result"}, // result: success, 或错误分类
	)

	// 自动动作执行数
	autoActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_auto_actions_total",
			Help: "Total number of automated actions executed",
		},
		[]string{"action"},
	)

	// 自动动作链深度
	chainDepth = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "workflow_chain_depth",
			Help:    "Depth reached by auto-action chains",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 10},
		},
	)

	// 链深度耗尽次数
	chainExhaustedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "workflow_chain_exhausted_total",
			Help: "Total number of auto-action chains aborted at the depth ceiling",
		},
	)

	// 批量操作数
	bulkOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulk_operations_total",
			Help: "Total number of bulk operations by final status",
		},
		[]string{"action", "status"},
	)

	// 批量操作明细数
	bulkItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulk_operation_items_total",
			Help: "Total number of bulk operation items by result",
		},
		[]string{"result"},
	)

	// 数据库连接数
	databaseConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_active",
			Help: "Number of active database connections",
		},
	)

	databaseConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	databaseConnectionsMax = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_max",
			Help: "Maximum number of database connections",
		},
	)

	// 参与者状态分布
	participantsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "participants_by_status",
			Help: "Number of participants by workflow status",
		},
		[]string{"status"},
	)
)

var (
	once sync.Once
)

func init() {
	// 注册指标
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(transitionsTotal)
	prometheus.MustRegister(autoActionsTotal)
	prometheus.MustRegister(chainDepth)
	prometheus.MustRegister(chainExhaustedTotal)
	prometheus.MustRegister(bulkOperationsTotal)
	prometheus.MustRegister(bulkItemsTotal)
	prometheus.MustRegister(databaseConnectionsActive)
	prometheus.MustRegister(databaseConnectionsIdle)
	prometheus.MustRegister(databaseConnectionsMax)
	prometheus.MustRegister(participantsByStatus)

	// 注册 Go 运行时指标(只注册一次)
	once.Do(func() {
		_ = prometheus.Register(prometheus.NewGoCollector())
		_ = prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	})
}

// Handler 返回 Prometheus 指标处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest 记录 API 请求
func RecordAPIRequest(method, path string, status int, duration float64) {
	statusText := http.StatusText(status)
	if statusText == "" {
		statusText = fmt.Sprintf("%d", status)
	}
	apiRequestsTotal.WithLabelValues(method, path, statusText).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordTransition 记录工作流转换
func RecordTransition(action, actor, result string) {
	transitionsTotal.WithLabelValues(action, actor, result).Inc()
}

// RecordAutoAction 记录自动动作
func RecordAutoAction(action string) {
	autoActionsTotal.WithLabelValues(action).Inc()
}

// RecordChain 记录自动动作链结果
func RecordChain(depth int, exhausted bool) {
	chainDepth.Observe(float64(depth))
	if exhausted {
		chainExhaustedTotal.Inc()
	}
}

// RecordBulkOperation 记录批量操作结果
func RecordBulkOperation(action, status string, successCount, failureCount int) {
	bulkOperationsTotal.WithLabelValues(action, status).Inc()
	bulkItemsTotal.WithLabelValues("success").Add(float64(successCount))
	bulkItemsTotal.WithLabelValues("failure").Add(float64(failureCount))
}

// UpdateDatabaseConnections 更新数据库连接数指标
func UpdateDatabaseConnections(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	stats := sqlDB.Stats()
	databaseConnectionsActive.Set(float64(stats.OpenConnections - stats.Idle))
	databaseConnectionsIdle.Set(float64(stats.Idle))
	databaseConnectionsMax.Set(float64(stats.MaxOpenConnections))

	return nil
}

// UpdateParticipantsByStatus 更新参与者状态分布指标
func UpdateParticipantsByStatus(status string, count float64) {
	participantsByStatus.WithLabelValues(status).Set(count)
}
