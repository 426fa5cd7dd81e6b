/*
 * @module service/monitoring/metrics_collector
 * @description Prometheus监控指标采集器，暴露质量检测运行的核心观测指标
 * @architecture 观测层 - 指标注册与采集
 * @documentReference ai_docs/quality_rule_engine_req.md 第7节
 * @stateFlow 运行完成 -> 指标更新 -> /metrics 端点拉取
 * @rules 指标采集失败不影响运行结果；所有指标按表维度打标签
 * @dependencies github.com/prometheus/client_golang
 * @refs service/quality/engine.go, main.go
 */

package monitoring

import (
	"dataquality-service/service/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector 质量检测运行指标采集器
type MetricsCollector struct {
	runsTotal    *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	failedRules  *prometheus.CounterVec
	overallScore *prometheus.GaugeVec
	passRate     *prometheus.GaugeVec
}

// NewMetricsCollector 创建指标采集器并注册到默认注册表
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		runsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quality_engine",
			Name:      "runs_total",
			Help:      "质量检测运行总次数",
		}, []string{"table"}),
		runDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quality_engine",
			Name:      "run_duration_seconds",
			Help:      "质量检测运行耗时分布",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"table"}),
		failedRules: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quality_engine",
			Name:      "failed_rules_total",
			Help:      "累计失败规则数（含执行错误）",
		}, []string{"table"}),
		overallScore: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "quality_engine",
			Name:      "overall_score",
			Help:      "最近一次运行的综合质量得分",
		}, []string{"table"}),
		passRate: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "quality_engine",
			Name:      "pass_rate",
			Help:      "最近一次运行的规则通过率",
		}, []string{"table"}),
	}
}

// ObserveRun 记录一次完成的质量检测运行
func (c *MetricsCollector) ObserveRun(run *models.ExecutionRun) {
	labels := prometheus.Labels{"table": run.TableName}
	c.runsTotal.With(labels).Inc()
	c.runDuration.With(labels).Observe(run.Duration.Seconds())
	c.failedRules.With(labels).Add(float64(run.FailedRules))
	c.overallScore.With(labels).Set(run.Metrics.OverallScore)
	c.passRate.With(labels).Set(run.PassRate)
}
