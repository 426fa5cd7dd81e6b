/*
 * @module service/meta/quality_meta
 * @description 数据质量引擎元数据定义，包括严重级别、规则作用域、运行状态和评分权重
 * @architecture 元数据层
 * @documentReference ai_docs/quality_rule_engine_req.md
 * @stateFlow 静态元数据定义
 * @rules 提供标准化的质量引擎元数据定义，确保系统一致性
 * @dependencies 无
 * @refs service/models/rule.go, service/quality/engine.go
 */

package meta

// 规则严重级别
const (
	SeverityLow      = "Low"
	SeverityMedium   = "Medium"
	SeverityHigh     = "High"
	SeverityCritical = "Critical"
)

// 规则作用域
const (
	ScopeTable  = "table"  // 表级规则，对整表执行一次
	ScopeColumn = "column" // 列级规则，绑定列或在所有列上展开
)

// 运行状态机状态
const (
	RunStateFetching         = "fetching"
	RunStateEvaluatingRules  = "evaluating_rules"
	RunStateComputingMetrics = "computing_metrics"
	RunStatePersisting       = "persisting"
	RunStateComplete         = "complete"
	RunStateErrored          = "errored"
)

// 质量评分固定权重，非用户可配置策略
const (
	WeightCompleteness = 0.4
	WeightUniqueness   = 0.3
	WeightValidity     = 0.3
)

// DefaultHistoryRetention 历史记录默认保留上限（每表）
const DefaultHistoryRetention = 50

// DefaultSeverity 规则缺省严重级别
const DefaultSeverity = SeverityMedium

// RuleSeverity 规则严重级别元数据
type RuleSeverity struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Weight      int    `json:"weight"`
}

// RuleSeverities 规则严重级别元数据列表
var RuleSeverities = []RuleSeverity{
	{
		Code:        SeverityLow,
		Name:        "低",
		Description: "提示性问题，不影响数据使用",
		Weight:      1,
	},
	{
		Code:        SeverityMedium,
		Name:        "中",
		Description: "需要关注的质量问题，可能影响下游分析",
		Weight:      2,
	},
	{
		Code:        SeverityHigh,
		Name:        "高",
		Description: "严重质量问题，影响数据可信度",
		Weight:      3,
	},
	{
		Code:        SeverityCritical,
		Name:        "严重",
		Description: "关键质量问题，数据不可用或违反合规要求",
		Weight:      4,
	},
}

// IsValidSeverity 校验严重级别代码
func IsValidSeverity(code string) bool {
	for _, s := range RuleSeverities {
		if s.Code == code {
			return true
		}
	}
	return false
}

// IsValidScope 校验规则作用域
func IsValidScope(scope string) bool {
	return scope == ScopeTable || scope == ScopeColumn
}
