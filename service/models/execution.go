/*
 * @module service/models/execution
 * @description 质量检测执行记录模型，包括规则结果、列级质量指标和执行运行记录
 * @architecture 分层架构 - 数据模型层
 * @documentReference ai_docs/quality_rule_engine_req.md
 * @stateFlow 引擎生成执行记录 -> 历史存储持久化 -> 保留策略淘汰
 * @rules 执行记录一经写入不可变更，仅由历史存储按保留上限淘汰
 * @dependencies gorm.io/gorm, encoding/json, time
 * @refs service/quality/engine.go, service/history/history_store.go
 */

package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// 规则执行状态
const (
	RuleStatusPassed = "passed"
	RuleStatusFailed = "failed"
	RuleStatusError  = "error"
)

// RuleResult 单条规则的执行结果
type RuleResult struct {
	RuleID         string `json:"rule_id"`
	RuleName       string `json:"rule_name"`
	Column         string `json:"column,omitempty"`
	Status         string `json:"status"` // passed/failed/error
	ViolationCount int64  `json:"violation_count"`
	Severity       string `json:"severity"`
	Message        string `json:"message"`
}

// RuleResultList 规则结果数组的 JSONB 封装
type RuleResultList []RuleResult

func (l *RuleResultList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("类型断言失败: 不是 []byte 或 string")
	}
	return json.Unmarshal(bytes, l)
}

func (l RuleResultList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]RuleResult{})
	}
	return json.Marshal(l)
}

// ColumnMetric 单列质量指标
type ColumnMetric struct {
	Completeness  float64 `json:"completeness"`
	Uniqueness    float64 `json:"uniqueness"`
	Validity      float64 `json:"validity"`
	NullCount     int64   `json:"null_count"`
	DistinctCount int64   `json:"distinct_count"`
}

// QualityMetrics 表级质量指标
// OverallScore = 0.4*Completeness + 0.3*Uniqueness + 0.3*Validity（固定权重策略）
type QualityMetrics struct {
	Columns      map[string]ColumnMetric `json:"columns"`
	Completeness float64                 `json:"completeness"`
	Uniqueness   float64                 `json:"uniqueness"`
	Validity     float64                 `json:"validity"`
	OverallScore float64                 `json:"overall_score"`
}

func (m *QualityMetrics) Scan(value interface{}) error {
	if value == nil {
		*m = QualityMetrics{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("类型断言失败: 不是 []byte 或 string")
	}
	return json.Unmarshal(bytes, m)
}

func (m QualityMetrics) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// ExecutionRun 一次质量检测运行的完整记录
type ExecutionRun struct {
	RunID         string         `gorm:"primaryKey;size:64" json:"run_id"`
	TableName     string         `gorm:"not null;index:idx_execution_runs_table" json:"table_name"`
	Timestamp     time.Time      `gorm:"not null;index:idx_execution_runs_ts" json:"timestamp"`
	Duration      time.Duration  `gorm:"not null" json:"duration"`
	RulesExecuted int            `gorm:"not null" json:"rules_executed"`
	FailedRules   int            `gorm:"not null" json:"failed_rules"`
	PassRate      float64        `gorm:"not null" json:"pass_rate"`
	RuleResults   RuleResultList `gorm:"type:jsonb" json:"rule_results"`
	Metrics       QualityMetrics `gorm:"type:jsonb" json:"quality_metrics"`
	Statistics    JSONB          `gorm:"type:jsonb" json:"statistics,omitempty"`
}
