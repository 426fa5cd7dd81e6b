/*
 * @module service/models/rule
 * @description 数据质量规则模型定义，包括规则本体、激活周期和规则文档
 * @architecture 分层架构 - 数据模型层
 * @documentReference ai_docs/quality_rule_engine_req.md
 * @stateFlow 规则创建 -> 激活/停用 -> 执行 -> 删除
 * @rules 激活历史中最多只有一个开放周期，且开放周期存在当且仅当规则处于激活状态
 * @dependencies encoding/json, time
 * @refs service/rule_repo/repository.go, service/quality/engine.go
 */

package models

import (
	"encoding/json"
	"time"
)

// ActivationPeriod 规则激活周期
// DeactivatedAt 为 nil 表示周期仍然开放（规则当前处于激活状态）
type ActivationPeriod struct {
	ActivatedAt   time.Time  `json:"activated_at"`
	DeactivatedAt *time.Time `json:"deactivated_at"`
}

// Closed 判断周期是否已关闭
func (p ActivationPeriod) Closed() bool {
	return p.DeactivatedAt != nil
}

// Duration 计算周期时长，开放周期以 now 作为终点
func (p ActivationPeriod) Duration(now time.Time) time.Duration {
	end := now
	if p.DeactivatedAt != nil {
		end = *p.DeactivatedAt
	}
	if end.Before(p.ActivatedAt) {
		return 0
	}
	return end.Sub(p.ActivatedAt)
}

// QualityRule 数据质量规则
// Expression 为不透明的校验谓词，由沙箱求值器执行；
// 绑定列名和表名通过 {{column}} / {{table}} 占位符在执行前替换
type QualityRule struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Description       string             `json:"description,omitempty"`
	Category          string             `json:"category,omitempty"`
	Severity          string             `json:"severity"` // Low/Medium/High/Critical
	Type              string             `json:"type,omitempty"`
	Scope             string             `json:"scope"` // table/column
	ColumnName        string             `json:"column_name,omitempty"`
	Expression        string             `json:"validation_code"`
	Message           string             `json:"message,omitempty"`
	Active            bool               `json:"active"`
	ActivationHistory []ActivationPeriod `json:"activation_history,omitempty"`

	// 持久化文档中的未知字段，在加载/保存时保持原样
	Extra map[string]interface{} `json:"-"`
}

// ruleAlias 避免 UnmarshalJSON 递归
type ruleAlias QualityRule

// 规则文档中的已知字段名，反序列化时其余字段进入 Extra
var ruleKnownFields = map[string]struct{}{
	"id": {}, "name": {}, "description": {}, "category": {}, "severity": {},
	"type": {}, "scope": {}, "column_name": {}, "validation_code": {},
	"message": {}, "active": {}, "activation_history": {},
}

// UnmarshalJSON 反序列化规则并保留未知字段
// 缺省值策略: active 默认 true, severity 默认 Medium
func (r *QualityRule) UnmarshalJSON(data []byte) error {
	alias := ruleAlias{Active: true, Severity: "Medium"}
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	// active 显式为 null 或缺失时保持默认 true
	if v, ok := raw["active"]; ok && string(v) == "null" {
		alias.Active = true
	}
	if v, ok := raw["severity"]; ok && (string(v) == "null" || string(v) == `""`) {
		alias.Severity = "Medium"
	}

	for key, value := range raw {
		if _, known := ruleKnownFields[key]; known {
			continue
		}
		if alias.Extra == nil {
			alias.Extra = make(map[string]interface{})
		}
		var decoded interface{}
		if err := json.Unmarshal(value, &decoded); err != nil {
			return err
		}
		alias.Extra[key] = decoded
	}

	*r = QualityRule(alias)
	return nil
}

// MarshalJSON 序列化规则并回写未知字段
func (r QualityRule) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(ruleAlias(r))
	if err != nil {
		return nil, err
	}

	if len(r.Extra) == 0 {
		return data, nil
	}

	merged := make(map[string]interface{})
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for key, value := range r.Extra {
		if _, known := ruleKnownFields[key]; known {
			continue
		}
		merged[key] = value
	}
	return json.Marshal(merged)
}

// OpenPeriodIndex 返回当前开放周期的下标，没有开放周期时返回 -1
func (r *QualityRule) OpenPeriodIndex() int {
	for i := range r.ActivationHistory {
		if !r.ActivationHistory[i].Closed() {
			return i
		}
	}
	return -1
}

// RuleDocument 规则持久化文档，每个类别一行
// Rules 为该类别下按顺序排列的规则对象数组
type RuleDocument struct {
	Category  string            `gorm:"primaryKey;size:100" json:"category"`
	Rules     JSONBGenericArray `gorm:"type:jsonb;not null" json:"rules"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName 指定表名
func (RuleDocument) TableName() string {
	return "rule_documents"
}
