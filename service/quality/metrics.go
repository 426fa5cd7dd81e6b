/*
 * @module service/quality/metrics
 * @description 质量指标计算器，在数据集快照上计算完整性、唯一性、有效性与综合得分
 * @architecture 纯计算层 - 无副作用，输入数据集快照输出指标结构
 * @documentReference ai_docs/quality_rule_engine_req.md 第4.3节
 * @stateFlow 逐列统计 -> 列指标 -> 表级均值 -> 加权综合得分
 * @rules
 *   - 所有指标取值落在 [0, 1] 区间
 *   - 空数据集（0行）所有指标为 0；无列同样为 0
 *   - 有效性按列二值判定：列中存在类型不符值即记 0
 * @dependencies service/utils, service/meta
 * @refs service/models/execution.go, engine.go
 */

package quality

import (
	"dataquality-service/service/dataset"
	"dataquality-service/service/meta"
	"dataquality-service/service/models"
	"dataquality-service/service/utils"
)

// MetricsCalculator 质量指标计算器
type MetricsCalculator struct{}

// NewMetricsCalculator 创建指标计算器
func NewMetricsCalculator() *MetricsCalculator {
	return &MetricsCalculator{}
}

// Compute 在数据集快照上计算全部质量指标
func (c *MetricsCalculator) Compute(ds *dataset.Dataset) *models.QualityMetrics {
	metrics := &models.QualityMetrics{
		Columns: make(map[string]models.ColumnMetric),
	}

	rowCount := ds.RowCount()
	if rowCount == 0 || len(ds.Columns) == 0 {
		// 空表无从度量，每列与表级指标都记 0
		for _, schema := range ds.Columns {
			metrics.Columns[schema.Name] = models.ColumnMetric{}
		}
		return metrics
	}

	var sumCompleteness, sumUniqueness, sumValidity float64
	for _, schema := range ds.Columns {
		cm := c.computeColumn(ds, schema, rowCount)
		metrics.Columns[schema.Name] = cm
		sumCompleteness += cm.Completeness
		sumUniqueness += cm.Uniqueness
		sumValidity += cm.Validity
	}

	n := float64(len(ds.Columns))
	metrics.Completeness = sumCompleteness / n
	metrics.Uniqueness = sumUniqueness / n
	metrics.Validity = sumValidity / n
	metrics.OverallScore = meta.WeightCompleteness*metrics.Completeness +
		meta.WeightUniqueness*metrics.Uniqueness +
		meta.WeightValidity*metrics.Validity

	return metrics
}

// computeColumn 计算单列指标
func (c *MetricsCalculator) computeColumn(ds *dataset.Dataset, schema dataset.ColumnSchema, rowCount int) models.ColumnMetric {
	values := ds.Column(schema.Name)
	declared := utils.DeclaredTypeCategory(schema.Type)

	nullCount := 0
	distinct := make(map[string]struct{})
	valid := true
	for _, v := range values {
		if utils.IsNull(v) {
			nullCount++
			continue
		}
		distinct[utils.ToString(v)] = struct{}{}
		if !utils.CategoryConforms(utils.RuntimeTypeCategory(v), declared) {
			valid = false
		}
	}

	nonNull := rowCount - nullCount
	cm := models.ColumnMetric{
		NullCount:     int64(nullCount),
		DistinctCount: int64(len(distinct)),
		Completeness:  float64(nonNull) / float64(rowCount),
		Uniqueness:    float64(len(distinct)) / float64(rowCount),
	}

	// 全空列没有可判定的值，有效性按空真处理
	if nonNull == 0 {
		cm.Validity = 1.0
		return cm
	}

	if valid {
		cm.Validity = 1.0
	}
	return cm
}

// Profile 计算数据集的列画像统计，随执行记录一同落库
// 数值列附带 min/max/mean，所有列附带空值与基数统计
func (c *MetricsCalculator) Profile(ds *dataset.Dataset) models.JSONB {
	profile := models.JSONB{
		"row_count":    ds.RowCount(),
		"column_count": len(ds.Columns),
	}

	columns := make(map[string]interface{}, len(ds.Columns))
	for _, schema := range ds.Columns {
		values := ds.Column(schema.Name)

		nullCount := 0
		distinct := make(map[string]struct{})
		var sum, min, max float64
		numeric := 0
		for _, v := range values {
			if utils.IsNull(v) {
				nullCount++
				continue
			}
			distinct[utils.ToString(v)] = struct{}{}
			if f, ok := utils.ToFloat(v); ok {
				if numeric == 0 || f < min {
					min = f
				}
				if numeric == 0 || f > max {
					max = f
				}
				sum += f
				numeric++
			}
		}

		stat := map[string]interface{}{
			"type":           schema.Type,
			"null_count":     nullCount,
			"distinct_count": len(distinct),
		}
		if numeric > 0 {
			stat["min"] = min
			stat["max"] = max
			stat["mean"] = sum / float64(numeric)
		}
		columns[schema.Name] = stat
	}
	profile["columns"] = columns

	return profile
}
