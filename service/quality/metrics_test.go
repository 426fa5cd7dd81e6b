/*
 * @module service/quality/metrics_test
 * @description 质量指标计算器单元测试
 * @architecture 测试层 - 单元测试
 */

package quality

import (
	"fmt"
	"testing"

	"dataquality-service/service/dataset"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildDataset 构造内存数据集
func buildDataset(table string, columns []dataset.ColumnSchema, rows []map[string]interface{}) *dataset.Dataset {
	return &dataset.Dataset{
		TableName: table,
		Columns:   columns,
		Rows:      rows,
	}
}

func TestComputeCompleteness(t *testing.T) {
	// 20行邮箱列，1个空值 -> 完整性 0.95
	columns := []dataset.ColumnSchema{{Name: "email", Type: "TEXT"}}
	rows := make([]map[string]interface{}, 0, 20)
	for i := 0; i < 20; i++ {
		var email interface{} = fmt.Sprintf("user_%d@example.com", i)
		if i == 7 {
			email = nil
		}
		rows = append(rows, map[string]interface{}{"email": email})
	}

	m := NewMetricsCalculator().Compute(buildDataset("users", columns, rows))

	require.Contains(t, m.Columns, "email")
	assert.InDelta(t, 0.95, m.Columns["email"].Completeness, 1e-9)
	assert.Equal(t, int64(1), m.Columns["email"].NullCount)
}

func TestComputeUniqueness(t *testing.T) {
	columns := []dataset.ColumnSchema{{Name: "name", Type: "TEXT"}}
	rows := []map[string]interface{}{
		{"name": "alice"},
		{"name": "bob"},
		{"name": "alice"},
		{"name": nil},
	}

	m := NewMetricsCalculator().Compute(buildDataset("users", columns, rows))

	// 4行中2个不同的非空值
	cm := m.Columns["name"]
	assert.Equal(t, int64(2), cm.DistinctCount)
	assert.InDelta(t, 0.5, cm.Uniqueness, 1e-9)
}

func TestComputeValidityBinary(t *testing.T) {
	columns := []dataset.ColumnSchema{
		{Name: "age", Type: "INTEGER"},
		{Name: "score", Type: "INTEGER"},
	}
	rows := []map[string]interface{}{
		{"age": int64(30), "score": int64(1)},
		{"age": int64(41), "score": "not-a-number"},
	}

	m := NewMetricsCalculator().Compute(buildDataset("users", columns, rows))

	assert.Equal(t, 1.0, m.Columns["age"].Validity)
	assert.Equal(t, 0.0, m.Columns["score"].Validity, "存在类型不符值时整列有效性记0")
}

func TestComputeOverallScoreWeights(t *testing.T) {
	columns := []dataset.ColumnSchema{{Name: "id", Type: "INTEGER"}}
	rows := []map[string]interface{}{
		{"id": int64(1)},
		{"id": int64(2)},
	}

	m := NewMetricsCalculator().Compute(buildDataset("t", columns, rows))

	// 全满列：各维度1.0，综合得分 = 0.4 + 0.3 + 0.3
	assert.InDelta(t, 1.0, m.Completeness, 1e-9)
	assert.InDelta(t, 1.0, m.Uniqueness, 1e-9)
	assert.InDelta(t, 1.0, m.Validity, 1e-9)
	assert.InDelta(t, 1.0, m.OverallScore, 1e-9)
}

func TestComputeEmptyDataset(t *testing.T) {
	columns := []dataset.ColumnSchema{{Name: "id", Type: "INTEGER"}}

	m := NewMetricsCalculator().Compute(buildDataset("empty", columns, nil))

	assert.Equal(t, 0.0, m.Completeness)
	assert.Equal(t, 0.0, m.Uniqueness)
	assert.Equal(t, 0.0, m.Validity)
	assert.Equal(t, 0.0, m.OverallScore)

	// 零行数据集的每一列都有归零指标，而不是缺失
	require.Contains(t, m.Columns, "id")
	assert.Equal(t, 0.0, m.Columns["id"].Completeness)
	assert.Equal(t, 0.0, m.Columns["id"].Validity)
}

func TestComputeAllNullColumn(t *testing.T) {
	columns := []dataset.ColumnSchema{{Name: "note", Type: "TEXT"}}
	rows := []map[string]interface{}{
		{"note": nil},
		{"note": nil},
	}

	m := NewMetricsCalculator().Compute(buildDataset("t", columns, rows))

	cm := m.Columns["note"]
	assert.Equal(t, 0.0, cm.Completeness)
	assert.Equal(t, 0.0, cm.Uniqueness, "全空列没有非空取值，唯一性记0")
	assert.Equal(t, 1.0, cm.Validity, "全空列有效性按空真处理")
}

func TestMetricsAlwaysInUnitRange(t *testing.T) {
	columns := []dataset.ColumnSchema{
		{Name: "a", Type: "TEXT"},
		{Name: "b", Type: "INTEGER"},
	}
	rows := []map[string]interface{}{
		{"a": "x", "b": int64(1)},
		{"a": nil, "b": "oops"},
		{"a": "x", "b": nil},
	}

	m := NewMetricsCalculator().Compute(buildDataset("t", columns, rows))

	for name, cm := range m.Columns {
		assert.GreaterOrEqual(t, cm.Completeness, 0.0, name)
		assert.LessOrEqual(t, cm.Completeness, 1.0, name)
		assert.GreaterOrEqual(t, cm.Uniqueness, 0.0, name)
		assert.LessOrEqual(t, cm.Uniqueness, 1.0, name)
		assert.GreaterOrEqual(t, cm.Validity, 0.0, name)
		assert.LessOrEqual(t, cm.Validity, 1.0, name)
	}
	assert.GreaterOrEqual(t, m.OverallScore, 0.0)
	assert.LessOrEqual(t, m.OverallScore, 1.0)
}

func TestProfile(t *testing.T) {
	columns := []dataset.ColumnSchema{
		{Name: "age", Type: "INTEGER"},
		{Name: "name", Type: "TEXT"},
	}
	rows := []map[string]interface{}{
		{"age": int64(20), "name": "alice"},
		{"age": int64(40), "name": "bob"},
		{"age": nil, "name": "alice"},
	}

	profile := NewMetricsCalculator().Profile(buildDataset("users", columns, rows))

	assert.Equal(t, 3, profile["row_count"])
	cols, ok := profile["columns"].(map[string]interface{})
	require.True(t, ok)

	ageStat := cols["age"].(map[string]interface{})
	assert.Equal(t, 20.0, ageStat["min"])
	assert.Equal(t, 40.0, ageStat["max"])
	assert.InDelta(t, 30.0, ageStat["mean"].(float64), 1e-9)
	assert.Equal(t, 1, ageStat["null_count"])

	nameStat := cols["name"].(map[string]interface{})
	assert.Equal(t, 2, nameStat["distinct_count"])
	assert.NotContains(t, nameStat, "mean", "非数值列不应有数值统计")
}
