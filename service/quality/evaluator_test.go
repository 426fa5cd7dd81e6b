/*
 * @module service/quality/evaluator_test
 * @description 沙箱谓词求值器单元测试
 * @architecture 测试层 - 单元测试
 */

package quality

import (
	"testing"

	"dataquality-service/service/dataset"
	"dataquality-service/service/meta"
	"dataquality-service/service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evaluatorDataset() *dataset.Dataset {
	return buildDataset("users",
		[]dataset.ColumnSchema{
			{Name: "name", Type: "TEXT"},
			{Name: "age", Type: "INTEGER"},
		},
		[]map[string]interface{}{
			{"name": "user_1", "age": int64(21)},
			{"name": "user_2", "age": int64(35)},
			{"name": nil, "age": int64(250)},
		})
}

func columnRule(code string) *models.QualityRule {
	return &models.QualityRule{
		ID:         "rule-col",
		Name:       "列级规则",
		Scope:      meta.ScopeColumn,
		Severity:   meta.SeverityMedium,
		Expression: code,
	}
}

func tableRule(code string) *models.QualityRule {
	return &models.QualityRule{
		ID:         "rule-table",
		Name:       "表级规则",
		Scope:      meta.ScopeTable,
		Severity:   meta.SeverityHigh,
		Expression: code,
	}
}

func TestEvaluateRowMask(t *testing.T) {
	e := NewPredicateEvaluator()
	rule := columnRule(`
	values := col(column)
	mask := make([]bool, rowCount)
	for i, v := range values {
		mask[i] = isNull(v)
	}
	return mask, nil`)

	outcome := e.Evaluate(rule, evaluatorDataset(), "name")

	require.Equal(t, OutcomeRowMask, outcome.Kind, outcome.Err)
	assert.Equal(t, []bool{false, false, true}, outcome.Mask)
}

func TestEvaluateScalar(t *testing.T) {
	e := NewPredicateEvaluator()

	passed := e.Evaluate(tableRule("\treturn rowCount >= 3, nil"), evaluatorDataset(), "")
	require.Equal(t, OutcomeScalar, passed.Kind, passed.Err)
	assert.True(t, passed.Value)

	failed := e.Evaluate(tableRule("\treturn rowCount >= 100, nil"), evaluatorDataset(), "")
	require.Equal(t, OutcomeScalar, failed.Kind, failed.Err)
	assert.False(t, failed.Value)
}

func TestEvaluatePlaceholderSubstitution(t *testing.T) {
	e := NewPredicateEvaluator()
	rule := columnRule(`
	values := col("{{column}}")
	return table == "users" && distinctCount(values) == 2, nil`)

	outcome := e.Evaluate(rule, evaluatorDataset(), "name")

	require.Equal(t, OutcomeScalar, outcome.Kind, outcome.Err)
	assert.True(t, outcome.Value, "占位符应在执行前替换为绑定列名和表名")
}

func TestEvaluatePrimitives(t *testing.T) {
	e := NewPredicateEvaluator()
	rule := columnRule(`
	values := col("age")
	mask := make([]bool, rowCount)
	for i, v := range values {
		mask[i] = !between(v, 0, 150)
	}
	return mask, nil`)

	outcome := e.Evaluate(rule, evaluatorDataset(), "age")

	require.Equal(t, OutcomeRowMask, outcome.Kind, outcome.Err)
	assert.Equal(t, []bool{false, false, true}, outcome.Mask, "越界年龄应被标记")
}

func TestEvaluateCompileErrorContained(t *testing.T) {
	e := NewPredicateEvaluator()
	rule := tableRule("\tthis is not valid go code")

	outcome := e.Evaluate(rule, evaluatorDataset(), "")

	assert.Equal(t, OutcomeError, outcome.Kind)
	assert.NotEmpty(t, outcome.Err)
}

func TestEvaluateRuntimePanicContained(t *testing.T) {
	e := NewPredicateEvaluator()
	// 编译通过但越界访问在运行期panic
	rule := tableRule(`
	var empty []bool
	return empty[5], nil`)

	outcome := e.Evaluate(rule, evaluatorDataset(), "")

	assert.Equal(t, OutcomeError, outcome.Kind, "谓词运行时panic不应向外传播")
	assert.NotEmpty(t, outcome.Err)
}

func TestEvaluateShapeDetection(t *testing.T) {
	e := NewPredicateEvaluator()
	ds := evaluatorDataset()
	maskCode := `
	values := col(column)
	mask := make([]bool, rowCount)
	for i, v := range values {
		mask[i] = isNull(v)
	}
	return mask, nil`

	// 同一求值器内标量与行掩码谓词各自按形态编译
	scalar := e.Evaluate(tableRule("\treturn rowCount >= 3, nil"), ds, "")
	require.Equal(t, OutcomeScalar, scalar.Kind, scalar.Err)
	assert.True(t, scalar.Value)

	mask := e.Evaluate(columnRule(maskCode), ds, "name")
	require.Equal(t, OutcomeRowMask, mask.Kind, mask.Err)

	// 缓存命中后形态保持不变
	again := e.Evaluate(tableRule("\treturn rowCount >= 3, nil"), ds, "")
	require.Equal(t, OutcomeScalar, again.Kind, again.Err)
	assert.True(t, again.Value)
}

func TestEvaluateUnsupportedReturnType(t *testing.T) {
	e := NewPredicateEvaluator()

	outcome := e.Evaluate(tableRule("\treturn 42, nil"), evaluatorDataset(), "")
	assert.Equal(t, OutcomeError, outcome.Kind)

	short := e.Evaluate(tableRule("\treturn []bool{true}, nil"), evaluatorDataset(), "")
	assert.Equal(t, OutcomeError, short.Kind, "行掩码长度必须与行数一致")
}

func TestEvaluateColumnRuleRequiresBinding(t *testing.T) {
	e := NewPredicateEvaluator()

	outcome := e.Evaluate(columnRule("\treturn true, nil"), evaluatorDataset(), "")
	assert.Equal(t, OutcomeError, outcome.Kind)
}

func TestEvaluateSandboxHasNoStdlib(t *testing.T) {
	e := NewPredicateEvaluator()
	rule := tableRule(`
	f, err := os.Open("/etc/passwd")
	_ = f
	return err == nil, nil`)

	outcome := e.Evaluate(rule, evaluatorDataset(), "")

	assert.Equal(t, OutcomeError, outcome.Kind, "谓词不应能访问标准库能力")
}

func TestValidate(t *testing.T) {
	e := NewPredicateEvaluator()

	assert.NoError(t, e.Validate("\treturn rowCount > 0, nil"))
	assert.NoError(t, e.Validate("\treturn len(col(\"{{column}}\")) > 0, nil"))
	assert.Error(t, e.Validate("\tnot valid go"))
}
