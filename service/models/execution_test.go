/*
 * @module service/models/execution_test
 * @description 执行记录模型单元测试
 * @architecture 测试层 - 单元测试
 */

package models

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"
)

// 执行记录依赖gorm默认命名映射到 execution_runs 表
// TableName 字段与同名方法不能共存，表名不再通过方法覆盖
func TestExecutionRunTableNaming(t *testing.T) {
	s, err := schema.Parse(&ExecutionRun{}, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)

	assert.Equal(t, "execution_runs", s.Table)

	field := s.LookUpField("TableName")
	require.NotNil(t, field)
	assert.Equal(t, "table_name", field.DBName)
}

func TestRuleResultListRoundTrip(t *testing.T) {
	list := RuleResultList{
		{RuleID: "r1", RuleName: "非空检查", Status: RuleStatusFailed, ViolationCount: 3, Severity: "high"},
	}

	value, err := list.Value()
	require.NoError(t, err)

	var decoded RuleResultList
	require.NoError(t, decoded.Scan(value))
	assert.Equal(t, list, decoded)

	// 空列表序列化为 []，而不是 null
	var empty RuleResultList
	value, err = empty.Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", string(value.([]byte)))
}
