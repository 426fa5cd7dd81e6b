/*
 * @module service/dataset/interface
 * @description 数据集访问接口定义，屏蔽底层存储差异（行式/列式、不同数据库后端）
 * @architecture 适配器模式 - 引擎只依赖本接口，不感知具体后端
 * @documentReference ai_docs/quality_rule_engine_req.md 第6节
 * @stateFlow 引擎在每次运行开始时拉取一次数据集快照，运行期间快照只读
 * @rules 实现之间可互换，引擎内部不允许按后端类型分支
 * @dependencies context, errors
 * @refs gorm_accessor.go, service/quality/engine.go
 */

package dataset

import (
	"context"
	"errors"
)

// ErrTableNotFound 请求的数据表不存在
var ErrTableNotFound = errors.New("数据表不存在")

// ColumnSchema 列结构信息
type ColumnSchema struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Nullable   bool   `json:"nullable"`
	PrimaryKey bool   `json:"primary_key"`
}

// Dataset 数据集只读快照
// Rows 为行式记录，列名到值的映射；值为数据库驱动返回的原生类型
type Dataset struct {
	TableName string
	Columns   []ColumnSchema
	Rows      []map[string]interface{}
}

// RowCount 行数
func (d *Dataset) RowCount() int {
	return len(d.Rows)
}

// ColumnNames 按结构顺序返回列名
func (d *Dataset) ColumnNames() []string {
	names := make([]string, 0, len(d.Columns))
	for _, c := range d.Columns {
		names = append(names, c.Name)
	}
	return names
}

// Column 按列名提取整列值，缺失列返回 nil
func (d *Dataset) Column(name string) []interface{} {
	found := false
	for _, c := range d.Columns {
		if c.Name == name {
			found = true
			break
		}
	}
	if !found {
		return nil
	}

	values := make([]interface{}, 0, len(d.Rows))
	for _, row := range d.Rows {
		values = append(values, row[name])
	}
	return values
}

// Accessor 数据集访问器接口
type Accessor interface {
	// TableNames 列出可访问的数据表
	TableNames(ctx context.Context) ([]string, error)

	// Schema 获取表结构
	Schema(ctx context.Context, table string) ([]ColumnSchema, error)

	// Fetch 拉取整表只读快照
	Fetch(ctx context.Context, table string) (*Dataset, error)

	// RowCount 获取表行数
	RowCount(ctx context.Context, table string) (int64, error)
}
