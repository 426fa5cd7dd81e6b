/*
 * @module service/dataset/gorm_accessor
 * @description 基于 GORM 的数据集访问器实现，兼容 PostgreSQL 和 SQLite 后端
 * @architecture 适配器模式 - 数据访问层
 * @documentReference ai_docs/quality_rule_engine_req.md 第6节
 * @stateFlow 表存在性检查 -> 结构读取 -> 数据读取
 * @rules 通过 GORM Migrator 读取结构信息，避免按数据库方言手写系统表查询
 * @dependencies gorm.io/gorm
 * @refs interface.go
 */

package dataset

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// GormAccessor 基于 GORM 的数据集访问器
type GormAccessor struct {
	db *gorm.DB
}

// NewGormAccessor 创建数据集访问器实例
func NewGormAccessor(db *gorm.DB) *GormAccessor {
	return &GormAccessor{db: db}
}

// TableNames 列出数据库中的所有表
func (a *GormAccessor) TableNames(ctx context.Context) ([]string, error) {
	tables, err := a.db.WithContext(ctx).Migrator().GetTables()
	if err != nil {
		return nil, fmt.Errorf("获取表列表失败: %w", err)
	}
	return tables, nil
}

// Schema 获取表结构信息
func (a *GormAccessor) Schema(ctx context.Context, table string) ([]ColumnSchema, error) {
	db := a.db.WithContext(ctx)
	if !db.Migrator().HasTable(table) {
		return nil, fmt.Errorf("表 %s: %w", table, ErrTableNotFound)
	}

	columnTypes, err := db.Migrator().ColumnTypes(table)
	if err != nil {
		return nil, fmt.Errorf("获取表 %s 结构失败: %w", table, err)
	}

	columns := make([]ColumnSchema, 0, len(columnTypes))
	for _, ct := range columnTypes {
		nullable, _ := ct.Nullable()
		primaryKey, _ := ct.PrimaryKey()
		columns = append(columns, ColumnSchema{
			Name:       ct.Name(),
			Type:       ct.DatabaseTypeName(),
			Nullable:   nullable,
			PrimaryKey: primaryKey,
		})
	}
	return columns, nil
}

// Fetch 拉取整表只读快照
func (a *GormAccessor) Fetch(ctx context.Context, table string) (*Dataset, error) {
	columns, err := a.Schema(ctx, table)
	if err != nil {
		return nil, err
	}

	var rows []map[string]interface{}
	if err := a.db.WithContext(ctx).Table(table).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("读取表 %s 数据失败: %w", table, err)
	}

	return &Dataset{
		TableName: table,
		Columns:   columns,
		Rows:      rows,
	}, nil
}

// RowCount 获取表行数
func (a *GormAccessor) RowCount(ctx context.Context, table string) (int64, error) {
	db := a.db.WithContext(ctx)
	if !db.Migrator().HasTable(table) {
		return 0, fmt.Errorf("表 %s: %w", table, ErrTableNotFound)
	}

	var count int64
	if err := db.Table(table).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("统计表 %s 行数失败: %w", table, err)
	}
	return count, nil
}
