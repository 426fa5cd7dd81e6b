/*
 * @module testutil/test_helper
 * @description 测试工具和辅助函数
 * @architecture 测试基础设施 - 提供测试通用工具和数据工厂
 * @documentReference ai_docs/quality_rule_engine_req.md 第8节
 * @stateFlow 测试环境初始化 -> 测试数据创建 -> 测试执行 -> 清理资源
 * @rules 提供可重用的测试工具，确保测试环境的一致性
 * @dependencies gorm, sqlite, time
 * @refs service/models
 */

package testutil

import (
	"fmt"
	"time"

	"dataquality-service/service/meta"
	"dataquality-service/service/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB 测试数据库配置
type TestDB struct {
	DB *gorm.DB
}

// NewTestDB 创建测试数据库
func NewTestDB() *TestDB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(fmt.Sprintf("failed to connect test database: %v", err))
	}

	// 自动迁移所有模型
	err = db.AutoMigrate(
		&models.RuleDocument{},
		&models.ExecutionRun{},
	)
	if err != nil {
		panic(fmt.Sprintf("failed to migrate test database: %v", err))
	}

	return &TestDB{DB: db}
}

// CleanDB 清理数据库
func (tdb *TestDB) CleanDB() {
	tables := []string{
		"rule_documents",
		"execution_runs",
	}

	for _, table := range tables {
		tdb.DB.Exec(fmt.Sprintf("DELETE FROM %s", table))
	}
}

// Close 关闭数据库连接
func (tdb *TestDB) Close() {
	if sqlDB, err := tdb.DB.DB(); err == nil {
		sqlDB.Close()
	}
}

// SeedUserTable 创建并填充被检测的用户表
// 含20行数据：email列有1个空值，age列有1个越界值，部分name重复
func (tdb *TestDB) SeedUserTable() {
	tdb.DB.Exec(`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		name TEXT,
		email TEXT,
		age INTEGER
	)`)
	tdb.DB.Exec("DELETE FROM users")

	for i := 1; i <= 20; i++ {
		name := fmt.Sprintf("user_%d", i)
		if i%10 == 0 {
			name = "user_1" // 制造重复
		}
		email := fmt.Sprintf("user_%d@example.com", i)
		age := 20 + i

		if i == 7 {
			tdb.DB.Exec("INSERT INTO users (id, name, email, age) VALUES (?, ?, NULL, ?)", i, name, age)
			continue
		}
		if i == 13 {
			age = 250 // 越界年龄
		}
		tdb.DB.Exec("INSERT INTO users (id, name, email, age) VALUES (?, ?, ?, ?)", i, name, email, age)
	}
}

// SeedEmptyTable 创建一张空表
func (tdb *TestDB) SeedEmptyTable(name string) {
	tdb.DB.Exec(fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id INTEGER PRIMARY KEY,
		value TEXT
	)`, name))
	tdb.DB.Exec(fmt.Sprintf("DELETE FROM %s", name))
}

// NewTestRule 创建测试用质量规则
func NewTestRule(id, name string) *models.QualityRule {
	return &models.QualityRule{
		ID:         id,
		Name:       name,
		Category:   "completeness",
		Severity:   meta.SeverityMedium,
		Scope:      meta.ScopeColumn,
		ColumnName: "email",
		Expression: `
	values := col(column)
	mask := make([]bool, rowCount)
	for i, v := range values {
		mask[i] = isNull(v)
	}
	return mask, nil`,
		Message: "{{column}} 列存在空值",
		Active:  true,
	}
}

// NewTableRule 创建表级测试规则
func NewTableRule(id, name string, minRows int) *models.QualityRule {
	return &models.QualityRule{
		ID:         id,
		Name:       name,
		Category:   "volume",
		Severity:   meta.SeverityHigh,
		Scope:      meta.ScopeTable,
		Expression: fmt.Sprintf("\treturn rowCount >= %d, nil", minRows),
		Message:    "{{table}} 表行数不足",
		Active:     true,
	}
}

// NewActivationPeriod 创建已关闭的激活区间
func NewActivationPeriod(start time.Time, duration time.Duration) models.ActivationPeriod {
	end := start.Add(duration)
	return models.ActivationPeriod{
		ActivatedAt:   start,
		DeactivatedAt: &end,
	}
}
