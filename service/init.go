/*
 * @module service/init
 * @description 服务初始化模块，负责数据库连接、表结构迁移和全局服务装配
 * @architecture 分层架构 - 服务层
 * @documentReference ai_docs/quality_rule_engine_req.md
 * @stateFlow 应用启动时执行初始化流程
 * @rules 确保数据库和核心服务就绪后才提供API服务
 * @dependencies gorm.io/gorm, gorm.io/driver/postgres
 * @refs service/quality/engine.go, main.go
 */

package service

import (
	"fmt"
	"log"
	"os"

	"dataquality-service/service/dataset"
	"dataquality-service/service/distributed_lock"
	"dataquality-service/service/history"
	"dataquality-service/service/models"
	"dataquality-service/service/monitoring"
	"dataquality-service/service/notifier"
	"dataquality-service/service/quality"
	"dataquality-service/service/rule_repo"
	"dataquality-service/service/scheduler"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	DB                     *gorm.DB
	GlobalRuleRepository   *rule_repo.Repository
	GlobalHistoryStore     *history.Store
	GlobalDatasetAccessor  *dataset.GormAccessor
	GlobalQualityEngine    *quality.Engine
	GlobalQualityScheduler *scheduler.QualityScheduler
	GlobalMetricsCollector *monitoring.MetricsCollector
)

func init() {
	initDatabase()
	runMigrations()
	initServices()
}

// initDatabase 初始化数据库连接
func initDatabase() {
	var dsn string

	// 优先使用DATABASE_URL环境变量
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		dsn = databaseURL
	} else {
		// 使用分离的环境变量构建连接字符串
		host := getEnvWithDefault("DB_HOST", "localhost")
		port := getEnvWithDefault("DB_PORT", "5432")
		user := getEnvWithDefault("DB_USER", "postgres")
		password := getEnvWithDefault("DB_PASSWORD", "things2024")
		dbname := getEnvWithDefault("DB_NAME", "postgres")
		sslmode := getEnvWithDefault("DB_SSLMODE", "disable")
		schema := getEnvWithDefault("DB_SCHEMA", "public")

		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s search_path=%s TimeZone=Asia/Shanghai",
			host, port, user, password, dbname, sslmode, schema)
	}

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	log.Println("数据库连接成功")
}

// getEnvWithDefault 获取环境变量，如果不存在则返回默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// runMigrations 运行数据库迁移
func runMigrations() {
	log.Println("开始运行数据库迁移...")

	if err := DB.AutoMigrate(
		&models.RuleDocument{},
		&models.ExecutionRun{},
	); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}

	log.Println("数据库表结构迁移完成")
}

// initServices 初始化服务
func initServices() {
	GlobalRuleRepository = rule_repo.NewRepository(DB)
	GlobalHistoryStore = history.NewStore(DB)
	GlobalDatasetAccessor = dataset.NewGormAccessor(DB)
	GlobalMetricsCollector = monitoring.NewMetricsCollector()

	// 分布式锁，未配置Redis时规则仓库与历史存储退化为进程内互斥
	redisLock, err := distributed_lock.NewRedisLockFromEnv()
	if err != nil {
		log.Printf("Redis分布式锁初始化失败，退化为进程内互斥: %v", err)
	} else if redisLock != nil {
		GlobalRuleRepository.SetDistributedLock(redisLock)
		GlobalHistoryStore.SetDistributedLock(redisLock)
	}

	GlobalQualityEngine = quality.NewEngine(GlobalRuleRepository, GlobalDatasetAccessor, GlobalHistoryStore)
	GlobalQualityEngine.SetObserver(GlobalMetricsCollector)

	// 运行完成通知通道，按环境变量逐个启用
	kafkaNotifier := notifier.NewKafkaNotifierFromEnv()
	mqttNotifier, err := notifier.NewMQTTNotifierFromEnv()
	if err != nil {
		log.Printf("MQTT通知器初始化失败，通道关闭: %v", err)
	}
	if multi := notifier.NewMultiNotifier(kafkaNotifier, mqttNotifier); multi != nil {
		GlobalQualityEngine.SetNotifier(multi)
	}

	// 启动定时调度器
	GlobalQualityScheduler = scheduler.NewQualityScheduler(GlobalQualityEngine)
	if err := GlobalQualityScheduler.Start(); err != nil {
		log.Printf("启动质量检测调度器失败: %v", err)
	}

	log.Println("服务初始化完成")
}
