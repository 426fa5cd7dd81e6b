/*
 * @module service/scheduler/quality_scheduler
 * @description 质量检测定时调度器，按cron表达式周期性触发指定表的质量检测
 * @architecture 分层架构 - 服务层
 * @documentReference ai_docs/quality_rule_engine_req.md 第7节
 * @stateFlow 启动调度器 -> 注册表调度 -> 定时触发执行 -> 停止
 * @rules 同一张表同时只注册一个调度；重复注册时替换原有调度
 * @dependencies github.com/robfig/cron/v3
 * @refs service/quality/engine.go
 */

package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"dataquality-service/service/quality"

	"github.com/robfig/cron/v3"
)

// QualityScheduler 质量检测定时调度器
type QualityScheduler struct {
	engine  *quality.Engine
	cron    *cron.Cron
	mu      sync.Mutex
	entries map[string]cron.EntryID // table -> 调度项
	started bool
}

// NewQualityScheduler 创建调度器
func NewQualityScheduler(engine *quality.Engine) *QualityScheduler {
	return &QualityScheduler{
		engine:  engine,
		cron:    cron.New(cron.WithSeconds()),
		entries: make(map[string]cron.EntryID),
	}
}

// Start 启动调度器
// 环境变量 QUALITY_CRON 配置后会为数据库中所有表注册全量检测调度
func (qs *QualityScheduler) Start() error {
	qs.mu.Lock()
	defer qs.mu.Unlock()

	if qs.started {
		return fmt.Errorf("调度器已经启动")
	}

	qs.cron.Start()
	qs.started = true
	slog.Info("质量检测调度器启动完成")

	if expr := os.Getenv("QUALITY_CRON"); expr != "" {
		if err := qs.scheduleAllLocked(expr); err != nil {
			slog.Error("注册全量检测调度失败", "cron", expr, "error", err)
			return err
		}
	}
	return nil
}

// Stop 停止调度器，等待在途任务完成
func (qs *QualityScheduler) Stop() {
	qs.mu.Lock()
	defer qs.mu.Unlock()

	if !qs.started {
		return
	}

	ctx := qs.cron.Stop()
	<-ctx.Done()
	qs.started = false
	slog.Info("质量检测调度器已停止")
}

// Schedule 为指定表注册周期性检测，已存在的调度被替换
func (qs *QualityScheduler) Schedule(table, cronExpr string) error {
	qs.mu.Lock()
	defer qs.mu.Unlock()

	if old, ok := qs.entries[table]; ok {
		qs.cron.Remove(old)
	}

	entryID, err := qs.cron.AddFunc(cronExpr, func() {
		qs.runTable(table)
	})
	if err != nil {
		return fmt.Errorf("注册表 %s 调度失败: %w", table, err)
	}

	qs.entries[table] = entryID
	slog.Info("已注册表检测调度", "table", table, "cron", cronExpr)
	return nil
}

// Unschedule 取消指定表的周期性检测
func (qs *QualityScheduler) Unschedule(table string) {
	qs.mu.Lock()
	defer qs.mu.Unlock()

	if entryID, ok := qs.entries[table]; ok {
		qs.cron.Remove(entryID)
		delete(qs.entries, table)
		slog.Info("已取消表检测调度", "table", table)
	}
}

// ScheduledTables 返回当前已注册调度的表
func (qs *QualityScheduler) ScheduledTables() []string {
	qs.mu.Lock()
	defer qs.mu.Unlock()

	tables := make([]string, 0, len(qs.entries))
	for table := range qs.entries {
		tables = append(tables, table)
	}
	return tables
}

// scheduleAllLocked 注册全量检测调度，触发时对所有表各执行一轮
func (qs *QualityScheduler) scheduleAllLocked(cronExpr string) error {
	_, err := qs.cron.AddFunc(cronExpr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		runs, err := qs.engine.RunAll(ctx)
		if err != nil {
			slog.Error("定时全量检测失败", "error", err)
			return
		}
		slog.Info("定时全量检测完成", "tables", len(runs))
	})
	if err != nil {
		return err
	}

	slog.Info("已注册全量检测调度", "cron", cronExpr)
	return nil
}

// runTable 执行单表定时检测
func (qs *QualityScheduler) runTable(table string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	run, err := qs.engine.Run(ctx, table)
	if err != nil {
		slog.Error("定时检测失败", "table", table, "error", err)
		return
	}
	slog.Info("定时检测完成", "table", table, "run_id", run.RunID,
		"pass_rate", run.PassRate, "overall_score", run.Metrics.OverallScore)
}
