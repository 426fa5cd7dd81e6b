/*
 * @module service/quality/engine
 * @description 质量检测执行编排器，驱动 拉取 -> 规则求值 -> 指标计算 -> 持久化 状态机
 * @architecture 编排层 - 组合数据访问、规则仓库、求值器、指标计算与历史存储
 * @documentReference ai_docs/quality_rule_engine_req.md 第4.4节
 * @stateFlow fetching -> evaluating_rules -> computing_metrics -> persisting -> complete/errored
 * @rules
 *   - 单条规则失败不中断整轮执行，规则结果标记为 error
 *   - 数据集拉取失败或历史写入失败导致整轮原子失败，不留部分记录
 *   - 规则求值基于活跃规则快照，执行期间的激活状态变更不影响本轮
 * @dependencies github.com/google/uuid
 * @refs evaluator.go, metrics.go, service/history/history_store.go
 */

package quality

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"dataquality-service/service/dataset"
	"dataquality-service/service/meta"
	"dataquality-service/service/models"
	"dataquality-service/service/rule_repo"

	"github.com/google/uuid"
)

// HistorySink 执行记录持久化接口
type HistorySink interface {
	Append(ctx context.Context, run *models.ExecutionRun) error
}

// RunNotifier 运行完成通知接口，失败不影响运行结果
type RunNotifier interface {
	NotifyRunComplete(ctx context.Context, run *models.ExecutionRun)
}

// RunObserver 运行监控指标观测接口
type RunObserver interface {
	ObserveRun(run *models.ExecutionRun)
}

// evalUnit 一个求值单元：规则与绑定列的组合
// 表级规则对应一个未绑定单元；列级未绑定规则在所有列上展开
type evalUnit struct {
	rule   *models.QualityRule
	column string
}

// Engine 质量检测执行编排器
type Engine struct {
	repo      *rule_repo.Repository
	accessor  dataset.Accessor
	evaluator *PredicateEvaluator
	metrics   *MetricsCalculator
	history   HistorySink
	notifier  RunNotifier
	observer  RunObserver
	workers   int
}

// NewEngine 创建执行编排器
func NewEngine(repo *rule_repo.Repository, accessor dataset.Accessor, history HistorySink) *Engine {
	return &Engine{
		repo:      repo,
		accessor:  accessor,
		evaluator: NewPredicateEvaluator(),
		metrics:   NewMetricsCalculator(),
		history:   history,
		workers:   runtime.NumCPU(),
	}
}

// SetNotifier 设置运行完成通知器
func (e *Engine) SetNotifier(n RunNotifier) {
	e.notifier = n
}

// SetObserver 设置监控指标观测器
func (e *Engine) SetObserver(o RunObserver) {
	e.observer = o
}

// Evaluator 暴露求值器，供规则保存前的语法校验复用编译缓存
func (e *Engine) Evaluator() *PredicateEvaluator {
	return e.evaluator
}

// Run 对指定表执行一轮完整的质量检测
// 返回的执行记录已经落库；返回错误时本轮没有留下任何记录
func (e *Engine) Run(ctx context.Context, table string) (*models.ExecutionRun, error) {
	started := time.Now()
	runID := fmt.Sprintf("RUN_%s_%s", started.Format("20060102_150405"), uuid.NewString()[:8])

	slog.Info("质量检测开始", "run_id", runID, "table", table, "state", meta.RunStateFetching)

	ds, err := e.accessor.Fetch(ctx, table)
	if err != nil {
		slog.Error("数据集拉取失败", "run_id", runID, "table", table, "state", meta.RunStateErrored, "error", err)
		return nil, fmt.Errorf("%w: 拉取表 %s: %w", ErrEngine, table, err)
	}

	// 活跃规则快照，执行期间的激活变更不影响本轮
	rules, err := e.repo.LoadActiveRules(ctx)
	if err != nil {
		slog.Error("规则加载失败", "run_id", runID, "state", meta.RunStateErrored, "error", err)
		return nil, fmt.Errorf("%w: 加载活跃规则: %v", ErrEngine, err)
	}

	slog.Info("规则求值开始", "run_id", runID, "state", meta.RunStateEvaluatingRules,
		"active_rules", len(rules), "row_count", ds.RowCount())

	units := expandUnits(rules, ds)
	results := e.evaluateUnits(ctx, units, ds)

	slog.Info("指标计算开始", "run_id", runID, "state", meta.RunStateComputingMetrics)
	metrics := e.metrics.Compute(ds)
	statistics := e.metrics.Profile(ds)

	failed := 0
	passed := 0
	for _, r := range results {
		switch r.Status {
		case models.RuleStatusPassed:
			passed++
		default:
			// failed 与 error 都计入失败数
			failed++
		}
	}

	passRate := 0.0
	if len(results) > 0 {
		passRate = float64(passed) / float64(len(results))
	}

	run := &models.ExecutionRun{
		RunID:         runID,
		TableName:     table,
		Timestamp:     started,
		Duration:      time.Since(started),
		RulesExecuted: len(results),
		FailedRules:   failed,
		PassRate:      passRate,
		RuleResults:   results,
		Metrics:       *metrics,
		Statistics:    statistics,
	}

	slog.Info("执行记录持久化", "run_id", runID, "state", meta.RunStatePersisting)
	if err := e.history.Append(ctx, run); err != nil {
		slog.Error("执行记录持久化失败", "run_id", runID, "state", meta.RunStateErrored, "error", err)
		return nil, fmt.Errorf("%w: 持久化执行记录: %v", ErrEngine, err)
	}

	// 通知与监控都是尽力而为，不影响已经落库的运行结果
	if e.notifier != nil {
		e.notifier.NotifyRunComplete(ctx, run)
	}
	if e.observer != nil {
		e.observer.ObserveRun(run)
	}

	slog.Info("质量检测完成", "run_id", runID, "state", meta.RunStateComplete,
		"rules_executed", run.RulesExecuted, "failed_rules", run.FailedRules,
		"pass_rate", run.PassRate, "overall_score", run.Metrics.OverallScore,
		"duration", run.Duration)

	return run, nil
}

// RunAll 对数据库中所有表各执行一轮检测，单表失败不中断其余表
func (e *Engine) RunAll(ctx context.Context) ([]*models.ExecutionRun, error) {
	tables, err := e.accessor.TableNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: 获取表列表: %v", ErrEngine, err)
	}

	runs := make([]*models.ExecutionRun, 0, len(tables))
	for _, table := range tables {
		run, err := e.Run(ctx, table)
		if err != nil {
			slog.Error("表检测失败，继续下一个表", "table", table, "error", err)
			continue
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// expandUnits 将规则快照展开为求值单元
// 表级规则一个单元；列级规则绑定列一个单元，未绑定时在所有列上展开
func expandUnits(rules []models.QualityRule, ds *dataset.Dataset) []evalUnit {
	units := make([]evalUnit, 0, len(rules))
	for i := range rules {
		rule := &rules[i]
		switch {
		case rule.Scope == meta.ScopeColumn && rule.ColumnName != "":
			units = append(units, evalUnit{rule: rule, column: rule.ColumnName})
		case rule.Scope == meta.ScopeColumn:
			for _, col := range ds.ColumnNames() {
				units = append(units, evalUnit{rule: rule, column: col})
			}
		default:
			units = append(units, evalUnit{rule: rule})
		}
	}
	return units
}

// evaluateUnits 用有界工作池并发求值，结果保持与单元展开一致的顺序
func (e *Engine) evaluateUnits(ctx context.Context, units []evalUnit, ds *dataset.Dataset) models.RuleResultList {
	results := make(models.RuleResultList, len(units))
	if len(units) == 0 {
		return results
	}

	workers := e.workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(units) {
		workers = len(units)
	}

	type indexedUnit struct {
		idx  int
		unit evalUnit
	}
	jobs := make(chan indexedUnit)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				results[job.idx] = e.evaluateOne(job.unit, ds)
			}
		}()
	}

	for idx, unit := range units {
		select {
		case jobs <- indexedUnit{idx: idx, unit: unit}:
		case <-ctx.Done():
			// 已投递的任务继续完成，剩余单元记为取消错误
			for rest := idx; rest < len(units); rest++ {
				u := units[rest]
				results[rest] = models.RuleResult{
					RuleID:   u.rule.ID,
					RuleName: u.rule.Name,
					Column:   u.column,
					Status:   models.RuleStatusError,
					Severity: u.rule.Severity,
					Message:  "执行被取消",
				}
			}
			close(jobs)
			wg.Wait()
			return results
		}
	}
	close(jobs)
	wg.Wait()
	return results
}

// evaluateOne 求值单个单元并归一化为规则结果
func (e *Engine) evaluateOne(unit evalUnit, ds *dataset.Dataset) models.RuleResult {
	rule := unit.rule
	result := models.RuleResult{
		RuleID:   rule.ID,
		RuleName: rule.Name,
		Column:   unit.column,
		Severity: rule.Severity,
	}

	outcome := e.evaluator.Evaluate(rule, ds, unit.column)
	switch outcome.Kind {
	case OutcomeRowMask:
		violations := int64(0)
		for _, hit := range outcome.Mask {
			if hit {
				violations++
			}
		}
		result.ViolationCount = violations
		if violations > 0 {
			result.Status = models.RuleStatusFailed
			result.Message = substitutePlaceholders(rule.Message, ds.TableName, unit.column)
		} else {
			result.Status = models.RuleStatusPassed
		}
	case OutcomeScalar:
		if outcome.Value {
			result.Status = models.RuleStatusPassed
		} else {
			// 表级断言失败，整表行数计为违规量
			result.Status = models.RuleStatusFailed
			result.ViolationCount = int64(ds.RowCount())
			result.Message = substitutePlaceholders(rule.Message, ds.TableName, unit.column)
		}
	default:
		result.Status = models.RuleStatusError
		result.Message = outcome.Err
		slog.Warn("规则求值失败", "rule_id", rule.ID, "rule_name", rule.Name,
			"column", unit.column, "error", outcome.Err)
	}

	return result
}
