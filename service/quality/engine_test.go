/*
 * @module service/quality/engine_test
 * @description 执行编排器集成测试，覆盖完整的检测运行流程
 * @architecture 测试层 - 集成测试
 */

package quality

import (
	"context"
	"strings"
	"testing"

	"dataquality-service/service/dataset"
	"dataquality-service/service/history"
	"dataquality-service/service/models"
	"dataquality-service/service/rule_repo"
	"dataquality-service/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEngine(t *testing.T) (*Engine, *rule_repo.Repository, *history.Store, *testutil.TestDB) {
	tdb := testutil.NewTestDB()
	t.Cleanup(tdb.Close)

	repo := rule_repo.NewRepository(tdb.DB)
	store := history.NewStore(tdb.DB)
	accessor := dataset.NewGormAccessor(tdb.DB)
	engine := NewEngine(repo, accessor, store)

	return engine, repo, store, tdb
}

func TestRunFullCycle(t *testing.T) {
	engine, repo, store, tdb := setupEngine(t)
	ctx := context.Background()
	tdb.SeedUserTable()

	// 列级规则：email 非空（20行中1个空值）
	require.NoError(t, repo.CreateRule(ctx, testutil.NewTestRule("rule-email", "邮箱非空")))
	// 表级规则：至少5行
	require.NoError(t, repo.CreateRule(ctx, testutil.NewTableRule("rule-volume", "最小行数", 5)))

	run, err := engine.Run(ctx, "users")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(run.RunID, "RUN_"))
	assert.Equal(t, "users", run.TableName)
	assert.Equal(t, 2, run.RulesExecuted)
	assert.Equal(t, 1, run.FailedRules)
	assert.InDelta(t, 0.5, run.PassRate, 1e-9)

	byID := make(map[string]models.RuleResult)
	for _, res := range run.RuleResults {
		byID[res.RuleID] = res
	}

	emailResult := byID["rule-email"]
	assert.Equal(t, models.RuleStatusFailed, emailResult.Status)
	assert.Equal(t, int64(1), emailResult.ViolationCount)
	assert.Equal(t, "email", emailResult.Column)
	assert.Contains(t, emailResult.Message, "email", "提示信息中的占位符应被替换")

	volumeResult := byID["rule-volume"]
	assert.Equal(t, models.RuleStatusPassed, volumeResult.Status)

	// 指标已计算
	assert.InDelta(t, 0.95, run.Metrics.Columns["email"].Completeness, 1e-9)
	assert.Greater(t, run.Metrics.OverallScore, 0.0)
	assert.NotNil(t, run.Statistics)

	// 执行记录已落库
	persisted, err := store.Get(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, run.RulesExecuted, persisted.RulesExecuted)
}

func TestRunScalarFailureCountsAllRows(t *testing.T) {
	engine, repo, _, tdb := setupEngine(t)
	ctx := context.Background()
	tdb.SeedUserTable()

	require.NoError(t, repo.CreateRule(ctx, testutil.NewTableRule("rule-volume", "行数下限", 1000)))

	run, err := engine.Run(ctx, "users")
	require.NoError(t, err)

	require.Len(t, run.RuleResults, 1)
	result := run.RuleResults[0]
	assert.Equal(t, models.RuleStatusFailed, result.Status)
	assert.Equal(t, int64(20), result.ViolationCount, "表级断言失败时整表行数计为违规量")
}

func TestRunContainsRuleFailure(t *testing.T) {
	engine, repo, _, tdb := setupEngine(t)
	ctx := context.Background()
	tdb.SeedUserTable()

	broken := testutil.NewTestRule("rule-broken", "损坏规则")
	broken.Expression = "\tthis is not go"
	// 直接入库绕过创建时的语法校验
	require.NoError(t, repo.CreateRule(ctx, broken))
	require.NoError(t, repo.CreateRule(ctx, testutil.NewTableRule("rule-ok", "正常规则", 1)))

	run, err := engine.Run(ctx, "users")
	require.NoError(t, err, "单条规则失败不应中断整轮执行")

	assert.Equal(t, 2, run.RulesExecuted)
	assert.Equal(t, 1, run.FailedRules, "error状态的规则计入失败数")

	byID := make(map[string]models.RuleResult)
	for _, res := range run.RuleResults {
		byID[res.RuleID] = res
	}
	assert.Equal(t, models.RuleStatusError, byID["rule-broken"].Status)
	assert.Equal(t, models.RuleStatusPassed, byID["rule-ok"].Status)
}

func TestRunColumnFanOut(t *testing.T) {
	engine, repo, _, tdb := setupEngine(t)
	ctx := context.Background()
	tdb.SeedUserTable()

	// 未绑定列的列级规则在所有列上展开
	unbound := testutil.NewTestRule("rule-unbound", "全列非空")
	unbound.ColumnName = ""
	require.NoError(t, repo.CreateRule(ctx, unbound))

	run, err := engine.Run(ctx, "users")
	require.NoError(t, err)

	// users 表有 id/name/email/age 四列
	assert.Equal(t, 4, run.RulesExecuted)

	columns := make(map[string]bool)
	for _, res := range run.RuleResults {
		assert.Equal(t, "rule-unbound", res.RuleID)
		columns[res.Column] = true
	}
	assert.Len(t, columns, 4)
}

func TestRunEmptyTable(t *testing.T) {
	engine, repo, _, tdb := setupEngine(t)
	ctx := context.Background()
	tdb.SeedEmptyTable("empty_table")

	require.NoError(t, repo.CreateRule(ctx, testutil.NewTableRule("rule-volume", "行数检查", 1)))

	run, err := engine.Run(ctx, "empty_table")
	require.NoError(t, err, "空表不应导致运行失败")

	assert.Equal(t, 0.0, run.Metrics.OverallScore)
	require.Len(t, run.RuleResults, 1)
	assert.Equal(t, models.RuleStatusFailed, run.RuleResults[0].Status)
	assert.Equal(t, int64(0), run.RuleResults[0].ViolationCount)
}

func TestRunNoActiveRules(t *testing.T) {
	engine, repo, _, tdb := setupEngine(t)
	ctx := context.Background()
	tdb.SeedUserTable()

	inactive := testutil.NewTestRule("rule-off", "停用规则")
	inactive.Active = false
	inactive.ActivationHistory = nil
	require.NoError(t, repo.CreateRule(ctx, inactive))

	run, err := engine.Run(ctx, "users")
	require.NoError(t, err)

	assert.Equal(t, 0, run.RulesExecuted, "停用规则不参与执行")
	assert.Equal(t, 0.0, run.PassRate, "没有执行任何规则时通过率记0")
	assert.Greater(t, run.Metrics.OverallScore, 0.0, "没有规则时仍然计算指标")
}

func TestRunMissingTableFailsAtomically(t *testing.T) {
	engine, _, store, _ := setupEngine(t)
	ctx := context.Background()

	_, err := engine.Run(ctx, "no_such_table")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEngine)

	runs, err := store.Query(ctx, "", 0)
	require.NoError(t, err)
	assert.Empty(t, runs, "失败的运行不应留下执行记录")
}

func TestRunNotifierAndObserverInvoked(t *testing.T) {
	engine, repo, _, tdb := setupEngine(t)
	ctx := context.Background()
	tdb.SeedUserTable()

	require.NoError(t, repo.CreateRule(ctx, testutil.NewTableRule("rule-volume", "行数检查", 1)))

	notified := make(chan *models.ExecutionRun, 1)
	engine.SetNotifier(notifierFunc(func(ctx context.Context, run *models.ExecutionRun) {
		notified <- run
	}))

	var observed *models.ExecutionRun
	engine.SetObserver(observerFunc(func(run *models.ExecutionRun) {
		observed = run
	}))

	run, err := engine.Run(ctx, "users")
	require.NoError(t, err)

	select {
	case got := <-notified:
		assert.Equal(t, run.RunID, got.RunID)
	default:
		t.Fatal("通知器未被调用")
	}
	require.NotNil(t, observed)
	assert.Equal(t, run.RunID, observed.RunID)
}

type notifierFunc func(ctx context.Context, run *models.ExecutionRun)

func (f notifierFunc) NotifyRunComplete(ctx context.Context, run *models.ExecutionRun) { f(ctx, run) }

type observerFunc func(run *models.ExecutionRun)

func (f observerFunc) ObserveRun(run *models.ExecutionRun) { f(run) }
