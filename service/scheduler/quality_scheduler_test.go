/*
 * @module service/scheduler/quality_scheduler_test
 * @description 定时调度器测试，覆盖调度注册簿记与定时触发落库
 * @architecture 测试层 - 集成测试
 */

package scheduler

import (
	"context"
	"testing"
	"time"

	"dataquality-service/service/dataset"
	"dataquality-service/service/history"
	"dataquality-service/service/quality"
	"dataquality-service/service/rule_repo"
	"dataquality-service/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupScheduler(t *testing.T) (*QualityScheduler, *rule_repo.Repository, *history.Store, *testutil.TestDB) {
	tdb := testutil.NewTestDB()
	t.Cleanup(tdb.Close)

	repo := rule_repo.NewRepository(tdb.DB)
	store := history.NewStore(tdb.DB)
	engine := quality.NewEngine(repo, dataset.NewGormAccessor(tdb.DB), store)
	qs := NewQualityScheduler(engine)

	return qs, repo, store, tdb
}

func TestScheduleBookkeeping(t *testing.T) {
	qs, _, _, _ := setupScheduler(t)

	require.NoError(t, qs.Schedule("users", "0 0 * * * *"))
	require.NoError(t, qs.Schedule("orders", "0 30 * * * *"))
	assert.ElementsMatch(t, []string{"users", "orders"}, qs.ScheduledTables())

	// 重复注册替换原有调度，不产生重复项
	require.NoError(t, qs.Schedule("users", "0 15 * * * *"))
	assert.Len(t, qs.ScheduledTables(), 2)

	qs.Unschedule("users")
	assert.ElementsMatch(t, []string{"orders"}, qs.ScheduledTables())

	// 取消不存在的调度是无害的
	qs.Unschedule("no_such_table")
	assert.Len(t, qs.ScheduledTables(), 1)
}

func TestScheduleInvalidCron(t *testing.T) {
	qs, _, _, _ := setupScheduler(t)

	err := qs.Schedule("users", "not a cron expression")
	require.Error(t, err)
	assert.Empty(t, qs.ScheduledTables())
}

func TestStartTwice(t *testing.T) {
	qs, _, _, _ := setupScheduler(t)

	require.NoError(t, qs.Start())
	defer qs.Stop()

	assert.Error(t, qs.Start(), "重复启动应报错")
}

func TestScheduledRunProducesHistory(t *testing.T) {
	qs, repo, store, tdb := setupScheduler(t)
	ctx := context.Background()
	tdb.SeedUserTable()

	require.NoError(t, repo.CreateRule(ctx, testutil.NewTableRule("rule-volume", "行数检查", 1)))

	// 每秒触发一次
	require.NoError(t, qs.Schedule("users", "* * * * * *"))
	require.NoError(t, qs.Start())
	defer qs.Stop()

	assert.Eventually(t, func() bool {
		runs, err := store.Query(ctx, "users", 0)
		return err == nil && len(runs) > 0
	}, 5*time.Second, 100*time.Millisecond, "定时触发的检测应产生执行记录")

	// 定时触发的执行记录与API触发的形态一致
	runs, err := store.Query(ctx, "users", 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].RulesExecuted)
	assert.Equal(t, "users", runs[0].TableName)
	assert.NotNil(t, runs[0].Metrics.Columns)
}
