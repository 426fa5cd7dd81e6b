/*
 * @module service/rule_repo/repository_test
 * @description 质量规则仓库单元测试
 * @architecture 测试层 - 单元测试
 */

package rule_repo

import (
	"context"
	"testing"
	"time"

	"dataquality-service/service/meta"
	"dataquality-service/service/models"
	"dataquality-service/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepo(t *testing.T) (*Repository, *testutil.TestDB) {
	tdb := testutil.NewTestDB()
	t.Cleanup(tdb.Close)
	return NewRepository(tdb.DB), tdb
}

func TestCreateAndLoadRoundTrip(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	rule := testutil.NewTestRule("rule-1", "邮箱非空检查")
	rule.Extra = map[string]interface{}{"owner": "data-team"}
	require.NoError(t, repo.CreateRule(ctx, rule))

	loaded, err := repo.GetRule(ctx, "rule-1")
	require.NoError(t, err)

	assert.Equal(t, "rule-1", loaded.ID)
	assert.Equal(t, "邮箱非空检查", loaded.Name)
	assert.True(t, loaded.Active)
	assert.Equal(t, rule.Expression, loaded.Expression)
	assert.Equal(t, "data-team", loaded.Extra["owner"], "未知字段应在持久化往返后保留")

	// 新建激活规则应带一个开放周期
	require.Len(t, loaded.ActivationHistory, 1)
	assert.False(t, loaded.ActivationHistory[0].Closed())
}

func TestCreateRuleValidation(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	rule := testutil.NewTestRule("rule-bad", "非法级别")
	rule.Severity = "Urgent"
	assert.Error(t, repo.CreateRule(ctx, rule))

	rule2 := testutil.NewTestRule("rule-bad-2", "非法作用域")
	rule2.Scope = "database"
	assert.Error(t, repo.CreateRule(ctx, rule2))

	// 缺省值填充
	rule3 := testutil.NewTestRule("rule-3", "缺省值")
	rule3.Severity = ""
	rule3.Scope = ""
	require.NoError(t, repo.CreateRule(ctx, rule3))

	loaded, err := repo.GetRule(ctx, "rule-3")
	require.NoError(t, err)
	assert.Equal(t, meta.DefaultSeverity, loaded.Severity)
	assert.Equal(t, meta.ScopeColumn, loaded.Scope)
}

func TestSetActiveLifecycle(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	rule := testutil.NewTestRule("rule-1", "生命周期")
	rule.Active = false
	rule.ActivationHistory = nil
	require.NoError(t, repo.CreateRule(ctx, rule))

	t0 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	// 激活：开启新周期
	require.NoError(t, repo.SetActive(ctx, "rule-1", true, t0))
	loaded, err := repo.GetRule(ctx, "rule-1")
	require.NoError(t, err)
	assert.True(t, loaded.Active)
	require.Len(t, loaded.ActivationHistory, 1)
	assert.False(t, loaded.ActivationHistory[0].Closed())

	// 重复激活幂等：历史不变
	require.NoError(t, repo.SetActive(ctx, "rule-1", true, t0.Add(time.Hour)))
	loaded, err = repo.GetRule(ctx, "rule-1")
	require.NoError(t, err)
	require.Len(t, loaded.ActivationHistory, 1)

	// 停用：关闭开放周期
	t1 := t0.Add(2 * time.Hour)
	require.NoError(t, repo.SetActive(ctx, "rule-1", false, t1))
	loaded, err = repo.GetRule(ctx, "rule-1")
	require.NoError(t, err)
	assert.False(t, loaded.Active)
	require.Len(t, loaded.ActivationHistory, 1)
	require.True(t, loaded.ActivationHistory[0].Closed())

	// 重复停用幂等
	require.NoError(t, repo.SetActive(ctx, "rule-1", false, t1.Add(time.Hour)))

	// 再次激活产生第二个周期，且只有一个开放周期
	t2 := t1.Add(3 * time.Hour)
	require.NoError(t, repo.SetActive(ctx, "rule-1", true, t2))
	loaded, err = repo.GetRule(ctx, "rule-1")
	require.NoError(t, err)
	require.Len(t, loaded.ActivationHistory, 2)
	assert.Equal(t, 1, loaded.OpenPeriodIndex())

	// 累计激活时长 = 2h(已关闭) + 1h(开放至now)
	now := t2.Add(time.Hour)
	assert.Equal(t, 3*time.Hour, TotalActiveDuration(loaded, now))

	// 不存在的规则
	err = repo.SetActive(ctx, "missing", true, time.Now())
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestLoadActiveRulesFilters(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	active := testutil.NewTestRule("rule-active", "激活规则")
	inactive := testutil.NewTestRule("rule-inactive", "停用规则")
	inactive.Active = false
	inactive.ActivationHistory = nil

	require.NoError(t, repo.CreateRule(ctx, active))
	require.NoError(t, repo.CreateRule(ctx, inactive))

	rules, err := repo.LoadActiveRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "rule-active", rules[0].ID)
}

func TestLoadRulesDropsCorruptedEntries(t *testing.T) {
	repo, tdb := setupRepo(t)
	ctx := context.Background()

	// 一条合法、一条缺失必填字段、一条非对象
	doc := models.RuleDocument{
		Category: "completeness",
		Rules: models.JSONBGenericArray{
			map[string]interface{}{
				"id": "ok-1", "name": "合法规则", "validation_code": "return true, nil",
			},
			map[string]interface{}{
				"name": "缺失ID", "validation_code": "return true, nil",
			},
			"not-an-object",
		},
		UpdatedAt: time.Now(),
	}
	require.NoError(t, tdb.DB.Create(&doc).Error)

	rules, err := repo.LoadRules(ctx)
	require.NoError(t, err, "单条损坏记录不应导致整体加载失败")
	require.Len(t, rules, 1)
	assert.Equal(t, "ok-1", rules[0].ID)
	assert.Equal(t, "completeness", rules[0].Category, "缺失类别应从文档继承")
}

func TestUpdateRulePreservesActivation(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	rule := testutil.NewTestRule("rule-1", "原名称")
	require.NoError(t, repo.CreateRule(ctx, rule))

	updated := testutil.NewTestRule("rule-1", "新名称")
	updated.Active = false
	updated.ActivationHistory = nil
	require.NoError(t, repo.UpdateRule(ctx, updated))

	loaded, err := repo.GetRule(ctx, "rule-1")
	require.NoError(t, err)
	assert.Equal(t, "新名称", loaded.Name)
	assert.True(t, loaded.Active, "更新不应改变激活状态")
	assert.Len(t, loaded.ActivationHistory, 1, "更新不应改变激活历史")
}

func TestDeleteRule(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateRule(ctx, testutil.NewTestRule("rule-1", "待删除")))
	require.NoError(t, repo.DeleteRule(ctx, "rule-1"))

	_, err := repo.GetRule(ctx, "rule-1")
	assert.ErrorIs(t, err, ErrRuleNotFound)

	err = repo.DeleteRule(ctx, "rule-1")
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestSaveRulesGroupsByCategory(t *testing.T) {
	repo, tdb := setupRepo(t)
	ctx := context.Background()

	r1 := testutil.NewTestRule("rule-1", "完整性A")
	r1.Category = "completeness"
	r2 := testutil.NewTestRule("rule-2", "有效性B")
	r2.Category = "validity"
	r3 := testutil.NewTestRule("rule-3", "无类别")
	r3.Category = ""

	require.NoError(t, repo.SaveRules(ctx, []models.QualityRule{*r1, *r2, *r3}))

	var docs []models.RuleDocument
	require.NoError(t, tdb.DB.Order("category").Find(&docs).Error)
	require.Len(t, docs, 3)
	assert.Equal(t, "completeness", docs[0].Category)
	assert.Equal(t, "uncategorized", docs[1].Category)
	assert.Equal(t, "validity", docs[2].Category)

	rules, err := repo.LoadRules(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, 3)
}
