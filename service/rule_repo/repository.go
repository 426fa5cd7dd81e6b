/*
 * @module service/rule_repo/repository
 * @description 质量规则仓库，负责规则文档的加载/保存、激活生命周期管理和激活时长统计
 * @architecture 分层架构 - 持久化服务层
 * @documentReference ai_docs/quality_rule_engine_req.md 第4.1节
 * @stateFlow 规则加载 -> 校验过滤 -> 业务变更 -> 整体文档原子保存
 * @rules 单条损坏记录只丢弃自身并输出定位诊断；保存通过事务整体替换保证原子性；
 *        写操作经过单写者锁串行化，避免读-改-写竞争丢失更新
 * @dependencies gorm.io/gorm, github.com/google/uuid, service/distributed_lock
 * @refs service/models/rule.go, service/quality/engine.go
 */

package rule_repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"dataquality-service/service/distributed_lock"
	"dataquality-service/service/meta"
	"dataquality-service/service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 错误分类
var (
	// ErrRepository 规则存储不可读/不可写
	ErrRepository = errors.New("规则存储访问失败")
	// ErrRuleNotFound 引用的规则不存在
	ErrRuleNotFound = errors.New("规则不存在")
)

const writeLockKey = "rule_document"

// Repository 质量规则仓库
type Repository struct {
	db   *gorm.DB
	mu   sync.Mutex
	lock distributed_lock.DistributedLock
}

// NewRepository 创建规则仓库实例
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// SetDistributedLock 设置跨实例写锁，nil 表示仅使用进程内互斥
func (r *Repository) SetDistributedLock(lock distributed_lock.DistributedLock) {
	r.lock = lock
}

// LoadRules 加载全部规则定义
// 损坏的单条记录被丢弃并输出定位诊断（类别+下标），不影响其余规则；
// 底层存储读取失败时返回空列表和 ErrRepository
func (r *Repository) LoadRules(ctx context.Context) ([]models.QualityRule, error) {
	var docs []models.RuleDocument
	if err := r.db.WithContext(ctx).Order("category").Find(&docs).Error; err != nil {
		return []models.QualityRule{}, fmt.Errorf("%w: %v", ErrRepository, err)
	}

	rules := make([]models.QualityRule, 0)
	for _, doc := range docs {
		for i, entry := range doc.Rules {
			rule, err := decodeRule(entry)
			if err != nil {
				slog.Warn("丢弃损坏的规则记录",
					"category", doc.Category,
					"index", i,
					"error", err)
				continue
			}
			if rule.Category == "" {
				rule.Category = doc.Category
			}
			rules = append(rules, *rule)
		}
	}
	return rules, nil
}

// LoadActiveRules 加载当前激活的规则快照
func (r *Repository) LoadActiveRules(ctx context.Context) ([]models.QualityRule, error) {
	rules, err := r.LoadRules(ctx)
	if err != nil {
		return rules, err
	}

	active := make([]models.QualityRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Active {
			active = append(active, rule)
		}
	}
	return active, nil
}

// SaveRules 原子保存完整规则集
// 按类别分组后在事务内整体替换文档，避免部分写入
func (r *Repository) SaveRules(ctx context.Context, rules []models.QualityRule) error {
	if err := r.acquireWriteLock(ctx); err != nil {
		return err
	}
	defer r.releaseWriteLock(ctx)

	return r.saveLocked(ctx, rules)
}

// saveLocked 持锁状态下的保存实现
func (r *Repository) saveLocked(ctx context.Context, rules []models.QualityRule) error {
	grouped := make(map[string][]interface{})
	categories := make([]string, 0)
	for _, rule := range rules {
		category := rule.Category
		if category == "" {
			category = "uncategorized"
		}
		if _, exists := grouped[category]; !exists {
			categories = append(categories, category)
		}
		encoded, err := encodeRule(rule)
		if err != nil {
			return fmt.Errorf("%w: 序列化规则 %s 失败: %v", ErrRepository, rule.ID, err)
		}
		grouped[category] = append(grouped[category], encoded)
	}
	sort.Strings(categories)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.RuleDocument{}).Error; err != nil {
			return err
		}
		for _, category := range categories {
			doc := models.RuleDocument{
				Category:  category,
				Rules:     models.JSONBGenericArray(grouped[category]),
				UpdatedAt: time.Now(),
			}
			if err := tx.Create(&doc).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRepository, err)
	}
	return nil
}

// SetActive 切换规则激活状态
// 幂等：切换到相同状态不改变激活历史但仍然成功；
// 切换到不同状态时开启新周期（激活）或关闭当前开放周期（停用）
func (r *Repository) SetActive(ctx context.Context, ruleID string, active bool, at time.Time) error {
	if err := r.acquireWriteLock(ctx); err != nil {
		return err
	}
	defer r.releaseWriteLock(ctx)

	rules, err := r.LoadRules(ctx)
	if err != nil {
		return err
	}

	found := false
	for i := range rules {
		if rules[i].ID != ruleID {
			continue
		}
		found = true
		if rules[i].Active == active {
			// 状态未变化，激活历史保持不变
			return nil
		}

		rules[i].Active = active
		if active {
			// 不允许出现两个同时开放的周期
			if rules[i].OpenPeriodIndex() < 0 {
				rules[i].ActivationHistory = append(rules[i].ActivationHistory,
					models.ActivationPeriod{ActivatedAt: at})
			}
		} else {
			if idx := rules[i].OpenPeriodIndex(); idx >= 0 {
				closedAt := at
				rules[i].ActivationHistory[idx].DeactivatedAt = &closedAt
			}
		}
		break
	}

	if !found {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, ruleID)
	}
	return r.saveLocked(ctx, rules)
}

// TotalActiveDuration 统计规则累计激活时长
// 纯函数：对激活历史中每个周期求和，开放周期以 now 为终点
func TotalActiveDuration(rule *models.QualityRule, now time.Time) time.Duration {
	var total time.Duration
	for _, period := range rule.ActivationHistory {
		total += period.Duration(now)
	}
	return total
}

// GetRule 按ID获取规则
func (r *Repository) GetRule(ctx context.Context, ruleID string) (*models.QualityRule, error) {
	rules, err := r.LoadRules(ctx)
	if err != nil {
		return nil, err
	}
	for i := range rules {
		if rules[i].ID == ruleID {
			return &rules[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, ruleID)
}

// CreateRule 创建规则并持久化
// 新建且标记激活的规则立即获得一个开放激活周期
func (r *Repository) CreateRule(ctx context.Context, rule *models.QualityRule) error {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	if rule.Severity == "" {
		rule.Severity = meta.DefaultSeverity
	}
	if rule.Scope == "" {
		rule.Scope = meta.ScopeColumn
	}
	if !meta.IsValidSeverity(rule.Severity) {
		return fmt.Errorf("无效的严重级别: %s", rule.Severity)
	}
	if !meta.IsValidScope(rule.Scope) {
		return fmt.Errorf("无效的规则作用域: %s", rule.Scope)
	}
	if rule.Active && rule.OpenPeriodIndex() < 0 {
		rule.ActivationHistory = append(rule.ActivationHistory,
			models.ActivationPeriod{ActivatedAt: time.Now()})
	}

	if err := r.acquireWriteLock(ctx); err != nil {
		return err
	}
	defer r.releaseWriteLock(ctx)

	rules, err := r.LoadRules(ctx)
	if err != nil {
		return err
	}
	for i := range rules {
		if rules[i].ID == rule.ID {
			return fmt.Errorf("规则 %s 已存在", rule.ID)
		}
	}
	rules = append(rules, *rule)
	return r.saveLocked(ctx, rules)
}

// UpdateRule 更新规则定义
// 激活状态与激活历史不在此处修改，统一走 SetActive
func (r *Repository) UpdateRule(ctx context.Context, rule *models.QualityRule) error {
	if err := r.acquireWriteLock(ctx); err != nil {
		return err
	}
	defer r.releaseWriteLock(ctx)

	rules, err := r.LoadRules(ctx)
	if err != nil {
		return err
	}
	for i := range rules {
		if rules[i].ID != rule.ID {
			continue
		}
		rule.Active = rules[i].Active
		rule.ActivationHistory = rules[i].ActivationHistory
		rules[i] = *rule
		return r.saveLocked(ctx, rules)
	}
	return fmt.Errorf("%w: %s", ErrRuleNotFound, rule.ID)
}

// DeleteRule 删除规则
func (r *Repository) DeleteRule(ctx context.Context, ruleID string) error {
	if err := r.acquireWriteLock(ctx); err != nil {
		return err
	}
	defer r.releaseWriteLock(ctx)

	rules, err := r.LoadRules(ctx)
	if err != nil {
		return err
	}
	for i := range rules {
		if rules[i].ID == ruleID {
			rules = append(rules[:i], rules[i+1:]...)
			return r.saveLocked(ctx, rules)
		}
	}
	return fmt.Errorf("%w: %s", ErrRuleNotFound, ruleID)
}

// acquireWriteLock 获取写锁：先取进程内互斥，再尝试跨实例锁
func (r *Repository) acquireWriteLock(ctx context.Context) error {
	r.mu.Lock()
	if r.lock == nil {
		return nil
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		ok, err := r.lock.TryLock(ctx, writeLockKey, 10*time.Second)
		if err != nil {
			r.mu.Unlock()
			return fmt.Errorf("%w: 获取写锁失败: %v", ErrRepository, err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			r.mu.Unlock()
			return fmt.Errorf("%w: 写锁等待超时", ErrRepository)
		}
		select {
		case <-ctx.Done():
			r.mu.Unlock()
			return fmt.Errorf("%w: %v", ErrRepository, ctx.Err())
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// releaseWriteLock 释放写锁
func (r *Repository) releaseWriteLock(ctx context.Context) {
	if r.lock != nil {
		if err := r.lock.Unlock(ctx, writeLockKey); err != nil {
			slog.Warn("释放规则文档写锁失败", "error", err)
		}
	}
	r.mu.Unlock()
}

// decodeRule 将文档条目解码为规则，缺失必填字段视为损坏记录
func decodeRule(entry interface{}) (*models.QualityRule, error) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("无法序列化条目: %v", err)
	}

	var rule models.QualityRule
	if err := json.Unmarshal(raw, &rule); err != nil {
		return nil, fmt.Errorf("无法解析规则: %v", err)
	}

	if rule.ID == "" {
		return nil, errors.New("缺失必填字段 id")
	}
	if rule.Name == "" {
		return nil, fmt.Errorf("规则 %s 缺失必填字段 name", rule.ID)
	}
	if rule.Expression == "" {
		return nil, fmt.Errorf("规则 %s 缺失必填字段 validation_code", rule.ID)
	}
	if rule.Scope == "" {
		// 兼容旧文档：带列绑定的视为列级，否则视为表级
		if rule.ColumnName != "" {
			rule.Scope = meta.ScopeColumn
		} else {
			rule.Scope = meta.ScopeTable
		}
	}
	return &rule, nil
}

// encodeRule 将规则编码为文档条目，保留未知字段
func encodeRule(rule models.QualityRule) (interface{}, error) {
	raw, err := json.Marshal(rule)
	if err != nil {
		return nil, err
	}
	var entry map[string]interface{}
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, err
	}
	return entry, nil
}
