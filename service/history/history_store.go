/*
 * @module service/history/history_store
 * @description 执行历史存储，负责执行记录的持久化、查询和按表保留上限淘汰
 * @architecture 分层架构 - 数据访问层
 * @documentReference ai_docs/quality_rule_engine_req.md 第4.5节
 * @stateFlow 追加记录 -> 同事务内按表淘汰最旧记录 -> 查询按时间倒序
 * @rules
 *   - 每表保留记录数不超过上限，超出部分按时间戳先进先出淘汰
 *   - 追加与淘汰在同一事务内完成，多实例环境下由分布式锁串行化
 * @dependencies gorm.io/gorm, github.com/go-redis/redis/v8
 * @refs service/models/execution.go, service/quality/engine.go
 */

package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"dataquality-service/service/distributed_lock"
	"dataquality-service/service/meta"
	"dataquality-service/service/models"

	"gorm.io/gorm"
)

// ErrRunNotFound 执行记录不存在
var ErrRunNotFound = errors.New("执行记录不存在")

// historyLockKey 历史写入的分布式锁key
const historyLockKey = "execution_history"

// Store 执行历史存储
type Store struct {
	db        *gorm.DB
	mu        sync.Mutex
	lock      distributed_lock.DistributedLock
	retention int
}

// NewStore 创建历史存储，保留上限为每表记录数
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:        db,
		retention: meta.DefaultHistoryRetention,
	}
}

// SetDistributedLock 注入分布式锁，多实例部署时串行化写入
func (s *Store) SetDistributedLock(lock distributed_lock.DistributedLock) {
	s.lock = lock
}

// SetRetention 调整每表保留上限，仅供测试使用
func (s *Store) SetRetention(n int) {
	if n > 0 {
		s.retention = n
	}
}

// Append 追加一条执行记录并淘汰该表超出保留上限的最旧记录
// 追加与淘汰在同一事务内完成
func (s *Store) Append(ctx context.Context, run *models.ExecutionRun) error {
	if err := s.acquireWriteLock(ctx); err != nil {
		return err
	}
	defer s.releaseWriteLock(ctx)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(run).Error; err != nil {
			return fmt.Errorf("写入执行记录失败: %w", err)
		}

		// 淘汰该表超出上限的最旧记录
		var count int64
		if err := tx.Model(&models.ExecutionRun{}).
			Where("table_name = ?", run.TableName).
			Count(&count).Error; err != nil {
			return fmt.Errorf("统计历史记录失败: %w", err)
		}

		if excess := count - int64(s.retention); excess > 0 {
			var evicted []string
			if err := tx.Model(&models.ExecutionRun{}).
				Where("table_name = ?", run.TableName).
				Order("timestamp ASC").
				Limit(int(excess)).
				Pluck("run_id", &evicted).Error; err != nil {
				return fmt.Errorf("查询待淘汰记录失败: %w", err)
			}
			if err := tx.Where("run_id IN ?", evicted).
				Delete(&models.ExecutionRun{}).Error; err != nil {
				return fmt.Errorf("淘汰历史记录失败: %w", err)
			}
			slog.Debug("历史记录淘汰", "table", run.TableName, "evicted", len(evicted))
		}
		return nil
	})
}

// Query 查询执行历史，按时间倒序返回
// table 为空时返回所有表的记录；limit <= 0 时不限制条数
func (s *Store) Query(ctx context.Context, table string, limit int) ([]models.ExecutionRun, error) {
	query := s.db.WithContext(ctx).Model(&models.ExecutionRun{}).Order("timestamp DESC")
	if table != "" {
		query = query.Where("table_name = ?", table)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var runs []models.ExecutionRun
	if err := query.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("查询执行历史失败: %w", err)
	}
	return runs, nil
}

// Get 按RunID获取单条执行记录
func (s *Store) Get(ctx context.Context, runID string) (*models.ExecutionRun, error) {
	var run models.ExecutionRun
	err := s.db.WithContext(ctx).Where("run_id = ?", runID).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("记录 %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("读取执行记录失败: %w", err)
	}
	return &run, nil
}

// Latest 获取指定表最近一次执行记录
func (s *Store) Latest(ctx context.Context, table string) (*models.ExecutionRun, error) {
	var run models.ExecutionRun
	err := s.db.WithContext(ctx).
		Where("table_name = ?", table).
		Order("timestamp DESC").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("表 %s 无执行记录: %w", table, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("读取执行记录失败: %w", err)
	}
	return &run, nil
}

// acquireWriteLock 获取写锁：先取进程内互斥，再取分布式锁（若配置）
func (s *Store) acquireWriteLock(ctx context.Context) error {
	s.mu.Lock()
	if s.lock == nil {
		return nil
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		ok, err := s.lock.TryLock(ctx, historyLockKey, 10*time.Second)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("获取历史写锁失败: %w", err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			s.mu.Unlock()
			return fmt.Errorf("获取历史写锁超时")
		}
		select {
		case <-ctx.Done():
			s.mu.Unlock()
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// releaseWriteLock 释放写锁
func (s *Store) releaseWriteLock(ctx context.Context) {
	if s.lock != nil {
		if err := s.lock.Unlock(ctx, historyLockKey); err != nil {
			slog.Warn("释放历史写锁失败", "error", err)
		}
	}
	s.mu.Unlock()
}
