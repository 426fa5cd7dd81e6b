package notifier

import (
	"context"

	"dataquality-service/service/models"
)

// RunNotifier 运行完成通知接口
type RunNotifier interface {
	NotifyRunComplete(ctx context.Context, run *models.ExecutionRun)
}

// MultiNotifier 组合多个通知通道，逐个发布
type MultiNotifier struct {
	notifiers []RunNotifier
}

// NewMultiNotifier 组合非空的通知器；一个都没有时返回 nil
func NewMultiNotifier(notifiers ...RunNotifier) *MultiNotifier {
	active := make([]RunNotifier, 0, len(notifiers))
	for _, n := range notifiers {
		switch v := n.(type) {
		case *KafkaNotifier:
			if v != nil {
				active = append(active, v)
			}
		case *MQTTNotifier:
			if v != nil {
				active = append(active, v)
			}
		default:
			if n != nil {
				active = append(active, n)
			}
		}
	}
	if len(active) == 0 {
		return nil
	}
	return &MultiNotifier{notifiers: active}
}

// NotifyRunComplete 依次发布到所有通知通道
func (m *MultiNotifier) NotifyRunComplete(ctx context.Context, run *models.ExecutionRun) {
	for _, n := range m.notifiers {
		n.NotifyRunComplete(ctx, run)
	}
}
