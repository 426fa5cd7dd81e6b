/*
 * @module service/notifier/kafka_notifier
 * @description Kafka运行完成通知器，将质量检测运行摘要发布到Kafka主题
 * @architecture 适配器模式 - 封装kafka-go生产者
 * @documentReference ai_docs/quality_rule_engine_req.md 第7节
 * @stateFlow 运行完成 -> 摘要序列化 -> 异步发布 -> 失败仅记录日志
 * @rules 通知是尽力而为的旁路能力，发布失败不影响已落库的运行结果
 * @dependencies github.com/segmentio/kafka-go
 * @refs service/quality/engine.go, mqtt_notifier.go
 */

package notifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"time"

	"dataquality-service/service/models"

	"github.com/segmentio/kafka-go"
)

// RunEvent 发布到消息通道的运行摘要
type RunEvent struct {
	RunID         string    `json:"run_id"`
	TableName     string    `json:"table_name"`
	Timestamp     time.Time `json:"timestamp"`
	RulesExecuted int       `json:"rules_executed"`
	FailedRules   int       `json:"failed_rules"`
	PassRate      float64   `json:"pass_rate"`
	OverallScore  float64   `json:"overall_score"`
}

// newRunEvent 从执行记录构建运行摘要
func newRunEvent(run *models.ExecutionRun) RunEvent {
	return RunEvent{
		RunID:         run.RunID,
		TableName:     run.TableName,
		Timestamp:     run.Timestamp,
		RulesExecuted: run.RulesExecuted,
		FailedRules:   run.FailedRules,
		PassRate:      run.PassRate,
		OverallScore:  run.Metrics.OverallScore,
	}
}

// KafkaNotifier Kafka运行完成通知器
type KafkaNotifier struct {
	writer *kafka.Writer
	topic  string
}

// NewKafkaNotifierFromEnv 从环境变量创建Kafka通知器
// 未配置 KAFKA_BROKERS 时返回 nil，通知能力关闭
func NewKafkaNotifierFromEnv() *KafkaNotifier {
	brokersEnv := os.Getenv("KAFKA_BROKERS")
	if brokersEnv == "" {
		return nil
	}

	topic := os.Getenv("KAFKA_QUALITY_TOPIC")
	if topic == "" {
		topic = "quality.run.completed"
	}

	brokers := strings.Split(brokersEnv, ",")
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		BatchTimeout: 100 * time.Millisecond,
	}

	slog.Info("Kafka运行通知器初始化完成", "brokers", brokers, "topic", topic)
	return &KafkaNotifier{writer: writer, topic: topic}
}

// NotifyRunComplete 发布运行完成事件，key为表名保证同表事件有序
func (n *KafkaNotifier) NotifyRunComplete(ctx context.Context, run *models.ExecutionRun) {
	payload, err := json.Marshal(newRunEvent(run))
	if err != nil {
		slog.Warn("运行事件序列化失败", "run_id", run.RunID, "error", err)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = n.writer.WriteMessages(sendCtx, kafka.Message{
		Key:   []byte(run.TableName),
		Value: payload,
		Time:  run.Timestamp,
	})
	if err != nil {
		slog.Warn("Kafka运行事件发布失败", "run_id", run.RunID, "topic", n.topic, "error", err)
		return
	}
	slog.Debug("Kafka运行事件已发布", "run_id", run.RunID, "topic", n.topic)
}

// Close 关闭生产者
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
