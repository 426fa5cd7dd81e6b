/*
 * @module service/notifier/mqtt_notifier
 * @description MQTT运行完成通知器，面向边缘订阅方发布质量检测运行摘要
 * @architecture 适配器模式 - 封装paho MQTT客户端
 * @documentReference ai_docs/quality_rule_engine_req.md 第7节
 * @stateFlow 连接broker -> 运行完成时发布到按表划分的主题 -> 失败仅记录日志
 * @rules 通知是尽力而为的旁路能力，发布失败不影响已落库的运行结果
 * @dependencies github.com/eclipse/paho.mqtt.golang
 * @refs service/quality/engine.go, kafka_notifier.go
 */

package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"dataquality-service/service/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTNotifier MQTT运行完成通知器
type MQTTNotifier struct {
	client      mqtt.Client
	topicPrefix string
}

// NewMQTTNotifierFromEnv 从环境变量创建MQTT通知器
// 未配置 MQTT_BROKER 时返回 nil，通知能力关闭
func NewMQTTNotifierFromEnv() (*MQTTNotifier, error) {
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" {
		return nil, nil
	}

	topicPrefix := os.Getenv("MQTT_QUALITY_TOPIC_PREFIX")
	if topicPrefix == "" {
		topicPrefix = "quality/runs"
	}

	hostname, _ := os.Hostname()
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(fmt.Sprintf("quality-engine-%s-%d", hostname, os.Getpid())).
		SetUsername(os.Getenv("MQTT_USERNAME")).
		SetPassword(os.Getenv("MQTT_PASSWORD")).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		return nil, fmt.Errorf("MQTT连接失败: %v", token.Error())
	}

	slog.Info("MQTT运行通知器初始化完成", "broker", broker, "topic_prefix", topicPrefix)
	return &MQTTNotifier{client: client, topicPrefix: topicPrefix}, nil
}

// NotifyRunComplete 发布运行完成事件到 <prefix>/<table> 主题
func (n *MQTTNotifier) NotifyRunComplete(ctx context.Context, run *models.ExecutionRun) {
	payload, err := json.Marshal(newRunEvent(run))
	if err != nil {
		slog.Warn("运行事件序列化失败", "run_id", run.RunID, "error", err)
		return
	}

	topic := fmt.Sprintf("%s/%s", n.topicPrefix, run.TableName)
	token := n.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		slog.Warn("MQTT运行事件发布失败", "run_id", run.RunID, "topic", topic, "error", token.Error())
		return
	}
	slog.Debug("MQTT运行事件已发布", "run_id", run.RunID, "topic", topic)
}

// Close 断开与broker的连接
func (n *MQTTNotifier) Close() {
	n.client.Disconnect(250)
}
