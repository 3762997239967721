package queue

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/dujiao-next/orderflow/internal/config"
	"github.com/dujiao-next/orderflow/internal/constants"

	"github.com/hibiken/asynq"
)

// DefaultQueue 订单超时任务所在队列
const DefaultQueue = constants.QueueDefault

const defaultConcurrency = 10

// Client 投递订单相关延迟任务；未启用时所有投递为空操作
type Client struct {
	client *asynq.Client
}

// NewClient 创建队列客户端
func NewClient(cfg *config.QueueConfig) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		return &Client{}, nil
	}
	return &Client{client: asynq.NewClient(buildRedisOpt(cfg))}, nil
}

// Enabled 判断是否启用
func (c *Client) Enabled() bool {
	return c != nil && c.client != nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}

// EnqueueOrderTimeoutCancel 到期后触发订单超时取消；同一订单同一 Attempt 只保留一个任务
func (c *Client) EnqueueOrderTimeoutCancel(payload OrderTimeoutCancelPayload, delay time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	task, err := NewOrderTimeoutCancelTask(payload)
	if err != nil {
		return err
	}
	return c.enqueue(task,
		asynq.Queue(DefaultQueue),
		asynq.ProcessIn(clampDelay(delay)),
		asynq.TaskID(OrderTimeoutCancelTaskID(payload)),
	)
}

// OrderTimeoutCancelTaskID 执行中的任务仍占用自身 ID，重新投递须递增 Attempt
func OrderTimeoutCancelTaskID(payload OrderTimeoutCancelPayload) string {
	return fmt.Sprintf("%s:%d:%d", TaskOrderTimeoutCancel, payload.OrderID, payload.Attempt)
}

// EnqueueStockCompensate 投递库存补偿重试（critical 队列）
func (c *Client) EnqueueStockCompensate(payload StockCompensatePayload, delay time.Duration, maxRetry int) error {
	if !c.Enabled() {
		return nil
	}
	task, err := NewStockCompensateTask(payload)
	if err != nil {
		return err
	}
	opts := []asynq.Option{
		asynq.Queue(constants.QueueCritical),
		asynq.ProcessIn(clampDelay(delay)),
		asynq.TaskID(fmt.Sprintf("%s:%d", TaskStockCompensate, payload.CompensationID)),
	}
	if maxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(maxRetry))
	}
	return c.enqueue(task, opts...)
}

// EnqueueRefundQuery 查询渠道受理中的退款，未出结果时由 asynq 按 maxRetry 重试
func (c *Client) EnqueueRefundQuery(payload RefundQueryPayload, delay time.Duration, maxRetry int) error {
	if !c.Enabled() {
		return nil
	}
	task, err := NewRefundQueryTask(payload)
	if err != nil {
		return err
	}
	opts := []asynq.Option{
		asynq.Queue(constants.QueueCritical),
		asynq.ProcessIn(clampDelay(delay)),
		asynq.TaskID(fmt.Sprintf("%s:%d", TaskRefundQuery, payload.RefundID)),
	}
	if maxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(maxRetry))
	}
	return c.enqueue(task, opts...)
}

// enqueue 任务 ID 冲突视为已投递
func (c *Client) enqueue(task *asynq.Task, opts ...asynq.Option) error {
	_, err := c.client.Enqueue(task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

func clampDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	return delay
}

// BuildServerConfig 生成消费端连接与并发配置
func BuildServerConfig(cfg *config.QueueConfig) (asynq.RedisClientOpt, asynq.Config) {
	serverCfg := asynq.Config{
		Concurrency: defaultConcurrency,
		Queues:      map[string]int{DefaultQueue: 1, constants.QueueCritical: 1},
	}
	if cfg != nil {
		if cfg.Concurrency > 0 {
			serverCfg.Concurrency = cfg.Concurrency
		}
		if len(cfg.Queues) > 0 {
			serverCfg.Queues = cfg.Queues
		}
	}
	return buildRedisOpt(cfg), serverCfg
}

func buildRedisOpt(cfg *config.QueueConfig) asynq.RedisClientOpt {
	opt := asynq.RedisClientOpt{Addr: "127.0.0.1:6379"}
	if cfg == nil {
		return opt
	}
	host, port := strings.TrimSpace(cfg.Host), cfg.Port
	if host == "" {
		host = "127.0.0.1"
	}
	if port <= 0 {
		port = 6379
	}
	opt.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	opt.Password = cfg.Password
	opt.DB = cfg.DB
	return opt
}
