package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dujiao-next/orderflow/internal/config"
	"github.com/dujiao-next/orderflow/internal/constants"
)

func TestNewOrderTimeoutCancelTask(t *testing.T) {
	task, err := NewOrderTimeoutCancelTask(OrderTimeoutCancelPayload{OrderID: 42})
	if err != nil {
		t.Fatalf("build task failed: %v", err)
	}
	if task.Type() != TaskOrderTimeoutCancel {
		t.Fatalf("unexpected task type: %s", task.Type())
	}
	var payload OrderTimeoutCancelPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		t.Fatalf("decode payload failed: %v", err)
	}
	if payload.OrderID != 42 {
		t.Fatalf("order id want 42 got %d", payload.OrderID)
	}
}

func TestNewStockCompensateTask(t *testing.T) {
	task, err := NewStockCompensateTask(StockCompensatePayload{CompensationID: 7})
	if err != nil {
		t.Fatalf("build task failed: %v", err)
	}
	if task.Type() != TaskStockCompensate {
		t.Fatalf("unexpected task type: %s", task.Type())
	}
}

func TestOrderTimeoutCancelTaskIDChangesWithAttempt(t *testing.T) {
	first := OrderTimeoutCancelTaskID(OrderTimeoutCancelPayload{OrderID: 42})
	again := OrderTimeoutCancelTaskID(OrderTimeoutCancelPayload{OrderID: 42})
	next := OrderTimeoutCancelTaskID(OrderTimeoutCancelPayload{OrderID: 42, Attempt: 1})
	if first != again {
		t.Fatalf("same payload must map to same task id: %s vs %s", first, again)
	}
	if first == next {
		t.Fatalf("rescheduled task must not reuse the running task id %s", first)
	}
	if other := OrderTimeoutCancelTaskID(OrderTimeoutCancelPayload{OrderID: 43}); other == first {
		t.Fatalf("different orders must not share task id")
	}
}

func TestNewRefundQueryTask(t *testing.T) {
	task, err := NewRefundQueryTask(RefundQueryPayload{RefundID: 9})
	if err != nil {
		t.Fatalf("build task failed: %v", err)
	}
	if task.Type() != TaskRefundQuery {
		t.Fatalf("unexpected task type: %s", task.Type())
	}
	var payload RefundQueryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil || payload.RefundID != 9 {
		t.Fatalf("unexpected payload: %+v err=%v", payload, err)
	}
}

func TestDisabledClientIsNoop(t *testing.T) {
	client, err := NewClient(&config.QueueConfig{Enabled: false})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	if client.Enabled() {
		t.Fatalf("client should be disabled")
	}
	if err := client.EnqueueOrderTimeoutCancel(OrderTimeoutCancelPayload{OrderID: 1}, time.Minute); err != nil {
		t.Fatalf("disabled enqueue should be no-op, got %v", err)
	}
	if err := client.EnqueueStockCompensate(StockCompensatePayload{CompensationID: 1}, 0, 3); err != nil {
		t.Fatalf("disabled enqueue should be no-op, got %v", err)
	}
	if err := client.EnqueueRefundQuery(RefundQueryPayload{RefundID: 1}, time.Minute, 5); err != nil {
		t.Fatalf("disabled enqueue should be no-op, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	var nilClient *Client
	if nilClient.Enabled() {
		t.Fatalf("nil client should be disabled")
	}
}

func TestBuildServerConfigDefaults(t *testing.T) {
	opt, cfg := BuildServerConfig(nil)
	if opt.Addr != "127.0.0.1:6379" {
		t.Fatalf("unexpected addr: %s", opt.Addr)
	}
	if cfg.Concurrency != 10 {
		t.Fatalf("concurrency want 10 got %d", cfg.Concurrency)
	}
	if cfg.Queues[constants.QueueCritical] == 0 || cfg.Queues[DefaultQueue] == 0 {
		t.Fatalf("default queues missing: %+v", cfg.Queues)
	}

	opt, cfg = BuildServerConfig(&config.QueueConfig{Host: "redis", Port: 6380, Concurrency: 4, Queues: map[string]int{"x": 2}})
	if opt.Addr != "redis:6380" || cfg.Concurrency != 4 || cfg.Queues["x"] != 2 {
		t.Fatalf("custom config not applied: %s %+v", opt.Addr, cfg)
	}
}
