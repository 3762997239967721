package app

import (
	"context"
	"time"

	"github.com/dujiao-next/orderflow/internal/logger"
)

// ExpirySweeper 抽象过期订单批量取消
type ExpirySweeper interface {
	SweepExpiredOrders(ctx context.Context, limit int) (int, error)
}

// SweeperService 定时取消已过期未支付订单，兜底延时任务丢失或队列未启用
type SweeperService struct {
	sweeper   ExpirySweeper
	interval  time.Duration
	batchSize int
}

// NewSweeperService 创建过期订单巡检服务
func NewSweeperService(sweeper ExpirySweeper, interval time.Duration, batchSize int) *SweeperService {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &SweeperService{sweeper: sweeper, interval: interval, batchSize: batchSize}
}

// Name 服务名称
func (s *SweeperService) Name() string {
	return "expiry_sweeper"
}

// Start 按间隔巡检直至 ctx 取消
func (s *SweeperService) Start(ctx context.Context) error {
	if s == nil || s.sweeper == nil || s.interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		s.sweepOnce(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// sweepOnce 单轮内批次打满则继续拉取
func (s *SweeperService) sweepOnce(ctx context.Context) {
	sweepCtx := logger.WithContext(ctx, "task", "order_expiry_sweep")
	log := logger.FromContext(sweepCtx)
	for ctx.Err() == nil {
		cancelled, err := s.sweeper.SweepExpiredOrders(sweepCtx, s.batchSize)
		if err != nil {
			log.Warnw("order_expiry_sweep_round_failed", "error", err)
			return
		}
		if cancelled > 0 {
			log.Infow("order_expiry_sweep_cancelled", "count", cancelled)
		}
		if cancelled < s.batchSize {
			return
		}
	}
}

// Stop 由 Start 的 ctx 取消驱动退出
func (s *SweeperService) Stop(context.Context) error {
	return nil
}
