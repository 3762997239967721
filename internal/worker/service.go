package worker

import (
	"context"
	"errors"

	"github.com/dujiao-next/orderflow/internal/config"
	"github.com/dujiao-next/orderflow/internal/logger"
	"github.com/dujiao-next/orderflow/internal/queue"

	"github.com/hibiken/asynq"
)

const pendingCompensationRequeueLimit = 500

// Service 消费订单超时与库存补偿任务；生命周期由 app.Runner 管理
type Service struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	consumer *Consumer
}

// NewService 创建队列消费服务，队列未启用时报错
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	serverCfg.Logger = asynqLogger{}
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{server: asynq.NewServer(opt, serverCfg), mux: mux, consumer: consumer}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	return "worker"
}

// Start 补投待处理补偿后开始消费，阻塞至 ctx 取消；信号由 Runner 统一处理
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil {
		return errors.New("worker not initialized")
	}
	if err := s.server.Start(s.mux); err != nil {
		return err
	}
	s.requeuePendingCompensations(ctx)
	<-ctx.Done()
	return nil
}

// Stop 等待进行中的任务结束后关闭
func (s *Service) Stop(context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	s.server.Shutdown()
	return nil
}

func (s *Service) requeuePendingCompensations(ctx context.Context) {
	if s.consumer == nil || s.consumer.Container == nil || s.consumer.OrderService == nil {
		return
	}
	queued, err := s.consumer.OrderService.RequeuePendingCompensations(ctx, pendingCompensationRequeueLimit)
	if err != nil {
		logger.Warnw("worker_requeue_compensations_failed", "error", err)
		return
	}
	if queued > 0 {
		logger.Infow("worker_requeue_compensations", "count", queued)
	}
}

// asynqLogger 把 asynq 内部日志接到 zap
type asynqLogger struct{}

func (asynqLogger) Debug(args ...interface{}) { logger.S().Debug(args...) }
func (asynqLogger) Info(args ...interface{})  { logger.S().Info(args...) }
func (asynqLogger) Warn(args ...interface{})  { logger.S().Warn(args...) }
func (asynqLogger) Error(args ...interface{}) { logger.S().Error(args...) }
func (asynqLogger) Fatal(args ...interface{}) { logger.S().Fatal(args...) }
