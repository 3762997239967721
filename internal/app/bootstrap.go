package app

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/dujiao-next/orderflow/internal/config"
	"github.com/dujiao-next/orderflow/internal/logger"
	"github.com/dujiao-next/orderflow/internal/provider"
	"github.com/dujiao-next/orderflow/internal/router"
	"github.com/dujiao-next/orderflow/internal/worker"
)

// BuildRunner 按运行模式组装服务
func BuildRunner(cfg *config.Config, mode string) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if !servesAPI(mode) && !runsBackground(mode) {
		return nil, fmt.Errorf("unknown run mode: %s", mode)
	}

	container := provider.NewContainer(cfg)
	var services []Service

	if servesAPI(mode) {
		services = append(services, NewHTTPService(listenAddr(cfg), router.SetupRouter(cfg, container)))
	}

	if runsBackground(mode) {
		if cfg.Queue.Enabled {
			consumer := worker.NewConsumer(container)
			workerService, err := worker.NewService(&cfg.Queue, consumer)
			if err != nil {
				return nil, err
			}
			services = append(services, workerService)
		} else {
			logger.Warnw("app_worker_skipped_queue_disabled", "mode", mode)
		}

		if interval := time.Duration(cfg.Order.ExpirySweepIntervalSecs) * time.Second; interval > 0 && container.OrderService != nil {
			services = append(services, NewSweeperService(container.OrderService, interval, cfg.Order.ExpirySweepBatchSize))
		}
	}

	if len(services) == 0 {
		return nil, fmt.Errorf("no services for mode %s", mode)
	}
	return NewRunner(services...), nil
}

func listenAddr(cfg *config.Config) string {
	return net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
}

// Run 应用启动入口
func Run(opts Options) error {
	opts = normalizeOptions(opts)
	if opts.Config == nil {
		return errors.New("config is nil")
	}
	runner, err := BuildRunner(opts.Config, opts.Mode)
	if err != nil {
		return err
	}
	opts.Logger.Infow("app_start", "addr", listenAddr(opts.Config), "mode", opts.Mode, "services", len(runner.services))
	return RunWithOptions(runner, opts)
}
