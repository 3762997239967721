package app

import (
	"os"
	"strings"
	"time"

	"github.com/dujiao-next/orderflow/internal/config"
	"github.com/dujiao-next/orderflow/internal/logger"

	"go.uber.org/zap"
)

// 运行模式：all 同时提供接口与后台任务，api 仅接口，worker 仅后台任务
const (
	ModeAll    = "all"
	ModeAPI    = "api"
	ModeWorker = "worker"
)

const defaultShutdownTimeout = 10 * time.Second

// Options 应用启动选项
type Options struct {
	Config          *config.Config
	Logger          *zap.SugaredLogger
	Signals         []os.Signal
	ShutdownTimeout time.Duration
	Mode            string
}

func normalizeOptions(opts Options) Options {
	if opts.Logger == nil {
		opts.Logger = logger.S()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}
	opts.Mode = strings.ToLower(strings.TrimSpace(opts.Mode))
	if opts.Mode == "" {
		opts.Mode = ModeAll
	}
	return opts
}

func servesAPI(mode string) bool {
	return mode == ModeAll || mode == ModeAPI
}

func runsBackground(mode string) bool {
	return mode == ModeAll || mode == ModeWorker
}
