package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/dujiao-next/orderflow/internal/app"
	"github.com/dujiao-next/orderflow/internal/config"
	"github.com/dujiao-next/orderflow/internal/logger"
	"github.com/dujiao-next/orderflow/internal/models"

	"github.com/gin-gonic/gin"
)

const minSecretLength = 32

var weakSecretMarkers = []string{"change-me", "change-in-production", "your-secret-key", "orderflow-dev"}

func main() {
	mode := flag.String("mode", app.ModeAll, "run mode: all | api | worker")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	fmt.Printf("orderflow · mode=%s · server.mode=%s · db=%s\n", *mode, cfg.Server.Mode, cfg.Database.Driver)

	if err := checkSecrets(cfg); err != nil {
		if cfg.Server.Mode == gin.ReleaseMode {
			stdLog.Fatalf("refuse to start: %v", err)
		}
		logger.Warnw("server_weak_secret", "error", err)
	}

	if err := prepareDatabase(cfg); err != nil {
		stdLog.Fatalf("database init failed: %v", err)
	}
	if *migrateOnly {
		logger.Infow("server_migrate_only_done")
		return
	}

	if cfg.Server.Mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := app.Run(app.Options{
		Config:  cfg,
		Logger:  logger.S(),
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		Mode:    *mode,
	}); err != nil {
		stdLog.Fatalf("server exited: %v", err)
	}
}

func prepareDatabase(cfg *config.Config) error {
	pool := models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, pool); err != nil {
		return err
	}
	return models.AutoMigrate()
}

// checkSecrets 校验管理端与用户端 JWT 密钥强度
func checkSecrets(cfg *config.Config) error {
	var errs []error
	for name, secret := range map[string]string{"jwt": cfg.JWT.SecretKey, "user_jwt": cfg.UserJWT.SecretKey} {
		if reason := weakSecretReason(secret); reason != "" {
			errs = append(errs, fmt.Errorf("%s.secret %s", name, reason))
		}
	}
	return errors.Join(errs...)
}

func weakSecretReason(secret string) string {
	if len(secret) < minSecretLength {
		return fmt.Sprintf("shorter than %d bytes", minSecretLength)
	}
	lower := strings.ToLower(secret)
	for _, marker := range weakSecretMarkers {
		if strings.Contains(lower, marker) {
			return "still contains placeholder " + marker
		}
	}
	return ""
}
