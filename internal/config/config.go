package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/dujiao-next/orderflow/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	UserJWT   JWTConfig       `mapstructure:"user_jwt"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Order     OrderConfig     `mapstructure:"order"`
	Refund    RefundConfig    `mapstructure:"refund"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Wechatpay WechatpayConfig `mapstructure:"wechatpay"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release
}

// LogConfig 日志配置
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // 数据库驱动（sqlite/postgres）
	DSN    string             `mapstructure:"dsn"`    // 数据库连接串
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// JWTConfig JWT 配置
type JWTConfig struct {
	SecretKey   string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// OrderConfig 订单配置
type OrderConfig struct {
	PaymentExpireMinutes       int `mapstructure:"payment_expire_minutes"`
	MaxItemQuantity            int `mapstructure:"max_item_quantity"`
	IdempotencyTTLSeconds      int `mapstructure:"idempotency_ttl_seconds"`
	CacheTTLSeconds            int `mapstructure:"cache_ttl_seconds"`
	PresaleBalanceWindowHours  int `mapstructure:"presale_balance_window_hours"`
	CompensationMaxAttempts    int `mapstructure:"compensation_max_attempts"`
	CompensationRetryDelaySecs int `mapstructure:"compensation_retry_delay_seconds"`
	ExpirySweepIntervalSecs    int `mapstructure:"expiry_sweep_interval_seconds"` // 过期订单巡检间隔，0 关闭
	ExpirySweepBatchSize       int `mapstructure:"expiry_sweep_batch_size"`
}

// RefundConfig 退款配置
type RefundConfig struct {
	GatewayTimeoutSeconds int `mapstructure:"gateway_timeout_seconds"`
	QueryDelaySeconds     int `mapstructure:"query_delay_seconds"` // 渠道受理中的退款首次查询延迟
	QueryMaxRetry         int `mapstructure:"query_max_retry"`
}

// RateLimitRuleConfig 单条限流规则
type RateLimitRuleConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxRequests   int `mapstructure:"max_requests"`
}

// RateLimitConfig 用户写接口限流配置
type RateLimitConfig struct {
	OrderCreate RateLimitRuleConfig `mapstructure:"order_create"`
	RefundApply RateLimitRuleConfig `mapstructure:"refund_apply"`
}

// WechatpayConfig 微信支付退款网关配置
type WechatpayConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	MerchantID         string `mapstructure:"merchant_id"`
	MerchantSerialNo   string `mapstructure:"merchant_serial_no"`
	MerchantPrivateKey string `mapstructure:"merchant_private_key"`
	APIV3Key           string `mapstructure:"api_v3_key"`
	NotifyURL          string `mapstructure:"notify_url"`
	BaseURL            string `mapstructure:"base_url"`
}

// Load 从 .env 与 config.yml 加载配置
func Load() *Config {
	// .env 仅补充环境变量，不覆盖已存在的值
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warnw("config_dotenv_load_failed", "error", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")   // 如果从 cmd/server 运行
	viper.AddConfigPath("./etc") // etc 文件夹

	setDefaults()

	// 环境变量支持
	viper.AutomaticEnv()                                   // 自动读取环境变量
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // 将 . 替换为 _ (例如 server.port -> SERVER_PORT)

	// 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", viper.ConfigFileUsed())
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("配置解析失败: %w", err))
	}

	return &cfg
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("log.dir", "")
	viper.SetDefault("log.filename", "app.log")
	viper.SetDefault("log.max_size_mb", 100)
	viper.SetDefault("log.max_backups", 7)
	viper.SetDefault("log.max_age_days", 30)
	viper.SetDefault("log.compress", true)
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.dsn", "./db/orderflow.db")
	viper.SetDefault("database.pool.max_open_conns", 1)
	viper.SetDefault("database.pool.max_idle_conns", 1)
	viper.SetDefault("database.pool.conn_max_lifetime_seconds", 0)
	viper.SetDefault("database.pool.conn_max_idle_time_seconds", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expire_hours", 24)
	viper.SetDefault("user_jwt.secret", "user-change-me-in-production")
	viper.SetDefault("user_jwt.expire_hours", 24)
	viper.SetDefault("redis.enabled", true)
	viper.SetDefault("redis.host", "127.0.0.1")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.prefix", "of")
	viper.SetDefault("queue.enabled", true)
	viper.SetDefault("queue.host", "127.0.0.1")
	viper.SetDefault("queue.port", 6379)
	viper.SetDefault("queue.password", "")
	viper.SetDefault("queue.db", 1)
	viper.SetDefault("queue.concurrency", 10)
	viper.SetDefault("queue.queues", map[string]int{
		"default":  10,
		"critical": 5,
	})
	viper.SetDefault("order.payment_expire_minutes", 15)
	viper.SetDefault("order.max_item_quantity", 999)
	viper.SetDefault("order.idempotency_ttl_seconds", 600)
	viper.SetDefault("order.cache_ttl_seconds", 60)
	viper.SetDefault("order.presale_balance_window_hours", 72)
	viper.SetDefault("order.compensation_max_attempts", 10)
	viper.SetDefault("order.compensation_retry_delay_seconds", 30)
	viper.SetDefault("order.expiry_sweep_interval_seconds", 60)
	viper.SetDefault("order.expiry_sweep_batch_size", 100)
	viper.SetDefault("refund.gateway_timeout_seconds", 10)
	viper.SetDefault("refund.query_delay_seconds", 60)
	viper.SetDefault("refund.query_max_retry", 20)
	viper.SetDefault("rate_limit.order_create.window_seconds", 60)
	viper.SetDefault("rate_limit.order_create.max_requests", 20)
	viper.SetDefault("rate_limit.refund_apply.window_seconds", 60)
	viper.SetDefault("rate_limit.refund_apply.max_requests", 5)
	viper.SetDefault("wechatpay.enabled", false)
	viper.SetDefault("wechatpay.base_url", "https://api.mch.weixin.qq.com")
}
