package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/dujiao-next/orderflow/internal/config"
	"github.com/dujiao-next/orderflow/internal/constants"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 3 * time.Second

// store 进程内唯一的 Redis 连接；client 为 nil 表示缓存关闭，所有读写降级为空操作
type store struct {
	client *redis.Client
	prefix string
}

var current = store{prefix: constants.RedisPrefixDefault}

// InitRedis 连接 Redis；未启用或连不上时缓存保持关闭
func InitRedis(cfg *config.RedisConfig) error {
	if cfg == nil || !cfg.Enabled {
		UseClient(nil, "")
		return nil
	}
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port <= 0 {
		port = 6379
	}
	client := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		UseClient(nil, "")
		return fmt.Errorf("ping redis %s failed: %w", client.Options().Addr, err)
	}
	UseClient(client, cfg.Prefix)
	return nil
}

// UseClient 注入已有客户端，nil 表示关闭缓存
func UseClient(client *redis.Client, prefix string) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = constants.RedisPrefixDefault
	}
	current = store{client: client, prefix: prefix}
}

func Enabled() bool {
	return current.client != nil
}

// Client 缓存关闭时返回 nil
func Client() *redis.Client {
	return current.client
}

// GetJSON 命中时解码到 dest
func GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, ok, err := get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, err
	}
	return true, nil
}

func SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !Enabled() {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return current.client.Set(ctx, buildKey(key), payload, ttl).Err()
}

// SetNX 缓存关闭时视为写入成功
func SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	if !Enabled() {
		return true, nil
	}
	return current.client.SetNX(ctx, buildKey(key), value, ttl).Result()
}

// GetString 键不存在返回空串
func GetString(ctx context.Context, key string) (string, error) {
	raw, _, err := get(ctx, key)
	return raw, err
}

func SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	if !Enabled() {
		return nil
	}
	return current.client.Set(ctx, buildKey(key), value, ttl).Err()
}

func Del(ctx context.Context, key string) error {
	if !Enabled() {
		return nil
	}
	return current.client.Del(ctx, buildKey(key)).Err()
}

func get(ctx context.Context, key string) (string, bool, error) {
	if !Enabled() {
		return "", false, nil
	}
	raw, err := current.client.Get(ctx, buildKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return raw, true, nil
}

func buildKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return current.prefix
	}
	return current.prefix + ":" + key
}
