package runstate

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisRegistry は複数の負荷生成プロセスでIDを共有するRegistry実装
// カテゴリごとにRedisリストを使い、RPUSHで追記する
type RedisRegistry struct {
	client *redis.Client
	prefix string
}

// RedisConfig はRedisRegistryの設定
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	RunID    string // キーのプレフィックスに使う
}

// NewRedisRegistry はRedisに接続してRegistryを作成する
func NewRedisRegistry(ctx context.Context, config RedisConfig) (*RedisRegistry, error) {
	if config.RunID == "" {
		return nil, fmt.Errorf("redis registry requires a run id")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", config.Addr, err)
	}

	return &RedisRegistry{
		client: client,
		prefix: "secchub-loadtest:" + config.RunID,
	}, nil
}

func (r *RedisRegistry) key(category Category) string {
	return r.prefix + ":" + string(category)
}

// Append はIDを追加する
func (r *RedisRegistry) Append(ctx context.Context, category Category, id int64) error {
	if !category.Valid() {
		return fmt.Errorf("unknown category: %s", category)
	}
	return r.client.RPush(ctx, r.key(category), id).Err()
}

// Count はカテゴリのID数を返す
func (r *RedisRegistry) Count(ctx context.Context, category Category) (int, error) {
	n, err := r.client.LLen(ctx, r.key(category)).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// IDs はカテゴリのIDを追加順で返す
func (r *RedisRegistry) IDs(ctx context.Context, category Category) ([]int64, error) {
	values, err := r.client.LRange(ctx, r.key(category), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(values))
	for _, v := range values {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt id %q in %s: %w", v, r.key(category), err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Clear は実行のキーを削除する
func (r *RedisRegistry) Clear(ctx context.Context) error {
	keys := make([]string, 0, len(Categories()))
	for _, c := range Categories() {
		keys = append(keys, r.key(c))
	}
	return r.client.Del(ctx, keys...).Err()
}

// Close は接続を閉じる
func (r *RedisRegistry) Close() error {
	return r.client.Close()
}
