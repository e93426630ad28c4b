package utils

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient обертка над Redis клиентом для дедупликации и Pub/Sub алертов
type RedisClient struct {
	client *redis.Client
	prefix string
}

// NewRedisClient создает новый Redis клиент. prefix добавляется ко всем ключам.
func NewRedisClient(client *redis.Client, prefix string) *RedisClient {
	return &RedisClient{
		client: client,
		prefix: prefix,
	}
}

func (r *RedisClient) key(key string) string {
	return r.prefix + key
}

func encode(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		jsonData, err := json.Marshal(value)
		if err != nil {
			return "", err
		}
		return string(jsonData), nil
	}
}

// SetNX устанавливает значение только если ключ не существует
func (r *RedisClient) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	data, err := encode(value)
	if err != nil {
		return false, err
	}
	return r.client.SetNX(ctx, r.key(key), data, ttl).Result()
}

// Delete удаляет ключ
func (r *RedisClient) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

// Publish публикует сообщение в канал (Pub/Sub). Не-строки сериализуются в JSON.
func (r *RedisClient) Publish(ctx context.Context, channel string, message interface{}) error {
	data, err := encode(message)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, channel, data).Err()
}

// Ping проверяет доступность Redis
func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
