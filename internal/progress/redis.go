package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/domain"
)

// Key 返回某个优化任务的进度在 redis 中的键，每次独立运行占用哈希表中的一个字段
func Key(jobID string) string {
	return fmt.Sprintf("optimisation:%s:progress", jobID)
}

// RedisReporter 把每一代的进度写入 redis，供接口查询
type RedisReporter struct {
	client     *redis.Client
	jobID      string
	expiration time.Duration
	timeout    time.Duration
}

func NewRedisReporter(client *redis.Client, jobID string, expiration time.Duration, timeout time.Duration) *RedisReporter {
	return &RedisReporter{
		client:     client,
		jobID:      jobID,
		expiration: expiration,
		timeout:    timeout,
	}
}

func (r *RedisReporter) ReportProgress(ctx context.Context, p domain.GenerationProgress) error {
	p.UpdatedAt = time.Now()
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	key := Key(r.jobID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, strconv.Itoa(int(p.RunIndex)), data)
		pipe.Expire(ctx, key, r.expiration)
		return nil
	})
	return err
}

// GetProgress 返回每次独立运行最新的进度，按运行编号排序，任务不存在或已过期时返回空列表
func GetProgress(ctx context.Context, client *redis.Client, jobID string) ([]domain.GenerationProgress, error) {
	fields, err := client.HGetAll(ctx, Key(jobID)).Result()
	if err != nil {
		return nil, err
	}

	progresses := make([]domain.GenerationProgress, 0, len(fields))
	for _, value := range fields {
		var p domain.GenerationProgress
		if err := json.Unmarshal([]byte(value), &p); err != nil {
			return nil, err
		}
		progresses = append(progresses, p)
	}

	slices.SortFunc(progresses, func(a, b domain.GenerationProgress) int {
		return int(a.RunIndex - b.RunIndex)
	})

	return progresses, nil
}
