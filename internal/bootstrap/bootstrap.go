// Package bootstrap 负责 api、worker、mail 和 seed 共用的启动步骤
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// NewLogger 创建文本格式的 logger 并设为默认 logger
func NewLogger() *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	return logger
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// OpenDatabase 创建连接池并确认数据库可以连接
func OpenDatabase(cfg *config.Config) (*sql.DB, error) {
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("无法创建数据库连接池: %w", err)
	}

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(seconds(cfg.Database.MaxIdleTime))

	ctx, cancel := context.WithTimeout(context.Background(), seconds(cfg.Database.ConnectTimeout))
	defer cancel()

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
	if err := dbpool.PingContext(ctx); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("无法连接到数据库: %w", err)
	}

	return dbpool, nil
}

func OpenRedis(cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), seconds(cfg.Redis.ConnectTimeout))
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("无法连接到 redis: %w", err)
	}

	return rdb, nil
}

// OpenRabbitMQ 建立连接和通道，并声明优化任务队列和邮件队列
// 两个队列都是持久化的，哪个进程先启动都可以
func OpenRabbitMQ(cfg *config.Config) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("无法连接到 RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("无法创建通道: %w", err)
	}

	for _, queue := range []string{cfg.RabbitMQ.OptimisationQueue, cfg.RabbitMQ.EmailQueue} {
		if _, err := ch.QueueDeclare(
			queue,
			true,  // 持久化
			false, // 没有消费者时不自动删除
			false, // 允许多个消费者
			false,
			nil,
		); err != nil {
			ch.Close()
			conn.Close()
			return nil, nil, fmt.Errorf("无法声明队列 %q: %w", queue, err)
		}
	}

	return conn, ch, nil
}
