package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/bootstrap"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/config"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/domain"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/progress"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/repository"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/scheduler"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/worker"
)

func main() {
	logger := bootstrap.NewLogger()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法加载配置文件", "error", err)
		return
	}

	/**********************************************
	 * 连接数据库、redis 和 RabbitMQ
	 **********************************************/
	dbpool, err := bootstrap.OpenDatabase(cfg)
	if err != nil {
		logger.Error("数据库初始化失败", "error", err)
		return
	}
	defer dbpool.Close()

	repo := repository.NewRepository(cfg, dbpool)

	rdb, err := bootstrap.OpenRedis(cfg)
	if err != nil {
		logger.Error("redis 初始化失败", "error", err)
		return
	}
	defer rdb.Close()

	conn, ch, err := bootstrap.OpenRabbitMQ(cfg)
	if err != nil {
		logger.Error("RabbitMQ 初始化失败", "error", err)
		return
	}
	defer conn.Close()
	defer ch.Close()

	// 优化任务很耗时，每次只取一个
	if err := ch.Qos(1, 0, false); err != nil {
		logger.Error("无法设置预取数量", "error", err)
		return
	}

	msgs, err := ch.Consume(
		cfg.RabbitMQ.OptimisationQueue,
		"",
		false, // 手动确认，任务处理完才确认
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		logger.Error("无法消费消息", "error", err)
		return
	}

	/**********************************************
	 * 创建 worker
	 **********************************************/
	progressExpiration := time.Duration(cfg.Redis.ProgressExpiration) * time.Second
	redisTimeout := time.Duration(cfg.Redis.OperationTimeout) * time.Second
	w := worker.New(
		repo,
		worker.NewAMQPPublisher(ch, time.Duration(cfg.RabbitMQ.PublishTimeout)*time.Second),
		func(jobID string) scheduler.ProgressReporter {
			return progress.NewRedisReporter(rdb, jobID, progressExpiration, redisTimeout)
		},
		cfg.RabbitMQ.EmailQueue,
		worker.WithLogger(logger),
		worker.WithWorkers(cfg.Optimiser.Workers),
		worker.WithRunTimeout(time.Duration(cfg.Optimiser.RunTimeout)*time.Second),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// 收到退出信号时取消正在执行的任务，任务会保存目前为止最好的排班表
	ctx, cancel := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Error("消息通道已关闭")
					return
				}

				job := domain.OptimisationJob{}
				if err := json.Unmarshal(msg.Body, &job); err != nil {
					logger.Error("优化任务反序列化失败", "error", err)
					_ = msg.Nack(false, false)
					continue
				}

				logger.Info("收到优化任务", "run", job.RunID, "job", job.JobID)
				if err := w.Process(ctx, job); err != nil {
					// 失败原因已经写入数据库，不重新入队
					logger.Error("优化任务失败", "run", job.RunID, "job", job.JobID, "error", err)
				}

				_ = msg.Ack(false)
			}
		}
	}()

	logger.Info("等待优化任务...（按 CTRL+C 退出）")
	<-sigChan

	logger.Info("正在关闭 optimisation worker...")
	cancel()
	wg.Wait()
	logger.Info("optimisation worker 已成功关闭")
}
