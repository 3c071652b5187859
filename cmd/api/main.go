package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/bootstrap"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/config"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/domain"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/handler"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/repository"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/worker"
	"golang.org/x/crypto/bcrypt"
)

// ensureInitialAdmin 在第一次启动时创建初始管理员，之后的启动不会修改它
func ensureInitialAdmin(repo *repository.Repository, cfg *config.Config) (bool, error) {
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(cfg.InitialAdmin.Password), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("无法生成初始管理员密码哈希: %w", err)
	}

	err = repo.CreateUser(&domain.User{
		Username:     cfg.InitialAdmin.Username,
		PasswordHash: string(passwordHash),
		FullName:     cfg.InitialAdmin.FullName,
		Email:        cfg.InitialAdmin.Email,
		Role:         domain.RoleAdmin,
	})

	var pgErr *pgconn.PgError
	switch {
	case err == nil:
		return true, nil
	case errors.As(err, &pgErr) && pgErr.ConstraintName == "users_username_key":
		return false, nil
	default:
		return false, fmt.Errorf("无法创建初始管理员: %w", err)
	}
}

func main() {
	logger := bootstrap.NewLogger()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法加载配置文件", "error", err)
		return
	}

	/**********************************************
	 * 连接数据库、RabbitMQ 和 redis
	 **********************************************/
	dbpool, err := bootstrap.OpenDatabase(cfg)
	if err != nil {
		logger.Error("数据库初始化失败", "error", err)
		return
	}
	defer dbpool.Close()

	repo := repository.NewRepository(cfg, dbpool)

	created, err := ensureInitialAdmin(repo, cfg)
	if err != nil {
		logger.Error("初始管理员初始化失败", "error", err)
		return
	}
	if created {
		logger.Info("已创建初始管理员", "username", cfg.InitialAdmin.Username)
	}

	conn, ch, err := bootstrap.OpenRabbitMQ(cfg)
	if err != nil {
		logger.Error("RabbitMQ 初始化失败", "error", err)
		return
	}
	defer conn.Close()
	defer ch.Close()

	rdb, err := bootstrap.OpenRedis(cfg)
	if err != nil {
		logger.Error("redis 初始化失败", "error", err)
		return
	}
	defer rdb.Close()

	/**********************************************
	 * 创建 handler
	 **********************************************/
	publisher := worker.NewAMQPPublisher(ch, time.Duration(cfg.RabbitMQ.PublishTimeout)*time.Second)
	h, err := handler.NewHandler(cfg, repo, publisher, rdb)
	if err != nil {
		logger.Error("无法创建 handler", "error", err)
		return
	}
	h.RegisterRoutes()

	/**********************************************
	 * 启动 HTTP 服务器
	 **********************************************/
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      h.Mux,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("正在启动服务器...", "port", cfg.Server.Port)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("无法启动服务器", "error", err)
		}
		return
	case <-ctx.Done():
	}

	logger.Info("正在关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("关闭服务器失败", "error", err)
		return
	}
	logger.Info("服务器已成功关闭")
}
