package main

import (
	"flag"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/bootstrap"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/config"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/repository"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/seed"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/utils"
)

func main() {
	var op int
	var n int
	var wardsFile string
	var placementsFile string

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 插入随机排班协调员, 2: 导入病房表和实习表)")
	flag.IntVar(&n, "n", 5, "要插入的记录数量")
	flag.StringVar(&wardsFile, "wards", "", "病房表路径，默认使用配置中的 SEED_WARDS_FILE")
	flag.StringVar(&placementsFile, "placements", "", "实习表路径，默认使用配置中的 SEED_PLACEMENTS_FILE")
	flag.Parse()

	logger := bootstrap.NewLogger()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}

	dbpool, err := bootstrap.OpenDatabase(cfg)
	if err != nil {
		logger.Error("数据库初始化失败", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer dbpool.Close()

	// 创建 repository
	repo := repository.NewRepository(cfg, dbpool)

	// 执行操作
	switch op {
	case 0:
		slog.Error("未指定操作")
	case 1:
		if n <= 0 {
			slog.Error("请输入合法的用户数量")
		} else {
			rng := rand.New(rand.NewSource(time.Now().UnixNano()))
			cnt := n
			for i := 0; i < n; i++ {
				user, err := utils.GenerateRandomCoordinator(rng, cfg.Seed.User.Password, cfg.Email.UserDomain)
				if err != nil {
					slog.Error("无法生成随机排班协调员", slog.String("error", err.Error()))
					continue
				}

				if err := repo.CreateUser(user); err != nil {
					slog.Error("无法插入用户", slog.String("error", err.Error()))
					continue
				}

				cnt--
			}

			slog.Info("插入用户成功", slog.Int("count", n-cnt))
		}
	case 2:
		if wardsFile == "" {
			wardsFile = cfg.Seed.WardsFile
		}
		if placementsFile == "" {
			placementsFile = cfg.Seed.PlacementsFile
		}

		if err := seed.ImportData(repo, wardsFile, placementsFile); err != nil {
			slog.Error("导入数据失败", slog.String("error", err.Error()))
			return
		}
	default:
		slog.Error("指定的操作非法")
	}
}
