package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/domain"
	"gopkg.in/yaml.v3"
)

// Optimiser 是提交优化任务时没有指定的参数的默认值
// 可以通过 OPTIMISER_PARAMS_FILE 指定的 YAML 文件覆盖
type Optimiser struct {
	ParamsFile       string  `env:"PARAMS_FILE" yaml:"-"`
	PopulationSize   int32   `env:"POPULATION_SIZE" envDefault:"100" yaml:"population_size"`
	MaxGenerations   int32   `env:"MAX_GENERATIONS" envDefault:"200" yaml:"max_generations"`
	TargetFitness    float64 `env:"TARGET_FITNESS" envDefault:"1.0" yaml:"target_fitness"`
	StagnationWindow int32   `env:"STAGNATION_WINDOW" envDefault:"30" yaml:"stagnation_window"`
	CrossoverRate    float64 `env:"CROSSOVER_RATE" envDefault:"0.8" yaml:"crossover_rate"`
	MutationRate     float64 `env:"MUTATION_RATE" envDefault:"0.02" yaml:"mutation_rate"`
	EliteCount       int32   `env:"ELITE_COUNT" envDefault:"1" yaml:"elite_count"`
	RepeatTolerance  int32   `env:"REPEAT_TOLERANCE" envDefault:"0" yaml:"repeat_tolerance"`
	UtilWeight       float64 `env:"UTIL_WEIGHT" envDefault:"1.0" yaml:"util_weight"`
	DepsWeight       float64 `env:"DEPS_WEIGHT" envDefault:"1.0" yaml:"deps_weight"`
	WardsWeight      float64 `env:"WARDS_WEIGHT" envDefault:"1.0" yaml:"wards_weight"`
	PenaltyWeight    float64 `env:"PENALTY_WEIGHT" envDefault:"0.5" yaml:"penalty_weight"`
	NumSchedules     int32   `env:"NUM_SCHEDULES" envDefault:"1" yaml:"num_schedules"`
	Workers          int32   `env:"WORKERS" envDefault:"0" yaml:"workers"`
	RunTimeout       int     `env:"RUN_TIMEOUT" envDefault:"3600" yaml:"run_timeout"` // 单个任务的最长运行时间（秒）
}

func (o *Optimiser) RunParameters() domain.RunParameters {
	return domain.RunParameters{
		PopulationSize:   o.PopulationSize,
		MaxGenerations:   o.MaxGenerations,
		TargetFitness:    o.TargetFitness,
		StagnationWindow: o.StagnationWindow,
		CrossoverRate:    o.CrossoverRate,
		MutationRate:     o.MutationRate,
		EliteCount:       o.EliteCount,
		RepeatTolerance:  o.RepeatTolerance,
		UtilWeight:       o.UtilWeight,
		DepsWeight:       o.DepsWeight,
		WardsWeight:      o.WardsWeight,
		PenaltyWeight:    o.PenaltyWeight,
	}
}

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Server      struct {
		Port            string `env:"PORT" envDefault:"3000"`
		ReadTimeout     int    `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int    `env:"WRITE_TIMEOUT" envDefault:"15"`
		IdleTimeout     int    `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT" envDefault:"10"`
	} `envPrefix:"SERVER_"`
	Database struct {
		DSN                string `env:"DSN,required"`
		ConnectTimeout     int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		QueryTimeout       int    `env:"QUERY_TIMEOUT" envDefault:"10"`
		TransactionTimeout int    `env:"TRANSACTION_TIMEOUT" envDefault:"20"`
		MaxOpenConns       int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns       int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
		MaxIdleTime        int    `env:"MAX_IDLE_TIME" envDefault:"60"`
	} `envPrefix:"DATABASE_"`
	InitialAdmin struct {
		Username string `env:"USERNAME" envDefault:"admin"`
		Password string `env:"PASSWORD,required"`
		FullName string `env:"FULL_NAME" envDefault:"管理员"`
		Email    string `env:"EMAIL,required"`
	} `envPrefix:"INITIAL_ADMIN_"`
	JWT struct {
		Expiration int    `env:"EXPIRATION" envDefault:"1209600"` // 14 天
		Secret     string `env:"SECRET,required"`
	} `envPrefix:"JWT_"`
	Seed struct {
		User struct {
			Password string `env:"PASSWORD,required"`
		} `envPrefix:"USER_"`
		WardsFile      string `env:"WARDS_FILE" envDefault:"data/wards.csv"`
		PlacementsFile string `env:"PLACEMENTS_FILE" envDefault:"data/placements.csv"`
	} `envPrefix:"SEED_"`
	Email struct {
		UserDomain string `env:"USER_DOMAIN,required"`
		SMTP       struct {
			Username    string `env:"USERNAME,required"`
			Password    string `env:"PASSWORD,required"`
			Host        string `env:"HOST,required"`
			Port        int    `env:"PORT" envDefault:"465"`
			DialTimeout int    `env:"DIAL_TIMEOUT" envDefault:"10"`
		} `envPrefix:"SMTP_"`
	} `envPrefix:"EMAIL_"`
	RabbitMQ struct {
		DSN               string `env:"DSN,required"`
		PublishTimeout    int    `env:"PUBLISH_TIMEOUT" envDefault:"10"`
		OptimisationQueue string `env:"OPTIMISATION_QUEUE" envDefault:"optimisation_queue"`
		EmailQueue        string `env:"EMAIL_QUEUE" envDefault:"email_queue"`
	} `envPrefix:"RABBITMQ_"`
	Redis struct {
		Host               string `env:"HOST" envDefault:"localhost"`
		Port               int    `env:"PORT" envDefault:"6379"`
		Password           string `env:"PASSWORD,required"`
		ConnectTimeout     int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		OperationTimeout   int    `env:"OPERATION_TIMEOUT" envDefault:"10"`
		ProgressExpiration int    `env:"PROGRESS_EXPIRATION" envDefault:"86400"` // 1 天
	} `envPrefix:"REDIS_"`
	Optimiser Optimiser `envPrefix:"OPTIMISER_"`
}

// LoadConfig 先加载 .env（如果存在），再从环境变量解析配置
func LoadConfig() (*Config, error) {
	// .env 不存在时直接使用环境变量
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok {
			// 只返回第一个错误使得日志更清晰
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}

	if cfg.Optimiser.ParamsFile != "" {
		if err := loadOptimiserFile(cfg.Optimiser.ParamsFile, &cfg.Optimiser); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// loadOptimiserFile 用 YAML 文件中出现的字段覆盖默认参数，未出现的字段保持不变
func loadOptimiserFile(path string, o *Optimiser) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取参数文件失败: %w", err)
	}
	if err := yaml.Unmarshal(data, o); err != nil {
		return fmt.Errorf("解析参数文件失败: %w", err)
	}
	return nil
}
