package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/domain"
	"golang.org/x/sync/errgroup"
)

// ProgressReporter 在每一代结束时接收进度，报告失败不会影响排班
type ProgressReporter interface {
	ReportProgress(ctx context.Context, progress domain.GenerationProgress) error
}

type RunResult struct {
	Schedule  domain.ScheduleResult
	Scores    ScheduleScores
	Quality   QualityMetrics
	Trace     []float64
	Cancelled bool
}

// Result 返回运行结束时选出的排班表
func (s *Scheduler) Result() (*RunResult, error) {
	if s.state != StateTerminated {
		return nil, fmt.Errorf("%w: 运行尚未结束", ErrInvalidState)
	}
	if s.best == nil {
		return nil, fmt.Errorf("%w: 没有可用的排班表", ErrInvalidState)
	}

	best := s.best
	schedule := domain.ScheduleResult{
		RunIndex:            s.runIndex,
		FileName:            best.fileName,
		Viable:              best.Viable(),
		NonViableReason:     best.nonViableReason,
		Iterations:          s.generation,
		Fitness:             best.fitness,
		MeanWardUtil:        best.scores.MeanWardUtil,
		MeanUniqDeps:        best.scores.MeanUniqDeps,
		MeanUniqWards:       best.scores.MeanUniqWards,
		NumIncorrNumPlac:    int32(best.quality.NumIncorrNumPlac),
		NumIncorrectLength:  int32(best.quality.NumIncorrectLength),
		NumCapacityExceeded: int32(best.quality.NumCapacityExceeded),
		NumDoubleBooked:     int32(best.quality.NumDoubleBooked),
		NumUnassigned:       int32(best.unassigned),
		Assignments:         make([]domain.Assignment, len(best.genes)),
	}

	for i, gene := range best.genes {
		schedule.Assignments[i] = domain.Assignment{
			PlacementID: s.placements[i].ID,
		}
		if ward, ok := gene.Ward(); ok {
			wardID := s.wards[ward].ID
			schedule.Assignments[i].WardID = &wardID
		}
	}

	return &RunResult{
		Schedule:  schedule,
		Scores:    best.scores,
		Quality:   best.quality,
		Trace:     s.Trace(),
		Cancelled: s.cancelled,
	}, nil
}

// Run 反复调用 Step 直到结束
func (s *Scheduler) Run(ctx context.Context, reporter ProgressReporter) (*RunResult, error) {
	for !s.IsDone() {
		progress, err := s.Step(ctx)
		if err != nil {
			return nil, err
		}

		if reporter != nil {
			if err := reporter.ReportProgress(ctx, progress); err != nil {
				s.logger.Warn("无法报告进度", "run", s.runIndex+1, "error", err)
			}
		}
	}

	res, err := s.Result()
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return res, err
}

// RunMany 并行执行 n 次相互独立的运行，第 i 次运行使用 baseSeed+i 作为随机种子
func RunMany(ctx context.Context, parameters Parameters, slots []domain.Slot, wards []*domain.Ward, placements []*domain.Placement, n int, baseSeed int64, reporter ProgressReporter, logger *slog.Logger) ([]*RunResult, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: 运行次数必须为正数", ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}

	// 先全部构造一遍，配置错误时不启动任何运行
	schedulers := make([]*Scheduler, n)
	for i := range schedulers {
		s, err := New(parameters, slots, wards, placements, rand.New(rand.NewSource(baseSeed+int64(i))), WithRunIndex(int32(i)), WithLogger(logger))
		if err != nil {
			return nil, err
		}
		schedulers[i] = s
	}

	results := make([]*RunResult, n)
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range schedulers {
		i, s := i, s
		g.Go(func() error {
			res, err := s.Run(gctx, reporter)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}
