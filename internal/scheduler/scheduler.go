package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/domain"
	"golang.org/x/sync/errgroup"
)

type State int

const (
	StateSeeding State = iota
	StateEvaluating
	StateEvolving
	StateTerminated
)

func (st State) String() string {
	switch st {
	case StateSeeding:
		return "seeding"
	case StateEvaluating:
		return "evaluating"
	case StateEvolving:
		return "evolving"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int(st))
	}
}

type Scheduler struct {
	parameters *Parameters
	slots      []domain.Slot
	wards      []*domain.Ward
	placements []*domain.Placement // 已按优先级排序，基因的下标与其一致
	runIndex   int32
	rng        *rand.Rand
	logger     *slog.Logger

	eligible          [][]int          // 每个实习满足静态硬约束的病房下标
	students          []string         // 按首次出现顺序排列的学生，保证遍历顺序稳定
	studentPlacements map[string][]int // studentID -> 实习下标

	state      State
	population []*Chromosome
	best       *Chromosome
	trace      []float64 // 每一代的最优适应度
	generation int32
	cancelled  bool
}

type Option func(*Scheduler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithRunIndex 设置本次运行在多次独立运行中的编号，会体现在文件名中
func WithRunIndex(index int32) Option {
	return func(s *Scheduler) {
		s.runIndex = index
	}
}

// New 校验参数和输入数据，失败时不会生成任何种群
// 传入的病房和实习在整个运行期间只读
func New(parameters Parameters, slots []domain.Slot, wards []*domain.Ward, placements []*domain.Placement, rng *rand.Rand, opts ...Option) (*Scheduler, error) {
	if err := validateParameters(&parameters, len(slots), len(wards), len(placements)); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: 必须提供随机数生成器", ErrInvalidConfig)
	}

	for _, w := range wards {
		if err := ValidateWard(w); err != nil {
			return nil, err
		}
	}
	for _, p := range placements {
		if err := ValidatePlacement(p); err != nil {
			return nil, err
		}
		// 超出周期的周不会计入占用，容量约束就检查不到这个实习
		if p.End() >= len(slots) {
			return nil, fmt.Errorf("%w: 实习 %q 在第 %d 周结束，超出了 %d 周的排班周期", ErrInvalidConfig, p.Name, p.End()+1, len(slots))
		}
	}

	s := &Scheduler{
		parameters:        &parameters,
		slots:             slots,
		wards:             wards,
		placements:        prioritise(placements, wards),
		rng:               rng,
		logger:            slog.Default(),
		studentPlacements: make(map[string][]int),
		state:             StateSeeding,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.eligible = make([][]int, len(s.placements))
	for i, p := range s.placements {
		for ward, w := range s.wards {
			if eligibleStatic(p, w) {
				s.eligible[i] = append(s.eligible[i], ward)
			}
		}

		if _, exists := s.studentPlacements[p.StudentID]; !exists {
			s.students = append(s.students, p.StudentID)
		}
		s.studentPlacements[p.StudentID] = append(s.studentPlacements[p.StudentID], i)
	}

	return s, nil
}

func (s *Scheduler) State() State {
	return s.state
}

func (s *Scheduler) IsDone() bool {
	return s.state == StateTerminated
}

func (s *Scheduler) Generation() int32 {
	return s.generation
}

// Trace 返回每一代最优适应度的副本
func (s *Scheduler) Trace() []float64 {
	return append([]float64(nil), s.trace...)
}

// Seed 生成初始种群
func (s *Scheduler) Seed() error {
	if s.state != StateSeeding {
		return fmt.Errorf("%w: 当前状态为 %s，无法生成初始种群", ErrInvalidState, s.state)
	}

	s.population = make([]*Chromosome, s.parameters.PopulationSize)
	for i := range s.population {
		s.population[i] = s.seedChromosome(s.rng)
	}

	s.logger.Info("已生成初始种群", "run", s.runIndex+1, "populationSize", len(s.population), "placements", len(s.placements), "wards", len(s.wards))
	s.state = StateEvaluating
	return nil
}

// Evaluate 对初始种群评分，只能在 Seed 之后调用一次
func (s *Scheduler) Evaluate(ctx context.Context) (domain.GenerationProgress, error) {
	if s.state != StateEvaluating || s.generation != 0 {
		return domain.GenerationProgress{}, fmt.Errorf("%w: 当前状态为 %s，无法评估初始种群", ErrInvalidState, s.state)
	}

	return s.scoreAndRecord(ctx)
}

// Evolve 产生下一代并评分
func (s *Scheduler) Evolve(ctx context.Context) (domain.GenerationProgress, error) {
	if s.state != StateEvolving {
		return domain.GenerationProgress{}, fmt.Errorf("%w: 当前状态为 %s，无法进化", ErrInvalidState, s.state)
	}

	s.population = s.breed(s.rng, s.population)
	s.state = StateEvaluating
	return s.scoreAndRecord(ctx)
}

// Step 推进一代：首次调用时生成并评估初始种群，之后每次进化一代
// 在每一代的边界检查 ctx，被取消时停止并保留目前为止最好的排班表
func (s *Scheduler) Step(ctx context.Context) (domain.GenerationProgress, error) {
	if s.state == StateTerminated {
		return domain.GenerationProgress{}, fmt.Errorf("%w: 运行已经结束", ErrInvalidState)
	}

	if err := ctx.Err(); err != nil {
		s.cancelled = true
		s.terminate()
		return s.progress(false), nil
	}

	switch s.state {
	case StateSeeding:
		if err := s.Seed(); err != nil {
			return domain.GenerationProgress{}, err
		}
		return s.Evaluate(ctx)
	case StateEvaluating:
		return s.Evaluate(ctx)
	default:
		return s.Evolve(ctx)
	}
}

// scoreAndRecord 并行评估种群，记录最优个体并判断是否继续
func (s *Scheduler) scoreAndRecord(ctx context.Context) (domain.GenerationProgress, error) {
	g, _ := errgroup.WithContext(ctx)
	if s.parameters.Workers > 0 {
		g.SetLimit(int(s.parameters.Workers))
	}
	for _, ch := range s.population {
		if ch.evaluated {
			continue
		}
		ch := ch
		g.Go(func() error {
			s.evaluate(ch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.GenerationProgress{}, err
	}

	// 找到本代最佳样本，同适应度时取靠前的
	genBest := s.population[0]
	for _, ch := range s.population[1:] {
		if ch.fitness > genBest.fitness {
			genBest = ch
		}
	}
	if s.best == nil || genBest.fitness > s.best.fitness {
		s.best = genBest
	}

	s.generation++
	s.trace = append(s.trace, s.best.fitness)

	cont := s.shouldContinue()
	s.logger.Debug("已完成一代", "run", s.runIndex+1, "generation", s.generation, "bestFitness", s.best.fitness, "continue", cont)

	if cont {
		s.state = StateEvolving
	} else {
		s.terminate()
	}

	return s.progress(cont), nil
}

// shouldContinue 三个条件都满足时才继续：未达到最大代数、未达到目标适应度、最近若干代仍有提升
func (s *Scheduler) shouldContinue() bool {
	if s.generation >= s.parameters.MaxGenerations {
		return false
	}
	if s.best.fitness >= s.parameters.TargetFitness {
		return false
	}

	window := int(s.parameters.StagnationWindow)
	if window > 0 && len(s.trace) > window {
		last := len(s.trace) - 1
		if s.trace[last]-s.trace[last-window] <= 0 {
			return false
		}
	}

	return true
}

func (s *Scheduler) terminate() {
	if s.state == StateTerminated {
		return
	}
	s.state = StateTerminated

	if s.best == nil {
		s.logger.Warn("运行在评估任何排班表之前被取消", "run", s.runIndex+1)
		return
	}

	s.best.fileName = fileName(s.runIndex, s.generation, s.best.Viable())
	s.logger.Info("运行结束",
		"run", s.runIndex+1,
		"generations", s.generation,
		"fitness", s.best.fitness,
		"viable", s.best.Viable(),
		"reason", s.best.nonViableReason,
		"cancelled", s.cancelled,
	)
}

func (s *Scheduler) progress(cont bool) domain.GenerationProgress {
	fitnesses := make([]float64, 0, len(s.population))
	for _, ch := range s.population {
		if ch.evaluated {
			fitnesses = append(fitnesses, ch.fitness)
		}
	}

	best := 0.0
	if s.best != nil {
		best = s.best.fitness
	}

	return domain.GenerationProgress{
		RunIndex:    s.runIndex,
		Generation:  s.generation,
		BestFitness: best,
		Fitnesses:   fitnesses,
		Continue:    cont,
		UpdatedAt:   time.Now(),
	}
}

// fileName 文件名中包含运行编号、代数以及是否可行
func fileName(runIndex int32, generation int32, viable bool) string {
	return fmt.Sprintf("placement_schedule_run_%d_generation_%d_viable_%t", runIndex+1, generation, viable)
}
