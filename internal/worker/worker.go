package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/domain"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/scheduler"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/utils"
)

// Store 是 worker 需要的持久化操作，由 repository.Repository 实现
type Store interface {
	GetOptimisationRunByJobID(jobID string) (*domain.OptimisationRun, error)
	GetAllWards() ([]*domain.Ward, error)
	GetAllPlacements() ([]*domain.Placement, error)
	GetUserByID(id int64) (*domain.User, error)
	UpdateOptimisationRunStatus(run *domain.OptimisationRun) error
	CompleteOptimisationRun(run *domain.OptimisationRun, schedules []domain.ScheduleResult) error
}

type Publisher interface {
	Publish(ctx context.Context, queue string, v any) error
}

// ReporterFactory 为每个任务创建一个进度报告器
type ReporterFactory func(jobID string) scheduler.ProgressReporter

type Worker struct {
	store       Store
	publisher   Publisher
	newReporter ReporterFactory
	emailQueue  string
	workers     int32
	runTimeout  time.Duration
	logger      *slog.Logger
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// WithWorkers 设置每次独立运行中并行计算适应度的协程数
func WithWorkers(workers int32) Option {
	return func(w *Worker) {
		w.workers = workers
	}
}

func WithRunTimeout(timeout time.Duration) Option {
	return func(w *Worker) {
		w.runTimeout = timeout
	}
}

func New(store Store, publisher Publisher, newReporter ReporterFactory, emailQueue string, opts ...Option) *Worker {
	w := &Worker{
		store:       store,
		publisher:   publisher,
		newReporter: newReporter,
		emailQueue:  emailQueue,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Process 执行一个优化任务
// 任务失败时会把失败原因写入数据库，已完成的任务重复投递时直接跳过
func (w *Worker) Process(ctx context.Context, job domain.OptimisationJob) error {
	run, err := w.store.GetOptimisationRunByJobID(job.JobID)
	if err != nil {
		return fmt.Errorf("获取优化任务失败: %w", err)
	}
	if run.Status == domain.RunStatusCompleted {
		w.logger.Info("优化任务已经完成，跳过", "run", run.ID, "job", run.JobID)
		return nil
	}

	run.Status = domain.RunStatusRunning
	run.Error = ""
	run.FinishedAt = nil
	if err := w.store.UpdateOptimisationRunStatus(run); err != nil {
		return fmt.Errorf("更新优化任务状态失败: %w", err)
	}

	schedules, err := w.optimise(ctx, run)
	if err != nil {
		w.fail(run, err)
		return err
	}

	if err := w.store.CompleteOptimisationRun(run, schedules); err != nil {
		w.fail(run, err)
		return fmt.Errorf("保存排班结果失败: %w", err)
	}

	w.logger.Info("优化任务已完成", "run", run.ID, "job", run.JobID, "schedules", len(schedules))

	// 邮件只是通知，发送失败不影响任务结果
	if err := w.notify(ctx, run, schedules); err != nil {
		w.logger.Warn("无法发送完成通知", "run", run.ID, "error", err)
	}

	return nil
}

func (w *Worker) optimise(ctx context.Context, run *domain.OptimisationRun) ([]domain.ScheduleResult, error) {
	wards, err := w.store.GetAllWards()
	if err != nil {
		return nil, fmt.Errorf("获取病房失败: %w", err)
	}
	placements, err := w.store.GetAllPlacements()
	if err != nil {
		return nil, fmt.Errorf("获取实习失败: %w", err)
	}

	slots := domain.NewSlots(domain.HorizonWeeks(placements))
	parameters := scheduler.ParametersFromRun(run.Parameters, w.workers)

	if w.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.runTimeout)
		defer cancel()
	}

	var reporter scheduler.ProgressReporter
	if w.newReporter != nil {
		reporter = w.newReporter(run.JobID)
	}

	w.logger.Info("开始优化", "run", run.ID, "job", run.JobID, "wards", len(wards), "placements", len(placements), "weeks", len(slots), "schedules", run.NumSchedules)

	results, err := scheduler.RunMany(ctx, parameters, slots, wards, placements, int(run.NumSchedules), run.Seed, reporter, w.logger.With("run", run.ID))
	if err != nil {
		return nil, err
	}

	schedules := make([]domain.ScheduleResult, 0, len(results))
	for _, res := range results {
		if res.Cancelled {
			w.logger.Warn("运行超时，使用目前最好的排班表", "run", run.ID, "index", res.Schedule.RunIndex)
		}
		// 写入数据库之前确认结果引用的都是本次读取的病房和实习
		if err := utils.ValidateScheduleAssignments(&res.Schedule, wards, placements); err != nil {
			return nil, fmt.Errorf("排班表 %s 不合法: %w", res.Schedule.FileName, err)
		}
		schedules = append(schedules, res.Schedule)
	}
	return schedules, nil
}

func (w *Worker) fail(run *domain.OptimisationRun, cause error) {
	run.Status = domain.RunStatusFailed
	run.Error = cause.Error()
	finishedAt := time.Now()
	run.FinishedAt = &finishedAt

	if err := w.store.UpdateOptimisationRunStatus(run); err != nil {
		w.logger.Error("无法把优化任务标记为失败", "run", run.ID, "error", err)
	}
}

func (w *Worker) notify(ctx context.Context, run *domain.OptimisationRun, schedules []domain.ScheduleResult) error {
	if w.publisher == nil || len(schedules) == 0 {
		return nil
	}

	user, err := w.store.GetUserByID(run.RequestedBy)
	if err != nil {
		return err
	}

	return w.publisher.Publish(ctx, w.emailQueue, domain.MailMessage{
		Type: domain.MailTypeRunCompleted,
		To:   user.Email,
		Data: Summarise(user.FullName, run.ID, schedules),
	})
}

// Summarise 汇总多次运行的结果，最优排班表按适应度选出，相同时取编号较小的
func Summarise(fullName string, runID int64, schedules []domain.ScheduleResult) domain.RunCompletedMailData {
	data := domain.RunCompletedMailData{
		FullName:     fullName,
		RunID:        runID,
		NumSchedules: len(schedules),
	}

	best := -1
	for i, s := range schedules {
		if s.Viable {
			data.NumViable++
		}
		if best < 0 || s.Fitness > schedules[best].Fitness {
			best = i
		}
	}
	if best >= 0 {
		data.BestFileName = schedules[best].FileName
		data.NonViableReason = schedules[best].NonViableReason
	}

	return data
}
