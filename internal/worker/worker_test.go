package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/domain"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/scheduler"
)

type fakeStore struct {
	run        *domain.OptimisationRun
	wards      []*domain.Ward
	placements []*domain.Placement
	user       *domain.User

	statuses  []domain.RunStatus
	schedules []domain.ScheduleResult
}

func (s *fakeStore) GetOptimisationRunByJobID(jobID string) (*domain.OptimisationRun, error) {
	if s.run == nil || s.run.JobID != jobID {
		return nil, sql.ErrNoRows
	}
	return s.run, nil
}

func (s *fakeStore) GetAllWards() ([]*domain.Ward, error) { return s.wards, nil }

func (s *fakeStore) GetAllPlacements() ([]*domain.Placement, error) { return s.placements, nil }

func (s *fakeStore) GetUserByID(id int64) (*domain.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.user, nil
}

func (s *fakeStore) UpdateOptimisationRunStatus(run *domain.OptimisationRun) error {
	s.statuses = append(s.statuses, run.Status)
	return nil
}

func (s *fakeStore) CompleteOptimisationRun(run *domain.OptimisationRun, schedules []domain.ScheduleResult) error {
	run.Status = domain.RunStatusCompleted
	s.statuses = append(s.statuses, run.Status)
	s.schedules = schedules
	return nil
}

type published struct {
	queue   string
	message any
}

type fakePublisher struct {
	messages []published
	err      error
}

func (p *fakePublisher) Publish(ctx context.Context, queue string, v any) error {
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, published{queue: queue, message: v})
	return nil
}

type countingReporter struct {
	mu    sync.Mutex
	count map[int32]int
}

func (r *countingReporter) ReportProgress(ctx context.Context, p domain.GenerationProgress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count[p.RunIndex]++
	return nil
}

func newFixture() *fakeStore {
	wards := make([]*domain.Ward, 0, 3)
	for i := int64(1); i <= 3; i++ {
		wards = append(wards, &domain.Ward{
			ID:            i,
			Name:          fmt.Sprintf("Ward %d", i),
			Department:    fmt.Sprintf("Dep %d", i),
			Capacity:      2,
			Year1Capacity: 2,
		})
	}

	placements := make([]*domain.Placement, 0, 4)
	for i := int64(1); i <= 4; i++ {
		placements = append(placements, &domain.Placement{
			ID:        i,
			StudentID: fmt.Sprintf("S%d", i),
			Name:      fmt.Sprintf("S%d_P1", i),
			Duration:  2,
			Start:     int32(i % 2),
			Year:      domain.YearGroup1,
		})
	}

	parameters := scheduler.DefaultParameters()
	parameters.PopulationSize = 10
	parameters.MaxGenerations = 5

	return &fakeStore{
		run: &domain.OptimisationRun{
			ID:           7,
			JobID:        "job-7",
			Status:       domain.RunStatusPending,
			NumSchedules: 2,
			Seed:         42,
			RequestedBy:  1,
			Parameters: domain.RunParameters{
				PopulationSize:   parameters.PopulationSize,
				MaxGenerations:   parameters.MaxGenerations,
				TargetFitness:    parameters.TargetFitness,
				StagnationWindow: parameters.StagnationWindow,
				CrossoverRate:    parameters.CrossoverRate,
				MutationRate:     parameters.MutationRate,
				EliteCount:       parameters.EliteCount,
				RepeatTolerance:  parameters.RepeatTolerance,
				UtilWeight:       parameters.UtilWeight,
				DepsWeight:       parameters.DepsWeight,
				WardsWeight:      parameters.WardsWeight,
				PenaltyWeight:    parameters.PenaltyWeight,
			},
		},
		wards:      wards,
		placements: placements,
		user:       &domain.User{ID: 1, FullName: "张三", Email: "zhangsan@example.com"},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProcessCompletesRun(t *testing.T) {
	store := newFixture()
	publisher := &fakePublisher{}
	reporter := &countingReporter{count: make(map[int32]int)}

	w := New(store, publisher, func(jobID string) scheduler.ProgressReporter {
		assert.Equal(t, "job-7", jobID)
		return reporter
	}, "email_queue", WithLogger(discardLogger()), WithWorkers(2))

	require.NoError(t, w.Process(context.Background(), domain.OptimisationJob{RunID: 7, JobID: "job-7"}))

	assert.Equal(t, []domain.RunStatus{domain.RunStatusRunning, domain.RunStatusCompleted}, store.statuses)
	require.Len(t, store.schedules, 2)
	for i, s := range store.schedules {
		assert.Equal(t, int32(i), s.RunIndex)
		assert.Len(t, s.Assignments, len(store.placements))
		assert.Equal(t, int(s.Iterations), reporter.count[int32(i)])
	}

	require.Len(t, publisher.messages, 1)
	assert.Equal(t, "email_queue", publisher.messages[0].queue)
	msg := publisher.messages[0].message.(domain.MailMessage)
	assert.Equal(t, domain.MailTypeRunCompleted, msg.Type)
	assert.Equal(t, "zhangsan@example.com", msg.To)
	data := msg.Data.(domain.RunCompletedMailData)
	assert.Equal(t, int64(7), data.RunID)
	assert.Equal(t, 2, data.NumSchedules)
}

func TestProcessIsDeterministic(t *testing.T) {
	first, second := newFixture(), newFixture()

	require.NoError(t, New(first, nil, nil, "email_queue", WithLogger(discardLogger())).Process(context.Background(), domain.OptimisationJob{JobID: "job-7"}))
	require.NoError(t, New(second, nil, nil, "email_queue", WithLogger(discardLogger()), WithWorkers(4)).Process(context.Background(), domain.OptimisationJob{JobID: "job-7"}))

	assert.Equal(t, first.schedules, second.schedules)
}

func TestProcessSkipsCompletedRun(t *testing.T) {
	store := newFixture()
	store.run.Status = domain.RunStatusCompleted

	require.NoError(t, New(store, nil, nil, "email_queue", WithLogger(discardLogger())).Process(context.Background(), domain.OptimisationJob{JobID: "job-7"}))
	assert.Empty(t, store.statuses)
}

func TestProcessMarksInvalidRunFailed(t *testing.T) {
	store := newFixture()
	store.run.Parameters.PopulationSize = 0

	err := New(store, nil, nil, "email_queue", WithLogger(discardLogger())).Process(context.Background(), domain.OptimisationJob{JobID: "job-7"})
	require.ErrorIs(t, err, scheduler.ErrInvalidConfig)

	assert.Equal(t, []domain.RunStatus{domain.RunStatusRunning, domain.RunStatusFailed}, store.statuses)
	assert.Contains(t, store.run.Error, "种群大小")
	assert.NotNil(t, store.run.FinishedAt)
	assert.Nil(t, store.schedules)
}

func TestProcessWithoutPlacementsFails(t *testing.T) {
	store := newFixture()
	store.placements = nil

	err := New(store, nil, nil, "email_queue", WithLogger(discardLogger())).Process(context.Background(), domain.OptimisationJob{JobID: "job-7"})
	require.ErrorIs(t, err, scheduler.ErrInvalidConfig)
	assert.Equal(t, domain.RunStatusFailed, store.run.Status)
}

func TestProcessUnknownJob(t *testing.T) {
	store := newFixture()

	err := New(store, nil, nil, "email_queue", WithLogger(discardLogger())).Process(context.Background(), domain.OptimisationJob{JobID: "missing"})
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestProcessIgnoresNotificationFailure(t *testing.T) {
	store := newFixture()
	publisher := &fakePublisher{err: errors.New("broker down")}

	require.NoError(t, New(store, publisher, nil, "email_queue", WithLogger(discardLogger())).Process(context.Background(), domain.OptimisationJob{JobID: "job-7"}))
	assert.Equal(t, domain.RunStatusCompleted, store.run.Status)
}

func TestSummarise(t *testing.T) {
	schedules := []domain.ScheduleResult{
		{FileName: "a", Fitness: 0.4, Viable: true},
		{FileName: "b", Fitness: 0.9, NonViableReason: "1 名学生的实习时间重叠"},
		{FileName: "c", Fitness: 0.9, Viable: true},
	}

	data := Summarise("张三", 3, schedules)
	assert.Equal(t, domain.RunCompletedMailData{
		FullName:        "张三",
		RunID:           3,
		NumSchedules:    3,
		NumViable:       2,
		BestFileName:    "b",
		NonViableReason: "1 名学生的实习时间重叠",
	}, data)

	assert.Empty(t, Summarise("张三", 3, nil).BestFileName)
}
