package handler

import (
	"context"

	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/domain"
)

// Store 是 API 需要的持久化操作，由 repository.Repository 实现
type Store interface {
	GetUserByID(id int64) (*domain.User, error)
	GetUserByUsername(username string) (*domain.User, error)
	GetAllUsers() ([]*domain.User, error)
	CreateUser(user *domain.User) error
	UpdateUser(user *domain.User) error
	DeleteUser(id int64) error

	GetAllWards() ([]*domain.Ward, error)
	CreateWard(w *domain.Ward) error
	DeleteWard(id int64) error

	GetAllPlacements() ([]*domain.Placement, error)
	GetStudentCohorts() (map[string]string, error)
	CreateStudent(studentID string, name string, cohort string) error
	CreatePlacement(p *domain.Placement) error

	CreateOptimisationRun(run *domain.OptimisationRun) error
	GetAllOptimisationRuns() ([]*domain.OptimisationRun, error)
	GetOptimisationRunsByRequester(userID int64) ([]*domain.OptimisationRun, error)
	GetRunSummaryByRequester(userID int64) (domain.RunSummary, error)
	GetOptimisationRunByID(id int64) (*domain.OptimisationRun, error)
	UpdateOptimisationRunStatus(run *domain.OptimisationRun) error
}

// Publisher 把优化任务发送到消息队列，由 worker.AMQPPublisher 实现
type Publisher interface {
	Publish(ctx context.Context, queue string, v any) error
}
