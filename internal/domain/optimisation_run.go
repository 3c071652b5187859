package domain

import "time"

type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunParameters 是提交优化任务时指定的遗传算法参数
type RunParameters struct {
	PopulationSize   int32   `json:"populationSize"`
	MaxGenerations   int32   `json:"maxGenerations"`
	TargetFitness    float64 `json:"targetFitness"`
	StagnationWindow int32   `json:"stagnationWindow"`
	CrossoverRate    float64 `json:"crossoverRate"`
	MutationRate     float64 `json:"mutationRate"`
	EliteCount       int32   `json:"eliteCount"`
	RepeatTolerance  int32   `json:"repeatTolerance"`
	UtilWeight       float64 `json:"utilWeight"`
	DepsWeight       float64 `json:"depsWeight"`
	WardsWeight      float64 `json:"wardsWeight"`
	PenaltyWeight    float64 `json:"penaltyWeight"`
}

type OptimisationRun struct {
	ID           int64            `json:"id"`
	JobID        string           `json:"jobID"`
	Status       RunStatus        `json:"status"`
	Parameters   RunParameters    `json:"parameters"`
	NumSchedules int32            `json:"numSchedules"`
	Seed         int64            `json:"seed"`
	RequestedBy  int64            `json:"requestedBy"`
	Error        string           `json:"error"`
	Schedules    []ScheduleResult `json:"schedules"`
	CreatedAt    time.Time        `json:"createdAt"`
	FinishedAt   *time.Time       `json:"finishedAt"`
	Version      int32            `json:"-"`
}

// Assignment 记录某个实习被分配到的病房，WardID 为 nil 表示未能分配
type Assignment struct {
	PlacementID int64  `json:"placementID"`
	WardID      *int64 `json:"wardID"`
}

// ScheduleResult 是一次独立运行最终选出的排班表
type ScheduleResult struct {
	ID                  int64        `json:"id"`
	RunIndex            int32        `json:"runIndex"`
	FileName            string       `json:"fileName"`
	Viable              bool         `json:"viable"`
	NonViableReason     string       `json:"nonViableReason"`
	Iterations          int32        `json:"iterations"`
	Fitness             float64      `json:"fitness"`
	MeanWardUtil        float64      `json:"meanWardUtil"`
	MeanUniqDeps        float64      `json:"meanUniqDeps"`
	MeanUniqWards       float64      `json:"meanUniqWards"`
	NumIncorrNumPlac    int32        `json:"numIncorrNumPlac"`
	NumIncorrectLength  int32        `json:"numIncorrectLength"`
	NumCapacityExceeded int32        `json:"numCapacityExceeded"`
	NumDoubleBooked     int32        `json:"numDoubleBooked"`
	NumUnassigned       int32        `json:"numUnassigned"`
	Assignments         []Assignment `json:"assignments,omitempty"`
}

// GenerationProgress 是每一代结束时对外报告的进度
type GenerationProgress struct {
	RunIndex    int32     `json:"runIndex"`
	Generation  int32     `json:"generation"`
	BestFitness float64   `json:"bestFitness"`
	Fitnesses   []float64 `json:"fitnesses"`
	Continue    bool      `json:"continue"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// OptimisationJob 是发送到优化任务队列中的消息
type OptimisationJob struct {
	RunID int64  `json:"runID"`
	JobID string `json:"jobID"`
}

// RunSummary 统计某个用户提交的优化任务
type RunSummary struct {
	Total     int32      `json:"total"`
	Pending   int32      `json:"pending"`
	Running   int32      `json:"running"`
	Completed int32      `json:"completed"`
	Failed    int32      `json:"failed"`
	LastRunAt *time.Time `json:"lastRunAt"`
}

// Unfinished 返回还在排队或正在执行的任务数量
func (s RunSummary) Unfinished() int32 {
	return s.Pending + s.Running
}

// Add 按状态累加一组任务
func (s *RunSummary) Add(status RunStatus, count int32) {
	switch status {
	case RunStatusPending:
		s.Pending += count
	case RunStatusRunning:
		s.Running += count
	case RunStatusCompleted:
		s.Completed += count
	case RunStatusFailed:
		s.Failed += count
	}
	s.Total += count
}

// CanBeViewedBy 管理员可以查看所有任务，排班协调员只能查看自己提交的任务
func (run *OptimisationRun) CanBeViewedBy(userID int64, role Role) bool {
	return role == RoleAdmin || run.RequestedBy == userID
}
