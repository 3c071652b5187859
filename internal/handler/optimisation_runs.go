package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/domain"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/progress"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/scheduler"
)

func (h *Handler) CreateOptimisationRun(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	// 请求中没有出现的参数使用配置中的默认值
	req := struct {
		Parameters   domain.RunParameters `json:"parameters"`
		NumSchedules int32                `json:"numSchedules" validate:"min=1,max=10"`
		Seed         *int64               `json:"seed"`
	}{
		Parameters:   h.config.Optimiser.RunParameters(),
		NumSchedules: h.config.Optimiser.NumSchedules,
	}

	if !h.decodeRequest(w, r, &req) {
		return
	}
	if err := scheduler.ValidateRunParameters(req.Parameters); err != nil {
		h.errorResponse(w, r, err.Error())
		return
	}

	seed := time.Now().UnixNano()
	if req.Seed != nil {
		seed = *req.Seed
	}

	run := &domain.OptimisationRun{
		JobID:        uuid.NewString(),
		Status:       domain.RunStatusPending,
		Parameters:   req.Parameters,
		NumSchedules: req.NumSchedules,
		Seed:         seed,
		RequestedBy:  myInfo.ID,
	}

	if err := h.store.CreateOptimisationRun(run); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	// 将任务发送到消息队列，由 worker 执行，客户端断开也要继续发送
	job := domain.OptimisationJob{RunID: run.ID, JobID: run.JobID}
	if err := h.publisher.Publish(context.WithoutCancel(r.Context()), h.config.RabbitMQ.OptimisationQueue, job); err != nil {
		run.Status = domain.RunStatusFailed
		run.Error = "无法提交优化任务"
		finishedAt := time.Now()
		run.FinishedAt = &finishedAt
		if updateErr := h.store.UpdateOptimisationRunStatus(run); updateErr != nil {
			h.logInternalServerError(r, updateErr)
		}
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "优化任务已提交", run)
}

// GetAllOptimisationRuns 管理员看到所有任务，排班协调员只看到自己提交的任务
func (h *Handler) GetAllOptimisationRuns(w http.ResponseWriter, r *http.Request) {
	userID, role, err := session(r)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	var runs []*domain.OptimisationRun
	if role == domain.RoleAdmin {
		runs, err = h.store.GetAllOptimisationRuns()
	} else {
		runs, err = h.store.GetOptimisationRunsByRequester(userID)
	}
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取优化任务列表成功", runs)
}

func (h *Handler) GetOptimisationRun(w http.ResponseWriter, r *http.Request) {
	run := r.Context().Value(OptimisationRunCtx).(*domain.OptimisationRun)

	// 详情中只返回对比信息，具体的分配通过导出接口获取
	for i := range run.Schedules {
		run.Schedules[i].Assignments = nil
	}

	h.successResponse(w, r, "获取优化任务成功", run)
}

func (h *Handler) GetOptimisationRunProgress(w http.ResponseWriter, r *http.Request) {
	run := r.Context().Value(OptimisationRunCtx).(*domain.OptimisationRun)

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(h.config.Redis.OperationTimeout)*time.Second)
	defer cancel()

	progresses, err := progress.GetProgress(ctx, h.redisClient, run.JobID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取优化进度成功", map[string]any{
		"status":   run.Status,
		"progress": progresses,
	})
}

// buildExport 导出时使用当前数据库中的病房和实习信息
func (h *Handler) buildExport(run *domain.OptimisationRun) ([]scheduler.ExportTable, error) {
	wards, err := h.store.GetAllWards()
	if err != nil {
		return nil, err
	}
	placements, err := h.store.GetAllPlacements()
	if err != nil {
		return nil, err
	}

	return scheduler.BuildExport(run.Schedules, wards, placements), nil
}

func (h *Handler) GetOptimisationRunExports(w http.ResponseWriter, r *http.Request) {
	run := r.Context().Value(OptimisationRunCtx).(*domain.OptimisationRun)
	if run.Status != domain.RunStatusCompleted {
		h.errorResponse(w, r, "优化任务尚未完成")
		return
	}

	tables, err := h.buildExport(run)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	names := make([]string, 0, len(tables))
	for _, table := range tables {
		names = append(names, table.FileName)
	}

	h.successResponse(w, r, "获取导出文件列表成功", names)
}

func (h *Handler) DownloadOptimisationRunExport(w http.ResponseWriter, r *http.Request) {
	run := r.Context().Value(OptimisationRunCtx).(*domain.OptimisationRun)
	if run.Status != domain.RunStatusCompleted {
		h.errorResponse(w, r, "优化任务尚未完成")
		return
	}

	tables, err := h.buildExport(run)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	name := chi.URLParam(r, "name")
	for _, table := range tables {
		if table.FileName != name {
			continue
		}

		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", table.FileName))
		if err := scheduler.WriteCSV(w, table); err != nil {
			h.logInternalServerError(r, err)
		}
		return
	}

	h.errorResponse(w, r, "导出文件不存在")
}
