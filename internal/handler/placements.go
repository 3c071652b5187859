package handler

import (
	"net/http"

	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/domain"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/scheduler"
)

func (h *Handler) GetAllPlacements(w http.ResponseWriter, r *http.Request) {
	placements, err := h.store.GetAllPlacements()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取实习列表成功", placements)
}

func (h *Handler) CreatePlacement(w http.ResponseWriter, r *http.Request) {
	placement := &domain.Placement{}
	if !h.decodeRequest(w, r, placement) {
		return
	}
	if err := scheduler.ValidatePlacement(placement); err != nil {
		h.errorResponse(w, r, err.Error())
		return
	}
	if placement.StudentName == "" {
		h.errorResponse(w, r, "学生姓名不能为空")
		return
	}

	// 实习所属的学生不存在时一并创建
	if err := h.store.CreateStudent(placement.StudentID, placement.StudentName, placement.Cohort); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	if err := h.store.CreatePlacement(placement); err != nil {
		if msg, ok := constraintMessage(err, map[string]string{
			"placements_duration_check":   "实习的时长必须大于 0",
			"placements_start_week_check": "实习的开始周不能小于 0",
		}); ok {
			h.errorResponse(w, r, msg)
			return
		}
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "创建实习成功", placement)
}
