package handler

import (
	"net/http"
	"strconv"

	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/domain"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/utils"
)

// CheckCapacity 在提交优化任务之前检查学生人数与病房容量
// 可选参数 start 和 end 指定排班的起止周（左闭右开），默认覆盖所有实习
func (h *Handler) CheckCapacity(w http.ResponseWriter, r *http.Request) {
	wards, err := h.store.GetAllWards()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	placements, err := h.store.GetAllPlacements()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	cohorts, err := h.store.GetStudentCohorts()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	startWeek, endWeek := int32(0), int32(domain.HorizonWeeks(placements))
	query := r.URL.Query()
	if s := query.Get("start"); s != "" {
		v, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			h.errorResponse(w, r, "开始周无效")
			return
		}
		startWeek = int32(v)
	}
	if s := query.Get("end"); s != "" {
		v, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			h.errorResponse(w, r, "结束周无效")
			return
		}
		endWeek = int32(v)
	}

	if err := utils.ValidateWeekWindow(startWeek, endWeek); err != nil {
		h.badRequest(w, r, err)
		return
	}

	placements = utils.FilterPlacementsByWindow(placements, startWeek, endWeek)
	report := utils.CheckCapacity(wards, placements, cohorts, startWeek, endWeek)

	h.successResponse(w, r, "容量检查完成", report)
}
