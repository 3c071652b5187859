package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/domain"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/scheduler"
)

func (h *Handler) GetAllWards(w http.ResponseWriter, r *http.Request) {
	wards, err := h.store.GetAllWards()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取病房列表成功", wards)
}

func (h *Handler) CreateWard(w http.ResponseWriter, r *http.Request) {
	ward := &domain.Ward{}
	if !h.decodeRequest(w, r, ward) {
		return
	}
	// 容量之间的约束
	if err := scheduler.ValidateWard(ward); err != nil {
		h.errorResponse(w, r, err.Error())
		return
	}

	if err := h.store.CreateWard(ward); err != nil {
		if msg, ok := constraintMessage(err, map[string]string{"wards_name_key": "病房名称已存在"}); ok {
			h.errorResponse(w, r, msg)
			return
		}
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "创建病房成功", ward)
}

func (h *Handler) DeleteWard(w http.ResponseWriter, r *http.Request) {
	wardID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.errorResponse(w, r, "病房ID无效")
		return
	}

	if err := h.store.DeleteWard(wardID); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "删除病房成功", nil)
}
