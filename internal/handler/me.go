package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// accountInfo 是用户信息以及其提交的优化任务统计
type accountInfo struct {
	*domain.User
	Runs domain.RunSummary `json:"runs"`
}

func (h *Handler) accountInfo(user *domain.User) (*accountInfo, error) {
	summary, err := h.store.GetRunSummaryByRequester(user.ID)
	if err != nil {
		return nil, err
	}
	return &accountInfo{User: user, Runs: summary}, nil
}

func (h *Handler) GetMyInfo(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	info, err := h.accountInfo(myInfo)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取个人信息成功", info)
}

func (h *Handler) UpdateMyPassword(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	var req struct {
		OldPassword string `json:"oldPassword" validate:"required"`
		NewPassword string `json:"newPassword" validate:"required,min=8,nefield=OldPassword"`
	}
	if !h.decodeRequest(w, r, &req) {
		return
	}

	switch err := checkPassword(myInfo, req.OldPassword); {
	case errors.Is(err, errBadCredentials):
		h.errorResponse(w, r, "旧密码错误")
		return
	case err != nil:
		h.internalServerError(w, r, err)
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	myInfo.PasswordHash = string(hashedPassword)

	// 版本冲突说明密码刚被其它请求修改过
	err = h.store.UpdateUser(myInfo)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		h.errorResponse(w, r, "更新密码失败，请重试")
		return
	case err != nil:
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "更新密码成功", nil)
}
