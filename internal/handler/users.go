package handler

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// constraintMessage 把违反数据库约束的错误转换成可以展示给用户的信息
func constraintMessage(err error, messages map[string]string) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	msg, ok := messages[pgErr.ConstraintName]
	return msg, ok
}

func (h *Handler) GetAllUserInfo(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.GetAllUsers()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取用户列表成功", users)
}

// CreateUser 由管理员为排班协调员开通账号
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required,min=8"`
		FullName string `json:"fullName" validate:"required"`
		Email    string `json:"email" validate:"required,email"`
		Role     string `json:"role" validate:"required,oneof=排班协调员 管理员"`
	}
	if !h.decodeRequest(w, r, &req) {
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	user := &domain.User{
		Username:     req.Username,
		PasswordHash: string(hashedPassword),
		FullName:     req.FullName,
		Email:        req.Email,
		Role:         domain.Role(req.Role),
	}

	if err := h.store.CreateUser(user); err != nil {
		msg, ok := constraintMessage(err, map[string]string{
			"users_username_key": "用户名已存在",
			"users_email_key":    "邮箱已存在",
		})
		if ok {
			h.errorResponse(w, r, msg)
			return
		}
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "用户创建成功", user)
}

// GetUserInfo 同时返回该用户提交的优化任务统计
func (h *Handler) GetUserInfo(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(UserInfoCtx).(*domain.User)

	info, err := h.accountInfo(user)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取用户信息成功", info)
}

// DeleteUser 只能删除没有提交过优化任务的用户，任务的结果需要保留提交人
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(UserInfoCtx).(*domain.User)

	summary, err := h.store.GetRunSummaryByRequester(user.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	switch {
	case summary.Unfinished() > 0:
		h.errorResponse(w, r, "该用户还有未完成的优化任务，无法删除")
		return
	case summary.Total > 0:
		h.errorResponse(w, r, "该用户提交过优化任务，无法删除")
		return
	}

	// 统计之后新提交的任务由外键拦住
	if err := h.store.DeleteUser(user.ID); err != nil {
		if msg, ok := constraintMessage(err, map[string]string{
			"optimisation_runs_requested_by_fkey": "该用户提交过优化任务，无法删除",
		}); ok {
			h.errorResponse(w, r, msg)
			return
		}
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "删除用户成功", nil)
}
